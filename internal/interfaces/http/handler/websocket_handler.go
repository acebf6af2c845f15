package handler

import (
	"net/http"
	"net/url"
	"strings"

	wsInfra "github.com/dreschagin/soc-portal/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/soc-portal/internal/interfaces/http/middleware"
	"github.com/dreschagin/soc-portal/pkg/logger"
	"github.com/gorilla/websocket"
)

// WebSocketHandler отдает живую ленту простоев и нарушений SLA
type WebSocketHandler struct {
	hub            *wsInfra.Hub
	logger         *logger.Logger
	allowedOrigins map[string]struct{}
	authConfig     middleware.AuthConfig
	upgrader       websocket.Upgrader
}

// NewWebSocketHandler создает новый handler.
// allowedOrigins сравниваются по scheme://host; "*" разрешает любой origin.
func NewWebSocketHandler(
	hub *wsInfra.Hub,
	allowedOrigins []string,
	authConfig middleware.AuthConfig,
	logger *logger.Logger,
) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:            hub,
		logger:         logger,
		allowedOrigins: make(map[string]struct{}, len(allowedOrigins)),
		authConfig:     authConfig,
	}
	for _, origin := range allowedOrigins {
		if normalized := normalizeOrigin(origin); normalized != "" {
			h.allowedOrigins[normalized] = struct{}{}
		}
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(h.allowedOrigins, r.Header.Get("Origin"))
		},
	}
	return h
}

// normalizeOrigin приводит origin к виду scheme://host; "*" остается как есть
func normalizeOrigin(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "*" {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return strings.ToLower(parsed.Scheme + "://" + parsed.Host)
}

func originAllowed(allowed map[string]struct{}, origin string) bool {
	normalized := normalizeOrigin(origin)
	if normalized == "" || normalized == "*" {
		return false
	}
	if _, ok := allowed[normalized]; ok {
		return true
	}
	_, wildcard := allowed["*"]
	return wildcard
}

// HandleConnection обрабатывает новое WebSocket соединение
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	subject, err := middleware.Authenticate(r, h.authConfig)
	if err != nil {
		h.logger.Warn("WebSocket unauthorized",
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"reason", err.Error(),
		)
		if h.authConfig.OnFailure != nil {
			h.authConfig.OnFailure()
		}
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", err)
		return
	}

	// ?channels=APP,WEB ограничивает ленту; пусто - все каналы
	subscription := r.URL.Query().Get("channels")
	client := wsInfra.NewClient(h.hub, conn, subscription, h.logger)
	h.hub.Register(client)

	h.logger.Debug("WebSocket client connected",
		"subject", subject,
		"channels", subscription,
	)

	// Запускаем pumps в отдельных goroutines
	go client.WritePump()
	go client.ReadPump()
}
