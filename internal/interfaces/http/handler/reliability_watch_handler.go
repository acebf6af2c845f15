package handler

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dreschagin/soc-portal/pkg/logger"
)

const maxWatcherResponseBytes = 2 * 1024 * 1024

// ReliabilityWatchHandler проксирует запросы к процессу reliability-watcher
type ReliabilityWatchHandler struct {
	baseURL string
	client  *http.Client
	logger  *logger.Logger
}

func NewReliabilityWatchHandler(baseURL string, timeout time.Duration, log *logger.Logger) *ReliabilityWatchHandler {
	if timeout <= 0 {
		timeout = 6 * time.Second
	}

	return &ReliabilityWatchHandler{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		logger: log,
	}
}

// GetSummary возвращает снимок последнего прогона
func (h *ReliabilityWatchHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	h.proxy(r.Context(), w, http.MethodGet, "/api/v1/reliability-watch/summary")
}

// RunNow запускает внеочередную проверку
func (h *ReliabilityWatchHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	h.proxy(r.Context(), w, http.MethodPost, "/api/v1/reliability-watch/run")
}

func (h *ReliabilityWatchHandler) proxy(ctx context.Context, w http.ResponseWriter, method string, path string) {
	if h.baseURL == "" {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "reliability watcher base URL is not configured"})
		return
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, nil)
	if err != nil {
		h.logger.Error("Failed to build reliability watcher request", err, "path", path)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to build reliability watcher request"})
		return
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Error("Reliability watcher request failed", err, "path", path)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "reliability watcher is unavailable"})
		return
	}
	defer resp.Body.Close()

	body, err := readLimited(resp.Body, maxWatcherResponseBytes)
	if err != nil {
		h.logger.Error("Failed to read reliability watcher response body", err, "path", path)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "failed to read reliability watcher response"})
		return
	}

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = "application/json"
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(body); err != nil {
		h.logger.Error("Failed to write reliability watcher response to client", err, "path", path)
	}
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	lr := io.LimitReader(r, limit+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, io.ErrUnexpectedEOF
	}
	return data, nil
}
