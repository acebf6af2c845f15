package websocket

import (
	"time"

	"github.com/dreschagin/soc-portal/internal/domain/valueobject"
	"github.com/dreschagin/soc-portal/pkg/logger"
	"github.com/gorilla/websocket"
)

const (
	// Время ожидания для write операций
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Интервал ping сообщений (должен быть меньше pongWait)
	pingPeriod = 54 * time.Second

	// Клиент ничего не присылает, кроме control frames
	maxMessageSize = 512
)

// Client представляет WebSocket клиента
type Client struct {
	conn   *websocket.Conn
	hub    *Hub
	send   chan Message
	logger *logger.Logger

	// Подписка на каналы; пусто - все события
	channels map[valueobject.Channel]struct{}
}

// NewClient создает нового WebSocket клиента.
// subscription - значение вида "APP,WEB" или "ALL".
func NewClient(hub *Hub, conn *websocket.Conn, subscription string, logger *logger.Logger) *Client {
	c := &Client{
		conn:   conn,
		hub:    hub,
		send:   make(chan Message, 256),
		logger: logger,
	}

	if expanded := valueobject.ExpandChannels(subscription); len(expanded) > 0 && len(expanded) < len(valueobject.AllChannels()) {
		c.channels = make(map[valueobject.Channel]struct{}, len(expanded))
		for _, ch := range expanded {
			c.channels[ch] = struct{}{}
		}
	}

	return c
}

// wants проверяет подписку; сообщения без каналов получают все
func (c *Client) wants(channels []string) bool {
	if len(c.channels) == 0 || len(channels) == 0 {
		return true
	}
	for _, ch := range channels {
		if _, ok := c.channels[valueobject.Channel(ch)]; ok {
			return true
		}
	}
	return false
}

// ReadPump читает control frames клиента.
// Запускается в отдельной goroutine
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		if err := c.conn.Close(); err != nil {
			c.logger.Debug("WebSocket close error", "error", err.Error())
		}
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("WebSocket set read deadline error", err)
		return
	}
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket read error", err)
			}
			return
		}
	}
}

// WritePump отправляет сообщения клиенту.
// Запускается в отдельной goroutine
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("WebSocket set write deadline error", err)
				return
			}
			if !ok {
				// Hub закрыл канал
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("WebSocket write error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("WebSocket set write deadline error", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
