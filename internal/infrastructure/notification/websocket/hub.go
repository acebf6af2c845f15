package websocket

import (
	"context"
	"sync"

	"github.com/dreschagin/soc-portal/internal/application/dto"
	"github.com/dreschagin/soc-portal/pkg/logger"
)

// Типы сообщений ленты
const (
	MessageDowntime  = "downtime"
	MessageSLABreach = "sla_breach"
)

// Message представляет сообщение для отправки клиенту
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`

	// channels ограничивает доставку клиентам, подписанным на эти каналы
	channels []string
}

// Hub управляет WebSocket клиентами и рассылает события о простоях.
// Реализует интерфейс port.NotificationService
type Hub struct {
	clients map[*Client]struct{}

	broadcast  chan Message
	register   chan *Client
	unregister chan *Client

	// done закрывается, когда Run завершился
	done chan struct{}

	// Mutex для защиты clients map
	mu sync.RWMutex

	logger *logger.Logger
}

// NewHub создает новый WebSocket hub
func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run запускает hub до отмены контекста (в отдельной goroutine)
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Client registered", "total_clients", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Client unregistered", "total_clients", total)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if !client.wants(msg.channels) {
			continue
		}
		select {
		case client.send <- msg:
		default:
			// Медленный клиент отключается, чтобы не блокировать ленту
			close(client.send)
			delete(h.clients, client)
			h.logger.Warn("Client channel full, disconnected")
		}
	}
}

// Register регистрирует нового клиента.
// После остановки hub канал клиента сразу закрывается
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// Unregister удаляет клиента; после остановки hub ничего не делает
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastDowntime рассылает событие о простое (реализация port.NotificationService)
func (h *Hub) BroadcastDowntime(event *dto.DowntimeEventDTO) {
	h.enqueue(Message{Type: MessageDowntime, Data: event, channels: event.Channels})
}

// BroadcastSLABreach рассылает alert о нарушении SLA всем клиентам
func (h *Hub) BroadcastSLABreach(alert *dto.SLABreachDTO) {
	h.enqueue(Message{Type: MessageSLABreach, Data: alert})
}

func (h *Hub) enqueue(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("Broadcast channel full, dropping message", "type", msg.Type)
	}
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
