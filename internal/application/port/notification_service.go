package port

import "github.com/dreschagin/soc-portal/internal/application/dto"

// NotificationService определяет интерфейс для отправки уведомлений (Port)
// Реализация будет в Infrastructure слое (WebSocket Hub)
type NotificationService interface {
	// BroadcastDowntime отправляет событие о простое всем подключенным клиентам
	BroadcastDowntime(event *dto.DowntimeEventDTO)

	// BroadcastSLABreach отправляет alert о нарушении SLA всем подключенным клиентам
	BroadcastSLABreach(alert *dto.SLABreachDTO)

	// ClientCount возвращает количество подключенных клиентов
	ClientCount() int
}
