package repository

import (
	"context"
	"time"

	"github.com/dreschagin/soc-portal/internal/domain/entity"
	"github.com/dreschagin/soc-portal/internal/domain/valueobject"
)

// DowntimeQuery описывает выборку строк, пересекающих окно.
// Пустые строковые фильтры не применяются, сравнение без учета регистра.
type DowntimeQuery struct {
	Window      valueobject.TimeRange
	Now         time.Time
	Modality    string
	ImpactType  string
	Reliability string
	Category    string
}

// IncidentCountFilter описывает условия подсчета уникальных инцидентов
type IncidentCountFilter struct {
	OngoingOnly     bool
	ReliabilityOnly bool
	StartedSince    time.Time
}

// DowntimeRepository определяет интерфейс для работы с хранилищем простоев (Port)
// Реализация будет в Infrastructure слое
type DowntimeRepository interface {
	// Save сохраняет одну строку
	Save(ctx context.Context, downtime *entity.Downtime) error

	// SaveBatch сохраняет несколько строк одной транзакцией
	SaveBatch(ctx context.Context, downtimes []*entity.Downtime) error

	// FindByIncident находит все строки инцидента
	FindByIncident(ctx context.Context, incidentID string) ([]*entity.Downtime, error)

	// FindOverlapping находит строки, пересекающие окно запроса
	// (start < windowEnd AND COALESCE(end, now) > windowStart)
	FindOverlapping(ctx context.Context, query DowntimeQuery) ([]*entity.Downtime, error)

	// CloseIncident проставляет время окончания всем открытым строкам инцидента
	CloseIncident(ctx context.Context, incidentID string, endTime time.Time) (int64, error)

	// CountIncidents возвращает количество уникальных инцидентов
	CountIncidents(ctx context.Context, filter IncidentCountFilter) (int64, error)
}
