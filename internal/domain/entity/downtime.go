package entity

import (
	"errors"
	"strings"
	"time"

	"github.com/dreschagin/soc-portal/internal/domain/valueobject"
	"github.com/google/uuid"
)

// Downtime представляет одну строку отчета о простое (Aggregate Root).
// Несколько строк с одним incidentID описывают один реальный инцидент.
type Downtime struct {
	id              string
	incidentID      string
	category        string
	affectedChannel string
	startTime       time.Time
	endTime         *time.Time
	modality        valueobject.Modality
	impactType      valueobject.ImpactType
	reliability     valueobject.ReliabilityFlag
	createdAt       time.Time
}

// NewDowntime создает новую запись о простое (Factory Method).
// Флаг reliability_impacted вычисляется один раз при создании.
func NewDowntime(
	incidentID string,
	category string,
	affectedChannel string,
	startTime time.Time,
	endTime *time.Time,
	modality valueobject.Modality,
	impactType valueobject.ImpactType,
) (*Downtime, error) {
	if strings.TrimSpace(incidentID) == "" {
		return nil, errors.New("incident id is required")
	}
	if strings.TrimSpace(affectedChannel) == "" {
		return nil, errors.New("affected channel is required")
	}
	if startTime.IsZero() {
		return nil, errors.New("start time is required")
	}
	if endTime != nil && endTime.Before(startTime) {
		return nil, errors.New("end time must not be before start time")
	}
	if err := modality.Validate(); err != nil {
		return nil, err
	}
	if err := impactType.Validate(); err != nil {
		return nil, err
	}

	return &Downtime{
		id:              uuid.New().String(),
		incidentID:      strings.TrimSpace(incidentID),
		category:        strings.ToUpper(strings.TrimSpace(category)),
		affectedChannel: strings.TrimSpace(affectedChannel),
		startTime:       startTime,
		endTime:         copyTime(endTime),
		modality:        modality,
		impactType:      impactType,
		reliability:     valueobject.DeriveReliability(modality, impactType),
		createdAt:       time.Now().UTC(),
	}, nil
}

// ReconstructDowntime восстанавливает запись из хранилища (для Repository).
// Значения не валидируются: строки с неожиданной формой отсеивает агрегатор.
func ReconstructDowntime(
	id string,
	incidentID string,
	category string,
	affectedChannel string,
	startTime time.Time,
	endTime *time.Time,
	modality string,
	impactType string,
	reliability string,
	createdAt time.Time,
) *Downtime {
	return &Downtime{
		id:              id,
		incidentID:      incidentID,
		category:        category,
		affectedChannel: affectedChannel,
		startTime:       startTime,
		endTime:         copyTime(endTime),
		modality:        valueobject.Modality(modality),
		impactType:      valueobject.ImpactType(impactType),
		reliability:     valueobject.ReliabilityFlag(reliability),
		createdAt:       createdAt,
	}
}

// ID возвращает идентификатор строки
func (d *Downtime) ID() string {
	return d.id
}

// IncidentID возвращает идентификатор инцидента
func (d *Downtime) IncidentID() string {
	return d.incidentID
}

// Category возвращает категорию (ADD MONEY, BILL PAYMENT, ...)
func (d *Downtime) Category() string {
	return d.category
}

// AffectedChannel возвращает исходное значение affected_channel
func (d *Downtime) AffectedChannel() string {
	return d.affectedChannel
}

// Channels возвращает раскрытый набор каналов
func (d *Downtime) Channels() []valueobject.Channel {
	return valueobject.ExpandChannels(d.affectedChannel)
}

// StartTime возвращает время начала
func (d *Downtime) StartTime() time.Time {
	return d.startTime
}

// EndTime возвращает время окончания, nil для продолжающегося простоя
func (d *Downtime) EndTime() *time.Time {
	return copyTime(d.endTime)
}

// Modality возвращает модальность
func (d *Downtime) Modality() valueobject.Modality {
	return d.modality
}

// ImpactType возвращает тип влияния
func (d *Downtime) ImpactType() valueobject.ImpactType {
	return d.impactType
}

// Reliability возвращает флаг reliability_impacted
func (d *Downtime) Reliability() valueobject.ReliabilityFlag {
	return d.reliability
}

// CreatedAt возвращает время создания записи
func (d *Downtime) CreatedAt() time.Time {
	return d.createdAt
}

// Domain Methods (бизнес-логика)

// IsOngoing проверяет, продолжается ли простой
func (d *Downtime) IsOngoing() bool {
	return d.endTime == nil
}

// EffectiveEnd возвращает время окончания, для продолжающегося простоя - now
func (d *Downtime) EffectiveEnd(now time.Time) time.Time {
	if d.endTime == nil {
		return now
	}
	return *d.endTime
}

// ImpactsReliability проверяет, учитывается ли простой в SLA
func (d *Downtime) ImpactsReliability() bool {
	return d.reliability.IsYes()
}

// Duration возвращает полную длительность простоя
func (d *Downtime) Duration(now time.Time) time.Duration {
	return d.EffectiveEnd(now).Sub(d.startTime)
}

// Close завершает продолжающийся простой
func (d *Downtime) Close(endTime time.Time) error {
	if d.endTime != nil {
		return errors.New("downtime is already closed")
	}
	if endTime.Before(d.startTime) {
		return errors.New("end time must not be before start time")
	}
	d.endTime = &endTime
	return nil
}

// ClosedAt возвращает закрытую копию записи; сама запись не меняется
func (d *Downtime) ClosedAt(endTime time.Time) (*Downtime, error) {
	closed := *d
	closed.endTime = nil
	if d.endTime != nil {
		closed.endTime = copyTime(d.endTime)
	}
	if err := closed.Close(endTime); err != nil {
		return nil, err
	}
	return &closed, nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
