package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/dreschagin/soc-portal/internal/domain/entity"
	"github.com/dreschagin/soc-portal/internal/domain/valueobject"
)

// Допустимое расхождение часов клиента при проверке "не из будущего"
const clockSkew = 5 * time.Minute

// DowntimeValidator предоставляет сервисы для валидации отчетов о простое (Domain Service)
type DowntimeValidator struct{}

// NewDowntimeValidator создает новый DowntimeValidator
func NewDowntimeValidator() *DowntimeValidator {
	return &DowntimeValidator{}
}

// Validate выполняет полную валидацию записи перед сохранением
func (v *DowntimeValidator) Validate(d *entity.Downtime, now time.Time) error {
	if d == nil {
		return errors.New("downtime cannot be nil")
	}

	if err := d.Modality().Validate(); err != nil {
		return err
	}
	if err := d.ImpactType().Validate(); err != nil {
		return err
	}

	// Инвариант end >= start проверяется на входе, агрегатор на него не рассчитывает
	if end := d.EndTime(); end != nil && end.Before(d.StartTime()) {
		return errors.New("end time must not be before start time")
	}

	// Внеплановый простой не может начаться в будущем
	if d.Modality() == valueobject.Unplanned && d.StartTime().After(now.Add(clockSkew)) {
		return errors.New("unplanned downtime cannot start in the future")
	}

	if err := v.ValidateChannels(d.AffectedChannel()); err != nil {
		return err
	}

	if err := v.ValidateCategory(d.Category()); err != nil {
		return err
	}

	if d.Reliability() != valueobject.DeriveReliability(d.Modality(), d.ImpactType()) {
		return errors.New("reliability flag does not match modality and impact type")
	}

	return nil
}

// ValidateChannels проверяет, что все каналы отчета известны системе
func (v *DowntimeValidator) ValidateChannels(affected string) error {
	channels := valueobject.ExpandChannels(affected)
	if len(channels) == 0 {
		return errors.New("affected channel is required")
	}

	for _, ch := range channels {
		if !ch.IsKnown() {
			return fmt.Errorf("unknown channel %q", ch)
		}
	}
	return nil
}

// ValidateCategory проверяет категорию; пустая категория допустима
func (v *DowntimeValidator) ValidateCategory(category string) error {
	if category == "" {
		return nil
	}
	for _, known := range valueobject.AllCategories() {
		if category == known {
			return nil
		}
	}
	return fmt.Errorf("unknown category %q", category)
}

// ValidateBatch валидирует группу записей
func (v *DowntimeValidator) ValidateBatch(downtimes []*entity.Downtime, now time.Time) []error {
	var errs []error

	for i, d := range downtimes {
		if err := v.Validate(d, now); err != nil {
			errs = append(errs, fmt.Errorf("downtime %d: %w", i, err))
		}
	}

	return errs
}
