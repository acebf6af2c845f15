package postgres

import (
	"database/sql"
	"time"

	"github.com/dreschagin/soc-portal/internal/domain/entity"
)

// DowntimeDBModel представляет строку таблицы downtimes
type DowntimeDBModel struct {
	ID                  string
	DowntimeID          string
	Category            string
	AffectedChannel     string
	StartDateTime       time.Time
	EndDateTime         sql.NullTime
	Modality            string
	ImpactType          string
	ReliabilityImpacted string
	CreatedAt           time.Time
}

// ToDBModel конвертирует Domain Entity в DB Model
func ToDBModel(d *entity.Downtime) *DowntimeDBModel {
	model := &DowntimeDBModel{
		ID:                  d.ID(),
		DowntimeID:          d.IncidentID(),
		Category:            d.Category(),
		AffectedChannel:     d.AffectedChannel(),
		StartDateTime:       d.StartTime().UTC(),
		Modality:            d.Modality().String(),
		ImpactType:          d.ImpactType().String(),
		ReliabilityImpacted: d.Reliability().String(),
		CreatedAt:           d.CreatedAt().UTC(),
	}

	if end := d.EndTime(); end != nil {
		model.EndDateTime = sql.NullTime{Time: end.UTC(), Valid: true}
	}

	return model
}

// ToEntity конвертирует DB Model в Domain Entity.
// Значения не проверяются: агрегатор сам пропускает строки с неожиданной формой.
func ToEntity(model *DowntimeDBModel) *entity.Downtime {
	var end *time.Time
	if model.EndDateTime.Valid {
		t := model.EndDateTime.Time
		end = &t
	}

	return entity.ReconstructDowntime(
		model.ID,
		model.DowntimeID,
		model.Category,
		model.AffectedChannel,
		model.StartDateTime,
		end,
		model.Modality,
		model.ImpactType,
		model.ReliabilityImpacted,
		model.CreatedAt,
	)
}

// ScanDowntimeRow сканирует строку БД в DowntimeDBModel
func ScanDowntimeRow(row interface {
	Scan(dest ...interface{}) error
}) (*DowntimeDBModel, error) {
	var model DowntimeDBModel
	var category sql.NullString

	err := row.Scan(
		&model.ID,
		&model.DowntimeID,
		&category,
		&model.AffectedChannel,
		&model.StartDateTime,
		&model.EndDateTime,
		&model.Modality,
		&model.ImpactType,
		&model.ReliabilityImpacted,
		&model.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	model.Category = category.String
	return &model, nil
}
