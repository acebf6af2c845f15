package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dreschagin/soc-portal/internal/application/dto"
	"github.com/dreschagin/soc-portal/internal/application/port"
	"github.com/dreschagin/soc-portal/internal/domain/domainerr"
	"github.com/dreschagin/soc-portal/internal/domain/entity"
	"github.com/dreschagin/soc-portal/internal/domain/repository"
	"github.com/dreschagin/soc-portal/pkg/logger"
)

// CloseDowntimeCommand - завершение продолжающегося инцидента
type CloseDowntimeCommand struct {
	IncidentID string
	EndTime    time.Time
}

// CloseDowntimeResult - результат закрытия
type CloseDowntimeResult struct {
	IncidentID string    `json:"incidentId"`
	ClosedRows int64     `json:"closedRows"`
	EndTime    time.Time `json:"endTime"`
}

// CloseDowntimeUseCase проставляет время окончания открытым строкам инцидента
type CloseDowntimeUseCase struct {
	repository repository.DowntimeRepository
	announcer  *downtimeAnnouncer
	logger     *logger.Logger
	now        func() time.Time
}

// NewCloseDowntimeUseCase создает новый use case; publisher, notifier и cache могут быть nil
func NewCloseDowntimeUseCase(
	repository repository.DowntimeRepository,
	publisher port.EventPublisher,
	notifier port.NotificationService,
	cache port.Cache,
	logger *logger.Logger,
) *CloseDowntimeUseCase {
	return &CloseDowntimeUseCase{
		repository: repository,
		announcer:  &downtimeAnnouncer{publisher: publisher, notifier: notifier, cache: cache, logger: logger},
		logger:     logger,
		now:        time.Now,
	}
}

// Execute закрывает инцидент; без EndTime используется текущее время
func (uc *CloseDowntimeUseCase) Execute(ctx context.Context, cmd CloseDowntimeCommand) (*CloseDowntimeResult, error) {
	incidentID := strings.TrimSpace(cmd.IncidentID)
	if incidentID == "" {
		return nil, domainerr.NewValidationError("incidentId", "is required")
	}

	now := uc.now()
	endTime := cmd.EndTime
	if endTime.IsZero() {
		endTime = now
	}

	rows, err := uc.repository.FindByIncident(ctx, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load incident: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("incident %s: %w", incidentID, domainerr.ErrNotFound)
	}

	var open []*entity.Downtime
	for _, row := range rows {
		if !row.IsOngoing() {
			continue
		}
		closed, err := row.ClosedAt(endTime)
		if err != nil {
			return nil, domainerr.NewValidationError("endTime", err.Error())
		}
		open = append(open, closed)
	}
	if len(open) == 0 {
		return nil, domainerr.NewValidationError("incidentId", "incident has no ongoing downtime")
	}

	closed, err := uc.repository.CloseIncident(ctx, incidentID, endTime)
	if err != nil {
		uc.logger.Error("Failed to close incident", err, "incident_id", incidentID)
		return nil, fmt.Errorf("failed to close incident: %w", err)
	}

	uc.logger.Info("Incident closed", "incident_id", incidentID, "rows", closed)

	for _, row := range open {
		uc.announcer.announce(ctx, port.SubjectDowntimeClosed, dto.NewDowntimeEventDTO("closed", row, now))
	}

	return &CloseDowntimeResult{
		IncidentID: incidentID,
		ClosedRows: closed,
		EndTime:    endTime.UTC(),
	}, nil
}
