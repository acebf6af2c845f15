package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dreschagin/soc-portal/internal/application/dto"
	"github.com/dreschagin/soc-portal/internal/domain/domainerr"
	"github.com/dreschagin/soc-portal/internal/domain/entity"
	"github.com/dreschagin/soc-portal/internal/domain/repository"
	"github.com/dreschagin/soc-portal/internal/domain/valueobject"
	"github.com/dreschagin/soc-portal/pkg/logger"
)

// ListDowntimesUseCase возвращает строки простоя, пересекающие окно
type ListDowntimesUseCase struct {
	repository repository.DowntimeRepository
	logger     *logger.Logger
	now        func() time.Time
}

// NewListDowntimesUseCase создает новый use case
func NewListDowntimesUseCase(repository repository.DowntimeRepository, logger *logger.Logger) *ListDowntimesUseCase {
	return &ListDowntimesUseCase{
		repository: repository,
		logger:     logger,
		now:        time.Now,
	}
}

// Execute выбирает строки по окну и фильтрам, новые сверху
func (uc *ListDowntimesUseCase) Execute(ctx context.Context, query ReportQuery) ([]*dto.DowntimeDTO, error) {
	now := uc.now()

	rr, err := query.resolve(now)
	if err != nil {
		return nil, err
	}
	if err := query.validateFilters(); err != nil {
		return nil, err
	}

	records, err := uc.repository.FindOverlapping(ctx, query.repositoryQuery(rr, now))
	if err != nil {
		uc.logger.Error("Failed to list downtime", err, "range", rr.Preset.String())
		return nil, fmt.Errorf("failed to list downtime: %w", err)
	}

	if only := query.channels(); len(only) > 0 {
		records = filterByChannel(records, only)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartTime().After(records[j].StartTime())
	})

	return dto.ToDowntimeDTOs(records, now), nil
}

// FindIncident возвращает все строки одного инцидента; пустой результат - ErrNotFound
func (uc *ListDowntimesUseCase) FindIncident(ctx context.Context, incidentID string) ([]*dto.DowntimeDTO, error) {
	incidentID = strings.TrimSpace(incidentID)
	if incidentID == "" {
		return nil, domainerr.NewValidationError("incidentId", "is required")
	}

	records, err := uc.repository.FindByIncident(ctx, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load incident: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("incident %s: %w", incidentID, domainerr.ErrNotFound)
	}
	return dto.ToDowntimeDTOs(records, uc.now()), nil
}

func filterByChannel(records []*entity.Downtime, only []valueobject.Channel) []*entity.Downtime {
	allowed := make(map[valueobject.Channel]struct{}, len(only))
	for _, ch := range only {
		allowed[ch] = struct{}{}
	}

	out := make([]*entity.Downtime, 0, len(records))
	for _, rec := range records {
		for _, ch := range rec.Channels() {
			if _, ok := allowed[ch]; ok {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}
