package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/dreschagin/soc-portal/internal/application/dto"
	"github.com/dreschagin/soc-portal/internal/domain/repository"
	"github.com/dreschagin/soc-portal/internal/domain/service"
	"github.com/dreschagin/soc-portal/pkg/logger"
)

// GetChannelDowntimeUseCase возвращает минуты простоя и количество инцидентов по каналам
type GetChannelDowntimeUseCase struct {
	repository repository.DowntimeRepository
	aggregator *service.DowntimeAggregator
	logger     *logger.Logger
	now        func() time.Time
}

// NewGetChannelDowntimeUseCase создает новый use case
func NewGetChannelDowntimeUseCase(
	repository repository.DowntimeRepository,
	aggregator *service.DowntimeAggregator,
	logger *logger.Logger,
) *GetChannelDowntimeUseCase {
	return &GetChannelDowntimeUseCase{
		repository: repository,
		aggregator: aggregator,
		logger:     logger,
		now:        time.Now,
	}
}

// Execute выполняет агрегацию по каналам с учетом фильтров запроса
func (uc *GetChannelDowntimeUseCase) Execute(ctx context.Context, query ReportQuery) (*dto.ChannelDowntimeDTO, error) {
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
		uc.logger.Error("Failed to fetch downtime", err, "range", rr.Preset.String())
		return nil, fmt.Errorf("failed to fetch downtime: %w", err)
	}

	res := uc.aggregator.Aggregate(records, rr.Window, now, query.channels()...)
	logSkipped(uc.logger, res.Skipped)

	items := make([]dto.ChannelDowntimeItemDTO, len(res.Channels))
	for i, ch := range res.Channels {
		items[i] = dto.ChannelDowntimeItemDTO{
			Channel:       ch.Channel.String(),
			Minutes:       ch.Minutes,
			IncidentCount: ch.IncidentCount,
		}
	}

	return &dto.ChannelDowntimeDTO{
		Range:          rr.Preset.String(),
		WindowStart:    rr.Window.Start().UTC(),
		WindowEnd:      rr.Window.End().UTC(),
		Channels:       items,
		TotalMinutes:   res.TotalMinutes(),
		IncidentCount:  res.IncidentCount,
		SkippedRecords: len(res.Skipped),
	}, nil
}
