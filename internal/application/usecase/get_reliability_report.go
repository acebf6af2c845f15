package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/dreschagin/soc-portal/internal/application/dto"
	"github.com/dreschagin/soc-portal/internal/application/port"
	"github.com/dreschagin/soc-portal/internal/domain/entity"
	"github.com/dreschagin/soc-portal/internal/domain/repository"
	"github.com/dreschagin/soc-portal/internal/domain/service"
	"github.com/dreschagin/soc-portal/internal/domain/valueobject"
	"github.com/dreschagin/soc-portal/internal/infrastructure/cache/redis"
	"github.com/dreschagin/soc-portal/pkg/logger"
)

// GetReliabilityReportUseCase считает надежность по каналам с кешированием
type GetReliabilityReportUseCase struct {
	repository repository.DowntimeRepository
	aggregator *service.DowntimeAggregator
	scorer     *service.ReliabilityScorer
	cache      port.Cache
	logger     *logger.Logger
	now        func() time.Time
}

// NewGetReliabilityReportUseCase создает новый use case; cache может быть nil
func NewGetReliabilityReportUseCase(
	repository repository.DowntimeRepository,
	aggregator *service.DowntimeAggregator,
	scorer *service.ReliabilityScorer,
	cache port.Cache,
	logger *logger.Logger,
) *GetReliabilityReportUseCase {
	return &GetReliabilityReportUseCase{
		repository: repository,
		aggregator: aggregator,
		scorer:     scorer,
		cache:      cache,
		logger:     logger,
		now:        time.Now,
	}
}

// Execute строит отчет о надежности за окно запроса
func (uc *GetReliabilityReportUseCase) Execute(ctx context.Context, query ReportQuery) (*dto.ReliabilityReportDTO, error) {
	now := uc.now()

	// Ошибки диапазона прерывают вычисление целиком
	rr, err := query.resolve(now)
	if err != nil {
		return nil, err
	}

	// Если кеш не настроен, используем стандартный путь
	if uc.cache == nil {
		return uc.compute(ctx, query, rr, now)
	}

	cacheKey := redis.ReliabilityKey(rr.Preset.String(), rr.Window.Start(), rr.Window.End(), query.Channel, query.Category)

	var cached dto.ReliabilityReportDTO
	if err := uc.cache.Get(ctx, cacheKey, &cached); err == nil {
		uc.logger.Debug("Cache hit for reliability report", "range", rr.Preset.String())
		return &cached, nil
	}

	uc.logger.Debug("Cache miss for reliability report, computing", "range", rr.Preset.String())

	report, err := uc.compute(ctx, query, rr, now)
	if err != nil {
		return nil, err
	}

	// Сохраняем в кеш асинхронно, не блокируем ответ
	go func() {
		if err := uc.cache.Set(context.Background(), cacheKey, report); err != nil {
			uc.logger.Warn("Failed to cache reliability report", "error", err.Error())
		}
	}()

	return report, nil
}

// compute выполняет выборку и расчет без кеша
func (uc *GetReliabilityReportUseCase) compute(
	ctx context.Context,
	query ReportQuery,
	rr valueobject.ResolvedRange,
	now time.Time,
) (*dto.ReliabilityReportDTO, error) {
	repoQuery := query.repositoryQuery(rr, now)
	repoQuery.Reliability = valueobject.ReliabilityYes.String()
	repoQuery.Modality, repoQuery.ImpactType = "", ""

	records, err := uc.repository.FindOverlapping(ctx, repoQuery)
	if err != nil {
		uc.logger.Error("Failed to fetch reliability-impacting downtime", err, "range", rr.Preset.String())
		return nil, fmt.Errorf("failed to fetch downtime: %w", err)
	}

	// В расчет надежности попадают только строки с reliability_impacted = YES
	impacting := make([]*entity.Downtime, 0, len(records))
	for _, rec := range records {
		if rec != nil && rec.ImpactsReliability() {
			impacting = append(impacting, rec)
		}
	}

	res := uc.aggregator.Aggregate(impacting, rr.Window, now, query.channels()...)
	logSkipped(uc.logger, res.Skipped)

	score := uc.scorer.Score(res.Channels, rr.ExpectedMinutes)

	uc.logger.Debug("Computed reliability report",
		"range", rr.Preset.String(),
		"rows", len(impacting),
		"reliability", score.ReliabilityPercentage,
		"status", score.Tier.String(),
	)

	return dto.NewReliabilityReportDTO(rr, score, len(res.Skipped), now), nil
}
