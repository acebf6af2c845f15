package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dreschagin/soc-portal/internal/application/dto"
	"github.com/dreschagin/soc-portal/internal/domain/repository"
	"github.com/dreschagin/soc-portal/internal/domain/valueobject"
	"github.com/dreschagin/soc-portal/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// GetDashboardStatsUseCase собирает счетчики карточек дашборда.
// Чтение best-effort: упавший счетчик логируется и отдается нулем.
type GetDashboardStatsUseCase struct {
	repository repository.DowntimeRepository
	timeout    time.Duration
	logger     *logger.Logger
	now        func() time.Time
}

// NewGetDashboardStatsUseCase создает новый use case
func NewGetDashboardStatsUseCase(
	repository repository.DowntimeRepository,
	timeout time.Duration,
	logger *logger.Logger,
) *GetDashboardStatsUseCase {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &GetDashboardStatsUseCase{
		repository: repository,
		timeout:    timeout,
		logger:     logger,
		now:        time.Now,
	}
}

// Execute выполняет независимые запросы параллельно
func (uc *GetDashboardStatsUseCase) Execute(ctx context.Context) *dto.DashboardStatsDTO {
	now := uc.now()
	stats := &dto.DashboardStatsDTO{GeneratedAt: now.UTC()}

	today, err := valueobject.ResolveRange(valueobject.RangeToday.String(), "", "", now)
	if err != nil {
		// Для today не бывает, но счетчик просто не будет ограничен датой
		uc.logger.Warn("Failed to resolve today window", "error", err.Error())
	}

	counters := []struct {
		name   string
		filter repository.IncidentCountFilter
		dest   *int64
	}{
		{"totalIncidents", repository.IncidentCountFilter{}, &stats.TotalIncidents},
		{"ongoingIncidents", repository.IncidentCountFilter{OngoingOnly: true}, &stats.OngoingIncidents},
		{"reliabilityIncidents", repository.IncidentCountFilter{ReliabilityOnly: true}, &stats.ReliabilityIncidents},
		{"incidentsToday", repository.IncidentCountFilter{StartedSince: today.Window.Start()}, &stats.IncidentsToday},
	}

	queryCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(queryCtx)

	for _, c := range counters {
		g.Go(func() error {
			count, err := uc.repository.CountIncidents(gctx, c.filter)
			if err != nil {
				uc.logger.Warn("Dashboard counter unavailable, defaulting to zero",
					"counter", c.name,
					"error", err.Error(),
				)
				mu.Lock()
				stats.Degraded = append(stats.Degraded, c.name)
				mu.Unlock()
				return nil
			}
			*c.dest = count
			return nil
		})
	}

	// Горутины не возвращают ошибок: отказ одного счетчика не отменяет остальные
	_ = g.Wait()

	sort.Strings(stats.Degraded)
	return stats
}
