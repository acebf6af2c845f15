package reliabilitywatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dreschagin/soc-portal/pkg/logger"
)

// Статусы прогона для счетчика watcher_runs_total
const (
	runStatusOK     = "ok"
	runStatusBreach = "breach"
	runStatusError  = "error"
)

type Runner struct {
	service    *Service
	log        *logger.Logger
	interval   time.Duration
	runTimeout time.Duration

	runMu sync.Mutex

	mu          sync.RWMutex
	startedAt   time.Time
	lastRunAt   time.Time
	lastError   string
	breaches    int
	lastSummary *CycleSummary
}

func NewRunner(service *Service, log *logger.Logger, cfg Config) *Runner {
	return &Runner{
		service:    service,
		log:        log,
		interval:   cfg.Interval,
		runTimeout: cfg.RunTimeout,
		startedAt:  time.Now(),
	}
}

// Start выполняет первый прогон сразу, затем по тикеру до отмены ctx
func (r *Runner) Start(ctx context.Context) {
	_, _ = r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// ошибка уже сохранена в snapshot и залогирована
			_, _ = r.RunOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) RunOnce(ctx context.Context) (*CycleSummary, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	queryCtx, cancel := context.WithTimeout(ctx, r.runTimeout)
	defer cancel()

	summary, err := r.service.Evaluate(queryCtx)
	runAt := time.Now()

	if err != nil {
		wrappedErr := fmt.Errorf("reliability watch cycle failed: %w", err)
		r.updateFailure(runAt, wrappedErr)
		r.service.observeRun(runStatusError)
		r.log.Error("Reliability watch cycle failed", wrappedErr)
		return nil, wrappedErr
	}

	r.updateSuccess(runAt, summary)

	status := runStatusOK
	if !summary.MeetsSLA {
		status = runStatusBreach
	}
	r.service.observeRun(status)

	r.log.Info(
		"Reliability watch cycle completed",
		"range", summary.Range,
		"reliability", summary.ReliabilityPercentage,
		"status", summary.ReliabilityStatus,
		"critical_count", summary.CriticalCount,
		"warning_count", summary.WarningCount,
	)

	return summary, nil
}

func (r *Runner) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := Snapshot{
		StartedAt: r.startedAt,
		Interval:  r.interval,
		LastRunAt: r.lastRunAt,
		LastError: r.lastError,
		Breaches:  r.breaches,
	}

	if r.lastSummary != nil {
		copiedSummary := *r.lastSummary
		copiedSummary.Assessments = append([]ChannelAssessment(nil), r.lastSummary.Assessments...)
		snapshot.LastSummary = &copiedSummary
	}

	return snapshot
}

func (r *Runner) updateFailure(runAt time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastRunAt = runAt
	r.lastError = err.Error()
}

func (r *Runner) updateSuccess(runAt time.Time, summary *CycleSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastRunAt = runAt
	r.lastError = ""
	r.lastSummary = summary
	if summary.Alerted {
		r.breaches++
	}
}
