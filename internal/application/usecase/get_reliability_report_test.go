package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/dreschagin/soc-portal/internal/application/dto"
	"github.com/dreschagin/soc-portal/internal/application/port"
	"github.com/dreschagin/soc-portal/internal/domain/domainerr"
	"github.com/dreschagin/soc-portal/internal/domain/service"
	"github.com/dreschagin/soc-portal/internal/domain/valueobject"
	"github.com/dreschagin/soc-portal/internal/infrastructure/cache/redis"
	"github.com/dreschagin/soc-portal/pkg/logger"
)

// 2024-01-03 16:00 по Дакке
var reportNow = time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)

func newReliabilityUseCase(repo *memoryDowntimeRepository, cache *memoryCache) *GetReliabilityReportUseCase {
	var c port.Cache
	if cache != nil {
		c = cache
	}
	uc := NewGetReliabilityReportUseCase(repo, service.NewDowntimeAggregator(), service.NewReliabilityScorer(), c, logger.New("error"))
	uc.now = fixedClock(reportNow)
	return uc
}

func TestGetReliabilityReportUseCase_Execute(t *testing.T) {
	repo := &memoryDowntimeRepository{}
	repo.rows = append(repo.rows,
		downtimeRow("1", "INC-1", "APP", at(4, 0), at(5, 0), "UNPLANNED", "FULL", "YES"),
		downtimeRow("2", "INC-2", "WEB", at(6, 0), at(7, 0), "UNPLANNED", "FULL", "YES"),
		// плановый простой на надежность не влияет
		downtimeRow("3", "INC-3", "USSD", at(6, 0), at(6, 30), "PLANNED", "FULL", "NO"),
	)

	uc := newReliabilityUseCase(repo, nil)

	report, err := uc.Execute(context.Background(), ReportQuery{Range: "today"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.TotalAvailableMinutes != 1440 {
		t.Errorf("expected 1440 available minutes, got %d", report.TotalAvailableMinutes)
	}
	if report.TotalReliabilityImpactMinutes != 120 {
		t.Errorf("expected 120 impact minutes, got %d", report.TotalReliabilityImpactMinutes)
	}
	if report.ReliabilityPercentage != 91.67 {
		t.Errorf("expected 91.67%%, got %v", report.ReliabilityPercentage)
	}
	if report.ReliabilityImpactPercentage != 8.33 {
		t.Errorf("expected 8.33%% impact, got %v", report.ReliabilityImpactPercentage)
	}
	if report.Summary.ReliabilityStatus != "Poor" {
		t.Errorf("expected Poor, got %s", report.Summary.ReliabilityStatus)
	}
	if report.Summary.MostReliableChannel != "USSD" || report.Summary.LeastReliableChannel != "APP" {
		t.Errorf("unexpected extremes: most=%s least=%s",
			report.Summary.MostReliableChannel, report.Summary.LeastReliableChannel)
	}
	if len(report.Channels) != 6 {
		t.Fatalf("expected 6 channels, got %d", len(report.Channels))
	}
	if report.Channels[0].Channel != "APP" || report.Channels[0].Minutes != 60 {
		t.Errorf("unexpected APP row: %+v", report.Channels[0])
	}
	if math.Abs(report.Channels[0].ReliabilityPercentage-95.8333) > 0.001 {
		t.Errorf("expected APP reliability ~95.833, got %v", report.Channels[0].ReliabilityPercentage)
	}
	if report.Channels[1].Minutes != 0 {
		t.Errorf("planned USSD row must not count, got %d minutes", report.Channels[1].Minutes)
	}
}

func TestGetReliabilityReportUseCase_EmptyWindow(t *testing.T) {
	uc := newReliabilityUseCase(&memoryDowntimeRepository{}, nil)

	report, err := uc.Execute(context.Background(), ReportQuery{Range: "thisMonth"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.ReliabilityPercentage != 100 {
		t.Errorf("expected 100%%, got %v", report.ReliabilityPercentage)
	}
	if report.Summary.ReliabilityStatus != "Excellent" || !report.Summary.MeetsSLA {
		t.Errorf("expected Excellent meeting SLA, got %+v", report.Summary)
	}
	if report.TotalAvailableMinutes != 31*1440 {
		t.Errorf("expected January minutes, got %d", report.TotalAvailableMinutes)
	}
}

func TestGetReliabilityReportUseCase_ChannelFilter(t *testing.T) {
	repo := &memoryDowntimeRepository{}
	repo.rows = append(repo.rows,
		downtimeRow("1", "INC-1", "APP,WEB", at(4, 0), at(5, 0), "UNPLANNED", "FULL", "YES"),
	)

	uc := newReliabilityUseCase(repo, nil)

	report, err := uc.Execute(context.Background(), ReportQuery{Range: "today", Channel: "WEB"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Channels) != 1 || report.Channels[0].Channel != "WEB" {
		t.Fatalf("expected only WEB, got %+v", report.Channels)
	}
	if report.TotalReliabilityImpactMinutes != 60 {
		t.Errorf("expected 60 minutes, got %d", report.TotalReliabilityImpactMinutes)
	}
}

func TestGetReliabilityReportUseCase_InvalidRange(t *testing.T) {
	uc := newReliabilityUseCase(&memoryDowntimeRepository{}, nil)

	cases := []ReportQuery{
		{Range: "custom"},
		{Range: "custom", StartDate: "2024-01-05", EndDate: "2024-01-01"},
		{Range: "fortnight"},
	}

	for _, q := range cases {
		_, err := uc.Execute(context.Background(), q)
		if !domainerr.IsValidation(err) {
			t.Errorf("query %+v: expected validation error, got %v", q, err)
		}
	}
}

func TestGetReliabilityReportUseCase_RepositoryError(t *testing.T) {
	repo := &memoryDowntimeRepository{err: errors.New("connection refused")}
	uc := newReliabilityUseCase(repo, nil)

	_, err := uc.Execute(context.Background(), ReportQuery{Range: "today"})
	if err == nil {
		t.Fatal("expected error")
	}
	if domainerr.IsValidation(err) {
		t.Errorf("storage failure must not look like a validation error: %v", err)
	}
}

func TestGetReliabilityReportUseCase_CacheHit(t *testing.T) {
	cache := newMemoryCache()
	rr, err := valueobject.ResolveRange("today", "", "", reportNow)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	key := redis.ReliabilityKey("today", rr.Window.Start(), rr.Window.End(), "", "")
	if err := cache.Set(context.Background(), key, &dto.ReliabilityReportDTO{Range: "today", ReliabilityPercentage: 42}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	uc := newReliabilityUseCase(&memoryDowntimeRepository{err: errors.New("must not be called")}, cache)

	report, err := uc.Execute(context.Background(), ReportQuery{Range: "today"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.ReliabilityPercentage != 42 {
		t.Errorf("expected cached report, got %v", report.ReliabilityPercentage)
	}
}

func TestGetReliabilityReportUseCase_CacheMissStoresReport(t *testing.T) {
	cache := newMemoryCache()
	uc := newReliabilityUseCase(&memoryDowntimeRepository{}, cache)

	if _, err := uc.Execute(context.Background(), ReportQuery{Range: "today"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		cache.mu.Lock()
		n := len(cache.items)
		cache.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("report was not cached")
}

// at возвращает время 2024-01-03 в UTC
func at(hour, minute int) time.Time {
	return time.Date(2024, 1, 3, hour, minute, 0, 0, time.UTC)
}
