package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dreschagin/soc-portal/pkg/logger"
)

func TestGetDashboardStatsUseCase_Execute(t *testing.T) {
	repo := &memoryDowntimeRepository{}
	repo.rows = append(repo.rows,
		ongoingRow("1", "INC-1", "APP", at(4, 0)),
		ongoingRow("2", "INC-1", "WEB", at(4, 0)),
		downtimeRow("3", "INC-2", "SMS", at(1, 0), at(2, 0), "PLANNED", "FULL", "NO"),
		downtimeRow("4", "INC-3", "SMS", at(1, 0).AddDate(0, 0, -5), at(2, 0).AddDate(0, 0, -5), "UNPLANNED", "FULL", "YES"),
	)

	uc := NewGetDashboardStatsUseCase(repo, time.Second, logger.New("error"))
	uc.now = fixedClock(reportNow)

	stats := uc.Execute(context.Background())

	if stats.TotalIncidents != 3 {
		t.Errorf("expected 3 incidents, got %d", stats.TotalIncidents)
	}
	if stats.OngoingIncidents != 1 {
		t.Errorf("expected 1 ongoing incident, got %d", stats.OngoingIncidents)
	}
	if stats.ReliabilityIncidents != 2 {
		t.Errorf("expected 2 reliability incidents, got %d", stats.ReliabilityIncidents)
	}
	if stats.IncidentsToday != 2 {
		t.Errorf("expected 2 incidents today, got %d", stats.IncidentsToday)
	}
	if len(stats.Degraded) != 0 {
		t.Errorf("expected no degraded counters, got %v", stats.Degraded)
	}
}

func TestGetDashboardStatsUseCase_DegradedCounter(t *testing.T) {
	repo := &memoryDowntimeRepository{
		countErr: map[bool]error{true: errors.New("statement timeout")},
	}
	repo.rows = append(repo.rows, ongoingRow("1", "INC-1", "APP", at(4, 0)))

	uc := NewGetDashboardStatsUseCase(repo, time.Second, logger.New("error"))
	uc.now = fixedClock(reportNow)

	stats := uc.Execute(context.Background())

	if stats.OngoingIncidents != 0 {
		t.Errorf("failed counter must default to zero, got %d", stats.OngoingIncidents)
	}
	if stats.TotalIncidents != 1 {
		t.Errorf("other counters must still be served, got %d", stats.TotalIncidents)
	}
	if len(stats.Degraded) != 1 || stats.Degraded[0] != "ongoingIncidents" {
		t.Errorf("expected ongoingIncidents degraded, got %v", stats.Degraded)
	}
}
