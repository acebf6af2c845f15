package usecase

import (
	"testing"
	"time"

	"github.com/dreschagin/soc-portal/internal/domain/domainerr"
)

func TestReportQueryMaxCustomDays(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	q := ReportQuery{Range: "custom", StartDate: "2024-01-01", EndDate: "2024-01-31", MaxCustomDays: 31}
	if _, err := q.resolve(now); err != nil {
		t.Fatalf("31 days must fit the limit: %v", err)
	}

	q.EndDate = "2024-02-01"
	_, err := q.resolve(now)
	if !domainerr.IsValidation(err) {
		t.Fatalf("expected validation error above the limit, got %v", err)
	}

	q.MaxCustomDays = 0
	if _, err := q.resolve(now); err != nil {
		t.Fatalf("no limit configured: %v", err)
	}

	// пресеты не ограничиваются
	preset := ReportQuery{Range: "thisYear", MaxCustomDays: 7}
	if _, err := preset.resolve(now); err != nil {
		t.Fatalf("presets ignore the custom limit: %v", err)
	}
}
