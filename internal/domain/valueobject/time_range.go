package valueobject

import (
	"errors"
	"time"
)

// TimeRange - отчетное окно [start, end) (Value Object)
type TimeRange struct {
	start time.Time
	end   time.Time
}

// NewTimeRange создает новый TimeRange с валидацией
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if start.After(end) {
		return TimeRange{}, errors.New("window start must not be after window end")
	}

	if start.IsZero() || end.IsZero() {
		return TimeRange{}, errors.New("start and end times cannot be zero")
	}

	return TimeRange{
		start: start,
		end:   end,
	}, nil
}

// Start возвращает начальное время
func (tr TimeRange) Start() time.Time {
	return tr.start
}

// End возвращает конечное время
func (tr TimeRange) End() time.Time {
	return tr.end
}

// Duration возвращает длительность диапазона
func (tr TimeRange) Duration() time.Duration {
	return tr.end.Sub(tr.start)
}

// Intersects проверяет пересечение интервала [start, end] с окном:
// start < windowEnd AND end > windowStart
func (tr TimeRange) Intersects(start, end time.Time) bool {
	return start.Before(tr.end) && end.After(tr.start)
}

// ClipDuration возвращает длительность части интервала [start, end], попадающей в окно.
// Отрицательный результат после обрезки приводится к нулю.
func (tr TimeRange) ClipDuration(start, end time.Time) time.Duration {
	clippedStart := start
	if tr.start.After(clippedStart) {
		clippedStart = tr.start
	}

	clippedEnd := end
	if tr.end.Before(clippedEnd) {
		clippedEnd = tr.end
	}

	d := clippedEnd.Sub(clippedStart)
	if d < 0 {
		return 0
	}
	return d
}
