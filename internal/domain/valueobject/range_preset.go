package valueobject

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dreschagin/soc-portal/internal/domain/domainerr"
)

// RangePreset представляет именованный диапазон отчета (Value Object)
type RangePreset string

const (
	RangeToday      RangePreset = "today"
	RangeThisWeek   RangePreset = "thisWeek"
	RangeLastWeek   RangePreset = "lastWeek"
	RangeLast7Days  RangePreset = "last7days"
	RangeLast30Days RangePreset = "last30days"
	RangeThisMonth  RangePreset = "thisMonth"
	RangeLastMonth  RangePreset = "lastMonth"
	RangeThisYear   RangePreset = "thisYear"
	RangeCustom     RangePreset = "custom"
)

const (
	minutesPerDay = 24 * 60
	customDate    = "2006-01-02"
)

// Фиксированная зона Asia/Dhaka: UTC+6 без перехода на летнее время
var dhaka = time.FixedZone("Asia/Dhaka", 6*60*60)

// ReportLocation возвращает зону, в которой считаются границы дней
func ReportLocation() *time.Location {
	return dhaka
}

// AllRangePresets возвращает список всех допустимых диапазонов
func AllRangePresets() []RangePreset {
	return []RangePreset{
		RangeToday, RangeThisWeek, RangeLastWeek, RangeLast7Days, RangeLast30Days,
		RangeThisMonth, RangeLastMonth, RangeThisYear, RangeCustom,
	}
}

// ParseRangePreset разбирает токен диапазона без учета регистра
func ParseRangePreset(raw string) (RangePreset, error) {
	token := strings.TrimSpace(raw)
	for _, p := range AllRangePresets() {
		if strings.EqualFold(token, string(p)) {
			return p, nil
		}
	}
	return "", domainerr.NewValidationError("range", fmt.Sprintf("unknown range token %q", raw))
}

// String возвращает строковое представление диапазона
func (p RangePreset) String() string {
	return string(p)
}

// ResolvedRange - конкретное окно, полученное из токена диапазона
type ResolvedRange struct {
	Preset          RangePreset
	Window          TimeRange
	ExpectedMinutes int
}

// ResolveRange переводит токен диапазона в окно [start, end] в зоне Asia/Dhaka.
// Для custom обязательны startDate и endDate (YYYY-MM-DD или RFC3339).
func ResolveRange(token, startDate, endDate string, now time.Time) (ResolvedRange, error) {
	preset, err := ParseRangePreset(token)
	if err != nil {
		return ResolvedRange{}, err
	}

	if preset == RangeCustom {
		return resolveCustom(startDate, endDate)
	}

	local := now.In(dhaka)
	y, m, d := local.Date()

	var start, end time.Time
	switch preset {
	case RangeToday:
		start, end = dayStart(y, m, d), dayEnd(y, m, d)
	case RangeLast7Days:
		start, end = dayStart(y, m, d-6), dayEnd(y, m, d)
	case RangeLast30Days:
		start, end = dayStart(y, m, d-29), dayEnd(y, m, d)
	case RangeThisWeek, RangeLastWeek:
		// Неделя начинается в воскресенье: date - dayOfWeek
		sunday := d - int(local.Weekday())
		if preset == RangeLastWeek {
			sunday -= 7
		}
		start, end = dayStart(y, m, sunday), dayEnd(y, m, sunday+6)
	case RangeThisMonth:
		start, end = dayStart(y, m, 1), dayEnd(y, m+1, 0)
	case RangeLastMonth:
		start, end = dayStart(y, m-1, 1), dayEnd(y, m, 0)
	case RangeThisYear:
		start, end = dayStart(y, time.January, 1), dayEnd(y, time.December, 31)
	}

	window, err := NewTimeRange(start, end)
	if err != nil {
		return ResolvedRange{}, domainerr.NewValidationError("range", err.Error())
	}

	return ResolvedRange{
		Preset:          preset,
		Window:          window,
		ExpectedMinutes: ExpectedMinutes(preset, now, window),
	}, nil
}

// ExpectedMinutes возвращает знаменатель надежности для диапазона.
// Для фиксированных токенов это чистая функция токена (и опорной даты для месяцев и года),
// для custom - фактическое количество минут между границами окна.
func ExpectedMinutes(preset RangePreset, now time.Time, window TimeRange) int {
	local := now.In(dhaka)
	y, m, _ := local.Date()

	switch preset {
	case RangeToday:
		return minutesPerDay
	case RangeThisWeek, RangeLastWeek, RangeLast7Days:
		return 7 * minutesPerDay
	case RangeLast30Days:
		return 30 * minutesPerDay
	case RangeThisMonth:
		return daysIn(y, m) * minutesPerDay
	case RangeLastMonth:
		return daysIn(y, m-1) * minutesPerDay
	case RangeThisYear:
		if isLeap(y) {
			return 366 * minutesPerDay
		}
		return 365 * minutesPerDay
	default:
		return int(math.Round(window.Duration().Minutes()))
	}
}

func resolveCustom(startDate, endDate string) (ResolvedRange, error) {
	if strings.TrimSpace(startDate) == "" || strings.TrimSpace(endDate) == "" {
		return ResolvedRange{}, domainerr.NewValidationError("startDate/endDate", "custom range requires both startDate and endDate")
	}

	start, err := parseBoundary(startDate, false)
	if err != nil {
		return ResolvedRange{}, domainerr.NewValidationError("startDate", err.Error())
	}
	end, err := parseBoundary(endDate, true)
	if err != nil {
		return ResolvedRange{}, domainerr.NewValidationError("endDate", err.Error())
	}

	if end.Before(start) {
		return ResolvedRange{}, domainerr.NewValidationError("endDate", "endDate must not be before startDate")
	}

	window, err := NewTimeRange(start, end)
	if err != nil {
		return ResolvedRange{}, domainerr.NewValidationError("range", err.Error())
	}

	return ResolvedRange{
		Preset:          RangeCustom,
		Window:          window,
		ExpectedMinutes: ExpectedMinutes(RangeCustom, start, window),
	}, nil
}

// parseBoundary принимает дату YYYY-MM-DD (расширяется до границы дня) или RFC3339
func parseBoundary(raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)

	if t, err := time.ParseInLocation(customDate, raw, dhaka); err == nil {
		y, m, d := t.Date()
		if endOfDay {
			return dayEnd(y, m, d), nil
		}
		return dayStart(y, m, d), nil
	}

	return time.Parse(time.RFC3339Nano, raw)
}

func dayStart(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, dhaka)
}

func dayEnd(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), dhaka)
}

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, dhaka).Day()
}

func isLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}
