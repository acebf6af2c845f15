package service

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dreschagin/soc-portal/internal/domain/domainerr"
	"github.com/dreschagin/soc-portal/internal/domain/entity"
	"github.com/dreschagin/soc-portal/internal/domain/valueobject"
)

// ChannelDuration - суммарный простой канала в окне
type ChannelDuration struct {
	Channel       valueobject.Channel
	Duration      time.Duration
	Minutes       int
	IncidentCount int
}

// AggregationResult - результат обрезки и дедупликации
type AggregationResult struct {
	Channels      []ChannelDuration
	IncidentCount int
	Skipped       []*domainerr.DataError
}

// TotalMinutes возвращает сумму минут по всем каналам
func (r AggregationResult) TotalMinutes() int {
	total := 0
	for _, ch := range r.Channels {
		total += ch.Minutes
	}
	return total
}

// Minutes возвращает минуты простоя канала, 0 если канала нет в результате
func (r AggregationResult) Minutes(channel valueobject.Channel) int {
	for _, ch := range r.Channels {
		if ch.Channel == channel {
			return ch.Minutes
		}
	}
	return 0
}

// DowntimeAggregator считает длительность простоя по каналам (Domain Service)
// Работает синхронно над уже загруженными строками
type DowntimeAggregator struct{}

// NewDowntimeAggregator создает новый DowntimeAggregator
func NewDowntimeAggregator() *DowntimeAggregator {
	return &DowntimeAggregator{}
}

type incidentChannel struct {
	incidentID string
	channel    valueobject.Channel
}

// Aggregate обрезает строки по окну, раскрывает каналы, оставляет максимум
// по паре (инцидент, канал) и суммирует по каналам.
// only ограничивает отчет указанными каналами; без него в отчет попадают
// все шесть фиксированных каналов и встреченные неизвестные теги.
func (a *DowntimeAggregator) Aggregate(
	records []*entity.Downtime,
	window valueobject.TimeRange,
	now time.Time,
	only ...valueobject.Channel,
) AggregationResult {
	var result AggregationResult

	allowed := make(map[valueobject.Channel]struct{}, len(only))
	for _, ch := range only {
		allowed[ch] = struct{}{}
	}

	maxByPair := make(map[incidentChannel]time.Duration)
	incidents := make(map[string]struct{})

	for _, rec := range records {
		if dataErr := checkRecord(rec); dataErr != nil {
			result.Skipped = append(result.Skipped, dataErr)
			continue
		}

		// запланированный простой еще не начался
		if rec.IsOngoing() && rec.StartTime().After(now) {
			continue
		}

		start, end := rec.StartTime(), rec.EffectiveEnd(now)
		if !window.Intersects(start, end) {
			continue
		}

		clipped := window.ClipDuration(start, end)
		qualified := false
		for _, ch := range rec.Channels() {
			if len(allowed) > 0 {
				if _, ok := allowed[ch]; !ok {
					continue
				}
			}
			key := incidentChannel{incidentID: rec.IncidentID(), channel: ch}
			if prev, seen := maxByPair[key]; !seen || clipped > prev {
				maxByPair[key] = clipped
			}
			qualified = true
		}

		if qualified {
			incidents[rec.IncidentID()] = struct{}{}
		}
	}

	totals := make(map[valueobject.Channel]time.Duration)
	counts := make(map[valueobject.Channel]int)
	for key, d := range maxByPair {
		totals[key.channel] += d
		counts[key.channel]++
	}

	for _, ch := range reportChannels(totals, only) {
		result.Channels = append(result.Channels, ChannelDuration{
			Channel:       ch,
			Duration:      totals[ch],
			Minutes:       durationMinutes(totals[ch]),
			IncidentCount: counts[ch],
		})
	}
	result.IncidentCount = len(incidents)

	return result
}

// checkRecord отсеивает строки с неожиданной формой данных
func checkRecord(rec *entity.Downtime) *domainerr.DataError {
	if rec == nil {
		return &domainerr.DataError{Reason: "nil record"}
	}

	dataErr := func(reason string) *domainerr.DataError {
		return &domainerr.DataError{RecordID: rec.ID(), IncidentID: rec.IncidentID(), Reason: reason}
	}

	switch {
	case strings.TrimSpace(rec.IncidentID()) == "":
		return dataErr("missing incident id")
	case rec.StartTime().IsZero():
		return dataErr("missing start time")
	case len(rec.Channels()) == 0:
		return dataErr("empty affected channel")
	case !rec.IsOngoing() && rec.EndTime().Before(rec.StartTime()):
		return dataErr("end time before start time")
	}
	return nil
}

// reportChannels возвращает порядок каналов отчета: фиксированные, затем неизвестные по алфавиту
func reportChannels(totals map[valueobject.Channel]time.Duration, only []valueobject.Channel) []valueobject.Channel {
	set := make(map[valueobject.Channel]struct{})
	if len(only) > 0 {
		for _, ch := range only {
			set[ch] = struct{}{}
		}
	} else {
		for _, ch := range valueobject.AllChannels() {
			set[ch] = struct{}{}
		}
	}
	for ch := range totals {
		set[ch] = struct{}{}
	}

	channels := make([]valueobject.Channel, 0, len(set))
	for ch := range set {
		channels = append(channels, ch)
	}
	SortChannels(channels)
	return channels
}

// SortChannels упорядочивает каналы: фиксированный список, затем неизвестные по алфавиту
func SortChannels(channels []valueobject.Channel) {
	sort.Slice(channels, func(i, j int) bool {
		oi, oj := channels[i].Order(), channels[j].Order()
		switch {
		case oi >= 0 && oj >= 0:
			return oi < oj
		case oi >= 0:
			return true
		case oj >= 0:
			return false
		default:
			return channels[i] < channels[j]
		}
	})
}

func durationMinutes(d time.Duration) int {
	return int(math.Round(d.Seconds() / 60))
}
