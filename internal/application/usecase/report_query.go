package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/dreschagin/soc-portal/internal/domain/domainerr"
	"github.com/dreschagin/soc-portal/internal/domain/repository"
	"github.com/dreschagin/soc-portal/internal/domain/valueobject"
	"github.com/dreschagin/soc-portal/pkg/logger"
)

// ReportQuery - параметры отчетных запросов (из query-параметров HTTP или флагов CLI)
type ReportQuery struct {
	Range       string
	StartDate   string
	EndDate     string
	Channel     string
	Category    string
	Modality    string
	ImpactType  string
	Reliability string
	// MaxCustomDays ограничивает длину custom окна; 0 - без ограничения
	MaxCustomDays int
}

// resolve переводит токен диапазона в окно; ошибки - ValidationError
func (q ReportQuery) resolve(now time.Time) (valueobject.ResolvedRange, error) {
	rr, err := valueobject.ResolveRange(q.Range, q.StartDate, q.EndDate, now)
	if err != nil {
		return rr, err
	}

	if rr.Preset == valueobject.RangeCustom && q.MaxCustomDays > 0 &&
		rr.Window.Duration() > time.Duration(q.MaxCustomDays)*24*time.Hour {
		return valueobject.ResolvedRange{}, domainerr.NewValidationError("endDate",
			fmt.Sprintf("custom range must not exceed %d days", q.MaxCustomDays))
	}
	return rr, nil
}

// channels возвращает ограничение по каналам (пусто - все каналы)
func (q ReportQuery) channels() []valueobject.Channel {
	if strings.TrimSpace(q.Channel) == "" {
		return nil
	}
	return valueobject.ExpandChannels(q.Channel)
}

// validateFilters проверяет фильтры модальности и типа влияния
func (q ReportQuery) validateFilters() error {
	if q.Modality != "" {
		if _, err := valueobject.ParseModality(q.Modality); err != nil {
			return domainerr.NewValidationError("modality", err.Error())
		}
	}
	if q.ImpactType != "" {
		if _, err := valueobject.ParseImpactType(q.ImpactType); err != nil {
			return domainerr.NewValidationError("impactType", err.Error())
		}
	}
	if r := strings.ToUpper(strings.TrimSpace(q.Reliability)); r != "" && r != "YES" && r != "NO" {
		return domainerr.NewValidationError("reliability", "must be YES or NO")
	}
	return nil
}

func (q ReportQuery) repositoryQuery(rr valueobject.ResolvedRange, now time.Time) repository.DowntimeQuery {
	return repository.DowntimeQuery{
		Window:      rr.Window,
		Now:         now,
		Modality:    q.Modality,
		ImpactType:  q.ImpactType,
		Reliability: q.Reliability,
		Category:    q.Category,
	}
}

// logSkipped пишет пропущенные строки в WARN; агрегация при этом не прерывается
func logSkipped(log *logger.Logger, skipped []*domainerr.DataError) {
	for _, dataErr := range skipped {
		log.Warn("Skipping malformed downtime row",
			"record_id", dataErr.RecordID,
			"incident_id", dataErr.IncidentID,
			"reason", dataErr.Reason,
		)
	}
}
