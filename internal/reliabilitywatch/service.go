package reliabilitywatch

import (
	"context"
	"fmt"
	"time"

	"github.com/dreschagin/soc-portal/internal/application/dto"
	"github.com/dreschagin/soc-portal/internal/application/port"
	"github.com/dreschagin/soc-portal/internal/application/usecase"
	"github.com/dreschagin/soc-portal/internal/domain/valueobject"
	"github.com/dreschagin/soc-portal/pkg/logger"
)

// Observer получает результаты прогонов (Prometheus)
type Observer interface {
	ObserveReport(report *dto.ReliabilityReportDTO)
	ObserveBreach(alert *dto.SLABreachDTO)
	ObserveWatcherRun(status string)
}

// Sinks - куда watcher отправляет результаты; любое поле может быть nil
type Sinks struct {
	Events   port.EventPublisher
	Exporter port.ReliabilityPublisher
	Observer Observer
}

// Service считает отчет о надежности и сообщает о нарушениях SLA.
// Уведомление уходит только при переходе в состояние нарушения.
type Service struct {
	reporter   usecase.ReliabilityReporter
	rangeToken string
	sinks      Sinks
	log        *logger.Logger
	now        func() time.Time

	breached bool
}

func NewService(reporter usecase.ReliabilityReporter, rangeToken string, sinks Sinks, log *logger.Logger) *Service {
	return &Service{
		reporter:   reporter,
		rangeToken: rangeToken,
		sinks:      sinks,
		log:        log,
		now:        time.Now,
	}
}

// Evaluate выполняет один прогон; вызывается под runMu у Runner
func (s *Service) Evaluate(ctx context.Context) (*CycleSummary, error) {
	report, err := s.reporter.Execute(ctx, usecase.ReportQuery{Range: s.rangeToken})
	if err != nil {
		return nil, fmt.Errorf("compute %s reliability: %w", s.rangeToken, err)
	}

	now := s.now()
	summary := summarize(report, now)

	if s.sinks.Observer != nil {
		s.sinks.Observer.ObserveReport(report)
	}

	// CloudWatch буферизует; сбой выгрузки не делает прогон неуспешным
	if s.sinks.Exporter != nil {
		if err := s.sinks.Exporter.PublishReport(ctx, report); err != nil {
			s.log.Warn("Failed to export reliability metrics", "range", report.Range, "error", err.Error())
		}
	}

	if report.Summary.MeetsSLA {
		if s.breached {
			s.log.Info("Reliability back within SLA", "range", report.Range, "reliability", report.ReliabilityPercentage)
		}
		s.breached = false
		return summary, nil
	}

	if !s.breached {
		s.alert(ctx, dto.NewSLABreachDTO(report, now))
		summary.Alerted = true
	}
	s.breached = true

	return summary, nil
}

func (s *Service) alert(ctx context.Context, alert *dto.SLABreachDTO) {
	s.log.Warn("Reliability below SLA",
		"range", alert.Range,
		"reliability", alert.ReliabilityPercentage,
		"status", alert.ReliabilityStatus,
		"least_reliable_channel", alert.LeastReliableChannel,
	)

	if s.sinks.Observer != nil {
		s.sinks.Observer.ObserveBreach(alert)
	}
	if s.sinks.Events != nil {
		if err := s.sinks.Events.PublishEvent(ctx, port.SubjectSLABreach, alert); err != nil {
			s.log.Error("Failed to publish SLA breach", err, "range", alert.Range)
		}
	}
}

func (s *Service) observeRun(status string) {
	if s.sinks.Observer != nil {
		s.sinks.Observer.ObserveWatcherRun(status)
	}
}

func summarize(report *dto.ReliabilityReportDTO, now time.Time) *CycleSummary {
	summary := &CycleSummary{
		GeneratedAt:           now,
		Range:                 report.Range,
		WindowStart:           report.WindowStart,
		WindowEnd:             report.WindowEnd,
		ReliabilityPercentage: report.ReliabilityPercentage,
		ReliabilityStatus:     report.Summary.ReliabilityStatus,
		MeetsSLA:              report.Summary.MeetsSLA,
		LeastReliableChannel:  report.Summary.LeastReliableChannel,
		Assessments:           make([]ChannelAssessment, 0, len(report.Channels)),
	}

	for _, ch := range report.Channels {
		severity := severityFor(ch.ReliabilityPercentage)
		summary.Assessments = append(summary.Assessments, ChannelAssessment{
			Channel:               ch.Channel,
			Minutes:               ch.Minutes,
			ReliabilityPercentage: ch.ReliabilityPercentage,
			Severity:              severity,
		})

		switch severity {
		case SeverityCritical:
			summary.CriticalCount++
		case SeverityWarning:
			summary.WarningCount++
		}
	}

	return summary
}

// severityFor: Excellent - ok, Good/Fair - warning, Poor - critical
func severityFor(reliability float64) Severity {
	switch valueobject.TierFor(reliability) {
	case valueobject.TierExcellent:
		return SeverityOK
	case valueobject.TierPoor:
		return SeverityCritical
	default:
		return SeverityWarning
	}
}
