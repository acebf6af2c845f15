package dto

import (
	"time"

	"github.com/dreschagin/soc-portal/internal/domain/service"
	"github.com/dreschagin/soc-portal/internal/domain/valueobject"
)

// ChannelReliabilityDTO - надежность канала в ответе отчета
type ChannelReliabilityDTO struct {
	Channel               string  `json:"channel"`
	Minutes               int     `json:"minutes"`
	IncidentCount         int     `json:"incidentCount"`
	Percentage            float64 `json:"percentage"`
	ReliabilityPercentage float64 `json:"reliabilityPercentage"`
}

// ReliabilitySummaryDTO - сводка SLA
type ReliabilitySummaryDTO struct {
	ReliabilityStatus    string `json:"reliabilityStatus"`
	SLA                  string `json:"sla"`
	MeetsSLA             bool   `json:"meetsSla"`
	MostReliableChannel  string `json:"mostReliableChannel"`
	LeastReliableChannel string `json:"leastReliableChannel"`
}

// ReliabilityReportDTO - отчет о надежности за окно
type ReliabilityReportDTO struct {
	Range                         string                  `json:"range"`
	WindowStart                   time.Time               `json:"windowStart"`
	WindowEnd                     time.Time               `json:"windowEnd"`
	Channels                      []ChannelReliabilityDTO `json:"channels"`
	TotalAvailableMinutes         int                     `json:"totalAvailableMinutes"`
	TotalReliabilityImpactMinutes int                     `json:"totalReliabilityImpactMinutes"`
	ReliabilityImpactPercentage   float64                 `json:"reliabilityImpactPercentage"`
	ReliabilityPercentage         float64                 `json:"reliabilityPercentage"`
	Summary                       ReliabilitySummaryDTO   `json:"summary"`
	SkippedRecords                int                     `json:"skippedRecords"`
	GeneratedAt                   time.Time               `json:"generatedAt"`
}

// NewReliabilityReportDTO собирает ответ из окна и результата ReliabilityScorer
func NewReliabilityReportDTO(
	rr valueobject.ResolvedRange,
	score service.ReliabilityScore,
	skipped int,
	generatedAt time.Time,
) *ReliabilityReportDTO {
	channels := make([]ChannelReliabilityDTO, len(score.Channels))
	for i, ch := range score.Channels {
		channels[i] = ChannelReliabilityDTO{
			Channel:               ch.Channel.String(),
			Minutes:               ch.ImpactMinutes,
			IncidentCount:         ch.IncidentCount,
			Percentage:            ch.ImpactPercentage,
			ReliabilityPercentage: ch.ReliabilityPercentage,
		}
	}

	return &ReliabilityReportDTO{
		Range:                         rr.Preset.String(),
		WindowStart:                   rr.Window.Start().UTC(),
		WindowEnd:                     rr.Window.End().UTC(),
		Channels:                      channels,
		TotalAvailableMinutes:         score.TotalAvailableMinutes,
		TotalReliabilityImpactMinutes: score.TotalImpactMinutes,
		ReliabilityImpactPercentage:   score.ImpactPercentage,
		ReliabilityPercentage:         score.ReliabilityPercentage,
		Summary: ReliabilitySummaryDTO{
			ReliabilityStatus:    score.Tier.String(),
			SLA:                  valueobject.SLALabel,
			MeetsSLA:             score.MeetsSLA,
			MostReliableChannel:  score.MostReliable.String(),
			LeastReliableChannel: score.LeastReliable.String(),
		},
		SkippedRecords: skipped,
		GeneratedAt:    generatedAt.UTC(),
	}
}

// SLABreachDTO - alert о нарушении SLA для клиентов и брокера
type SLABreachDTO struct {
	Range                 string    `json:"range"`
	WindowStart           time.Time `json:"windowStart"`
	WindowEnd             time.Time `json:"windowEnd"`
	ReliabilityPercentage float64   `json:"reliabilityPercentage"`
	ReliabilityStatus     string    `json:"reliabilityStatus"`
	LeastReliableChannel  string    `json:"leastReliableChannel"`
	Message               string    `json:"message"`
	DetectedAt            time.Time `json:"detectedAt"`
}

// NewSLABreachDTO создает alert из отчета
func NewSLABreachDTO(report *ReliabilityReportDTO, detectedAt time.Time) *SLABreachDTO {
	return &SLABreachDTO{
		Range:                 report.Range,
		WindowStart:           report.WindowStart,
		WindowEnd:             report.WindowEnd,
		ReliabilityPercentage: report.ReliabilityPercentage,
		ReliabilityStatus:     report.Summary.ReliabilityStatus,
		LeastReliableChannel:  report.Summary.LeastReliableChannel,
		Message:               "reliability below SLA " + report.Summary.SLA,
		DetectedAt:            detectedAt.UTC(),
	}
}

// ReportExportDTO - выгруженный отчет
type ReportExportDTO struct {
	ID                    string    `json:"id"`
	Range                 string    `json:"range"`
	S3Key                 string    `json:"s3Key"`
	URL                   string    `json:"url"`
	ContentType           string    `json:"contentType"`
	SizeBytes             int64     `json:"sizeBytes"`
	ReliabilityPercentage float64   `json:"reliabilityPercentage"`
	WindowStart           time.Time `json:"windowStart,omitempty"`
	WindowEnd             time.Time `json:"windowEnd,omitempty"`
	CreatedAt             time.Time `json:"createdAt"`
}
