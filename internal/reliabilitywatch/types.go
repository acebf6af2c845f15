package reliabilitywatch

import "time"

type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ChannelAssessment - оценка одного канала за окно
type ChannelAssessment struct {
	Channel               string   `json:"channel"`
	Minutes               int      `json:"minutes"`
	ReliabilityPercentage float64  `json:"reliabilityPercentage"`
	Severity              Severity `json:"severity"`
}

// CycleSummary - результат одного прогона
type CycleSummary struct {
	GeneratedAt           time.Time           `json:"generatedAt"`
	Range                 string              `json:"range"`
	WindowStart           time.Time           `json:"windowStart"`
	WindowEnd             time.Time           `json:"windowEnd"`
	ReliabilityPercentage float64             `json:"reliabilityPercentage"`
	ReliabilityStatus     string              `json:"reliabilityStatus"`
	MeetsSLA              bool                `json:"meetsSla"`
	LeastReliableChannel  string              `json:"leastReliableChannel"`
	CriticalCount         int                 `json:"criticalCount"`
	WarningCount          int                 `json:"warningCount"`
	// Alerted - в этом прогоне отправлено уведомление о нарушении SLA
	Alerted     bool                `json:"alerted"`
	Assessments []ChannelAssessment `json:"assessments"`
}

type Snapshot struct {
	StartedAt   time.Time     `json:"startedAt"`
	Interval    time.Duration `json:"interval"`
	LastRunAt   time.Time     `json:"lastRunAt"`
	LastError   string        `json:"lastError,omitempty"`
	Breaches    int           `json:"breaches"`
	LastSummary *CycleSummary `json:"lastSummary,omitempty"`
}
