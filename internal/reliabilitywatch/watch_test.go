package reliabilitywatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dreschagin/soc-portal/internal/application/dto"
	"github.com/dreschagin/soc-portal/internal/application/port"
	"github.com/dreschagin/soc-portal/internal/application/usecase"
	"github.com/dreschagin/soc-portal/pkg/logger"
)

type stubReporter struct {
	reports []*dto.ReliabilityReportDTO
	err     error
	queries []usecase.ReportQuery
}

func (s *stubReporter) Execute(_ context.Context, q usecase.ReportQuery) (*dto.ReliabilityReportDTO, error) {
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	r := s.reports[0]
	if len(s.reports) > 1 {
		s.reports = s.reports[1:]
	}
	return r, nil
}

type recordingEvents struct {
	subjects []string
}

func (r *recordingEvents) PublishEvent(_ context.Context, subject string, _ interface{}) error {
	r.subjects = append(r.subjects, subject)
	return nil
}

func (r *recordingEvents) Close() error { return nil }

type recordingExporter struct {
	reports int
	err     error
}

func (r *recordingExporter) PublishReport(context.Context, *dto.ReliabilityReportDTO) error {
	r.reports++
	return r.err
}

func (r *recordingExporter) Flush(context.Context) error { return nil }

type recordingObserver struct {
	reports  int
	breaches int
	runs     map[string]int
}

func (r *recordingObserver) ObserveReport(*dto.ReliabilityReportDTO) { r.reports++ }
func (r *recordingObserver) ObserveBreach(*dto.SLABreachDTO)         { r.breaches++ }
func (r *recordingObserver) ObserveWatcherRun(status string) {
	if r.runs == nil {
		r.runs = make(map[string]int)
	}
	r.runs[status]++
}

func report(reliability float64) *dto.ReliabilityReportDTO {
	meets := reliability >= 99.9
	status := "Excellent"
	if !meets {
		status = "Poor"
	}
	return &dto.ReliabilityReportDTO{
		Range: "today",
		Channels: []dto.ChannelReliabilityDTO{
			{Channel: "APP", ReliabilityPercentage: 100},
			{Channel: "USSD", Minutes: 90, ReliabilityPercentage: reliability},
			{Channel: "WEB", Minutes: 10, ReliabilityPercentage: 99.3},
		},
		ReliabilityPercentage: reliability,
		Summary: dto.ReliabilitySummaryDTO{
			ReliabilityStatus:    status,
			SLA:                  "99.9%",
			MeetsSLA:             meets,
			LeastReliableChannel: "USSD",
		},
	}
}

func newTestRunner(reporter usecase.ReliabilityReporter, sinks Sinks) *Runner {
	cfg, _ := Config{Interval: time.Minute}.Normalize()
	return NewRunner(NewService(reporter, cfg.Range, sinks, logger.New("error")), logger.New("error"), cfg)
}

func TestConfigNormalize(t *testing.T) {
	cfg, err := Config{}.Normalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8081" || cfg.Interval != time.Minute || cfg.Range != "today" || cfg.RunTimeout != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	for _, bad := range []Config{
		{Interval: time.Second},
		{Range: "fortnight"},
		{Range: "custom"},
	} {
		if _, err := bad.Normalize(); err == nil {
			t.Errorf("expected error for %+v", bad)
		}
	}
}

func TestAlertsOnlyOnTransitionIntoBreach(t *testing.T) {
	reporter := &stubReporter{reports: []*dto.ReliabilityReportDTO{report(96), report(95.5), report(100), report(97)}}
	events := &recordingEvents{}
	exporter := &recordingExporter{err: errors.New("throttled")}
	observer := &recordingObserver{}
	runner := newTestRunner(reporter, Sinks{Events: events, Exporter: exporter, Observer: observer})

	var alerted []bool
	for i := 0; i < 4; i++ {
		summary, err := runner.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("run %d: unexpected error: %v", i, err)
		}
		alerted = append(alerted, summary.Alerted)
	}

	want := []bool{true, false, false, true}
	for i := range want {
		if alerted[i] != want[i] {
			t.Fatalf("run %d: expected alerted=%v, got %v", i, want[i], alerted[i])
		}
	}

	if len(events.subjects) != 2 || events.subjects[0] != port.SubjectSLABreach {
		t.Fatalf("expected two breach events, got %v", events.subjects)
	}
	if exporter.reports != 4 {
		t.Errorf("export failures must not stop the cycle, got %d exports", exporter.reports)
	}
	if observer.reports != 4 || observer.breaches != 2 {
		t.Errorf("unexpected observer counts: %+v", observer)
	}
	if observer.runs["breach"] != 3 || observer.runs["ok"] != 1 {
		t.Errorf("unexpected run statuses: %v", observer.runs)
	}
	if snap := runner.Snapshot(); snap.Breaches != 2 {
		t.Errorf("expected 2 breaches in snapshot, got %d", snap.Breaches)
	}
	if reporter.queries[0].Range != "today" {
		t.Errorf("expected today range, got %q", reporter.queries[0].Range)
	}
}

func TestSummaryAssessments(t *testing.T) {
	summary := summarize(report(94), time.Now())

	if summary.CriticalCount != 1 || summary.WarningCount != 1 {
		t.Fatalf("expected 1 critical and 1 warning, got %d/%d", summary.CriticalCount, summary.WarningCount)
	}
	if summary.Assessments[0].Severity != SeverityOK {
		t.Errorf("expected APP ok, got %s", summary.Assessments[0].Severity)
	}
}

func TestRunOnceFailureKeepsLastSummary(t *testing.T) {
	reporter := &stubReporter{reports: []*dto.ReliabilityReportDTO{report(100)}}
	observer := &recordingObserver{}
	runner := newTestRunner(reporter, Sinks{Observer: observer})

	if _, err := runner.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reporter.err = errors.New("database is down")
	if _, err := runner.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	snap := runner.Snapshot()
	if snap.LastError == "" {
		t.Error("expected last error in snapshot")
	}
	if snap.LastSummary == nil || snap.LastSummary.ReliabilityPercentage != 100 {
		t.Errorf("expected previous summary to survive, got %+v", snap.LastSummary)
	}
	if observer.runs["error"] != 1 {
		t.Errorf("expected one error run, got %v", observer.runs)
	}
}

func TestHandlerRoutes(t *testing.T) {
	reporter := &stubReporter{reports: []*dto.ReliabilityReportDTO{report(100)}}
	runner := newTestRunner(reporter, Sinks{})
	routes := NewHandler(runner, nil).Routes()

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before first cycle, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reliability-watch/run", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET run, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reliability-watch/run", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for run, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after cycle, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reliability-watch/summary", nil))
	var snap Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.LastSummary == nil || !snap.LastSummary.MeetsSLA {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}
