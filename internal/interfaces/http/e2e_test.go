package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dreschagin/soc-portal/internal/application/dto"
	"github.com/dreschagin/soc-portal/internal/application/usecase"
	"github.com/dreschagin/soc-portal/internal/domain/entity"
	"github.com/dreschagin/soc-portal/internal/domain/repository"
	"github.com/dreschagin/soc-portal/internal/domain/service"
	"github.com/dreschagin/soc-portal/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/soc-portal/internal/infrastructure/observability/metrics"
	"github.com/dreschagin/soc-portal/internal/interfaces/http/handler"
	"github.com/dreschagin/soc-portal/internal/interfaces/http/middleware"
	"github.com/dreschagin/soc-portal/internal/interfaces/payload"
	"github.com/dreschagin/soc-portal/pkg/config"
	"github.com/dreschagin/soc-portal/pkg/logger"
)

const testToken = "test-token"

type memoryDowntimeRepo struct {
	mu   sync.RWMutex
	rows []*entity.Downtime
}

func (r *memoryDowntimeRepo) Save(_ context.Context, d *entity.Downtime) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, d)
	return nil
}

func (r *memoryDowntimeRepo) SaveBatch(_ context.Context, ds []*entity.Downtime) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, ds...)
	return nil
}

func (r *memoryDowntimeRepo) FindByIncident(_ context.Context, incidentID string) ([]*entity.Downtime, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.Downtime
	for _, d := range r.rows {
		if d.IncidentID() == incidentID {
			out = append(out, cloneRow(d))
		}
	}
	return out, nil
}

func (r *memoryDowntimeRepo) FindOverlapping(_ context.Context, q repository.DowntimeQuery) ([]*entity.Downtime, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.Downtime
	for _, d := range r.rows {
		if !q.Window.Intersects(d.StartTime(), d.EffectiveEnd(q.Now)) {
			continue
		}
		if q.Modality != "" && !strings.EqualFold(q.Modality, d.Modality().String()) {
			continue
		}
		if q.ImpactType != "" && !strings.EqualFold(q.ImpactType, d.ImpactType().String()) {
			continue
		}
		if q.Reliability != "" && !strings.EqualFold(q.Reliability, d.Reliability().String()) {
			continue
		}
		if q.Category != "" && !strings.EqualFold(q.Category, d.Category()) {
			continue
		}
		out = append(out, cloneRow(d))
	}
	return out, nil
}

func (r *memoryDowntimeRepo) CloseIncident(_ context.Context, incidentID string, end time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i, d := range r.rows {
		if d.IncidentID() != incidentID || !d.IsOngoing() {
			continue
		}
		closed := cloneRow(d)
		if err := closed.Close(end); err != nil {
			return n, err
		}
		r.rows[i] = closed
		n++
	}
	return n, nil
}

func cloneRow(d *entity.Downtime) *entity.Downtime {
	return entity.ReconstructDowntime(d.ID(), d.IncidentID(), d.Category(), d.AffectedChannel(),
		d.StartTime(), d.EndTime(), d.Modality().String(), d.ImpactType().String(), d.Reliability().String(), d.CreatedAt())
}

func (r *memoryDowntimeRepo) CountIncidents(_ context.Context, f repository.IncidentCountFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, d := range r.rows {
		if f.OngoingOnly && !d.IsOngoing() {
			continue
		}
		if f.ReliabilityOnly && !d.ImpactsReliability() {
			continue
		}
		if !f.StartedSince.IsZero() && d.StartTime().Before(f.StartedSince) {
			continue
		}
		seen[d.IncidentID()] = struct{}{}
	}
	return int64(len(seen)), nil
}

func newTestServer(t *testing.T, watcherBaseURL string) (*httptest.Server, *memoryDowntimeRepo) {
	t.Helper()

	log := logger.New("error")
	repo := &memoryDowntimeRepo{}

	hub := websocket.NewHub(log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	aggregator := service.NewDowntimeAggregator()
	reporter := usecase.NewGetReliabilityReportUseCase(repo, aggregator, service.NewReliabilityScorer(), nil, log)

	validator, err := payload.NewValidator()
	if err != nil {
		t.Fatalf("compile schemas: %v", err)
	}

	prom := metrics.New(hub.ClientCount)
	authConfig := middleware.AuthConfig{Enabled: true, BearerToken: testToken}

	handlers := Handlers{
		Downtime: handler.NewDowntimeHandler(handler.DowntimeUseCases{
			Report:      usecase.NewReportDowntimeUseCase(repo, service.NewDowntimeValidator(), nil, hub, nil, log),
			Close:       usecase.NewCloseDowntimeUseCase(repo, nil, hub, nil, log),
			List:        usecase.NewListDowntimesUseCase(repo, log),
			Channels:    usecase.NewGetChannelDowntimeUseCase(repo, aggregator, log),
			TypeSummary: usecase.NewGetDowntimeTypeSummaryUseCase(repo, service.NewDowntimeClassifier(aggregator), log),
		}, validator, 64*1024, 366, prom, log),
		Reliability:      handler.NewReliabilityHandler(reporter, nil, nil, 366, prom, log),
		Stats:            handler.NewStatsHandler(usecase.NewGetDashboardStatsUseCase(repo, time.Second, log)),
		WebSocket:        handler.NewWebSocketHandler(hub, []string{"http://localhost:8080"}, authConfig, log),
		ReliabilityWatch: handler.NewReliabilityWatchHandler(watcherBaseURL, 2*time.Second, log),
	}

	router := NewRouter(handlers, RouterOptions{
		Security: config.SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			AuthEnabled:    true,
			AuthToken:      testToken,
		},
		SubmitLimiter: middleware.NewIPRateLimiter(100, 100),
		Metrics:       prom,
	}, log)

	server := httptest.NewServer(router.Setup())
	t.Cleanup(server.Close)
	return server, repo
}

func authHeaders() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + testToken,
		"Content-Type":  "application/json",
	}
}

func TestE2EHealthEndpoints(t *testing.T) {
	server, _ := newTestServer(t, "")

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, resp.StatusCode)
		}
	}
}

func TestE2EAuthRequired(t *testing.T) {
	server, _ := newTestServer(t, "")
	client := server.Client()

	resp := doRequest(t, client, http.MethodGet, server.URL+"/api/v1/reliability?range=today", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp = doRequest(t, client, http.MethodGet, server.URL+"/api/v1/reliability?range=today", nil, map[string]string{
		"Authorization": "Bearer wrong",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong token, got %d", resp.StatusCode)
	}
}

func TestE2EReportAndScoreDowntime(t *testing.T) {
	server, _ := newTestServer(t, "")
	client := server.Client()

	body := bytes.NewBufferString(`{
		"incidentId": "INC-100",
		"affectedChannels": ["APP", "WEB"],
		"startTime": "2024-01-03T10:00:00+06:00",
		"endTime": "2024-01-03T11:00:00+06:00",
		"modality": "UNPLANNED",
		"impactType": "FULL"
	}`)
	resp := doRequest(t, client, http.MethodPost, server.URL+"/api/v1/downtimes", body, authHeaders())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for report, got %d", resp.StatusCode)
	}
	var created dto.DowntimeDTO
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode created downtime: %v", err)
	}
	resp.Body.Close()

	if created.IncidentID != "INC-100" || created.ReliabilityImpacted != "YES" {
		t.Fatalf("unexpected created row: %+v", created)
	}

	resp = doRequest(t, client, http.MethodGet,
		server.URL+"/api/v1/reliability?range=custom&startDate=2024-01-03&endDate=2024-01-03", nil, authHeaders())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for reliability, got %d", resp.StatusCode)
	}
	defer resp.Body.Close()

	var report dto.ReliabilityReportDTO
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}

	if report.TotalReliabilityImpactMinutes != 120 {
		t.Fatalf("expected per-channel sum 120, got %d", report.TotalReliabilityImpactMinutes)
	}
	if len(report.Channels) < 6 || report.Channels[0].Channel != "APP" || report.Channels[0].Minutes != 60 {
		t.Fatalf("unexpected channel breakdown: %+v", report.Channels)
	}
	if report.Summary.MeetsSLA {
		t.Fatal("expected SLA breach for 120 impact minutes in a single day")
	}
}

func TestE2EIncidentLifecycle(t *testing.T) {
	server, _ := newTestServer(t, "")
	client := server.Client()

	start := time.Now().Add(-30 * time.Minute).UTC().Format(time.RFC3339)
	body := bytes.NewBufferString(`{"incidentId":"INC-200","affectedChannels":["USSD"],"startTime":"` + start + `","modality":"UNPLANNED","impactType":"PARTIAL"}`)
	resp := doRequest(t, client, http.MethodPost, server.URL+"/api/v1/downtimes", body, authHeaders())
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for open downtime, got %d", resp.StatusCode)
	}

	resp = doRequest(t, client, http.MethodGet, server.URL+"/api/v1/stats", nil, authHeaders())
	var stats dto.DashboardStatsDTO
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	resp.Body.Close()
	if stats.OngoingIncidents != 1 || stats.ReliabilityIncidents != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	resp = doRequest(t, client, http.MethodPost, server.URL+"/api/v1/downtimes/INC-200/close", nil, authHeaders())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for close, got %d", resp.StatusCode)
	}
	var closed usecase.CloseDowntimeResult
	if err := json.NewDecoder(resp.Body).Decode(&closed); err != nil {
		t.Fatalf("decode close result: %v", err)
	}
	resp.Body.Close()
	if closed.ClosedRows != 1 {
		t.Fatalf("expected one closed row, got %d", closed.ClosedRows)
	}

	resp = doRequest(t, client, http.MethodGet, server.URL+"/api/v1/downtimes/INC-200", nil, authHeaders())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for incident, got %d", resp.StatusCode)
	}
	var incident struct {
		Downtimes []dto.DowntimeDTO `json:"downtimes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&incident); err != nil {
		t.Fatalf("decode incident: %v", err)
	}
	resp.Body.Close()
	if len(incident.Downtimes) != 1 || incident.Downtimes[0].EndTime == nil {
		t.Fatalf("expected closed row, got %+v", incident.Downtimes)
	}

	resp = doRequest(t, client, http.MethodGet, server.URL+"/api/v1/downtimes/INC-404", nil, authHeaders())
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown incident, got %d", resp.StatusCode)
	}
}

func TestE2EValidationErrors(t *testing.T) {
	server, repo := newTestServer(t, "")
	client := server.Client()

	cases := []struct {
		name string
		path string
		body string
	}{
		{"schema", "/api/v1/downtimes", `{"affectedChannels":[],"startTime":"2024-01-03T10:00:00Z","modality":"UNPLANNED","impactType":"FULL"}`},
		{"unknown channel", "/api/v1/downtimes", `{"affectedChannels":["FAX"],"startTime":"2024-01-03T10:00:00Z","modality":"UNPLANNED","impactType":"FULL"}`},
		{"end before start", "/api/v1/downtimes", `{"affectedChannels":["APP"],"startTime":"2024-01-03T10:00:00Z","endTime":"2024-01-03T09:00:00Z","modality":"PLANNED","impactType":"FULL"}`},
		{"batch all or nothing", "/api/v1/downtimes/batch", `{"downtimes":[
			{"affectedChannels":["APP"],"startTime":"2024-01-03T10:00:00Z","modality":"PLANNED","impactType":"FULL"},
			{"affectedChannels":["APP"],"startTime":"2024-01-03T10:00:00Z","modality":"SOMETIMES","impactType":"FULL"}
		]}`},
	}

	for _, tc := range cases {
		resp := doRequest(t, client, http.MethodPost, server.URL+tc.path, bytes.NewBufferString(tc.body), authHeaders())
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, resp.StatusCode)
		}
	}

	resp := doRequest(t, client, http.MethodGet, server.URL+"/api/v1/reliability?range=fortnight", nil, authHeaders())
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown range, got %d", resp.StatusCode)
	}

	repo.mu.RLock()
	defer repo.mu.RUnlock()
	if len(repo.rows) != 0 {
		t.Fatalf("expected nothing saved, got %d rows", len(repo.rows))
	}
}

func TestE2EBatchAndQueries(t *testing.T) {
	server, _ := newTestServer(t, "")
	client := server.Client()

	body := bytes.NewBufferString(`{"downtimes":[
		{"incidentId":"INC-1","affectedChannels":["APP"],"startTime":"2024-01-03T10:00:00+06:00","endTime":"2024-01-03T10:30:00+06:00","modality":"PLANNED","impactType":"FULL"},
		{"incidentId":"INC-2","affectedChannels":["SMS"],"startTime":"2024-01-03T12:00:00+06:00","endTime":"2024-01-03T12:45:00+06:00","modality":"UNPLANNED","impactType":"FULL"}
	]}`)
	resp := doRequest(t, client, http.MethodPost, server.URL+"/api/v1/downtimes/batch", body, authHeaders())
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for batch, got %d", resp.StatusCode)
	}

	window := "range=custom&startDate=2024-01-03&endDate=2024-01-03"

	resp = doRequest(t, client, http.MethodGet, server.URL+"/api/v1/downtimes?"+window+"&modality=planned", nil, authHeaders())
	var listed struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	resp.Body.Close()
	if listed.Count != 1 {
		t.Fatalf("expected one planned row, got %d", listed.Count)
	}

	resp = doRequest(t, client, http.MethodGet, server.URL+"/api/v1/downtimes/channels?"+window, nil, authHeaders())
	var channels dto.ChannelDowntimeDTO
	if err := json.NewDecoder(resp.Body).Decode(&channels); err != nil {
		t.Fatalf("decode channels: %v", err)
	}
	resp.Body.Close()
	if channels.TotalMinutes != 75 {
		t.Fatalf("expected 75 total minutes, got %d", channels.TotalMinutes)
	}

	resp = doRequest(t, client, http.MethodGet, server.URL+"/api/v1/downtimes/types?"+window, nil, authHeaders())
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for type summary, got %d", resp.StatusCode)
	}
}

func TestE2EExportsWithoutStorage(t *testing.T) {
	server, _ := newTestServer(t, "")

	resp := doRequest(t, server.Client(), http.MethodPost, server.URL+"/api/v1/reliability/exports?range=today", nil, authHeaders())
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without export storage, got %d", resp.StatusCode)
	}
}

func TestE2EReliabilityWatchProxy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/reliability-watch/summary":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		case "/api/v1/reliability-watch/run":
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"status":"done"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(upstream.Close)

	server, _ := newTestServer(t, strings.TrimRight(upstream.URL, "/"))
	client := server.Client()

	summaryResp := doRequest(t, client, http.MethodGet, server.URL+"/api/v1/reliability-watch/summary", nil, authHeaders())
	summaryResp.Body.Close()
	if summaryResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for watcher summary, got %d", summaryResp.StatusCode)
	}

	runResp := doRequest(t, client, http.MethodPost, server.URL+"/api/v1/reliability-watch/run", nil, authHeaders())
	runResp.Body.Close()
	if runResp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 for watcher run, got %d", runResp.StatusCode)
	}
}

func doRequest(t *testing.T, client *http.Client, method, url string, body *bytes.Buffer, headers map[string]string) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body.Bytes())
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}
