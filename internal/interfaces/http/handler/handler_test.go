package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dreschagin/soc-portal/internal/domain/domainerr"
	"github.com/dreschagin/soc-portal/internal/interfaces/http/middleware"
	"github.com/dreschagin/soc-portal/pkg/logger"
)

func TestWriteErrorMapsDomainErrors(t *testing.T) {
	log := logger.New("error")

	cases := []struct {
		name   string
		err    error
		status int
		field  string
	}{
		{"validation", domainerr.NewValidationError("startDate", "bad date"), http.StatusBadRequest, "startDate"},
		{"wrapped validation", fmt.Errorf("downtime 2: %w", domainerr.NewValidationError("modality", "unknown")), http.StatusBadRequest, "modality"},
		{"not found", fmt.Errorf("incident INC-9: %w", domainerr.ErrNotFound), http.StatusNotFound, ""},
		{"internal", errors.New("connection refused"), http.StatusInternalServerError, ""},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, log, tc.err, "Failed")

		if rec.Code != tc.status {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.status, rec.Code)
			continue
		}

		var body errorResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		if body.Field != tc.field {
			t.Errorf("%s: expected field %q, got %q", tc.name, tc.field, body.Field)
		}
		if tc.status == http.StatusInternalServerError && strings.Contains(body.Error, "connection refused") {
			t.Errorf("%s: internal error text leaked to client", tc.name)
		}
	}
}

func TestReportQueryDefaults(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/reliability", nil)
	q := reportQuery(r, 0)
	if q.Range != "thisWeek" {
		t.Fatalf("expected default range thisWeek, got %q", q.Range)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/v1/downtimes?range=custom&startDate=2024-01-01&endDate=2024-01-31&channel=APP&modality=planned&impactType=FULL&reliability=YES&category=network", nil)
	q = reportQuery(r, 90)
	if q.Range != "custom" || q.StartDate != "2024-01-01" || q.EndDate != "2024-01-31" {
		t.Fatalf("unexpected window params: %+v", q)
	}
	if q.MaxCustomDays != 90 {
		t.Fatalf("expected max custom days 90, got %d", q.MaxCustomDays)
	}
	if q.Channel != "APP" || q.Modality != "planned" || q.ImpactType != "FULL" || q.Reliability != "YES" || q.Category != "network" {
		t.Fatalf("unexpected filters: %+v", q)
	}
}

func TestCreateRejectsOversizedBody(t *testing.T) {
	h := NewDowntimeHandler(DowntimeUseCases{}, nil, 16, 0, nil, logger.New("error"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/downtimes", strings.NewReader(`{"affectedChannels":["APP","WEB","SMS"]}`))
	h.Create(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestCloseRejectsMalformedBody(t *testing.T) {
	h := NewDowntimeHandler(DowntimeUseCases{}, nil, 0, 0, nil, logger.New("error"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/downtimes/INC-1/close", strings.NewReader(`{"endTime":`))
	req.SetPathValue("incident", "INC-1")
	h.Close(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestReliabilityHandlerWithoutExportStorage(t *testing.T) {
	h := NewReliabilityHandler(nil, nil, nil, 0, nil, logger.New("error"))

	for _, fn := range []http.HandlerFunc{h.Export, h.ListExports} {
		rec := httptest.NewRecorder()
		fn(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reliability/exports", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
	}
}

func TestReliabilityWatchProxyFailures(t *testing.T) {
	log := logger.New("error")

	unconfigured := NewReliabilityWatchHandler("", time.Second, log)
	rec := httptest.NewRecorder()
	unconfigured.GetSummary(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reliability-watch/summary", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when base URL is empty, got %d", rec.Code)
	}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	baseURL := upstream.URL
	upstream.Close()

	down := NewReliabilityWatchHandler(baseURL+"/", time.Second, log)
	rec = httptest.NewRecorder()
	down.RunNow(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reliability-watch/run", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 when watcher is down, got %d", rec.Code)
	}
}

func TestReadLimited(t *testing.T) {
	if _, err := readLimited(strings.NewReader("12345"), 4); err == nil {
		t.Fatal("expected error above limit")
	}
	data, err := readLimited(strings.NewReader("1234"), 4)
	if err != nil || string(data) != "1234" {
		t.Fatalf("unexpected result %q, %v", data, err)
	}
}

func TestWebSocketOriginCheck(t *testing.T) {
	h := NewWebSocketHandler(nil, []string{" https://SOC.example.com ", "not a url", ""}, middleware.AuthConfig{}, logger.New("error"))

	if len(h.allowedOrigins) != 1 {
		t.Fatalf("expected one normalized origin, got %v", h.allowedOrigins)
	}
	if !originAllowed(h.allowedOrigins, "https://soc.example.com") {
		t.Error("expected configured origin to pass")
	}
	if originAllowed(h.allowedOrigins, "https://evil.example.com") || originAllowed(h.allowedOrigins, "") {
		t.Error("expected foreign and empty origins to be rejected")
	}

	wildcard := map[string]struct{}{"*": {}}
	if !originAllowed(wildcard, "http://localhost:3000") {
		t.Error("expected wildcard to allow any origin")
	}
	if originAllowed(wildcard, "*") {
		t.Error("a literal * origin header must not pass")
	}
}
