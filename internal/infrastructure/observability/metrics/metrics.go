package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dreschagin/soc-portal/internal/application/dto"
)

const namespace = "soc_portal"

// Metrics bundles the prometheus collectors exposed on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal      *prometheus.CounterVec
	RequestDurationSec *prometheus.HistogramVec
	RateLimitDropped   prometheus.Counter
	AuthFailures       prometheus.Counter

	DowntimesReported *prometheus.CounterVec
	IncidentsClosed   prometheus.Counter

	Reliability        *prometheus.GaugeVec
	ChannelReliability *prometheus.GaugeVec
	ImpactMinutes      *prometheus.GaugeVec
	SLABreaches        *prometheus.CounterVec
	WatcherRuns        *prometheus.CounterVec
	WebSocketClients   prometheus.GaugeFunc
}

// New registers all collectors on a fresh registry. clients may be nil.
func New(clients func() int) *Metrics {
	registry := prometheus.NewRegistry()

	if clients == nil {
		clients = func() int { return 0 }
	}

	m := &Metrics{
		registry: registry,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		RateLimitDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_dropped_total",
			Help:      "Total number of requests dropped by rate limiter.",
		}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Total number of rejected bearer tokens.",
		}),
		DowntimesReported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downtimes_reported_total",
			Help:      "Downtime rows stored, by modality and impact type.",
		}, []string{"modality", "impact_type"}),
		IncidentsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_closed_total",
			Help:      "Total number of incidents closed.",
		}),
		Reliability: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reliability_percentage",
			Help:      "Overall reliability of the last computed report.",
		}, []string{"range"}),
		ChannelReliability: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_reliability_percentage",
			Help:      "Per-channel reliability of the last computed report.",
		}, []string{"range", "channel"}),
		ImpactMinutes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reliability_impact_minutes",
			Help:      "Unplanned full downtime minutes in the last computed report.",
		}, []string{"range"}),
		SLABreaches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sla_breaches_total",
			Help:      "Total number of SLA breach alerts raised.",
		}, []string{"range"}),
		WatcherRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reliability_watch_runs_total",
			Help:      "Reliability watch evaluations by outcome.",
		}, []string{"status"}),
		WebSocketClients: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Currently connected WebSocket clients.",
		}, func() float64 { return float64(clients()) }),
	}

	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.RequestsTotal,
		m.RequestDurationSec,
		m.RateLimitDropped,
		m.AuthFailures,
		m.DowntimesReported,
		m.IncidentsClosed,
		m.Reliability,
		m.ChannelReliability,
		m.ImpactMinutes,
		m.SLABreaches,
		m.WatcherRuns,
		m.WebSocketClients,
	)

	return m
}

// Registry exposes the underlying registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveReport records the gauges of a computed reliability report.
func (m *Metrics) ObserveReport(report *dto.ReliabilityReportDTO) {
	if report == nil {
		return
	}
	m.Reliability.WithLabelValues(report.Range).Set(report.ReliabilityPercentage)
	m.ImpactMinutes.WithLabelValues(report.Range).Set(float64(report.TotalReliabilityImpactMinutes))
	for _, ch := range report.Channels {
		m.ChannelReliability.WithLabelValues(report.Range, ch.Channel).Set(ch.ReliabilityPercentage)
	}
}

// ObserveBreach counts an SLA breach alert.
func (m *Metrics) ObserveBreach(alert *dto.SLABreachDTO) {
	if alert == nil {
		return
	}
	m.SLABreaches.WithLabelValues(alert.Range).Inc()
}

// ObserveDowntimes counts stored downtime rows.
func (m *Metrics) ObserveDowntimes(rows []*dto.DowntimeDTO) {
	for _, row := range rows {
		m.DowntimesReported.WithLabelValues(row.Modality, row.ImpactType).Inc()
	}
}

// ObserveWatcherRun counts a reliability watcher cycle by outcome.
func (m *Metrics) ObserveWatcherRun(status string) {
	m.WatcherRuns.WithLabelValues(status).Inc()
}

// ObserveIncidentClosed counts a closed incident.
func (m *Metrics) ObserveIncidentClosed() {
	m.IncidentsClosed.Inc()
}

func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		route := r.Pattern
		if route == "" {
			route = normalizeRoute(r.URL.Path)
		}
		m.RequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		m.RequestDurationSec.WithLabelValues(route, r.Method, status).Observe(time.Since(startedAt).Seconds())
	})
}

// normalizeRoute keeps label cardinality bounded for requests no pattern matched.
func normalizeRoute(path string) string {
	switch {
	case path == "/ws" || path == "/healthz" || path == "/readyz" || path == "/metrics":
		return path
	case strings.HasPrefix(path, "/api/v1/reliability-watch"):
		return "/api/v1/reliability-watch/*"
	case strings.HasPrefix(path, "/api/v1/downtimes/"):
		if strings.HasSuffix(path, "/close") {
			return "/api/v1/downtimes/{incident}/close"
		}
		return "/api/v1/downtimes/*"
	case strings.HasPrefix(path, "/api/"):
		return "/api/*"
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Hijack passes websocket upgrades through wrapped ResponseWriter.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
