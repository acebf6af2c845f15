package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dreschagin/soc-portal/internal/application/dto"
	"github.com/dreschagin/soc-portal/internal/application/port"
	"github.com/dreschagin/soc-portal/internal/domain/entity"
	"github.com/dreschagin/soc-portal/internal/domain/repository"
)

type memoryDowntimeRepository struct {
	mu       sync.Mutex
	rows     []*entity.Downtime
	err      error
	countErr map[bool]error // по OngoingOnly
	saves    int
	// shared отдает сохраненные указатели без копий, как простые in-memory хранилища
	shared bool
}

func (m *memoryDowntimeRepository) Save(_ context.Context, d *entity.Downtime) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, d)
	m.saves++
	return nil
}

func (m *memoryDowntimeRepository) SaveBatch(_ context.Context, ds []*entity.Downtime) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, ds...)
	m.saves++
	return nil
}

func (m *memoryDowntimeRepository) FindByIncident(_ context.Context, incidentID string) ([]*entity.Downtime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Downtime
	for _, r := range m.rows {
		if r.IncidentID() != incidentID {
			continue
		}
		if m.shared {
			out = append(out, r)
		} else {
			out = append(out, cloneDowntime(r))
		}
	}
	return out, m.err
}

func (m *memoryDowntimeRepository) FindOverlapping(_ context.Context, q repository.DowntimeQuery) ([]*entity.Downtime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*entity.Downtime
	for _, r := range m.rows {
		if !q.Window.Intersects(r.StartTime(), r.EffectiveEnd(q.Now)) {
			continue
		}
		if q.Modality != "" && !strings.EqualFold(q.Modality, r.Modality().String()) {
			continue
		}
		if q.ImpactType != "" && !strings.EqualFold(q.ImpactType, r.ImpactType().String()) {
			continue
		}
		if q.Reliability != "" && !strings.EqualFold(q.Reliability, r.Reliability().String()) {
			continue
		}
		if q.Category != "" && !strings.EqualFold(q.Category, r.Category()) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryDowntimeRepository) CloseIncident(_ context.Context, incidentID string, end time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for i, r := range m.rows {
		if r.IncidentID() == incidentID && r.IsOngoing() {
			c := cloneDowntime(r)
			if err := c.Close(end); err != nil {
				return n, err
			}
			m.rows[i] = c
			n++
		}
	}
	return n, nil
}

func (m *memoryDowntimeRepository) CountIncidents(_ context.Context, f repository.IncidentCountFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.countErr[f.OngoingOnly]; ok && err != nil {
		return 0, err
	}
	seen := make(map[string]struct{})
	for _, r := range m.rows {
		if f.OngoingOnly && !r.IsOngoing() {
			continue
		}
		if f.ReliabilityOnly && !r.ImpactsReliability() {
			continue
		}
		if !f.StartedSince.IsZero() && r.StartTime().Before(f.StartedSince) {
			continue
		}
		seen[r.IncidentID()] = struct{}{}
	}
	return int64(len(seen)), nil
}

type memoryCache struct {
	mu       sync.Mutex
	items    map[string][]byte
	patterns []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.items[key]
	if !ok {
		return errors.New("cache miss")
	}
	return json.Unmarshal(data, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = data
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

func (c *memoryCache) DeletePattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patterns = append(c.patterns, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
		}
	}
	return nil
}

func (c *memoryCache) Close() error { return nil }

type publishedEvent struct {
	subject string
	event   interface{}
}

type mockPublisher struct {
	events []publishedEvent
	err    error
}

func (m *mockPublisher) PublishEvent(_ context.Context, subject string, event interface{}) error {
	m.events = append(m.events, publishedEvent{subject: subject, event: event})
	return m.err
}

func (m *mockPublisher) Close() error { return nil }

type mockNotifier struct {
	downtimes []*dto.DowntimeEventDTO
	breaches  []*dto.SLABreachDTO
}

func (m *mockNotifier) BroadcastDowntime(event *dto.DowntimeEventDTO) {
	m.downtimes = append(m.downtimes, event)
}

func (m *mockNotifier) BroadcastSLABreach(alert *dto.SLABreachDTO) {
	m.breaches = append(m.breaches, alert)
}

func (m *mockNotifier) ClientCount() int { return 0 }

type putCall struct {
	key         string
	contentType string
	body        []byte
}

type mockReportStorage struct {
	calls   []putCall
	objects []port.StoredObject
	err     error
}

func (m *mockReportStorage) PutObject(_ context.Context, key, contentType string, body []byte) (string, error) {
	m.calls = append(m.calls, putCall{key: key, contentType: contentType, body: body})
	if m.err != nil {
		return "", m.err
	}
	return "https://example.com/" + key, nil
}

func (m *mockReportStorage) GetObjectURL(_ context.Context, key string) (string, error) {
	return "https://signed.example.com/" + key, nil
}

func (m *mockReportStorage) ListObjects(_ context.Context, prefix string, limit int) ([]port.StoredObject, error) {
	var out []port.StoredObject
	for _, o := range m.objects {
		if strings.HasPrefix(o.Key, prefix) {
			out = append(out, o)
		}
	}
	return out, nil
}

type mockExportIndex struct {
	records []port.ReportExportMetadata
	putErr  error
	listErr error
}

func (m *mockExportIndex) Put(_ context.Context, record port.ReportExportMetadata) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.records = append(m.records, record)
	return nil
}

func (m *mockExportIndex) List(_ context.Context, q port.ReportExportListQuery) (port.ReportExportListPage, error) {
	if m.listErr != nil {
		return port.ReportExportListPage{}, m.listErr
	}
	return port.ReportExportListPage{Items: m.records, NextCursor: "next"}, nil
}

// cloneDowntime отдает копию, как это делает чтение из БД
func cloneDowntime(d *entity.Downtime) *entity.Downtime {
	return entity.ReconstructDowntime(d.ID(), d.IncidentID(), d.Category(), d.AffectedChannel(),
		d.StartTime(), d.EndTime(), d.Modality().String(), d.ImpactType().String(), d.Reliability().String(), d.CreatedAt())
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func downtimeRow(id, incident, channel string, start, end time.Time, modality, impact, reliability string) *entity.Downtime {
	e := end
	return entity.ReconstructDowntime(id, incident, "", channel, start, &e, modality, impact, reliability, start)
}
