package logger

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/dreschagin/soc-portal/internal/application/port"
)

type capturePublisher struct {
	mu      sync.Mutex
	entries []port.LogEntry
	err     error
}

func (c *capturePublisher) Publish(_ context.Context, entry port.LogEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
	return c.err
}

func (c *capturePublisher) PublishBatch(ctx context.Context, entries []port.LogEntry) error {
	for _, e := range entries {
		_ = c.Publish(ctx, e)
	}
	return c.err
}

func (c *capturePublisher) Flush(context.Context) error { return nil }

func newBuffered(level string) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := New(level)
	l.logger = log.New(buf, "", 0)
	return l, buf
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBuffered("warn")

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown", "incident_id", "INC-1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected debug/info to be filtered, got %q", out)
	}
	if !strings.Contains(out, "[WARN] shown | incident_id=INC-1") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	if parseLevel("verbose") != INFO {
		t.Fatal("expected INFO for unknown level")
	}
	if parseLevel(" DEBUG ") != DEBUG {
		t.Fatal("expected DEBUG")
	}
}

func TestErrorMirrorsToPublisher(t *testing.T) {
	l, buf := newBuffered("info")
	pub := &capturePublisher{err: errors.New("offline")}
	l.SetLogPublisher(pub)
	l.SetService("soc-portal-api")

	l.Error("Failed to save downtime", errors.New("boom"), "channel", "APP")

	if !strings.Contains(buf.String(), "error=boom") {
		t.Fatalf("expected error field in output, got %q", buf.String())
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.entries) != 1 {
		t.Fatalf("expected one mirrored entry, got %d", len(pub.entries))
	}
	entry := pub.entries[0]
	if entry.Level != port.LogLevelError || entry.Service != "soc-portal-api" {
		t.Errorf("unexpected entry %+v", entry)
	}
	if entry.Fields["channel"] != "APP" || entry.Fields["error"] != "boom" {
		t.Errorf("unexpected fields %v", entry.Fields)
	}
}
