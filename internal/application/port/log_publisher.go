package port

import (
	"context"
	"time"
)

// LogLevel represents the severity of a log entry.
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// LogEntry is a structured log line mirrored to an external log system.
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Service   string
	Message   string
	Fields    map[string]interface{}
}

// LogPublisher ships log entries to an external observability platform.
type LogPublisher interface {
	// Publish buffers a single entry.
	Publish(ctx context.Context, entry LogEntry) error

	// PublishBatch sends entries in as few requests as the backend allows.
	PublishBatch(ctx context.Context, entries []LogEntry) error

	// Flush sends anything buffered; called on shutdown.
	Flush(ctx context.Context) error
}
