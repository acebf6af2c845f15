package logger

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dreschagin/soc-portal/internal/application/port"
)

type Logger struct {
	logger *log.Logger
	level  Level

	mu        sync.RWMutex
	publisher port.LogPublisher
	service   string
}

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func New(level string) *Logger {
	l := &Logger{
		logger: log.New(os.Stdout, "", 0),
		level:  parseLevel(level),
	}
	return l
}

// SetLogPublisher mirrors every emitted line to an external log system.
// Passing nil disables mirroring.
func (l *Logger) SetLogPublisher(publisher port.LogPublisher) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.publisher = publisher
}

// SetService tags mirrored entries with the emitting binary.
func (l *Logger) SetService(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.service = name
}

func parseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	if l.level <= DEBUG {
		l.log(port.LogLevelDebug, msg, args...)
	}
}

func (l *Logger) Info(msg string, args ...interface{}) {
	if l.level <= INFO {
		l.log(port.LogLevelInfo, msg, args...)
	}
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	if l.level <= WARN {
		l.log(port.LogLevelWarn, msg, args...)
	}
}

func (l *Logger) Error(msg string, err error, args ...interface{}) {
	if l.level <= ERROR {
		if err != nil {
			args = append(args, "error", err.Error())
		}
		l.log(port.LogLevelError, msg, args...)
	}
}

func (l *Logger) log(level port.LogLevel, msg string, args ...interface{}) {
	now := time.Now()
	message := fmt.Sprintf("[%s] [%s] %s", now.Format("2006-01-02 15:04:05"), level, msg)

	var fields map[string]interface{}
	if len(args) > 0 {
		fields = make(map[string]interface{}, len(args)/2)
		message += " |"
		for i := 0; i < len(args); i += 2 {
			if i+1 < len(args) {
				message += fmt.Sprintf(" %v=%v", args[i], args[i+1])
				fields[fmt.Sprint(args[i])] = args[i+1]
			}
		}
	}

	l.logger.Println(message)

	l.mu.RLock()
	publisher, service := l.publisher, l.service
	l.mu.RUnlock()

	if publisher == nil {
		return
	}

	entry := port.LogEntry{
		Timestamp: now,
		Level:     level,
		Service:   service,
		Message:   msg,
		Fields:    fields,
	}
	// Ошибки публикации не логируются через этот же логгер, иначе рекурсия
	if err := publisher.Publish(context.Background(), entry); err != nil {
		fmt.Fprintf(os.Stderr, "[%s] [WARN] log publish failed | error=%v\n", now.Format("2006-01-02 15:04:05"), err)
	}
}
