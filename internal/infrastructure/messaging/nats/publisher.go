package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dreschagin/soc-portal/pkg/logger"
	"github.com/nats-io/nats.go"
)

// DefaultStream captures every soc.* subject published by the portal.
const DefaultStream = "SOC_EVENTS"

// Options configures the JetStream publisher.
type Options struct {
	URL        string
	ClientName string
	Stream     string
	Subjects   []string
	MaxAge     time.Duration
}

// NATSPublisher implements port.EventPublisher for NATS JetStream
type NATSPublisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger *logger.Logger
}

// NewNATSPublisher connects to NATS and makes sure the event stream exists.
func NewNATSPublisher(opts Options, log *logger.Logger) (*NATSPublisher, error) {
	name := opts.ClientName
	if name == "" {
		name = "soc-portal"
	}

	nc, err := nats.Connect(opts.URL,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	cfg := streamConfig(opts)
	if err := ensureStream(js, cfg); err != nil {
		nc.Close()
		return nil, err
	}

	log.Info("Connected to NATS", "url", opts.URL, "stream", cfg.Name)

	return &NATSPublisher{
		nc:     nc,
		js:     js,
		logger: log,
	}, nil
}

func streamConfig(opts Options) *nats.StreamConfig {
	cfg := &nats.StreamConfig{
		Name:     opts.Stream,
		Subjects: opts.Subjects,
		Storage:  nats.FileStorage,
		MaxAge:   opts.MaxAge,
	}
	if cfg.Name == "" {
		cfg.Name = DefaultStream
	}
	if len(cfg.Subjects) == 0 {
		cfg.Subjects = []string{"soc.>"}
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 7 * 24 * time.Hour
	}
	return cfg
}

func ensureStream(js nats.JetStreamContext, cfg *nats.StreamConfig) error {
	_, err := js.StreamInfo(cfg.Name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", cfg.Name, err)
	}

	if _, err := js.AddStream(cfg); err != nil {
		return fmt.Errorf("failed to create stream %s: %w", cfg.Name, err)
	}
	return nil
}

// PublishEvent publishes a JSON event (async)
func (p *NATSPublisher) PublishEvent(ctx context.Context, subject string, event interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Fire-and-forget, delivery errors surface via the async error handler
	_, err = p.js.PublishAsync(subject, data)
	if err != nil {
		p.logger.Error("Failed to publish event", err,
			"subject", subject,
		)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Event published",
		"subject", subject,
		"size", len(data),
	)

	return nil
}

// Connected reports whether the underlying connection is usable (readiness probe).
func (p *NATSPublisher) Connected() bool {
	return p.nc != nil && p.nc.IsConnected()
}

// Close drains pending async publishes and closes the connection
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}

	p.logger.Info("Closing NATS connection")

	select {
	case <-p.js.PublishAsyncComplete():
	case <-time.After(2 * time.Second):
		p.logger.Warn("Timed out waiting for pending NATS publishes")
	}

	p.nc.Close()
	return nil
}
