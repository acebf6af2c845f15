package port

import (
	"context"
)

// NATS subjects for downtime and SLA events
const (
	SubjectDowntimeReported = "soc.downtime.reported"
	SubjectDowntimeClosed   = "soc.downtime.closed"
	SubjectSLABreach        = "soc.reliability.sla_breach"
)

// EventPublisher defines the interface for publishing events to a message broker
type EventPublisher interface {
	// PublishEvent publishes an event to the specified subject
	PublishEvent(ctx context.Context, subject string, event interface{}) error

	// Close closes the connection to the message broker
	Close() error
}
