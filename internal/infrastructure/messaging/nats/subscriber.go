package nats

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/dreschagin/soc-portal/internal/application/dto"
	"github.com/dreschagin/soc-portal/internal/application/port"
)

// SubscribeSLABreaches delivers every soc.reliability.sla_breach event to fn.
// The returned function removes the subscription.
func (p *NATSPublisher) SubscribeSLABreaches(fn func(*dto.SLABreachDTO)) (func() error, error) {
	sub, err := p.nc.Subscribe(port.SubjectSLABreach, func(msg *nats.Msg) {
		alert, err := decodeSLABreach(msg.Data)
		if err != nil {
			p.logger.Warn("Dropping malformed SLA breach event", "error", err.Error())
			return
		}
		fn(alert)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", port.SubjectSLABreach, err)
	}

	p.logger.Info("Subscribed to SLA breach events", "subject", port.SubjectSLABreach)
	return sub.Unsubscribe, nil
}

func decodeSLABreach(data []byte) (*dto.SLABreachDTO, error) {
	var alert dto.SLABreachDTO
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, fmt.Errorf("decode sla breach: %w", err)
	}
	if alert.Range == "" {
		return nil, fmt.Errorf("decode sla breach: range is empty")
	}
	return &alert, nil
}
