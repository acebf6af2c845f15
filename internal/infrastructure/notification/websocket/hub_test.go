package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/dreschagin/soc-portal/internal/application/dto"
	"github.com/dreschagin/soc-portal/pkg/logger"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(logger.New("error"))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg, true
	case <-time.After(200 * time.Millisecond):
		return Message{}, false
	}
}

func TestHubDeliversBySubscription(t *testing.T) {
	hub := startHub(t)

	all := NewClient(hub, nil, "", logger.New("error"))
	sms := NewClient(hub, nil, "sms", logger.New("error"))
	hub.Register(all)
	hub.Register(sms)

	hub.BroadcastDowntime(&dto.DowntimeEventDTO{Event: "reported", IncidentID: "INC-1", Channels: []string{"APP", "WEB"}})

	msg, ok := receive(t, all)
	if !ok || msg.Type != MessageDowntime {
		t.Fatalf("expected downtime message, got %+v (ok=%v)", msg, ok)
	}
	if _, ok := receive(t, sms); ok {
		t.Error("SMS subscriber must not receive APP/WEB event")
	}

	hub.BroadcastSLABreach(&dto.SLABreachDTO{Range: "today", ReliabilityPercentage: 98.5})

	if msg, ok := receive(t, sms); !ok || msg.Type != MessageSLABreach {
		t.Errorf("SLA breach must reach every client, got %+v (ok=%v)", msg, ok)
	}
	if hub.ClientCount() != 2 {
		t.Errorf("expected 2 clients, got %d", hub.ClientCount())
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub := startHub(t)

	c := NewClient(hub, nil, "ALL", logger.New("error"))
	hub.Register(c)
	hub.Unregister(c)

	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("send channel was not closed")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected no clients, got %d", hub.ClientCount())
	}
}

func TestHubRegisterAndUnregisterAfterStop(t *testing.T) {
	hub := NewHub(logger.New("error"))
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	c := NewClient(hub, nil, "ALL", logger.New("error"))
	hub.Register(c)
	cancel()
	<-stopped

	late := NewClient(hub, nil, "ALL", logger.New("error"))
	returned := make(chan struct{})
	go func() {
		hub.Unregister(c)
		hub.Register(late)
		hub.Unregister(late)
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Register/Unregister blocked after hub stopped")
	}
	if _, ok := <-late.send; ok {
		t.Error("client registered after stop must get a closed send channel")
	}
}
