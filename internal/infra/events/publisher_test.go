package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
	"github.com/boddenberg/proposta-facil-go/internal/infra/events"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

func startServer(t *testing.T) *server.Server {
	t.Helper()
	ns, err := server.NewServer(&server.Options{Port: -1, NoLog: true, NoSigs: true})
	if err != nil {
		t.Fatalf("create embedded NATS server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("embedded NATS server failed to start")
	}
	t.Cleanup(ns.Shutdown)
	return ns
}

func TestNATSPublisher_Publish(t *testing.T) {
	ns := startServer(t)

	sub, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	msgs := make(chan *nats.Msg, 1)
	if _, err := sub.ChanSubscribe("propostas.>", msgs); err != nil {
		t.Fatal(err)
	}
	if err := sub.Flush(); err != nil {
		t.Fatal(err)
	}

	pub, err := events.Connect(ns.ClientURL(), "", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer pub.Close()

	ev := domain.ProposalEvent{
		Type:       domain.EventProposalStatusChanged,
		ProposalID: "p1",
		UserID:     "u1",
		Status:     domain.StatusAprovada,
		At:         time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	if err := pub.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := pub.Ping(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	select {
	case msg := <-msgs:
		if msg.Subject != "propostas.status_changed" {
			t.Errorf("unexpected subject %q", msg.Subject)
		}
		var got domain.ProposalEvent
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatal(err)
		}
		if got.ProposalID != "p1" || got.Status != domain.StatusAprovada {
			t.Errorf("unexpected payload %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}
}

func TestNATSPublisher_Subject(t *testing.T) {
	p := events.NewNATSPublisher(nil, "custom", zap.NewNop())
	if got := p.Subject(domain.EventProposalDeleted); got != "custom.deleted" {
		t.Errorf("expected custom.deleted, got %q", got)
	}
}

func TestNoop(t *testing.T) {
	if err := (events.Noop{}).Publish(context.Background(), domain.ProposalEvent{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
