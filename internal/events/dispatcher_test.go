package events

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

func TestDispatcher_InvokesHandlersInOrder(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	var calls []string
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls = append(calls, "first")
		return nil
	})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventTicketClosed, func(context.Context, Event) error {
		calls = append(calls, "closed")
		return nil
	})

	if err := d.Publish(context.Background(), Event{Type: EventTicketCreated, TicketID: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("calls = %v", calls)
	}
}

func TestDispatcher_HandlerErrorIsLoggedNotPropagated(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	d := NewInMemoryDispatcher(zap.New(core))
	reached := false
	d.Subscribe(EventTicketClosed, func(context.Context, Event) error { return errors.New("boom") })
	d.Subscribe(EventTicketClosed, func(context.Context, Event) error {
		reached = true
		return nil
	})

	if err := d.Publish(context.Background(), Event{ID: "e1", Type: EventTicketClosed, TicketID: 3}); err != nil {
		t.Fatalf("publish returned %v", err)
	}
	if !reached {
		t.Fatalf("second handler not invoked")
	}
	if logs.FilterMessage("event handler failed").Len() != 1 {
		t.Fatalf("expected one warning, got %v", logs.All())
	}
}

func TestEventType_Action(t *testing.T) {
	if EventTicketCreated.Action() != domain.TicketActionCreated {
		t.Errorf("created action = %s", EventTicketCreated.Action())
	}
	if EventTicketClosed.Action() != domain.TicketActionClosed {
		t.Errorf("closed action = %s", EventTicketClosed.Action())
	}
}
