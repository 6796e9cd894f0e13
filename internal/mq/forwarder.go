package mq

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/events"
)

// Forwarder relays dispatcher events to a Publisher, routed by event type.
type Forwarder struct {
	publisher Publisher
	logger    *zap.Logger
}

// NewForwarder creates a forwarder.
func NewForwarder(publisher Publisher, logger *zap.Logger) *Forwarder {
	return &Forwarder{publisher: publisher, logger: logger.Named("mq")}
}

// RegisterHandlers subscribes to every lifecycle event.
func (f *Forwarder) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil || f.publisher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketCreated, f.forward)
	dispatcher.Subscribe(events.EventTicketClosed, f.forward)
}

func (f *Forwarder) forward(ctx context.Context, event events.Event) error {
	if err := f.publisher.Publish(ctx, string(event.Type), event); err != nil {
		return err
	}
	f.logger.Debug("event forwarded",
		zap.String("event_id", event.ID),
		zap.String("routing_key", string(event.Type)),
		zap.Int("ticket_id", event.TicketID))
	return nil
}
