package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

// NotificationDependencies bundles collaborators for the notifier.
type NotificationDependencies struct {
	Dispatcher   events.Dispatcher
	Platform     platform.Client
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	LogChannelID string
}

// NotificationService posts audit records of ticket lifecycle events to the
// configured log channel. Failures are logged and never reach the caller.
type NotificationService struct {
	dispatcher   events.Dispatcher
	platform     platform.Client
	metrics      *observability.Metrics
	logger       *zap.Logger
	logChannelID string
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher:   deps.Dispatcher,
		platform:     deps.Platform,
		metrics:      deps.Metrics,
		logger:       logger.Named("audit"),
		logChannelID: strings.TrimSpace(deps.LogChannelID),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketEvent)
	n.dispatcher.Subscribe(events.EventTicketClosed, n.handleTicketEvent)
}

func (n *NotificationService) handleTicketEvent(ctx context.Context, event events.Event) error {
	n.Notify(ctx, event.Type.Action(), event.TicketID, event.Actor.DisplayName)
	return nil
}

// Notify posts a single audit record. A missing log channel makes it a no-op.
func (n *NotificationService) Notify(ctx context.Context, action domain.TicketAction, ticketID int, actorName string) {
	log := n.logger.With(zap.String("action", string(action)), zap.Int("ticket_id", ticketID))
	if n.logChannelID == "" {
		log.Debug("no log channel configured; skipping audit record")
		return
	}
	if n.platform == nil {
		log.Warn("no platform client; skipping audit record")
		return
	}
	exists, err := n.platform.ChannelExists(ctx, n.logChannelID)
	if err != nil {
		// the send below reports a channel that is really gone
		log.Warn("could not verify log channel", zap.String("channel_id", n.logChannelID), zap.Error(err))
	} else if !exists {
		log.Warn("log channel not found; skipping audit record", zap.String("channel_id", n.logChannelID))
		return
	}
	if _, err := n.platform.SendMessage(ctx, n.logChannelID, auditMessage(action, ticketID, actorName)); err != nil {
		log.Warn("error sending audit record", zap.String("channel_id", n.logChannelID), zap.Error(err))
		n.metrics.RecordSideEffectFailure("audit")
		return
	}
	log.Debug("audit record sent")
}
