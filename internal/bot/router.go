// Package bot classifies inbound chat events and routes them to the ticket
// lifecycle manager.
package bot

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// Recognized text commands.
const (
	CommandSetup = "setup-tickets"
	CommandClose = "close"
)

const closeStartedReply = "Closing this ticket."

// Tickets is the lifecycle surface the router drives.
type Tickets interface {
	Create(ctx context.Context, in service.CreateInput) (service.CreateResult, error)
	Close(ctx context.Context, in service.CloseInput) (service.CloseResult, error)
}

// Router implements platform.Handler.
type Router struct {
	prefix  string
	tickets Tickets
	client  platform.Client
	logger  *zap.Logger
}

var _ platform.Handler = (*Router)(nil)

// NewRouter builds a router for commands introduced by prefix.
func NewRouter(prefix string, tickets Tickets, client platform.Client, logger *zap.Logger) *Router {
	if prefix == "" {
		prefix = "!"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{prefix: prefix, tickets: tickets, client: client, logger: logger.Named("router")}
}

// ParseCommand returns the lower-cased command name and its arguments, or
// ok=false when content does not start with prefix.
func ParseCommand(prefix, content string) (name string, args []string, ok bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimSpace(content[len(prefix):]))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// HandleMessage dispatches prefixed text commands. Bot authors are ignored.
func (r *Router) HandleMessage(ctx context.Context, ev platform.MessageEvent) {
	if ev.Author.IsBot {
		return
	}
	name, _, ok := ParseCommand(r.prefix, ev.Content)
	if !ok {
		return
	}
	log := r.logger.With(
		zap.String("command", name),
		zap.String("channel_id", ev.ChannelID),
		zap.String("author_id", ev.Author.ID))

	switch name {
	case CommandSetup:
		r.setupTickets(ctx, log, ev)
	case CommandClose:
		_, err := r.tickets.Close(ctx, service.CloseInput{ChannelID: ev.ChannelID, Actor: ev.Author})
		if err != nil {
			r.replyError(ctx, log, ev.ChannelID, err)
		}
	default:
		log.Debug("ignoring unknown command")
	}
}

func (r *Router) setupTickets(ctx context.Context, log *zap.Logger, ev platform.MessageEvent) {
	if !ev.Author.IsAdmin {
		log.Debug("setup requested by non-administrator")
		return
	}
	if _, err := r.client.SendMessage(ctx, ev.ChannelID, setupPanel()); err != nil {
		log.Error("error setting up ticket panel", zap.Error(err))
		r.replyError(ctx, log, ev.ChannelID, apperrors.NewSetupFailed(err))
		return
	}
	if err := r.client.DeleteMessage(ctx, ev.ChannelID, ev.MessageID); err != nil {
		log.Warn("error deleting setup command message", zap.Error(err))
	}
	log.Info("ticket panel posted")
}

func (r *Router) replyError(ctx context.Context, log *zap.Logger, channelID string, err error) {
	logFailure(log, err)
	if _, sendErr := r.client.SendMessage(ctx, channelID, platform.Message{Content: apperrors.UserMessage(err)}); sendErr != nil {
		log.Warn("error sending reply", zap.Error(sendErr))
	}
}

// HandleButton dispatches the create and close buttons.
func (r *Router) HandleButton(ctx context.Context, ev platform.ButtonEvent) {
	log := r.logger.With(
		zap.String("button", ev.CustomID),
		zap.String("channel_id", ev.ChannelID),
		zap.String("actor_id", ev.Actor.ID))

	switch ev.CustomID {
	case platform.ButtonCreateTicket:
		r.createFromButton(ctx, log, ev)
	case platform.ButtonCloseTicket:
		r.closeFromButton(ctx, log, ev)
	default:
		log.Debug("ignoring unknown button")
	}
}

func (r *Router) createFromButton(ctx context.Context, log *zap.Logger, ev platform.ButtonEvent) {
	if err := ev.Responder.Defer(ctx, true); err != nil {
		log.Warn("error deferring interaction", zap.Error(err))
	}
	res, err := r.tickets.Create(ctx, service.CreateInput{GuildID: ev.GuildID, Actor: ev.Actor})

	var reply string
	switch {
	case err != nil:
		logFailure(log, err)
		reply = apperrors.UserMessage(err)
	case res.Outcome == service.CreateOutcomeExisting:
		reply = fmt.Sprintf("You already have an open ticket at %s", res.ChannelRef)
	default:
		reply = fmt.Sprintf("Your ticket has been created: %s", res.ChannelRef)
	}
	if err := ev.Responder.Reply(ctx, reply, true); err != nil {
		log.Warn("error replying to interaction", zap.Error(err))
	}
}

// closeFromButton defers first: the transcript fetch and upload can take
// longer than the platform's interaction deadline.
func (r *Router) closeFromButton(ctx context.Context, log *zap.Logger, ev platform.ButtonEvent) {
	if err := ev.Responder.Defer(ctx, true); err != nil {
		log.Warn("error deferring interaction", zap.Error(err))
	}
	reply := closeStartedReply
	if _, err := r.tickets.Close(ctx, service.CloseInput{ChannelID: ev.ChannelID, Actor: ev.Actor}); err != nil {
		logFailure(log, err)
		reply = apperrors.UserMessage(err)
	}
	if err := ev.Responder.Reply(ctx, reply, true); err != nil {
		log.Warn("error replying to interaction", zap.Error(err))
	}
}

// logFailure logs expected refusals at debug and everything else at error.
func logFailure(log *zap.Logger, err error) {
	de := apperrors.ToDomainError(err)
	switch de.Code {
	case apperrors.CodeNotTicketChannel, apperrors.CodeForbidden, apperrors.CodeCreateInProgress:
		log.Debug("request refused", zap.String("code", de.Code))
	default:
		log.Error("request failed", zap.String("code", de.Code), zap.Error(err))
	}
}

func setupPanel() platform.Message {
	return platform.Message{
		Embed: &platform.Embed{
			Title:       "Support Tickets",
			Description: "Need help? Click the button below to create a support ticket.",
			Color:       service.ColorInfo,
		},
		Buttons: []platform.Button{{
			CustomID: platform.ButtonCreateTicket,
			Label:    "Create Ticket",
			Emoji:    "🎫",
			Style:    platform.ButtonPrimary,
		}},
	}
}
