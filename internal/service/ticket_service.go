package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/transcript"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// TranscriptArchiver persists a rendered transcript and returns its key.
type TranscriptArchiver interface {
	Save(ctx context.Context, ticketID int, text string) (string, error)
}

// DeletionScheduler defers channel removal.
type DeletionScheduler interface {
	Schedule(channelID string, ticketID int, delay time.Duration) error
}

// TicketSettings carries the guild-level identifiers. Empty or stale values
// degrade the dependent step instead of failing the transition.
type TicketSettings struct {
	SupportRoleID   string
	CategoryID      string
	CloseDelay      time.Duration
	TranscriptLimit int
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Registry    repository.TicketRepository
	Allocator   *Allocator
	Platform    platform.Client
	Transcripts TranscriptArchiver
	Deletions   DeletionScheduler
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Settings    TicketSettings
	Clock       func() time.Time
}

// TicketService is the ticket lifecycle manager. It owns the registry and
// counter and drives the none -> open -> closing -> deleted transitions.
type TicketService struct {
	registry    repository.TicketRepository
	allocator   *Allocator
	platform    platform.Client
	transcripts TranscriptArchiver
	deletions   DeletionScheduler
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	settings    TicketSettings
	now         func() time.Time

	closingMu sync.Mutex
	closing   map[string]struct{}
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	settings := deps.Settings
	if settings.CloseDelay < 0 {
		settings.CloseDelay = 0
	}
	if settings.TranscriptLimit <= 0 || settings.TranscriptLimit > 100 {
		settings.TranscriptLimit = 100
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &TicketService{
		registry:    deps.Registry,
		allocator:   deps.Allocator,
		platform:    deps.Platform,
		transcripts: deps.Transcripts,
		deletions:   deps.Deletions,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      logger.Named("tickets"),
		settings:    settings,
		now:         now,
		closing:     make(map[string]struct{}),
	}
}

// CreateOutcome distinguishes a new ticket from a redirect to an open one.
type CreateOutcome int

const (
	CreateOutcomeCreated CreateOutcome = iota
	CreateOutcomeExisting
)

// CreateInput describes a ticket creation request.
type CreateInput struct {
	GuildID string
	Actor   domain.Actor
}

// CreateResult is the successful outcome of Create.
type CreateResult struct {
	Outcome    CreateOutcome
	Ticket     domain.Ticket
	ChannelRef string
}

// Create opens a ticket for the actor, or points at the one already open.
func (s *TicketService) Create(ctx context.Context, in CreateInput) (result CreateResult, err error) {
	defer s.recoverTransition("create", &err)

	owner := in.Actor
	if existing, ok := s.lookupOpenTicket(ctx, owner.ID); ok {
		return s.existingResult(existing), nil
	}

	if err := s.registry.Reserve(owner.ID); err != nil {
		switch {
		case errors.Is(err, repository.ErrOwnerHasTicket):
			if existing, ok := s.registry.FindByOwner(owner.ID); ok {
				return s.existingResult(existing), nil
			}
			return CreateResult{}, apperrors.NewCreateInProgress()
		case errors.Is(err, repository.ErrReservationPending):
			s.metrics.RecordCreateFailure("in_progress")
			return CreateResult{}, apperrors.NewCreateInProgress()
		default:
			return CreateResult{}, apperrors.NewInternalError(err)
		}
	}
	inserted := false
	defer func() {
		if !inserted {
			s.registry.Release(owner.ID)
		}
	}()

	id, err := s.allocator.Next(ctx)
	if err != nil {
		s.metrics.RecordCreateFailure("counter")
		return CreateResult{}, apperrors.NewCounterUnavailable(err)
	}
	name := domain.ChannelName(id)
	log := s.logger.With(zap.Int("ticket_id", id), zap.String("owner_id", owner.ID), zap.String("channel_name", name))
	log.Info("creating ticket", zap.String("owner", owner.DisplayName))

	parentID := ""
	if s.settings.CategoryID != "" && s.platform.CategoryExists(ctx, in.GuildID, s.settings.CategoryID) {
		parentID = s.settings.CategoryID
	} else {
		log.Warn("ticket category not found; creating uncategorized channel", zap.String("category_id", s.settings.CategoryID))
	}

	channel, err := s.platform.CreateChannel(ctx, platform.ChannelSpec{GuildID: in.GuildID, Name: name, ParentID: parentID})
	if err != nil {
		log.Error("error creating ticket channel", zap.Error(err))
		s.metrics.RecordCreateFailure("provisioning")
		return CreateResult{}, apperrors.NewProvisioningFailed(err)
	}
	log = log.With(zap.String("channel_id", channel.ID))

	s.bestEffort(log, "deny_everyone", func() error {
		return s.platform.DenyEveryone(ctx, in.GuildID, channel.ID)
	})
	s.bestEffort(log, "grant_owner", func() error {
		return s.platform.GrantMember(ctx, channel.ID, owner.ID)
	})
	roleValid := s.settings.SupportRoleID != "" && s.platform.RoleExists(ctx, in.GuildID, s.settings.SupportRoleID)
	if roleValid {
		s.bestEffort(log, "grant_support_role", func() error {
			return s.platform.GrantRole(ctx, in.GuildID, channel.ID, s.settings.SupportRoleID)
		})
	} else {
		log.Warn("support role not found or invalid", zap.String("role_id", s.settings.SupportRoleID))
	}

	ticket := domain.Ticket{
		ID:               id,
		OwnerID:          owner.ID,
		OwnerDisplayName: owner.DisplayName,
		ChannelID:        channel.ID,
		GuildID:          in.GuildID,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.registry.Insert(ticket); err != nil {
		log.Error("error tracking ticket", zap.Error(err))
		s.metrics.RecordCreateFailure("registry")
		return CreateResult{}, apperrors.NewInternalError(err)
	}
	inserted = true
	s.updateOpenGauge()

	s.sendWelcome(ctx, log, ticket)

	roleMention := ""
	if roleValid {
		roleMention = s.platform.MentionRole(s.settings.SupportRoleID)
	}
	s.bestEffort(log, "role_ping", func() error {
		_, err := s.platform.SendMessage(ctx, channel.ID, rolePing(roleMention))
		return err
	})

	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketCreated,
		TicketID:  ticket.ID,
		ChannelID: ticket.ChannelID,
		Actor:     events.Actor{ID: owner.ID, DisplayName: owner.DisplayName},
		Payload: events.TicketCreatedPayload{
			OwnerID:     owner.ID,
			ChannelName: name,
			Categorized: parentID != "",
		},
	})

	if s.metrics != nil {
		s.metrics.TicketsCreated.Inc()
	}
	log.Info("ticket created")
	return CreateResult{
		Outcome:    CreateOutcomeCreated,
		Ticket:     ticket,
		ChannelRef: s.platform.ChannelRef(channel.ID),
	}, nil
}

// lookupOpenTicket returns the owner's ticket if its channel still exists.
// A record is dropped only when the platform confirms the channel is gone;
// a failed lookup keeps it so a transient error never duplicates a ticket.
func (s *TicketService) lookupOpenTicket(ctx context.Context, ownerID string) (domain.Ticket, bool) {
	existing, ok := s.registry.FindByOwner(ownerID)
	if !ok {
		return domain.Ticket{}, false
	}
	exists, err := s.platform.ChannelExists(ctx, existing.ChannelID)
	if err != nil {
		s.logger.Warn("could not verify ticket channel; keeping existing ticket",
			zap.Int("ticket_id", existing.ID),
			zap.String("channel_id", existing.ChannelID),
			zap.Error(err))
		return existing, true
	}
	if exists {
		return existing, true
	}
	s.logger.Warn("dropping ticket whose channel no longer exists",
		zap.Int("ticket_id", existing.ID),
		zap.String("channel_id", existing.ChannelID))
	s.registry.Remove(existing.ChannelID)
	s.updateOpenGauge()
	return domain.Ticket{}, false
}

func (s *TicketService) existingResult(t domain.Ticket) CreateResult {
	return CreateResult{Outcome: CreateOutcomeExisting, Ticket: t, ChannelRef: s.platform.ChannelRef(t.ChannelID)}
}

func (s *TicketService) sendWelcome(ctx context.Context, log *zap.Logger, ticket domain.Ticket) {
	msg := welcomeMessage(ticket, s.platform.MentionUser(ticket.OwnerID))
	_, err := s.platform.SendMessage(ctx, ticket.ChannelID, msg)
	if err == nil {
		return
	}
	log.Warn("error sending welcome message; falling back to plain text", zap.Error(err))
	s.bestEffort(log, "welcome", func() error {
		_, err := s.platform.SendMessage(ctx, ticket.ChannelID, welcomeFallback(ticket))
		return err
	})
}

// CloseInput describes a close request.
type CloseInput struct {
	ChannelID string
	Actor     domain.Actor
}

// CloseResult is the successful outcome of Close.
type CloseResult struct {
	Ticket        domain.Ticket
	TranscriptKey string
	MessageCount  int
	DeletionDue   time.Time
}

// Close moves the ticket tracked for the channel to closing and schedules
// the channel's deletion. Only the owner or a support role holder may close.
func (s *TicketService) Close(ctx context.Context, in CloseInput) (result CloseResult, err error) {
	defer s.recoverTransition("close", &err)

	ticket, ok := s.registry.FindByChannel(in.ChannelID)
	if !ok {
		return CloseResult{}, apperrors.NewNotTicketChannel(in.ChannelID)
	}
	if !s.CanClose(ticket, in.Actor) {
		s.logger.Info("close denied",
			zap.Int("ticket_id", ticket.ID),
			zap.String("actor_id", in.Actor.ID))
		return CloseResult{}, apperrors.NewForbidden(apperrors.MsgForbiddenClose)
	}
	if !s.claimClose(in.ChannelID) {
		return CloseResult{}, apperrors.NewNotTicketChannel(in.ChannelID)
	}
	defer s.releaseClose(in.ChannelID)

	log := s.logger.With(zap.Int("ticket_id", ticket.ID), zap.String("channel_id", ticket.ChannelID))
	log.Info("closing ticket", zap.String("closed_by", in.Actor.DisplayName))
	result.Ticket = ticket

	msgs, err := s.platform.FetchMessages(ctx, ticket.ChannelID, s.settings.TranscriptLimit)
	if err != nil {
		log.Warn("error fetching messages; skipping transcript", zap.Error(err))
		s.metrics.RecordSideEffectFailure("transcript_fetch")
	} else {
		result.MessageCount = len(msgs)
		if s.transcripts != nil {
			key, err := s.transcripts.Save(ctx, ticket.ID, transcript.Render(msgs))
			if err != nil {
				log.Warn("error saving transcript", zap.Error(err))
				s.metrics.RecordSideEffectFailure("transcript_write")
			} else {
				result.TranscriptKey = key
			}
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketClosed,
		TicketID:  ticket.ID,
		ChannelID: ticket.ChannelID,
		Actor:     events.Actor{ID: in.Actor.ID, DisplayName: in.Actor.DisplayName},
		Payload: events.TicketClosedPayload{
			OwnerID:       ticket.OwnerID,
			TranscriptKey: result.TranscriptKey,
			MessageCount:  result.MessageCount,
		},
	})

	s.bestEffort(log, "closing_notice", func() error {
		_, err := s.platform.SendMessage(ctx, ticket.ChannelID, closingMessage(in.Actor.DisplayName, s.settings.CloseDelay))
		return err
	})

	s.registry.Remove(ticket.ChannelID)
	s.updateOpenGauge()

	result.DeletionDue = s.now().Add(s.settings.CloseDelay)
	if s.deletions != nil {
		s.bestEffort(log, "schedule_deletion", func() error {
			return s.deletions.Schedule(ticket.ChannelID, ticket.ID, s.settings.CloseDelay)
		})
	}

	if s.metrics != nil {
		s.metrics.TicketsClosed.Inc()
	}
	log.Info("ticket closed", zap.String("transcript", result.TranscriptKey))
	return result, nil
}

// CanClose reports whether actor may close ticket.
func (s *TicketService) CanClose(ticket domain.Ticket, actor domain.Actor) bool {
	return actor.ID == ticket.OwnerID || actor.HasRole(s.settings.SupportRoleID)
}

// IsTicketChannel reports whether the channel is tracked as an open ticket.
func (s *TicketService) IsTicketChannel(channelID string) bool {
	_, ok := s.registry.FindByChannel(channelID)
	return ok
}

// OpenTickets returns a snapshot of the registry ordered by id.
func (s *TicketService) OpenTickets() []domain.Ticket {
	return s.registry.List()
}

// NextTicketID reports the id the next created ticket will receive.
func (s *TicketService) NextTicketID() int {
	return s.allocator.Peek()
}

func (s *TicketService) claimClose(channelID string) bool {
	s.closingMu.Lock()
	defer s.closingMu.Unlock()
	if _, busy := s.closing[channelID]; busy {
		return false
	}
	s.closing[channelID] = struct{}{}
	return true
}

func (s *TicketService) releaseClose(channelID string) {
	s.closingMu.Lock()
	defer s.closingMu.Unlock()
	delete(s.closing, channelID)
}

// bestEffort runs one fallible side effect; a failure is logged and counted.
func (s *TicketService) bestEffort(log *zap.Logger, step string, fn func() error) {
	if err := fn(); err != nil {
		log.Warn("best-effort step failed", zap.String("step", step), zap.Error(err))
		s.metrics.RecordSideEffectFailure(step)
	}
}

func (s *TicketService) recoverTransition(name string, err *error) {
	if r := recover(); r != nil {
		s.logger.Error("unexpected error in ticket transition",
			zap.String("transition", name),
			zap.Any("panic", r),
			zap.Stack("stack"))
		*err = apperrors.NewInternalError(fmt.Errorf("%s: %v", name, r))
	}
}

func (s *TicketService) updateOpenGauge() {
	if s.metrics != nil {
		s.metrics.OpenTickets.Set(float64(s.registry.Count()))
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
