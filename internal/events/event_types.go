package events

import (
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated EventType = "ticket.created"
	EventTicketClosed  EventType = "ticket.closed"
)

// Action maps the event onto the audit action it reports.
func (t EventType) Action() domain.TicketAction {
	if t == EventTicketClosed {
		return domain.TicketActionClosed
	}
	return domain.TicketActionCreated
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Event represents a lifecycle event emitted by the ticket manager.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int         `json:"ticket_id"`
	ChannelID string      `json:"channel_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	OwnerID     string `json:"owner_id"`
	ChannelName string `json:"channel_name"`
	Categorized bool   `json:"categorized"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	OwnerID       string `json:"owner_id"`
	TranscriptKey string `json:"transcript_key,omitempty"`
	MessageCount  int    `json:"message_count"`
}
