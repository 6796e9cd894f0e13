package dto

import (
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/worker"
)

// TicketSummary describes one open ticket.
type TicketSummary struct {
	ID          int       `json:"id"`
	Number      string    `json:"number"`
	OwnerID     string    `json:"owner_id"`
	OwnerName   string    `json:"owner_name"`
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	GuildID     string    `json:"guild_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PendingDeletion describes a channel awaiting removal.
type PendingDeletion struct {
	ChannelID string    `json:"channel_id"`
	TicketID  int       `json:"ticket_id"`
	DueAt     time.Time `json:"due_at"`
}

// TicketsResponse is the body of GET /tickets.
type TicketsResponse struct {
	Open             []TicketSummary   `json:"open"`
	OpenCount        int               `json:"open_count"`
	NextTicketID     int               `json:"next_ticket_id"`
	PendingDeletions []PendingDeletion `json:"pending_deletions"`
}

// NewTicketSummary converts a domain ticket.
func NewTicketSummary(t domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:          t.ID,
		Number:      t.Number(),
		OwnerID:     t.OwnerID,
		OwnerName:   t.OwnerDisplayName,
		ChannelID:   t.ChannelID,
		ChannelName: domain.ChannelName(t.ID),
		GuildID:     t.GuildID,
		CreatedAt:   t.CreatedAt,
	}
}

// NewPendingDeletion converts a scheduler entry.
func NewPendingDeletion(p worker.PendingDeletion) PendingDeletion {
	return PendingDeletion{ChannelID: p.ChannelID, TicketID: p.TicketID, DueAt: p.Due}
}
