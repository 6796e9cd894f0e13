package domain

import (
	"fmt"
	"time"
)

// TicketState enumerates lifecycle states for tickets.
type TicketState string

const (
	// TicketStateNone is the absence of a record.
	TicketStateNone TicketState = "NONE"
	// TicketStateOpen holds while the registry tracks the ticket.
	TicketStateOpen TicketState = "OPEN"
	// TicketStateClosing: untracked, channel still exists, deletion scheduled.
	TicketStateClosing TicketState = "CLOSING"
	// TicketStateDeleted is terminal.
	TicketStateDeleted TicketState = "DELETED"
)

// TicketAction names an audited lifecycle event.
type TicketAction string

const (
	TicketActionCreated TicketAction = "created"
	TicketActionClosed  TicketAction = "closed"
)

// Ticket is one open support ticket. It is never mutated after creation;
// closing removes it from the registry.
type Ticket struct {
	ID               int
	OwnerID          string
	OwnerDisplayName string
	ChannelID        string
	GuildID          string
	CreatedAt        time.Time
}

// Number returns the zero-padded ticket number, e.g. "0007".
func (t Ticket) Number() string {
	return FormatTicketNumber(t.ID)
}

// FormatTicketNumber zero-pads id to four digits.
func FormatTicketNumber(id int) string {
	return fmt.Sprintf("%04d", id)
}

// ChannelName derives the provisioned channel name for a ticket id.
func ChannelName(id int) string {
	return "ticket-" + FormatTicketNumber(id)
}

// TranscriptKey names the archived transcript for a ticket id.
func TranscriptKey(id int) string {
	return fmt.Sprintf("ticket-%d.txt", id)
}

// TranscriptKeyAt is the fallback key used when TranscriptKey is already
// taken, e.g. after the id counter was reset. attempt > 1 disambiguates
// saves within the same second.
func TranscriptKeyAt(id int, at time.Time, attempt int) string {
	stamp := at.UTC().Format("20060102T150405Z")
	if attempt > 1 {
		return fmt.Sprintf("ticket-%d-%s-%d.txt", id, stamp, attempt)
	}
	return fmt.Sprintf("ticket-%d-%s.txt", id, stamp)
}
