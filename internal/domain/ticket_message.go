package domain

import "time"

// TicketMessage is one historical message fetched from a ticket channel for
// transcript capture.
type TicketMessage struct {
	ID        string
	Author    string
	Content   string
	Timestamp time.Time
}
