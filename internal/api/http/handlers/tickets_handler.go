package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/worker"
)

// TicketLister exposes the registry snapshot.
type TicketLister interface {
	OpenTickets() []domain.Ticket
	NextTicketID() int
}

// PendingLister exposes scheduled deletions.
type PendingLister interface {
	Pending() []worker.PendingDeletion
}

// TicketsHandler serves the read-only open-ticket snapshot.
type TicketsHandler struct {
	tickets   TicketLister
	deletions PendingLister
}

// NewTicketsHandler constructs handler. deletions may be nil.
func NewTicketsHandler(tickets TicketLister, deletions PendingLister) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, deletions: deletions}
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	open := h.tickets.OpenTickets()
	resp := dto.TicketsResponse{
		Open:             make([]dto.TicketSummary, 0, len(open)),
		OpenCount:        len(open),
		NextTicketID:     h.tickets.NextTicketID(),
		PendingDeletions: []dto.PendingDeletion{},
	}
	for _, t := range open {
		resp.Open = append(resp.Open, dto.NewTicketSummary(t))
	}
	if h.deletions != nil {
		for _, p := range h.deletions.Pending() {
			resp.PendingDeletions = append(resp.PendingDeletions, dto.NewPendingDeletion(p))
		}
	}
	return c.JSON(fiber.Map{"data": resp})
}
