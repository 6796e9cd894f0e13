package repository

import (
	"errors"
	"sort"
	"sync"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

var (
	// ErrDuplicateChannel is returned when a channel is already tracked.
	ErrDuplicateChannel = errors.New("channel already tracked as a ticket")
	// ErrOwnerHasTicket is returned by Reserve when the owner already has an open ticket.
	ErrOwnerHasTicket = errors.New("owner already has an open ticket")
	// ErrReservationPending is returned by Reserve while another create for the owner is in flight.
	ErrReservationPending = errors.New("ticket creation already in progress for owner")
)

// TicketRepository is the registry of open tickets keyed by channel id.
type TicketRepository interface {
	FindByChannel(channelID string) (domain.Ticket, bool)
	FindByOwner(ownerID string) (domain.Ticket, bool)
	Insert(ticket domain.Ticket) error
	Remove(channelID string) (domain.Ticket, bool)
	List() []domain.Ticket
	Count() int

	// Reserve claims the single create slot for ownerID. It fails if the
	// owner has an open ticket or another reservation in flight.
	Reserve(ownerID string) error
	// Release drops a reservation that did not turn into a ticket.
	Release(ownerID string)
}

type ticketRegistry struct {
	mu           sync.RWMutex
	byChannel    map[string]domain.Ticket
	reservations map[string]struct{}
}

// NewTicketRepository returns an empty in-memory registry.
func NewTicketRepository() TicketRepository {
	return &ticketRegistry{
		byChannel:    make(map[string]domain.Ticket),
		reservations: make(map[string]struct{}),
	}
}

func (r *ticketRegistry) FindByChannel(channelID string) (domain.Ticket, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ticket, ok := r.byChannel[channelID]
	return ticket, ok
}

func (r *ticketRegistry) FindByOwner(ownerID string) (domain.Ticket, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findByOwnerLocked(ownerID)
}

func (r *ticketRegistry) findByOwnerLocked(ownerID string) (domain.Ticket, bool) {
	for _, ticket := range r.byChannel {
		if ticket.OwnerID == ownerID {
			return ticket, true
		}
	}
	return domain.Ticket{}, false
}

// Insert adds a ticket and converts the owner's reservation, if any.
func (r *ticketRegistry) Insert(ticket domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byChannel[ticket.ChannelID]; exists {
		return ErrDuplicateChannel
	}
	r.byChannel[ticket.ChannelID] = ticket
	delete(r.reservations, ticket.OwnerID)
	return nil
}

// Remove deletes the entry for channelID; a no-op when absent.
func (r *ticketRegistry) Remove(channelID string) (domain.Ticket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.byChannel[channelID]
	if ok {
		delete(r.byChannel, channelID)
	}
	return ticket, ok
}

// List returns a snapshot ordered by ticket id.
func (r *ticketRegistry) List() []domain.Ticket {
	r.mu.RLock()
	result := make([]domain.Ticket, 0, len(r.byChannel))
	for _, ticket := range r.byChannel {
		result = append(result, ticket)
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (r *ticketRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byChannel)
}

func (r *ticketRegistry) Reserve(ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.findByOwnerLocked(ownerID); ok {
		return ErrOwnerHasTicket
	}
	if _, pending := r.reservations[ownerID]; pending {
		return ErrReservationPending
	}
	r.reservations[ownerID] = struct{}{}
	return nil
}

func (r *ticketRegistry) Release(ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reservations, ownerID)
}
