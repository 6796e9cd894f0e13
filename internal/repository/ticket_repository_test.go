package repository

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

func TestRegistry_InsertFindRemove(t *testing.T) {
	reg := NewTicketRepository()
	ticket := domain.Ticket{ID: 1, OwnerID: "u1", ChannelID: "c1"}

	if err := reg.Insert(ticket); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got, ok := reg.FindByChannel("c1"); !ok || got.ID != 1 {
		t.Fatalf("FindByChannel = %+v, %v", got, ok)
	}
	if got, ok := reg.FindByOwner("u1"); !ok || got.ChannelID != "c1" {
		t.Fatalf("FindByOwner = %+v, %v", got, ok)
	}
	if _, ok := reg.FindByOwner("u2"); ok {
		t.Fatal("u2 should have no ticket")
	}

	removed, ok := reg.Remove("c1")
	if !ok || removed.ID != 1 {
		t.Fatalf("Remove = %+v, %v", removed, ok)
	}
	if _, ok := reg.Remove("c1"); ok {
		t.Fatal("second Remove should be a no-op")
	}
	if reg.Count() != 0 {
		t.Fatalf("Count = %d, want 0", reg.Count())
	}
}

func TestRegistry_DuplicateChannelRejected(t *testing.T) {
	reg := NewTicketRepository()
	if err := reg.Insert(domain.Ticket{ID: 1, OwnerID: "u1", ChannelID: "c1"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := reg.Insert(domain.Ticket{ID: 2, OwnerID: "u2", ChannelID: "c1"}); !errors.Is(err, ErrDuplicateChannel) {
		t.Fatalf("err = %v, want ErrDuplicateChannel", err)
	}
}

func TestRegistry_ListOrderedByID(t *testing.T) {
	reg := NewTicketRepository()
	for _, id := range []int{3, 1, 2} {
		if err := reg.Insert(domain.Ticket{ID: id, OwnerID: fmt.Sprintf("u%d", id), ChannelID: fmt.Sprintf("c%d", id)}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	list := reg.List()
	for i, ticket := range list {
		if ticket.ID != i+1 {
			t.Fatalf("List[%d].ID = %d, want %d", i, ticket.ID, i+1)
		}
	}
}

func TestRegistry_Reservations(t *testing.T) {
	reg := NewTicketRepository()

	if err := reg.Reserve("u1"); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := reg.Reserve("u1"); !errors.Is(err, ErrReservationPending) {
		t.Fatalf("second Reserve err = %v, want ErrReservationPending", err)
	}
	if err := reg.Reserve("u2"); err != nil {
		t.Fatalf("other owner should reserve independently: %v", err)
	}

	if err := reg.Insert(domain.Ticket{ID: 1, OwnerID: "u1", ChannelID: "c1"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := reg.Reserve("u1"); !errors.Is(err, ErrOwnerHasTicket) {
		t.Fatalf("Reserve after insert err = %v, want ErrOwnerHasTicket", err)
	}

	reg.Release("u2")
	if err := reg.Reserve("u2"); err != nil {
		t.Fatalf("Reserve after Release: %v", err)
	}
}

func TestRegistry_ConcurrentReserveSingleWinner(t *testing.T) {
	reg := NewTicketRepository()
	const attempts = 32

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := reg.Reserve("u1"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1", wins)
	}
}
