package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/persistence"
)

// Allocator hands out ticket ids. The counter is loaded once; every id is
// persisted before it is returned so numbering never repeats across
// restarts. A failed save still consumes the id.
type Allocator struct {
	mu     sync.Mutex
	store  persistence.CounterStore
	next   int
	logger *zap.Logger
}

// NewAllocator loads the persisted counter.
func NewAllocator(ctx context.Context, store persistence.CounterStore, logger *zap.Logger) *Allocator {
	next := store.Load(ctx)
	logger.Info("ticket counter loaded", zap.Int("next_ticket_id", next))
	return &Allocator{store: store, next: next, logger: logger}
}

// Next reserves the next id and persists the advanced counter.
func (a *Allocator) Next(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next++
	if err := a.store.Save(ctx, a.next); err != nil {
		a.logger.Error("error saving ticket counter", zap.Int("ticket_id", id), zap.Error(err))
		return 0, err
	}
	return id, nil
}

// Peek returns the id the next call to Next will hand out.
func (a *Allocator) Peek() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next
}
