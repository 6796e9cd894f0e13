package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/observability"
)

// ErrSchedulerClosed is returned by Schedule after Shutdown.
var ErrSchedulerClosed = errors.New("deletion scheduler is shut down")

// DeleteFunc removes a channel from the chat platform.
type DeleteFunc func(ctx context.Context, channelID string) error

// TrackedFunc reports whether a channel is currently an open ticket.
type TrackedFunc func(channelID string) bool

// Timer is the subset of *time.Timer the scheduler needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it via adapter.
type AfterFunc func(d time.Duration, f func()) Timer

// PendingDeletion describes a scheduled channel removal.
type PendingDeletion struct {
	ChannelID string    `json:"channel_id"`
	TicketID  int       `json:"ticket_id"`
	Due       time.Time `json:"due"`
}

type pendingEntry struct {
	PendingDeletion
	timer Timer
	seq   uint64
}

// DeletionScheduler runs deferred, cancellable channel deletions keyed by
// channel id. A deletion that fires for a channel which is tracked again is
// skipped. Failures are logged and not retried.
type DeletionScheduler struct {
	mu      sync.Mutex
	pending map[string]*pendingEntry
	seq     uint64
	closed  bool
	running sync.WaitGroup

	deleteFn  DeleteFunc
	tracked   TrackedFunc
	afterFunc AfterFunc
	timeout   time.Duration
	now       func() time.Time
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// Option customises a DeletionScheduler.
type Option func(*DeletionScheduler)

// WithAfterFunc replaces the timer source.
func WithAfterFunc(fn AfterFunc) Option {
	return func(s *DeletionScheduler) { s.afterFunc = fn }
}

// WithClock replaces the clock used for due timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *DeletionScheduler) { s.now = now }
}

// WithDeleteTimeout bounds a single platform delete call.
func WithDeleteTimeout(d time.Duration) Option {
	return func(s *DeletionScheduler) { s.timeout = d }
}

// NewDeletionScheduler creates a scheduler. tracked may be nil.
func NewDeletionScheduler(deleteFn DeleteFunc, tracked TrackedFunc, logger *zap.Logger, metrics *observability.Metrics, opts ...Option) *DeletionScheduler {
	s := &DeletionScheduler{
		pending:  make(map[string]*pendingEntry),
		deleteFn: deleteFn,
		tracked:  tracked,
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
		timeout: 30 * time.Second,
		now:     time.Now,
		logger:  logger.Named("deletion"),
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule arranges for channelID to be deleted after delay. A deletion
// already pending for the channel is replaced.
func (s *DeletionScheduler) Schedule(channelID string, ticketID int, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSchedulerClosed
	}
	if prev, ok := s.pending[channelID]; ok {
		prev.timer.Stop()
	}
	s.seq++
	seq := s.seq
	entry := &pendingEntry{
		PendingDeletion: PendingDeletion{ChannelID: channelID, TicketID: ticketID, Due: s.now().Add(delay)},
		seq:             seq,
	}
	s.pending[channelID] = entry
	entry.timer = s.afterFunc(delay, func() { s.fire(channelID, seq) })
	s.updateGauge()

	s.logger.Info("channel deletion scheduled",
		zap.String("channel_id", channelID),
		zap.Int("ticket_id", ticketID),
		zap.Duration("delay", delay))
	return nil
}

// Cancel drops a pending deletion. It reports whether one was pending.
func (s *DeletionScheduler) Cancel(channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.pending[channelID]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(s.pending, channelID)
	s.updateGauge()
	s.logger.Info("channel deletion cancelled", zap.String("channel_id", channelID))
	return true
}

// Pending returns the scheduled deletions ordered by due time.
func (s *DeletionScheduler) Pending() []PendingDeletion {
	s.mu.Lock()
	out := make([]PendingDeletion, 0, len(s.pending))
	for _, entry := range s.pending {
		out = append(out, entry.PendingDeletion)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Due.Equal(out[j].Due) {
			return out[i].ChannelID < out[j].ChannelID
		}
		return out[i].Due.Before(out[j].Due)
	})
	return out
}

// Shutdown stops accepting work and runs every pending deletion now. It
// waits for in-flight deletions until ctx is done.
func (s *DeletionScheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	due := make([]*pendingEntry, 0, len(s.pending))
	for channelID, entry := range s.pending {
		// a timer that already fired finds its entry gone and returns
		entry.timer.Stop()
		due = append(due, entry)
		delete(s.pending, channelID)
	}
	s.updateGauge()
	s.running.Add(len(due))
	s.mu.Unlock()

	for _, entry := range due {
		if ctx.Err() != nil {
			s.logger.Warn("shutdown deadline reached; deletion skipped",
				zap.String("channel_id", entry.ChannelID), zap.Int("ticket_id", entry.TicketID))
			s.running.Done()
			continue
		}
		s.run(entry)
	}

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *DeletionScheduler) fire(channelID string, seq uint64) {
	s.mu.Lock()
	entry, ok := s.pending[channelID]
	if s.closed || !ok || entry.seq != seq {
		s.mu.Unlock()
		return
	}
	delete(s.pending, channelID)
	s.updateGauge()
	s.running.Add(1)
	s.mu.Unlock()
	s.run(entry)
}

// run performs one claimed deletion. The caller has already added it to
// s.running.
func (s *DeletionScheduler) run(entry *pendingEntry) {
	defer s.running.Done()

	channelID := entry.ChannelID
	log := s.logger.With(zap.String("channel_id", channelID), zap.Int("ticket_id", entry.TicketID))

	if s.tracked != nil && s.tracked(channelID) {
		log.Warn("channel is tracked again; skipping deletion")
		s.recordOutcome("skipped")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.deleteFn(ctx, channelID); err != nil {
		log.Error("channel deletion failed; channel left orphaned", zap.Error(err))
		s.recordOutcome("failed")
		return
	}
	log.Info("ticket channel deleted")
	s.recordOutcome("deleted")
}

// updateGauge must be called with s.mu held.
func (s *DeletionScheduler) updateGauge() {
	if s.metrics != nil {
		s.metrics.PendingDeletions.Set(float64(len(s.pending)))
	}
}

func (s *DeletionScheduler) recordOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.ChannelsDeleted.WithLabelValues(outcome).Inc()
	}
}
