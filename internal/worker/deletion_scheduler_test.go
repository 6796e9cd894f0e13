package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/ticket-bot/internal/observability"
)

type fakeTimer struct {
	fn      func()
	delay   time.Duration
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{fn: f, delay: d}
	c.timers = append(c.timers, t)
	return t
}

// fireAll runs every timer that has not been stopped.
func (c *fakeClock) fireAll() {
	c.mu.Lock()
	timers := append([]*fakeTimer(nil), c.timers...)
	c.mu.Unlock()
	for _, t := range timers {
		if !t.stopped && !t.fired {
			t.fired = true
			t.fn()
		}
	}
}

type deleteRecorder struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (r *deleteRecorder) Delete(_ context.Context, channelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, channelID)
	return r.err
}

func (r *deleteRecorder) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.deleted...)
}

func newTestScheduler(t *testing.T, rec *deleteRecorder, tracked TrackedFunc) (*DeletionScheduler, *fakeClock) {
	t.Helper()
	clock := &fakeClock{}
	s := NewDeletionScheduler(rec.Delete, tracked, zaptest.NewLogger(t), observability.NewMetrics(), WithAfterFunc(clock.AfterFunc))
	return s, clock
}

func TestScheduler_DeletesAfterDelay(t *testing.T) {
	rec := &deleteRecorder{}
	s, clock := newTestScheduler(t, rec, nil)

	if err := s.Schedule("c1", 1, 5*time.Second); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(clock.timers) != 1 || clock.timers[0].delay != 5*time.Second {
		t.Fatalf("timers = %+v", clock.timers)
	}
	if got := s.Pending(); len(got) != 1 || got[0].ChannelID != "c1" || got[0].TicketID != 1 {
		t.Fatalf("pending = %+v", got)
	}
	if len(rec.calls()) != 0 {
		t.Fatalf("deleted before delay elapsed")
	}

	clock.fireAll()
	if got := rec.calls(); len(got) != 1 || got[0] != "c1" {
		t.Fatalf("deleted = %v, want [c1]", got)
	}
	if len(s.Pending()) != 0 {
		t.Fatalf("pending not cleared")
	}
}

func TestScheduler_Cancel(t *testing.T) {
	rec := &deleteRecorder{}
	s, clock := newTestScheduler(t, rec, nil)
	_ = s.Schedule("c1", 1, time.Second)

	if !s.Cancel("c1") {
		t.Fatalf("cancel reported nothing pending")
	}
	if s.Cancel("c1") {
		t.Fatalf("second cancel reported pending")
	}
	clock.fireAll()
	if len(rec.calls()) != 0 {
		t.Fatalf("cancelled deletion ran")
	}
}

func TestScheduler_SkipsTrackedChannel(t *testing.T) {
	rec := &deleteRecorder{}
	s, clock := newTestScheduler(t, rec, func(id string) bool { return id == "c1" })
	_ = s.Schedule("c1", 1, time.Second)
	clock.fireAll()
	if len(rec.calls()) != 0 {
		t.Fatalf("tracked channel was deleted")
	}
}

func TestScheduler_RescheduleReplacesPending(t *testing.T) {
	rec := &deleteRecorder{}
	s, clock := newTestScheduler(t, rec, nil)
	_ = s.Schedule("c1", 1, time.Second)
	_ = s.Schedule("c1", 1, 2*time.Second)

	if !clock.timers[0].stopped {
		t.Fatalf("first timer not stopped")
	}
	// a stale callback must not delete twice
	clock.timers[0].fn()
	clock.fireAll()
	if got := rec.calls(); len(got) != 1 {
		t.Fatalf("deleted = %v, want one call", got)
	}
}

func TestScheduler_FailureIsNotRetried(t *testing.T) {
	rec := &deleteRecorder{err: errors.New("missing permissions")}
	s, clock := newTestScheduler(t, rec, nil)
	_ = s.Schedule("c1", 1, time.Second)
	clock.fireAll()
	clock.fireAll()
	if got := rec.calls(); len(got) != 1 {
		t.Fatalf("delete attempts = %d, want 1", len(got))
	}
}

func TestScheduler_ShutdownRunsPending(t *testing.T) {
	rec := &deleteRecorder{}
	s, _ := newTestScheduler(t, rec, nil)
	_ = s.Schedule("c1", 1, time.Hour)
	_ = s.Schedule("c2", 2, time.Hour)

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if got := rec.calls(); len(got) != 2 {
		t.Fatalf("deleted = %v, want both channels", got)
	}
	if err := s.Schedule("c3", 3, time.Second); !errors.Is(err, ErrSchedulerClosed) {
		t.Fatalf("schedule after shutdown error = %v", err)
	}
}

func TestScheduler_RealTimer(t *testing.T) {
	done := make(chan string, 1)
	s := NewDeletionScheduler(func(_ context.Context, id string) error {
		done <- id
		return nil
	}, nil, zaptest.NewLogger(t), nil)

	_ = s.Schedule("c9", 9, 10*time.Millisecond)
	select {
	case id := <-done:
		if id != "c9" {
			t.Fatalf("deleted %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("deletion did not fire")
	}
}

func TestScheduler_TimerFiringDuringShutdownRunsOnce(t *testing.T) {
	rec := &deleteRecorder{}
	s, clock := newTestScheduler(t, rec, nil)
	_ = s.Schedule("c1", 1, time.Second)

	// the timer has expired but its callback has not taken the lock yet
	timer := clock.timers[0]
	timer.fired = true

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	timer.fn()

	if got := rec.calls(); len(got) != 1 || got[0] != "c1" {
		t.Fatalf("deleted = %v, want [c1] once", got)
	}
	if len(s.Pending()) != 0 {
		t.Fatalf("pending not cleared")
	}
}

func TestScheduler_ShutdownDeadlineSkipsRemaining(t *testing.T) {
	rec := &deleteRecorder{}
	s, _ := newTestScheduler(t, rec, nil)
	_ = s.Schedule("c1", 1, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("shutdown error = %v", err)
	}
	if len(rec.calls()) != 0 {
		t.Fatalf("deletion ran after deadline")
	}
}
