// Package transcript renders and archives ticket channel history.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/blob"
	"github.com/spec-kit/ticket-bot/internal/domain"
)

// TimestampLayout is the per-line timestamp format, always in UTC.
const TimestampLayout = "2006-01-02 15:04:05"

// Render turns messages fetched newest-first into oldest-first
// `[timestamp] author: content` lines. Content is written verbatim.
func Render(newestFirst []domain.TicketMessage) string {
	lines := make([]string, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		lines = append(lines, FormatLine(newestFirst[i]))
	}
	return strings.Join(lines, "\n")
}

// FormatLine renders a single message.
func FormatLine(m domain.TicketMessage) string {
	return fmt.Sprintf("[%s] %s: %s", m.Timestamp.UTC().Format(TimestampLayout), m.Author, m.Content)
}

// maxKeyAttempts bounds the timestamped fallback keys tried after a
// collision on ticket-<id>.txt.
const maxKeyAttempts = 5

// Archiver persists rendered transcripts as write-once blobs.
type Archiver struct {
	store  blob.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewArchiver binds an archiver to a blob store.
func NewArchiver(store blob.Store, logger *zap.Logger) *Archiver {
	return &Archiver{store: store, logger: logger.Named("transcript"), now: time.Now}
}

// Save writes text under ticket-<id>.txt and returns the stored key. An
// existing transcript is never overwritten: a taken key falls back to a
// timestamped one.
func (a *Archiver) Save(ctx context.Context, ticketID int, text string) (string, error) {
	opts := blob.PutOptions{
		ContentType: "text/plain; charset=utf-8",
		Metadata:    map[string]string{"ticket-id": strconv.Itoa(ticketID)},
	}
	key := domain.TranscriptKey(ticketID)
	info, err := a.store.Put(ctx, key, strings.NewReader(text), opts)
	for attempt := 1; errors.Is(err, blob.ErrExists) && attempt <= maxKeyAttempts; attempt++ {
		taken := key
		key = domain.TranscriptKeyAt(ticketID, a.now(), attempt)
		a.logger.Warn("transcript key taken; using fallback",
			zap.Int("ticket_id", ticketID), zap.String("taken", taken), zap.String("key", key))
		info, err = a.store.Put(ctx, key, strings.NewReader(text), opts)
	}
	if err != nil {
		return "", fmt.Errorf("store transcript %s: %w", key, err)
	}
	a.logger.Info("transcript saved",
		zap.Int("ticket_id", ticketID),
		zap.String("key", info.Key),
		zap.Int64("size", info.Size),
		zap.String("driver", string(a.store.Driver())),
	)
	return info.Key, nil
}
