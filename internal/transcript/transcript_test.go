package transcript

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/ticket-bot/internal/blob"
	"github.com/spec-kit/ticket-bot/internal/domain"
)

func msg(author, content string, at time.Time) domain.TicketMessage {
	return domain.TicketMessage{Author: author, Content: content, Timestamp: at}
}

func TestRender_ReversesToOldestFirst(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := msg("alice", "A", base)
	b := msg("bob", "B", base.Add(time.Minute))
	c := msg("carol", "C", base.Add(2*time.Minute))

	got := Render([]domain.TicketMessage{c, b, a})
	want := "[2024-03-01 12:00:00] alice: A\n[2024-03-01 12:01:00] bob: B\n[2024-03-01 12:02:00] carol: C"
	if got != want {
		t.Fatalf("Render() =\n%s\nwant\n%s", got, want)
	}
}

func TestRender_VerbatimContentAndUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	m := msg("dave", "line one\nline two", time.Date(2024, 3, 1, 14, 30, 5, 0, loc))
	got := Render([]domain.TicketMessage{m})
	want := "[2024-03-01 12:30:05] dave: line one\nline two"
	if got != want {
		t.Fatalf("Render() = %q, want %q", got, want)
	}
	if Render(nil) != "" {
		t.Errorf("Render(nil) should be empty")
	}
}

func TestArchiver_Save(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemoryStore()
	archiver := NewArchiver(store, zaptest.NewLogger(t))

	key, err := archiver.Save(ctx, 7, "hello")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if key != "ticket-7.txt" {
		t.Fatalf("key = %q, want ticket-7.txt", key)
	}
	info, rc, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "hello" {
		t.Errorf("body = %q", body)
	}
	if info.Metadata["ticket-id"] != "7" {
		t.Errorf("metadata = %v", info.Metadata)
	}

}

func TestArchiver_SaveReusedIDKeepsBothTranscripts(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemoryStore()
	archiver := NewArchiver(store, zaptest.NewLogger(t))
	archiver.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	first, err := archiver.Save(ctx, 7, "before reset")
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	second, err := archiver.Save(ctx, 7, "after reset")
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	third, err := archiver.Save(ctx, 7, "same second")
	if err != nil {
		t.Fatalf("third save: %v", err)
	}
	if first != "ticket-7.txt" || second != "ticket-7-20240301T120000Z.txt" || third != "ticket-7-20240301T120000Z-2.txt" {
		t.Fatalf("keys = %q, %q, %q", first, second, third)
	}

	for key, want := range map[string]string{first: "before reset", second: "after reset", third: "same second"} {
		_, rc, err := store.Get(ctx, key)
		if err != nil {
			t.Fatalf("get %s: %v", key, err)
		}
		body, _ := io.ReadAll(rc)
		rc.Close()
		if string(body) != want {
			t.Errorf("%s = %q, want %q", key, body, want)
		}
	}
}

type fullStore struct{ blob.Store }

func (fullStore) Put(context.Context, string, io.Reader, blob.PutOptions) (blob.Info, error) {
	return blob.Info{}, blob.ErrExists
}

func TestArchiver_SaveGivesUpAfterFallbacks(t *testing.T) {
	archiver := NewArchiver(fullStore{blob.NewMemoryStore()}, zaptest.NewLogger(t))
	if _, err := archiver.Save(context.Background(), 7, "x"); !errors.Is(err, blob.ErrExists) {
		t.Fatalf("err = %v, want ErrExists", err)
	}
}
