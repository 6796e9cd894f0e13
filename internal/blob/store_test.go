package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spec-kit/ticket-bot/internal/config"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	info, err := store.Put(ctx, "ticket-7.txt", strings.NewReader("hello\nworld"), PutOptions{
		ContentType: "text/plain",
		Metadata:    map[string]string{"ticket-id": "7"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "ticket-7.txt" || info.Size != int64(len("hello\nworld")) {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "ticket-7.txt", strings.NewReader("again"), PutOptions{}); !errors.Is(err, ErrExists) {
		t.Fatalf("duplicate put error = %v, want ErrExists", err)
	}

	head, err := store.Head(ctx, "ticket-7.txt")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.ContentType != "text/plain" {
		t.Errorf("content type = %q, want text/plain", head.ContentType)
	}

	_, rc, err := store.Get(ctx, "ticket-7.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "hello\nworld" {
		t.Errorf("get = %q, want %q", data, "hello\nworld")
	}

	if _, err := store.Put(ctx, "ticket-8.txt", strings.NewReader("x"), PutOptions{}); err != nil {
		t.Fatalf("put second: %v", err)
	}
	list, err := store.List(ctx, "ticket-")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "ticket-7.txt" || list[1].Key != "ticket-8.txt" {
		t.Fatalf("list = %+v", list)
	}

	if ok, err := store.Delete(ctx, "ticket-8.txt"); err != nil || !ok {
		t.Fatalf("delete = %v, %v", ok, err)
	}
	if _, err := store.Head(ctx, "ticket-8.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("head after delete error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	if store.Driver() != DriverMemory {
		t.Fatalf("driver = %s", store.Driver())
	}
	exerciseStore(t, store)
	if ok, _ := store.Delete(context.Background(), "missing"); ok {
		t.Errorf("delete of missing key reported true")
	}
}

func TestFSStore(t *testing.T) {
	root := filepath.Join(t.TempDir(), "transcripts")
	store, err := NewFSStore(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := os.Stat(root); err != nil {
		t.Fatalf("root not created: %v", err)
	}
	exerciseStore(t, store)

	raw, err := os.ReadFile(filepath.Join(root, "ticket-7.txt"))
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}
	if string(raw) != "hello\nworld" {
		t.Errorf("raw file = %q", raw)
	}
}

func TestFSStore_RejectsTraversal(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, key := range []string{"", "../escape.txt", "/etc/passwd"} {
		if _, err := store.Put(context.Background(), key, bytes.NewReader(nil), PutOptions{}); err == nil {
			t.Errorf("put %q: expected error", key)
		}
	}
}

func TestS3Store_Mocked(t *testing.T) {
	store := newMockS3Store(t, "archive/")
	if store.Driver() != DriverS3 {
		t.Fatalf("driver = %s", store.Driver())
	}
	exerciseStore(t, store)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, config.TranscriptConfig{Driver: "fs", Dir: t.TempDir()})
	if err != nil || store.Driver() != DriverFilesystem {
		t.Fatalf("fs open = %v, %v", store, err)
	}
	store, err = Open(ctx, config.TranscriptConfig{Driver: "memory"})
	if err != nil || store.Driver() != DriverMemory {
		t.Fatalf("memory open = %v, %v", store, err)
	}
	if _, err := Open(ctx, config.TranscriptConfig{Driver: "s3"}); err == nil {
		t.Fatalf("expected error for s3 without bucket")
	}
	if _, err := Open(ctx, config.TranscriptConfig{Driver: "gcs"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
