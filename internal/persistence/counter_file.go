package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"
)

type counterFile struct {
	Counter int `json:"counter"`
}

// FileCounterStore keeps the counter in a small JSON document, {"counter": n}.
type FileCounterStore struct {
	path   string
	logger *zap.Logger
}

// NewFileCounterStore returns a file-backed store at path.
func NewFileCounterStore(path string, logger *zap.Logger) *FileCounterStore {
	if path == "" {
		path = "ticketCounter.json"
	}
	return &FileCounterStore{path: path, logger: logger}
}

// Path returns the backing file location.
func (s *FileCounterStore) Path() string { return s.path }

func (s *FileCounterStore) Load(_ context.Context) int {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultCounter
	}
	if err != nil {
		s.logger.Warn("error loading ticket counter", zap.String("path", s.path), zap.Error(err))
		return DefaultCounter
	}
	var doc counterFile
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("malformed ticket counter file", zap.String("path", s.path), zap.Error(err))
		return DefaultCounter
	}
	return normalizeCounter(doc.Counter)
}

// Save replaces the file atomically so a crash never leaves a torn document.
func (s *FileCounterStore) Save(_ context.Context, value int) error {
	data, err := json.Marshal(counterFile{Counter: value})
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create counter dir: %w", err)
		}
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write counter file: %w", err)
	}
	return nil
}

func (s *FileCounterStore) Ping(_ context.Context) error {
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

func (s *FileCounterStore) Close() error { return nil }
