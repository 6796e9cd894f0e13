package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLiteCounterStore keeps the counter as one row in a local SQLite file.
type SQLiteCounterStore struct {
	db     *sql.DB
	name   string
	logger *zap.Logger
}

// NewSQLiteCounterStore opens (or creates) the database at path.
func NewSQLiteCounterStore(ctx context.Context, path, name string, logger *zap.Logger) (*SQLiteCounterStore, error) {
	if path == "" {
		path = "ticketbot.db"
	}
	if name == "" {
		name = "ticket_counter"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS ticket_counter (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create counter table: %w", err)
	}
	return &SQLiteCounterStore{db: db, name: name, logger: logger}, nil
}

func (s *SQLiteCounterStore) Load(ctx context.Context) int {
	var value int
	err := s.db.QueryRowContext(ctx, `SELECT value FROM ticket_counter WHERE name = ?`, s.name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultCounter
	}
	if err != nil {
		s.logger.Warn("error loading ticket counter", zap.String("name", s.name), zap.Error(err))
		return DefaultCounter
	}
	return normalizeCounter(value)
}

func (s *SQLiteCounterStore) Save(ctx context.Context, value int) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO ticket_counter(name, value) VALUES(?, ?) ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		s.name, value,
	); err != nil {
		return fmt.Errorf("upsert counter: %w", err)
	}
	return nil
}

func (s *SQLiteCounterStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteCounterStore) Close() error {
	return s.db.Close()
}
