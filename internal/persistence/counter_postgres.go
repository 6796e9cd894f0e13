package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// PostgresCounterStore keeps the counter as one row of ticket_counter.
// The table is created by RunMigrations.
type PostgresCounterStore struct {
	pg     *Postgres
	name   string
	logger *zap.Logger
}

// NewPostgresCounterStore returns a store bound to row name.
func NewPostgresCounterStore(pg *Postgres, name string, logger *zap.Logger) *PostgresCounterStore {
	if name == "" {
		name = "ticket_counter"
	}
	return &PostgresCounterStore{pg: pg, name: name, logger: logger}
}

func (s *PostgresCounterStore) Load(ctx context.Context) int {
	const query = `SELECT value FROM ticket_counter WHERE name=$1`
	var value int
	err := s.pg.PoolHandle().QueryRow(ctx, query, s.name).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultCounter
	}
	if err != nil {
		s.logger.Warn("error loading ticket counter", zap.String("name", s.name), zap.Error(err))
		return DefaultCounter
	}
	return normalizeCounter(value)
}

func (s *PostgresCounterStore) Save(ctx context.Context, value int) error {
	const query = `
        INSERT INTO ticket_counter (name, value) VALUES ($1, $2)
        ON CONFLICT (name) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`
	_, err := s.pg.PoolHandle().Exec(ctx, query, s.name, value)
	return err
}

func (s *PostgresCounterStore) Ping(ctx context.Context) error {
	return s.pg.Ping(ctx)
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresCounterStore) Close() error { return nil }
