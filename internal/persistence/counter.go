package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
)

// DefaultCounter is the first ticket number handed out on a fresh store.
const DefaultCounter = 1

// CounterStore persists the next ticket number across restarts.
//
// Load never fails: a missing, unreadable or malformed store yields
// DefaultCounter. Save overwrites the persisted value.
type CounterStore interface {
	Load(ctx context.Context) int
	Save(ctx context.Context, value int) error
	Ping(ctx context.Context) error
	Close() error
}

// Connections carries the shared clients a counter backend may reuse.
type Connections struct {
	Postgres *Postgres
	Redis    *Redis
}

// OpenCounterStore selects a CounterStore implementation from configuration.
func OpenCounterStore(ctx context.Context, cfg config.CounterConfig, conns Connections, logger *zap.Logger) (CounterStore, error) {
	logger = logger.Named("counter")
	switch cfg.Driver {
	case config.CounterDriverFile, "":
		return NewFileCounterStore(cfg.FilePath, logger), nil
	case config.CounterDriverRedis:
		if conns.Redis == nil {
			return nil, fmt.Errorf("redis counter driver requires a redis connection")
		}
		return NewRedisCounterStore(conns.Redis, cfg.Key, logger), nil
	case config.CounterDriverSQLite:
		store, err := NewSQLiteCounterStore(ctx, cfg.SQLitePath, cfg.Key, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.CounterDriverPostgres:
		if conns.Postgres.PoolHandle() == nil {
			return nil, fmt.Errorf("postgres counter driver requires a postgres connection")
		}
		return NewPostgresCounterStore(conns.Postgres, cfg.Key, logger), nil
	default:
		return nil, fmt.Errorf("unknown counter driver %s", cfg.Driver)
	}
}

func normalizeCounter(value int) int {
	if value < DefaultCounter {
		return DefaultCounter
	}
	return value
}
