package blob

import (
	"context"
	"fmt"

	"github.com/spec-kit/ticket-bot/internal/config"
)

// Open selects a Store implementation from the transcript configuration.
func Open(ctx context.Context, cfg config.TranscriptConfig) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverFilesystem, "":
		store, err := NewFSStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverS3:
		store, err := NewS3Store(ctx, S3Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
			Prefix:    cfg.S3Prefix,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported blob driver %s", cfg.Driver)
	}
}
