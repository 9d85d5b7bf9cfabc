// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"fmt"
	"time"
)

// Config selects and configures a Store backend.
type Config struct {
	Backend string // memory, redis, badger, sqlite
	Path    string
	Redis   RedisConfig
	TTL     time.Duration
}

// Open creates a Store based on the backend configuration.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "memory", "":
		return NewMemoryStore(cfg.TTL), nil
	case "redis":
		return NewRedisStore(ctx, cfg.Redis, cfg.TTL)
	case "badger":
		return OpenBadgerStore(cfg.Path, cfg.TTL)
	case "sqlite":
		return OpenSQLiteStore(ctx, cfg.Path, cfg.TTL)
	default:
		return nil, fmt.Errorf("unknown jobs backend: %s", cfg.Backend)
	}
}
