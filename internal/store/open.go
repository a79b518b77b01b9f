package store

import (
	"context"
	"fmt"

	"github.com/p-n-ai/pai-quiz/internal/platform/cache"
	"github.com/p-n-ai/pai-quiz/internal/platform/config"
	"github.com/p-n-ai/pai-quiz/internal/platform/database"
)

// Open builds the store selected by cfg.Store.Backend. db is required for
// the postgres backend and ignored otherwise. The returned close function
// releases connections the store opened itself.
func Open(ctx context.Context, cfg *config.Config, key string, db *database.DB) (SessionStore, func(), error) {
	noop := func() {}

	switch cfg.Store.Backend {
	case config.StoreMemory:
		return NewMemoryStore(key), noop, nil

	case config.StoreFile:
		s, err := NewFileStore(cfg.Store.Dir, key)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil

	case config.StoreRedis:
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return nil, noop, fmt.Errorf("connect cache: %w", err)
		}
		s, err := NewRedisStore(c.Client, key, cfg.Store.TTL())
		if err != nil {
			_ = c.Close()
			return nil, noop, err
		}
		return s, func() { _ = c.Close() }, nil

	case config.StorePostgres:
		if db == nil {
			return nil, noop, fmt.Errorf("postgres store requires a database connection")
		}
		s, err := NewPostgresStore(db.Pool, key)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	}

	return nil, noop, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
