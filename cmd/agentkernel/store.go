package main

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentkernel/config"
	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/memory"
	"github.com/hupe1980/agentkernel/memory/natskv"
	"github.com/hupe1980/agentkernel/memory/postgres"
	"github.com/hupe1980/agentkernel/memory/sqlite"
)

// openStore builds the configured backend, optionally wrapped in a read
// cache. The returned func releases everything that was opened.
func openStore(ctx context.Context, cfg *config.Config) (core.MemoryStore, func(), error) {
	var (
		store   core.MemoryStore
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Memory.Backend {
	case config.BackendMemory:
		store = memory.NewInMemoryStore()
	case config.BackendSharded:
		store = memory.NewShardedStore(cfg.Memory.Shards)
	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.Memory.Path)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = s.Close() })
		store = s
	case config.BackendPostgres:
		s, err := postgres.Connect(ctx, cfg.Memory.DSN, func(o *postgres.Options) {
			o.Table = cfg.Memory.Table
		})
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, s.Close)
		store = s
	case config.BackendNATSKV:
		s, err := natskv.Connect(ctx, cfg.NATS.URL, cfg.Memory.Bucket)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, s.Close)
		store = s
	default:
		return nil, nil, fmt.Errorf("unsupported backend %q", cfg.Memory.Backend)
	}

	if cfg.Memory.CacheSize > 0 {
		cached, err := memory.NewCachedStore(store, cfg.Memory.CacheSize)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, cached.Close)
		store = cached
	}

	return store, closeAll, nil
}
