package core

import (
	"context"
	"time"
)

// Record is a versioned value held by a MemoryStore. Version starts at 1 and
// grows by exactly one on every successful Store of the same key.
type Record struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MemoryStore defines versioned key/value persistence shared by agents.
//
// Store creates or overwrites a key and returns the new version. Load and
// Remove report ErrNotFound for missing keys. Keys returns an unordered
// snapshot. All operations are atomic per key.
type MemoryStore interface {
	Store(ctx context.Context, key string, value any) (uint64, error)
	Load(ctx context.Context, key string) (Record, error)
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}
