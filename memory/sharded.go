package memory

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/hupe1980/agentkernel/core"
)

// DefaultShards is the shard count used when none is given.
const DefaultShards = 16

type shard struct {
	mu      sync.RWMutex
	records map[string]core.Record
}

// ShardedStore is a process-local MemoryStore whose key space is split over
// independently locked shards. A key always maps to the same shard, so
// versions stay per-key atomic while unrelated keys do not contend.
type ShardedStore struct {
	shards []*shard
	now    func() time.Time
}

// NewShardedStore creates a store with n shards (DefaultShards if n <= 0).
func NewShardedStore(n int, optFns ...func(o *Options)) *ShardedStore {
	if n <= 0 {
		n = DefaultShards
	}
	opts := defaultOptions(optFns...)
	s := &ShardedStore{shards: make([]*shard, n), now: opts.Now}
	for i := range s.shards {
		s.shards[i] = &shard{records: make(map[string]core.Record)}
	}
	return s
}

func (s *ShardedStore) shardFor(key string) *shard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

// Store creates key at version 1 or bumps its version by one.
func (s *ShardedStore) Store(_ context.Context, key string, value any) (uint64, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return storeLocked(sh.records, key, value, s.now()), nil
}

// Load returns the current record for key.
func (s *ShardedStore) Load(_ context.Context, key string) (core.Record, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	rec, ok := sh.records[key]
	if !ok {
		return core.Record{}, core.NotFoundError("load", key)
	}
	return rec, nil
}

// Remove deletes key.
func (s *ShardedStore) Remove(_ context.Context, key string) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.records[key]; !ok {
		return core.NotFoundError("remove", key)
	}
	delete(sh.records, key)
	return nil
}

// Keys returns a snapshot of the stored keys. Shards are read one at a time,
// so concurrent writers may be observed partially across shards.
func (s *ShardedStore) Keys(_ context.Context) ([]string, error) {
	var keys []string
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k := range sh.records {
			keys = append(keys, k)
		}
		sh.mu.RUnlock()
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}
