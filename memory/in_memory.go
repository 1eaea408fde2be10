package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/agentkernel/core"
)

// Options configures the process-local stores.
type Options struct {
	// Now stamps Record.UpdatedAt. Defaults to time.Now in UTC.
	Now func() time.Time
}

func defaultOptions(optFns ...func(o *Options)) Options {
	opts := Options{Now: func() time.Time { return time.Now().UTC() }}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// InMemoryStore is a process-local MemoryStore guarded by a single RWMutex.
// Contents do not survive a restart. Values are stored as given; callers must
// not mutate a value after storing it.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]core.Record
	now     func() time.Time
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := defaultOptions(optFns...)
	return &InMemoryStore{records: make(map[string]core.Record), now: opts.Now}
}

// Store creates key at version 1 or bumps its version by one.
func (m *InMemoryStore) Store(_ context.Context, key string, value any) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return storeLocked(m.records, key, value, m.now()), nil
}

// Load returns the current record for key.
func (m *InMemoryStore) Load(_ context.Context, key string) (core.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	if !ok {
		return core.Record{}, core.NotFoundError("load", key)
	}
	return rec, nil
}

// Remove deletes key. A later Store of the same key starts again at version 1.
func (m *InMemoryStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[key]; !ok {
		return core.NotFoundError("remove", key)
	}
	delete(m.records, key)
	return nil
}

// Keys returns a snapshot of the stored keys in unspecified order.
func (m *InMemoryStore) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		keys = append(keys, k)
	}
	return keys, nil
}

// Len returns the number of stored keys.
func (m *InMemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func storeLocked(records map[string]core.Record, key string, value any, now time.Time) uint64 {
	version := records[key].Version + 1
	records[key] = core.Record{Key: key, Value: value, Version: version, UpdatedAt: now}
	return version
}
