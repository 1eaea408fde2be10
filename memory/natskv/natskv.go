// Package natskv provides a core.MemoryStore on a NATS JetStream key/value
// bucket. Each entry holds a JSON envelope carrying the record version;
// per-key atomicity comes from revision-guarded Create/Update calls.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/memory"
)

// DefaultMaxRetries bounds optimistic retries on revision conflicts.
const DefaultMaxRetries = 64

// ErrConflict is returned when a key kept changing across every retry.
var ErrConflict = errors.New("revision conflict")

// Options configures the store.
type Options struct {
	MaxRetries int
	Now        func() time.Time
}

// Store is a JetStream KV backed MemoryStore.
type Store struct {
	kv   jetstream.KeyValue
	nc   *nats.Conn
	opts Options
}

// New wraps an existing bucket.
func New(kv jetstream.KeyValue, optFns ...func(o *Options)) *Store {
	opts := Options{
		MaxRetries: DefaultMaxRetries,
		Now:        func() time.Time { return time.Now().UTC() },
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{kv: kv, opts: opts}
}

// Connect dials url and opens (creating if needed) bucket.
func Connect(ctx context.Context, url, bucket string, optFns ...func(o *Options)) (*Store, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream kv bucket %s: %w", bucket, err)
	}
	s := New(kv, optFns...)
	s.nc = nc
	return s, nil
}

// Close closes the connection opened by Connect.
func (s *Store) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}

// Store writes the next version of key, retrying when another writer wins.
func (s *Store) Store(ctx context.Context, key string, value any) (uint64, error) {
	for attempt := 0; attempt < s.opts.MaxRetries; attempt++ {
		entry, err := s.kv.Get(ctx, key)
		switch {
		case errors.Is(err, jetstream.ErrKeyNotFound):
			data, err := memory.EncodeEnvelope("store", key, value, 1, s.opts.Now())
			if err != nil {
				return 0, err
			}
			if _, err := s.kv.Create(ctx, key, data); err != nil {
				if errors.Is(err, jetstream.ErrKeyExists) {
					continue
				}
				return 0, core.BackendError("store", key, err)
			}
			return 1, nil
		case err != nil:
			return 0, core.BackendError("store", key, err)
		}

		current, err := memory.DecodeEnvelope("store", key, entry.Value())
		if err != nil {
			return 0, err
		}
		next := current.Version + 1
		data, err := memory.EncodeEnvelope("store", key, value, next, s.opts.Now())
		if err != nil {
			return 0, err
		}
		if _, err := s.kv.Update(ctx, key, data, entry.Revision()); err != nil {
			if isConflict(err) {
				continue
			}
			return 0, core.BackendError("store", key, err)
		}
		return next, nil
	}
	return 0, core.BackendError("store", key, ErrConflict)
}

// Load reads the current record for key.
func (s *Store) Load(ctx context.Context, key string) (core.Record, error) {
	entry, err := s.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return core.Record{}, core.NotFoundError("load", key)
	}
	if err != nil {
		return core.Record{}, core.BackendError("load", key, err)
	}
	return memory.DecodeEnvelope("load", key, entry.Value())
}

// Remove deletes key. The delete is guarded by the revision observed, so it
// never erases a version it did not see.
func (s *Store) Remove(ctx context.Context, key string) error {
	for attempt := 0; attempt < s.opts.MaxRetries; attempt++ {
		entry, err := s.kv.Get(ctx, key)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return core.NotFoundError("remove", key)
		}
		if err != nil {
			return core.BackendError("remove", key, err)
		}
		if err := s.kv.Delete(ctx, key, jetstream.LastRevision(entry.Revision())); err != nil {
			if isConflict(err) {
				continue
			}
			return core.BackendError("remove", key, err)
		}
		return nil
	}
	return core.BackendError("remove", key, ErrConflict)
}

// Keys lists every live key in the bucket.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	lister, err := s.kv.ListKeys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, core.BackendError("keys", "", err)
	}
	defer func() { _ = lister.Stop() }()

	keys := []string{}
	for k := range lister.Keys() {
		keys = append(keys, k)
	}
	return keys, nil
}

func isConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}
