package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkernel/core"
)

// RunMemoryStoreSuite exercises the versioning contract every core.MemoryStore
// must honor. newStore must return an empty store for each call.
func RunMemoryStoreSuite(t *testing.T, newStore func(t *testing.T) core.MemoryStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("versions start at one and increment", func(t *testing.T) {
		s := newStore(t)
		v, err := s.Store(ctx, "a", "x")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), v)

		v, err = s.Store(ctx, "a", "y")
		require.NoError(t, err)
		assert.Equal(t, uint64(2), v)

		rec, err := s.Load(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "a", rec.Key)
		assert.Equal(t, "y", rec.Value)
		assert.Equal(t, uint64(2), rec.Version)
	})

	t.Run("load missing is not found", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Load(ctx, "missing")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("remove then store restarts at one", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Store(ctx, "a", 1)
		require.NoError(t, err)
		_, err = s.Store(ctx, "a", 2)
		require.NoError(t, err)

		require.NoError(t, s.Remove(ctx, "a"))
		_, err = s.Load(ctx, "a")
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.ErrorIs(t, s.Remove(ctx, "a"), core.ErrNotFound)

		v, err := s.Store(ctx, "a", 3)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), v)
	})

	t.Run("keys snapshot", func(t *testing.T) {
		s := newStore(t)
		keys, err := s.Keys(ctx)
		require.NoError(t, err)
		assert.Empty(t, keys)

		for _, k := range []string{"b", "a", "c"} {
			_, err := s.Store(ctx, k, map[string]any{"k": k})
			require.NoError(t, err)
		}
		require.NoError(t, s.Remove(ctx, "c"))

		keys, err = s.Keys(ctx)
		require.NoError(t, err)
		sort.Strings(keys)
		assert.Equal(t, []string{"a", "b"}, keys)
	})

	t.Run("structured values survive", func(t *testing.T) {
		s := newStore(t)
		in := map[string]any{"n": float64(2), "tags": []any{"x", "y"}, "ok": true}
		_, err := s.Store(ctx, "doc", in)
		require.NoError(t, err)

		rec, err := s.Load(ctx, "doc")
		require.NoError(t, err)
		assert.Equal(t, in, rec.Value)
		assert.False(t, rec.UpdatedAt.IsZero())
	})

	t.Run("concurrent stores yield distinct versions", func(t *testing.T) {
		s := newStore(t)
		const n = 20
		versions := make(chan uint64, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				v, err := s.Store(ctx, "hot", fmt.Sprintf("v%d", i))
				if err != nil {
					t.Errorf("store: %v", err)
					return
				}
				versions <- v
			}(i)
		}
		wg.Wait()
		close(versions)

		seen := map[uint64]bool{}
		for v := range versions {
			assert.False(t, seen[v], "duplicate version %d", v)
			seen[v] = true
		}
		for v := uint64(1); v <= n; v++ {
			assert.True(t, seen[v], "missing version %d", v)
		}

		rec, err := s.Load(ctx, "hot")
		require.NoError(t, err)
		assert.Equal(t, uint64(n), rec.Version)
	})
}
