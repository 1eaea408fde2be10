package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/internal/testutil"
)

var _ core.MemoryStore = (*Store)(nil)

func TestStore_Contract(t *testing.T) {
	testutil.RunMemoryStoreSuite(t, func(t *testing.T) core.MemoryStore {
		s, err := Open(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kernel.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Store(ctx, "k", "v1")
	require.NoError(t, err)
	_, err = s.Store(ctx, "k", "v2")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	rec, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", rec.Value)
	assert.Equal(t, uint64(2), rec.Version)

	v, err := s.Store(ctx, "k", "v3")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), v)
}

func TestStore_UnserializableValue(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Store(context.Background(), "k", func() {})
	assert.ErrorIs(t, err, core.ErrSerialization)

	_, err = s.Load(context.Background(), "k")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
