package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/memory"
)

func TestTracker_SummariesInCreationOrder(t *testing.T) {
	tr := NewTracker(0)
	a := New(core.TaskMeta{Kind: "query"}, nil)
	b := New(core.TaskMeta{Kind: "scan"}, nil)
	tr.Track(a)
	tr.Track(b)
	tr.Track(a)

	require.NoError(t, b.Initialize())

	got := tr.Summaries()
	require.Len(t, got, 2)
	assert.Equal(t, Summary{ID: a.ID(), Kind: "query", Phase: Pending}, got[0])
	assert.Equal(t, Summary{ID: b.ID(), Kind: "scan", Phase: Initialized}, got[1])

	found, ok := tr.Get(b.ID())
	assert.True(t, ok)
	assert.Same(t, b, found)
}

func TestTracker_EvictsTerminalFirst(t *testing.T) {
	tr := NewTracker(2)
	live := New(core.TaskMeta{Kind: "live"}, nil)
	done := New(core.TaskMeta{Kind: "done"}, nil)
	done.Fail()
	tr.Track(live)
	tr.Track(done)
	tr.Track(New(core.TaskMeta{Kind: "new"}, nil))

	assert.Equal(t, 2, tr.Len())
	_, ok := tr.Get(done.ID())
	assert.False(t, ok)
	_, ok = tr.Get(live.ID())
	assert.True(t, ok)
}

func TestPersist(t *testing.T) {
	store := memory.NewInMemoryStore()
	tk := New(sampleMeta(), nil)
	require.NoError(t, tk.Initialize())
	require.NoError(t, tk.BeginExecution())
	require.NoError(t, tk.Validate("answer"))
	res, err := tk.Complete()
	require.NoError(t, err)

	v, err := Persist(context.Background(), store, res)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	rec, err := store.Load(context.Background(), Key(tk.ID()))
	require.NoError(t, err)
	assert.Equal(t, res, rec.Value)
}
