package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/task"
)

// NewTaskIn creates a task of the given kind and walks it through the legal
// transitions until it reaches phase p. Validated and later phases carry
// output as their result.
func NewTaskIn(t *testing.T, kind string, output any, p task.Phase) *task.Task {
	t.Helper()

	tk := task.New(core.TaskMeta{Origin: "test", Kind: kind}, nil)
	if p == task.Failed {
		tk.Fail()
		return tk
	}

	steps := []func() error{
		tk.Initialize,
		tk.BeginExecution,
		func() error { return tk.Validate(output) },
		func() error { _, err := tk.Complete(); return err },
	}
	for i := 0; i < int(p); i++ {
		require.NoError(t, steps[i]())
	}
	require.Equal(t, p, tk.Phase())
	return tk
}
