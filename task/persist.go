package task

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentkernel/core"
)

// KeyPrefix namespaces task results in a memory store.
const KeyPrefix = "task/"

// Key returns the memory store key holding the result of task id.
func Key(id string) string { return KeyPrefix + id }

// Persist stores r under Key(r.TaskID) and returns the record version.
func Persist(ctx context.Context, store core.MemoryStore, r Result) (uint64, error) {
	v, err := store.Store(ctx, Key(r.TaskID), r)
	if err != nil {
		return 0, fmt.Errorf("persist task %s: %w", r.TaskID, err)
	}
	return v, nil
}
