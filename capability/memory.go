package capability

import (
	"context"
	"errors"
	"sort"

	"github.com/hupe1980/agentkernel/core"
)

// Names of the memory capabilities.
const (
	MemoryGet  = "memory_get"
	MemoryPut  = "memory_put"
	MemoryKeys = "memory_keys"
)

// MemoryCapabilities exposes store as three capabilities: memory_get returns
// a record (found=false for missing keys), memory_put stores a value and
// returns its version, and memory_keys lists keys in sorted order.
func MemoryCapabilities(store core.MemoryStore) []core.Capability {
	keySchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"key": map[string]any{"type": "string", "description": "Record key"},
		},
		"required": []string{"key"},
	}

	get := NewFunction(MemoryGet, "Load a versioned record from shared memory", keySchema,
		func(ctx context.Context, args map[string]any) (any, error) {
			key, err := keyArg(args)
			if err != nil {
				return nil, err
			}
			rec, err := store.Load(ctx, key)
			if errors.Is(err, core.ErrNotFound) {
				return map[string]any{"key": key, "found": false}, nil
			}
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"key":        rec.Key,
				"found":      true,
				"value":      rec.Value,
				"version":    rec.Version,
				"updated_at": rec.UpdatedAt,
			}, nil
		})

	put := NewFunction(MemoryPut, "Store a value in shared memory and return its new version",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key":   map[string]any{"type": "string", "description": "Record key"},
				"value": map[string]any{"description": "Any JSON value"},
			},
			"required": []string{"key", "value"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			key, err := keyArg(args)
			if err != nil {
				return nil, err
			}
			version, err := store.Store(ctx, key, args["value"])
			if err != nil {
				return nil, err
			}
			return map[string]any{"key": key, "version": version}, nil
		})

	keys := NewFunction(MemoryKeys, "List the keys in shared memory", nil,
		func(ctx context.Context, _ map[string]any) (any, error) {
			ks, err := store.Keys(ctx)
			if err != nil {
				return nil, err
			}
			sort.Strings(ks)
			return ks, nil
		})

	return []core.Capability{get, put, keys}
}

func keyArg(args map[string]any) (string, error) {
	key, _ := args["key"].(string)
	if key == "" {
		return "", &ValidationError{Field: "key", Value: args["key"], Message: "must be a non-empty string"}
	}
	return key, nil
}
