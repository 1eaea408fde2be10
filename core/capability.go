package core

import "context"

// Capability is a named operation the kernel can invoke on behalf of agents.
// Args and results are untyped JSON-compatible values.
type Capability interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// CapabilityInfo is the read-only description handed to agents at Init.
type CapabilityInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// InfoOf builds the listing entry for c.
func InfoOf(c Capability) CapabilityInfo {
	return CapabilityInfo{
		Name:        c.Name(),
		Description: c.Description(),
		InputSchema: c.InputSchema(),
	}
}
