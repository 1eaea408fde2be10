package orchestrator

import (
	"context"
	"sort"

	"github.com/hupe1980/agentkernel/bus"
	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/task"
)

// Snapshot is a point-in-time view of the kernel for inspection surfaces.
type Snapshot struct {
	Agents        []core.AgentMetadata  `json:"agents"`
	Subscriptions []bus.SubscriptionInfo `json:"subscriptions"`
	Tasks         []task.Summary         `json:"tasks"`
	Capabilities  []core.CapabilityInfo  `json:"capabilities"`
	Keys          []string               `json:"keys"`
	Passes        uint64                 `json:"passes"`
}

// Snapshot collects the current state. Keys are sorted; everything else
// keeps registration order.
func (o *Orchestrator) Snapshot(ctx context.Context) (Snapshot, error) {
	keys, err := o.store.Keys(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	sort.Strings(keys)

	return Snapshot{
		Agents:        o.Agents(),
		Subscriptions: o.bus.Snapshot(),
		Tasks:         o.tracker.Summaries(),
		Capabilities:  o.registry.List(),
		Keys:          keys,
		Passes:        o.Passes(),
	}, nil
}
