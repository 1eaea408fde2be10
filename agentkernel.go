// Package agentkernel provides a small façade over the coordination kernel:
// a tick-driven orchestrator, a lossy pub/sub bus, a versioned memory store,
// a capability registry and a task tracker. Most applications:
//  1. Create a Kernel via New() (optionally overriding the in-memory defaults)
//  2. Register capabilities and agents
//  3. Call Run until the context is cancelled or an agent fails
//
// All defaults are in-process and safe for local development and tests.
// Durable stores live in memory/sqlite, memory/postgres and memory/natskv.
package agentkernel

import (
	"context"

	"github.com/hupe1980/agentkernel/bus"
	"github.com/hupe1980/agentkernel/capability"
	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/logging"
	"github.com/hupe1980/agentkernel/memory"
	"github.com/hupe1980/agentkernel/orchestrator"
	"github.com/hupe1980/agentkernel/task"
)

// Options configures a Kernel.
type Options struct {
	// Config controls the tick loop cadence, per-call timeout and pass limit.
	Config orchestrator.Config

	// BusCapacity is the per-subscriber buffer. Slow subscribers lose the
	// oldest messages beyond it.
	BusCapacity int

	// MemoryStore defaults to memory.NewInMemoryStore().
	MemoryStore core.MemoryStore

	// TaskLimit caps tracked tasks; zero keeps all of them.
	TaskLimit int

	// Callbacks receives loop lifecycle hooks.
	Callbacks *orchestrator.CallbackManager

	// Logger defaults to a NoOp logger.
	Logger logging.Logger
}

// Kernel aggregates the orchestrator and its shared services.
type Kernel struct {
	orch *orchestrator.Orchestrator
}

// New creates a Kernel. Any unset service gets an in-memory implementation.
func New(optFns ...func(o *Options)) *Kernel {
	opts := Options{
		Config:      orchestrator.DefaultConfig,
		BusCapacity: bus.DefaultCapacity,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MemoryStore == nil {
		opts.MemoryStore = memory.NewInMemoryStore()
	}

	o := orchestrator.New(func(o *orchestrator.Options) {
		o.Config = opts.Config
		o.Bus = bus.New(opts.BusCapacity)
		o.Store = opts.MemoryStore
		o.Tracker = task.NewTracker(opts.TaskLimit)
		o.Callbacks = opts.Callbacks
		o.Logger = opts.Logger
	})
	return &Kernel{orch: o}
}

// RegisterAgent adds an agent, or replaces the one registered under its id.
func (k *Kernel) RegisterAgent(a core.Agent) { k.orch.RegisterAgent(a) }

// RegisterCapability adds c to the registry. Agents see it at their next Init.
func (k *Kernel) RegisterCapability(c core.Capability) { k.orch.Registry().Register(c) }

// Run drives the tick loop. See orchestrator.Orchestrator.Run.
func (k *Kernel) Run(ctx context.Context) error { return k.orch.Run(ctx) }

// Bus returns the shared bus.
func (k *Kernel) Bus() *bus.Bus { return k.orch.Bus() }

// Store returns the shared memory store.
func (k *Kernel) Store() core.MemoryStore { return k.orch.Store() }

// Registry returns the capability registry.
func (k *Kernel) Registry() *capability.Registry { return k.orch.Registry() }

// Tasks returns the task tracker.
func (k *Kernel) Tasks() *task.Tracker { return k.orch.Tracker() }

// Orchestrator exposes the underlying loop, for example to register callbacks.
func (k *Kernel) Orchestrator() *orchestrator.Orchestrator { return k.orch }

// Snapshot returns the current kernel state.
func (k *Kernel) Snapshot(ctx context.Context) (orchestrator.Snapshot, error) {
	return k.orch.Snapshot(ctx)
}
