package agent

import (
	"context"
	"slices"
	"sync"

	"github.com/hupe1980/agentkernel/core"
)

// BaseAgent bundles identity, the capability listing and an inbox. Embed it
// in concrete agents and override Tick (and OnMessage when messages need
// immediate handling). All exported methods are goroutine-safe.
type BaseAgent struct {
	meta core.AgentMetadata

	mu           sync.Mutex
	capabilities []core.CapabilityInfo
	inbox        []core.Message
	initialized  bool
}

var _ core.Agent = (*BaseAgent)(nil)

// NewBaseAgent constructs a BaseAgent. A missing Name defaults to the ID.
func NewBaseAgent(meta core.AgentMetadata) BaseAgent {
	if meta.Name == "" {
		meta.Name = meta.ID
	}
	meta.Capabilities = slices.Clone(meta.Capabilities)
	return BaseAgent{meta: meta}
}

// Metadata returns the agent identity.
func (b *BaseAgent) Metadata() core.AgentMetadata {
	m := b.meta
	m.Capabilities = slices.Clone(b.meta.Capabilities)
	return m
}

// ID is shorthand for Metadata().ID.
func (b *BaseAgent) ID() string { return b.meta.ID }

// Init records the capability listing.
func (b *BaseAgent) Init(_ context.Context, capabilities []core.CapabilityInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.capabilities = slices.Clone(capabilities)
	b.initialized = true
	return nil
}

// Initialized reports whether Init has run.
func (b *BaseAgent) Initialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}

// Capabilities returns the listing received at Init.
func (b *BaseAgent) Capabilities() []core.CapabilityInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.capabilities)
}

// HasCapability reports whether name was in the listing received at Init.
func (b *BaseAgent) HasCapability(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.capabilities {
		if c.Name == name {
			return true
		}
	}
	return false
}

// OnMessage appends msg to the inbox.
func (b *BaseAgent) OnMessage(_ context.Context, msg core.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inbox = append(b.inbox, msg)
	return nil
}

// DrainInbox returns and clears the buffered messages in arrival order.
func (b *BaseAgent) DrainInbox() []core.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.inbox
	b.inbox = nil
	return out
}

// InboxLen returns the number of buffered messages.
func (b *BaseAgent) InboxLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.inbox)
}

// Tick does nothing.
func (b *BaseAgent) Tick(context.Context) ([]core.Message, error) { return nil, nil }

// Send builds a broadcast message authored by this agent.
func (b *BaseAgent) Send(kind core.MessageKind, payload any) core.Message {
	return core.NewMessage(b.meta.ID, kind, payload)
}

// SendTo builds a message from this agent to target.
func (b *BaseAgent) SendTo(target string, kind core.MessageKind, payload any) core.Message {
	return core.NewDirectMessage(b.meta.ID, target, kind, payload)
}
