package core

import "context"

// AgentMetadata identifies an agent. It is fixed once the agent is constructed.
type AgentMetadata struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

// Agent defines the contract every agent driven by the orchestrator must implement.
//
// The orchestrator calls Init once with the capability listing before the first
// tick, then repeatedly delivers bus messages through OnMessage and calls Tick.
// Messages returned from Tick are published on the bus after the call returns.
//
// Implementations must:
//   - Respect context cancellation
//   - Return quickly from Tick; the loop is sequential
//   - Not assume any delivery order across different sources
type Agent interface {
	Metadata() AgentMetadata
	Init(ctx context.Context, capabilities []CapabilityInfo) error
	Tick(ctx context.Context) ([]Message, error)
	OnMessage(ctx context.Context, msg Message) error
}
