package testutil

import (
	"time"

	"github.com/hupe1980/agentkernel/core"
)

// MessageBuilder provides a fluent helper for constructing messages in tests.
// Example:
//
//	msg := NewMessageBuilder().From("planner").To("worker").Intent(map[string]any{"prompt": "hi"}).Build()
//
// Chain only the parts you need; sensible defaults are applied.
type MessageBuilder struct {
	id        string
	source    string
	target    *string
	kind      core.MessageKind
	payload   any
	timestamp time.Time
}

// NewMessageBuilder creates a builder for a broadcast status message from "agent".
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{source: "agent", kind: core.KindStatus}
}

// ID overrides the auto-generated message ID (chainable).
func (b *MessageBuilder) ID(id string) *MessageBuilder { b.id = id; return b }

// From sets the source agent (chainable).
func (b *MessageBuilder) From(source string) *MessageBuilder { b.source = source; return b }

// To addresses the message to a single agent (chainable).
func (b *MessageBuilder) To(target string) *MessageBuilder { b.target = &target; return b }

// Broadcast clears any target (chainable).
func (b *MessageBuilder) Broadcast() *MessageBuilder { b.target = nil; return b }

// Kind sets the message kind (chainable).
func (b *MessageBuilder) Kind(k core.MessageKind) *MessageBuilder { b.kind = k; return b }

// Payload sets the payload (chainable).
func (b *MessageBuilder) Payload(p any) *MessageBuilder { b.payload = p; return b }

// At fixes the timestamp (chainable).
func (b *MessageBuilder) At(ts time.Time) *MessageBuilder { b.timestamp = ts; return b }

// Intent sets kind intent and the payload.
func (b *MessageBuilder) Intent(p any) *MessageBuilder { return b.Kind(core.KindIntent).Payload(p) }

// Data sets kind data and the payload.
func (b *MessageBuilder) Data(p any) *MessageBuilder { return b.Kind(core.KindData).Payload(p) }

// Build materializes the message.
func (b *MessageBuilder) Build() core.Message {
	id := b.id
	if id == "" {
		id = core.NewID()
	}
	ts := b.timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	msg := core.Message{
		ID:        id,
		Source:    b.source,
		Kind:      b.kind,
		Payload:   b.payload,
		Timestamp: ts,
	}
	if b.target != nil {
		t := *b.target
		msg.Target = &t
	}
	return msg
}
