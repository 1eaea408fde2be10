package core

import (
	"time"

	"github.com/google/uuid"
)

// MessageKind classifies a message exchanged on the bus.
type MessageKind string

const (
	// KindIntent requests work from another agent.
	KindIntent MessageKind = "intent"
	// KindStatus reports progress.
	KindStatus MessageKind = "status"
	// KindData carries a result or payload.
	KindData MessageKind = "data"
	// KindCommand instructs a target to act.
	KindCommand MessageKind = "command"
	// KindError reports a failure.
	KindError MessageKind = "error"
)

// Valid reports whether k is one of the known kinds.
func (k MessageKind) Valid() bool {
	switch k {
	case KindIntent, KindStatus, KindData, KindCommand, KindError:
		return true
	}
	return false
}

// Message is the unit of communication between agents. After publication it
// must be treated as immutable. A nil Target means broadcast.
type Message struct {
	ID        string      `json:"id"`
	Source    string      `json:"source"`
	Target    *string     `json:"target"`
	Kind      MessageKind `json:"kind"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage creates a broadcast message authored by source.
func NewMessage(source string, kind MessageKind, payload any) Message {
	return Message{
		ID:        NewID(),
		Source:    source,
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// NewDirectMessage creates a message addressed to a single agent.
func NewDirectMessage(source, target string, kind MessageKind, payload any) Message {
	m := NewMessage(source, kind, payload)
	m.Target = &target
	return m
}

// IsBroadcast reports whether the message has no explicit target.
func (m Message) IsBroadcast() bool { return m.Target == nil }

// IsFor reports whether an agent with the given id should receive the message.
func (m Message) IsFor(agentID string) bool {
	return m.Target == nil || *m.Target == agentID
}

// NewID returns a new random identifier.
func NewID() string {
	return uuid.NewString()
}
