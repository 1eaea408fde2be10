// Package bus implements the kernel's lossy publish/subscribe message bus.
//
// Every subscription owns a bounded ring buffer. Publishing never blocks: when
// a subscriber's buffer is full the oldest unread message is overwritten and
// the subscriber's next receive reports a *LaggedError with the number of
// messages it missed. After that it continues with the oldest message still
// retained.
package bus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/agentkernel/core"
)

// DefaultCapacity is the per-subscription buffer size used when none is given.
const DefaultCapacity = 1024

var (
	// ErrLagged is matched by errors.Is for *LaggedError.
	ErrLagged = errors.New("subscription lagged")
	// ErrClosed is returned by receives on a closed subscription.
	ErrClosed = errors.New("subscription closed")
	// ErrEmpty is returned by TryRecv when nothing is buffered.
	ErrEmpty = errors.New("no message available")
)

// LaggedError reports messages overwritten before the subscriber read them.
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("subscription lagged: %d messages missed", e.Missed)
}

func (e *LaggedError) Is(target error) bool { return target == ErrLagged }

// SubscriptionInfo is a read-only view of one subscription.
type SubscriptionInfo struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name,omitempty"`
	Buffered int    `json:"buffered"`
	Missed   uint64 `json:"missed"`
}

// Bus fans published messages out to every active subscription.
type Bus struct {
	mu       sync.RWMutex
	subs     []*Subscription
	nextID   uint64
	capacity int
}

// New creates a bus whose subscriptions buffer up to capacity messages.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{capacity: capacity}
}

// Capacity returns the per-subscription buffer size.
func (b *Bus) Capacity() int { return b.capacity }

// Publish delivers msg into every active subscription and returns how many
// received it. Zero subscribers is not an error.
func (b *Bus) Publish(msg core.Message) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	delivered := 0
	for _, s := range b.subs {
		if s.push(msg) {
			delivered++
		}
	}
	return delivered
}

// Subscribe attaches a new anonymous subscription.
func (b *Bus) Subscribe() *Subscription { return b.SubscribeAs("") }

// SubscribeAs attaches a subscription labelled name. The label only appears
// in snapshots; the bus never filters by it.
func (b *Bus) SubscribeAs(name string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s := &Subscription{
		bus:    b,
		id:     b.nextID,
		name:   name,
		buf:    make([]core.Message, b.capacity),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	b.subs = append(b.subs, s)
	return s
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Snapshot describes every active subscription in subscription order.
func (b *Bus) Snapshot() []SubscriptionInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]SubscriptionInfo, 0, len(b.subs))
	for _, s := range b.subs {
		out = append(out, s.Info())
	}
	return out
}

func (b *Bus) detach(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, cur := range b.subs {
		if cur == s {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}
