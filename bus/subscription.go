package bus

import (
	"context"
	"sync"

	"github.com/hupe1980/agentkernel/core"
)

// Subscription is one subscriber's view of the bus. Receives are safe for
// concurrent use but a single reader is the normal case.
type Subscription struct {
	bus  *Bus
	id   uint64
	name string

	mu          sync.Mutex
	buf         []core.Message
	head, size  int
	missed      uint64 // not yet reported
	totalMissed uint64
	closed      bool

	notify chan struct{}
	done   chan struct{}
}

// ID returns the subscription identifier, unique per bus.
func (s *Subscription) ID() uint64 { return s.id }

// Name returns the label given at subscribe time.
func (s *Subscription) Name() string { return s.name }

// Info returns a snapshot of buffer usage and total messages missed.
func (s *Subscription) Info() SubscriptionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SubscriptionInfo{ID: s.id, Name: s.name, Buffered: s.size, Missed: s.totalMissed}
}

// Recv blocks until a message is available, the subscription lags, the
// subscription is closed or ctx is done. A lag is reported once as a
// *LaggedError; the following call returns the oldest retained message.
func (s *Subscription) Recv(ctx context.Context) (core.Message, error) {
	for {
		msg, err := s.TryRecv()
		if err != ErrEmpty {
			return msg, err
		}
		select {
		case <-s.notify:
		case <-s.done:
		case <-ctx.Done():
			return core.Message{}, ctx.Err()
		}
	}
}

// TryRecv is the non-blocking form of Recv. It returns ErrEmpty when nothing
// is buffered.
func (s *Subscription) TryRecv() (core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.missed > 0 {
		n := s.missed
		s.missed = 0
		return core.Message{}, &LaggedError{Missed: n}
	}
	if s.size > 0 {
		msg := s.buf[s.head]
		s.buf[s.head] = core.Message{}
		s.head = (s.head + 1) % len(s.buf)
		s.size--
		return msg, nil
	}
	if s.closed {
		return core.Message{}, ErrClosed
	}
	return core.Message{}, ErrEmpty
}

// Drain removes every buffered message and returns them with the number of
// messages missed since the last report.
func (s *Subscription) Drain() ([]core.Message, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Message, 0, s.size)
	for s.size > 0 {
		out = append(out, s.buf[s.head])
		s.buf[s.head] = core.Message{}
		s.head = (s.head + 1) % len(s.buf)
		s.size--
	}
	missed := s.missed
	s.missed = 0
	return out, missed
}

// Close detaches the subscription. Later publishes skip it and receives
// return ErrClosed once the buffer is empty. Close is idempotent.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()
	s.bus.detach(s)
}

// Done is closed when the subscription is closed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) push(msg core.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.size == len(s.buf) {
		s.head = (s.head + 1) % len(s.buf)
		s.size--
		s.missed++
		s.totalMissed++
	}
	s.buf[(s.head+s.size)%len(s.buf)] = msg
	s.size++
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return true
}
