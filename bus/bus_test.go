package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkernel/core"
)

func msg(i int) core.Message {
	return core.NewMessage("src", core.KindData, i)
}

func TestBus_PublishWithoutSubscribers(t *testing.T) {
	b := New(4)
	assert.Equal(t, 0, b.Publish(msg(1)))
}

func TestBus_PublishCountsSubscribers(t *testing.T) {
	b := New(4)
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	assert.Equal(t, 2, b.Publish(msg(1)))

	for _, s := range []*Subscription{s1, s2} {
		got, err := s.TryRecv()
		require.NoError(t, err)
		assert.Equal(t, 1, got.Payload)
	}
}

func TestBus_SubscriberSeesOnlyLaterMessages(t *testing.T) {
	b := New(4)
	b.Publish(msg(1))
	s := b.Subscribe()
	b.Publish(msg(2))

	got, err := s.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 2, got.Payload)
	_, err = s.TryRecv()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestBus_FIFOPerSubscriber(t *testing.T) {
	b := New(16)
	s := b.Subscribe()
	for i := 0; i < 10; i++ {
		b.Publish(msg(i))
	}
	for i := 0; i < 10; i++ {
		got, err := s.Recv(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i, got.Payload)
	}
}

func TestBus_OverflowDropsOldestAndReportsLag(t *testing.T) {
	b := New(3)
	s := b.Subscribe()
	for i := 0; i < 5; i++ {
		assert.Equal(t, 1, b.Publish(msg(i)))
	}

	_, err := s.TryRecv()
	var lag *LaggedError
	require.ErrorAs(t, err, &lag)
	assert.Equal(t, uint64(2), lag.Missed)
	assert.True(t, errors.Is(err, ErrLagged))

	for i := 2; i < 5; i++ {
		got, err := s.Recv(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i, got.Payload)
	}
	assert.Equal(t, uint64(2), s.Info().Missed)
}

func TestBus_SlowSubscriberDoesNotAffectOthers(t *testing.T) {
	b := New(2)
	slow := b.Subscribe()
	fast := b.Subscribe()

	for i := 0; i < 4; i++ {
		b.Publish(msg(i))
		got, err := fast.TryRecv()
		require.NoError(t, err)
		assert.Equal(t, i, got.Payload)
	}

	_, err := slow.TryRecv()
	assert.ErrorIs(t, err, ErrLagged)
}

func TestBus_RecvBlocksUntilPublish(t *testing.T) {
	b := New(4)
	s := b.Subscribe()

	done := make(chan core.Message, 1)
	go func() {
		m, err := s.Recv(context.Background())
		if err == nil {
			done <- m
		}
	}()

	time.Sleep(10 * time.Millisecond)
	b.Publish(msg(7))

	select {
	case m := <-done:
		assert.Equal(t, 7, m.Payload)
	case <-time.After(time.Second):
		t.Fatal("Recv did not return")
	}
}

func TestBus_RecvHonorsContext(t *testing.T) {
	b := New(4)
	s := b.Subscribe()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBus_ClosedSubscriptionStopsReceiving(t *testing.T) {
	b := New(4)
	s := b.Subscribe()
	keep := b.Subscribe()
	b.Publish(msg(1))

	s.Close()
	s.Close()
	assert.Equal(t, 1, b.Subscribers())
	assert.Equal(t, 1, b.Publish(msg(2)))

	got, err := s.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 1, got.Payload)
	_, err = s.Recv(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	_, err = keep.TryRecv()
	require.NoError(t, err)
	got, err = keep.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 2, got.Payload)
}

func TestBus_Drain(t *testing.T) {
	b := New(2)
	s := b.Subscribe()
	for i := 0; i < 5; i++ {
		b.Publish(msg(i))
	}
	msgs, missed := s.Drain()
	assert.Equal(t, uint64(3), missed)
	require.Len(t, msgs, 2)
	assert.Equal(t, 3, msgs[0].Payload)
	assert.Equal(t, 4, msgs[1].Payload)

	_, err := s.TryRecv()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestBus_Snapshot(t *testing.T) {
	b := New(2)
	b.SubscribeAs("alpha")
	beta := b.SubscribeAs("beta")
	for i := 0; i < 3; i++ {
		b.Publish(msg(i))
	}
	_, _ = beta.TryRecv()

	snap := b.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, SubscriptionInfo{ID: 1, Name: "alpha", Buffered: 2, Missed: 1}, snap[0])
	assert.Equal(t, "beta", snap[1].Name)
	assert.Equal(t, 2, snap[1].Buffered)
	assert.Equal(t, 2, b.Capacity())
}

func TestBus_ConcurrentPublishers(t *testing.T) {
	b := New(DefaultCapacity)
	s := b.Subscribe()

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				b.Publish(core.NewMessage(fmt.Sprintf("p%d", p), core.KindStatus, i))
			}
		}(p)
	}
	wg.Wait()

	last := map[string]int{}
	msgs, missed := s.Drain()
	assert.Zero(t, missed)
	assert.Len(t, msgs, 200)
	for _, m := range msgs {
		prev, ok := last[m.Source]
		if ok {
			assert.Greater(t, m.Payload.(int), prev, "per-publisher order")
		}
		last[m.Source] = m.Payload.(int)
	}
}

func TestNew_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, New(0).Capacity())
}
