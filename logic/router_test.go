package logic

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hupe1980/agentkernel/adapter"
	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/internal/testutil"
	"github.com/hupe1980/agentkernel/logging"
)

// blocking waits for cancellation and tracks peak concurrency.
type blocking struct {
	provider adapter.Provider
	release  chan struct{}
	active   atomic.Int32
	peak     atomic.Int32
}

func (b *blocking) Provider() adapter.Provider { return b.provider }

func (b *blocking) Chat(ctx context.Context, msgs []adapter.ChatMessage) (adapter.Response, error) {
	n := b.active.Add(1)
	defer b.active.Add(-1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-ctx.Done():
		return adapter.Response{}, &adapter.RequestError{Provider: b.provider, Err: ctx.Err()}
	case <-b.release:
		return adapter.Response{Provider: b.provider, Content: msgs[len(msgs)-1].Content}, nil
	}
}

func (b *blocking) HealthCheck(context.Context) error { return nil }

func TestQuery_Builder(t *testing.T) {
	q := NewQuery("hello").WithSystem("You are helpful.").WithProvider(adapter.Claude)
	assert.Equal(t, "hello", q.Content)
	require.NotNil(t, q.SystemContext)
	assert.Equal(t, "You are helpful.", *q.SystemContext)
	require.NotNil(t, q.Provider)
	assert.Equal(t, adapter.Claude, *q.Provider)
	assert.NotEmpty(t, q.ID)

	assert.Equal(t, []adapter.ChatMessage{adapter.System("You are helpful."), adapter.User("hello")}, q.Messages())
	assert.Equal(t, []adapter.ChatMessage{adapter.User("x")}, NewQuery("x").Messages())
}

func TestRouter_PinnedProvider(t *testing.T) {
	r := NewRouter()
	r.Register(adapter.NewMock(adapter.Claude))
	r.Register(adapter.NewMock(adapter.Grok).AddResponse("hi", "from grok"))

	res, err := r.Query(context.Background(), NewQuery("hi").WithProvider(adapter.Grok))
	require.NoError(t, err)
	assert.Equal(t, adapter.Grok, res.ProviderUsed)
	assert.Equal(t, "from grok", res.Content)

	_, err = r.Query(context.Background(), NewQuery("hi").WithProvider(adapter.Manus))
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestRouter_UnpinnedUsesFirstHealthy(t *testing.T) {
	claude := adapter.NewMock(adapter.Claude).FailWith(errors.New("down"))
	gemini := adapter.NewMock(adapter.Gemini)

	r := NewRouter(func(o *Options) { o.MaxFailures = 1; o.Cooldown = time.Hour })
	r.Register(claude)
	r.Register(gemini)

	_, err := r.Query(context.Background(), NewQuery("a"))
	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, adapter.Claude, qerr.Provider)
	assert.ErrorIs(t, err, ErrQueryFailed)

	res, err := r.Query(context.Background(), NewQuery("b"))
	require.NoError(t, err)
	assert.Equal(t, adapter.Gemini, res.ProviderUsed)

	_, err = r.Query(context.Background(), NewQuery("c").WithProvider(adapter.Claude))
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	assert.Equal(t, []ProviderStatus{
		{Provider: adapter.Claude, Breaker: "open"},
		{Provider: adapter.Gemini, Breaker: "closed"},
	}, r.Providers())
}

func TestRouter_NoAdapters(t *testing.T) {
	_, err := NewRouter().Query(context.Background(), NewQuery("x"))
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestRouter_RegisterReplacesSameProvider(t *testing.T) {
	r := NewRouter()
	r.Register(adapter.NewMock(adapter.Claude).AddResponse("q", "old"))
	r.Register(adapter.NewMock(adapter.Claude).AddResponse("q", "new"))
	require.Len(t, r.Providers(), 1)

	res, err := r.Query(context.Background(), NewQuery("q"))
	require.NoError(t, err)
	assert.Equal(t, "new", res.Content)
}

func TestRouter_Timeout(t *testing.T) {
	b := &blocking{provider: adapter.OpenWeight, release: make(chan struct{})}
	r := NewRouter(func(o *Options) { o.Timeout = 20 * time.Millisecond })
	r.Register(b)

	_, err := r.Query(context.Background(), NewQuery("slow"))
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, "timeout after 20 ms", err.Error())
}

func TestRouter_QueryBatchKeepsOrderAndBoundsConcurrency(t *testing.T) {
	b := &blocking{provider: adapter.Claude, release: make(chan struct{})}
	r := NewRouter(func(o *Options) { o.MaxConcurrency = 2 })
	r.Register(b)

	qs := []Query{NewQuery("0"), NewQuery("1"), NewQuery("2"), NewQuery("3"), NewQuery("4").WithProvider(adapter.Manus)}

	done := make(chan []BatchResult)
	go func() { done <- r.QueryBatch(context.Background(), qs) }()

	require.Eventually(t, func() bool { return b.active.Load() == 2 }, time.Second, time.Millisecond)
	close(b.release)
	results := <-done

	require.Len(t, results, 5)
	for i := 0; i < 4; i++ {
		require.NoError(t, results[i].Err)
		assert.Equal(t, qs[i].ID, results[i].Result.QueryID)
		assert.Equal(t, qs[i].Content, results[i].Result.Content)
	}
	assert.ErrorIs(t, results[4].Err, ErrProviderUnavailable)
	assert.LessOrEqual(t, b.peak.Load(), int32(2))
}

func TestRouter_CheckHealthFeedsBreaker(t *testing.T) {
	mock := adapter.NewMock(adapter.Grok).Unhealthy(&adapter.AuthError{Provider: adapter.Grok})
	r := NewRouter(func(o *Options) { o.MaxFailures = 1; o.Cooldown = time.Hour })
	r.Register(mock)

	res := r.CheckHealth(context.Background())
	assert.ErrorIs(t, res[adapter.Grok], adapter.ErrAdapter)

	_, err := r.Query(context.Background(), NewQuery("x"))
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestRouter_Metrics(t *testing.T) {
	mp, reader := testutil.NewMeterProvider()
	r := NewRouter(func(o *Options) { o.MeterProvider = mp })
	r.Register(adapter.NewMock(adapter.Claude))

	_, err := r.Query(context.Background(), NewQuery("x"))
	require.NoError(t, err)
	_, _ = r.Query(context.Background(), NewQuery("x").WithProvider(adapter.Grok))

	assert.Equal(t, int64(1), testutil.CounterValue(t, reader, "agentkernel.logic.queries",
		attribute.String("provider", "claude"), attribute.String("outcome", "ok")))
	assert.Equal(t, int64(1), testutil.CounterValue(t, reader, "agentkernel.logic.queries",
		attribute.String("outcome", "unavailable")))
}

func TestRouter_QueryLogsModelCall(t *testing.T) {
	sink := core.NewMemoryLogSink()
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Output: io.Discard, Sink: sink})
	r := NewRouter(func(o *Options) { o.Logger = logger })
	r.Register(adapter.NewMock(adapter.Claude).AddResponse("ping", "pong"))
	r.Register(adapter.NewMock(adapter.Grok).FailWith(errors.New("rate limited")))

	_, err := r.Query(context.Background(), NewQuery("ping").WithProvider(adapter.Claude))
	require.NoError(t, err)
	_, err = r.Query(context.Background(), NewQuery("ping").WithProvider(adapter.Grok))
	require.Error(t, err)

	entries := sink.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "model.call.completed", entries[0].Message)
	assert.Equal(t, adapter.Claude.String(), entries[0].Data.(map[string]any)["provider"])
	assert.Equal(t, int64(2), entries[0].Data.(map[string]any)["token_count"])
	assert.Equal(t, "model.call.failed", entries[1].Message)
	assert.Equal(t, adapter.Grok.String(), entries[1].Data.(map[string]any)["provider"])
	assert.Equal(t, "rate limited", entries[1].Data.(map[string]any)["error"])
}
