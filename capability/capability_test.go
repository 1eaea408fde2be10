package capability

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/internal/testutil"
	"github.com/hupe1980/agentkernel/logging"
)

var _ core.Capability = (*FunctionCapability)(nil)

func echo(name string) *FunctionCapability {
	return NewFunction(name, "echo "+name, nil, func(_ context.Context, args map[string]any) (any, error) {
		return map[string]any{"from": name, "args": args}, nil
	})
}

func TestRegistry_ListInRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(echo("b"))
	r.Register(echo("a"))
	r.Register(echo("c"))

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "b", list[0].Name)
	assert.Equal(t, "echo b", list[0].Description)
	assert.Equal(t, "a", list[1].Name)
	assert.Equal(t, "c", list[2].Name)
	assert.NotNil(t, list[0].InputSchema)
}

func TestRegistry_CallPassesThrough(t *testing.T) {
	r := NewRegistry()
	r.Register(echo("e"))

	out, err := r.Call(context.Background(), "e", map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"from": "e", "args": map[string]any{"x": 1}}, out)
}

func TestRegistry_CallUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Call(context.Background(), "nope", nil)

	assert.ErrorIs(t, err, ErrNotFound)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nope", nf.Name)
	assert.Equal(t, `capability "nope" not found`, err.Error())
}

func TestRegistry_FirstMatchWins(t *testing.T) {
	r := NewRegistry()
	r.Register(NewFunction("dup", "first", nil, func(context.Context, map[string]any) (any, error) { return 1, nil }))
	r.Register(NewFunction("dup", "second", nil, func(context.Context, map[string]any) (any, error) { return 2, nil }))

	out, err := r.Call(context.Background(), "dup", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, out)
	assert.Len(t, r.List(), 2)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_ErrorsReturnedVerbatim(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry()
	r.Register(NewFunction("fail", "", nil, func(context.Context, map[string]any) (any, error) {
		return "partial", boom
	}))

	out, err := r.Call(context.Background(), "fail", nil)
	assert.Same(t, boom, err)
	assert.Equal(t, "partial", out)
}

func TestRegistry_ValidationErrorFromCapability(t *testing.T) {
	called := false
	r := NewRegistry()
	r.Register(NewFunctionFromStruct("sum", "Add", struct {
		A float64 `json:"a"`
		B float64 `json:"b"`
	}{}, func(context.Context, map[string]any) (any, error) {
		called = true
		return nil, nil
	}))

	_, err := r.Call(context.Background(), "sum", map[string]any{"a": 1.0})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "b", ve.Field)
	assert.False(t, called)
}

func TestRegistry_ConcurrentRegisterAndCall(t *testing.T) {
	r := NewRegistry()
	r.Register(echo("base"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register(echo("more"))
		}()
		go func() {
			defer wg.Done()
			if _, err := r.Call(context.Background(), "base", nil); err != nil {
				t.Errorf("call: %v", err)
			}
			_ = r.List()
		}()
	}
	wg.Wait()
	assert.Equal(t, 21, r.Len())
}

func TestRegistry_Instrumentation(t *testing.T) {
	mp, reader := testutil.NewMeterProvider()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	r := NewRegistry(func(o *Options) {
		o.MeterProvider = mp
		o.TracerProvider = tp
	})
	r.Register(echo("ok"))
	r.Register(NewFunction("bad", "", nil, func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("bad")
	}))

	ctx := context.Background()
	_, _ = r.Call(ctx, "ok", nil)
	_, _ = r.Call(ctx, "ok", nil)
	_, _ = r.Call(ctx, "bad", nil)
	_, _ = r.Call(ctx, "missing", nil)

	assert.Equal(t, int64(4), testutil.CounterValue(t, reader, "agentkernel.capability.calls"))
	assert.Equal(t, int64(2), testutil.CounterValue(t, reader, "agentkernel.capability.calls",
		attribute.String("capability", "ok"), attribute.String("outcome", "ok")))
	assert.Equal(t, int64(1), testutil.CounterValue(t, reader, "agentkernel.capability.calls",
		attribute.String("outcome", "not_found")))
	assert.Equal(t, uint64(3), testutil.HistogramCount(t, reader, "agentkernel.capability.duration_seconds"))

	spans := sr.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "capability.call", spans[0].Name())
	assert.Equal(t, otelcodes.Error, spans[2].Status().Code)
}

func TestRegistry_CallLogsOutcome(t *testing.T) {
	sink := core.NewMemoryLogSink()
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Output: io.Discard, Sink: sink})
	r := NewRegistry(func(o *Options) { o.Logger = logger })
	r.Register(echo("ok"))
	r.Register(NewFunction("fail", "", nil, func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("boom")
	}))

	_, err := r.Call(context.Background(), "ok", nil)
	require.NoError(t, err)
	_, err = r.Call(context.Background(), "fail", nil)
	require.Error(t, err)

	var outcomes []core.LogEntry
	for _, e := range sink.Entries() {
		if e.Message == "capability.call.completed" || e.Message == "capability.call.failed" {
			outcomes = append(outcomes, e)
		}
	}
	require.Len(t, outcomes, 2)
	assert.Equal(t, "ok", outcomes[0].Data.(map[string]any)["capability"])
	assert.Equal(t, "capability.call.failed", outcomes[1].Message)
	assert.Equal(t, "boom", outcomes[1].Data.(map[string]any)["error"])
}
