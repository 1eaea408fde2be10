// Package capability implements the capability registry: an ordered list of
// named operations that agents discover at Init and invoke by name.
//
// Lookups are exact-name and first match wins, so registering a duplicate name
// shadows nothing; the earlier registration keeps serving calls. Results and
// errors from a capability are returned to the caller unchanged.
package capability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/logging"
)

const instrumentationName = "github.com/hupe1980/agentkernel/capability"

// ErrNotFound is matched by errors.Is for calls to unknown capabilities.
var ErrNotFound = errors.New("capability not found")

// NotFoundError reports a call to an unregistered capability name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("capability %q not found", e.Name)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Options configures a Registry.
type Options struct {
	Logger         logging.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Registry holds capabilities in registration order. It is safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	caps   []core.Capability
	logger logging.Logger
	tracer trace.Tracer
	calls  metric.Int64Counter
	dur    metric.Float64Histogram
}

// NewRegistry creates an empty registry. Tracing and metrics default to the
// global OpenTelemetry providers.
func NewRegistry(optFns ...func(o *Options)) *Registry {
	opts := Options{
		Logger:         logging.NoOpLogger{},
		TracerProvider: otel.GetTracerProvider(),
		MeterProvider:  otel.GetMeterProvider(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	meter := opts.MeterProvider.Meter(instrumentationName)
	calls, err := meter.Int64Counter("agentkernel.capability.calls",
		metric.WithDescription("Number of capability calls"))
	if err != nil {
		opts.Logger.Warn("capability.metrics.disabled", "error", err)
	}
	dur, err := meter.Float64Histogram("agentkernel.capability.duration_seconds",
		metric.WithDescription("Capability call duration in seconds"))
	if err != nil {
		opts.Logger.Warn("capability.metrics.disabled", "error", err)
	}

	return &Registry{
		logger: opts.Logger,
		tracer: opts.TracerProvider.Tracer(instrumentationName),
		calls:  calls,
		dur:    dur,
	}
}

// Register appends c. Duplicate names are accepted; the first one registered
// keeps answering calls.
func (r *Registry) Register(c core.Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps = append(r.caps, c)
	r.logger.Debug("capability.registered", "capability", c.Name())
}

// RegisterAll registers caps in order.
func (r *Registry) RegisterAll(caps ...core.Capability) {
	for _, c := range caps {
		r.Register(c)
	}
}

// List describes every registered capability in registration order.
func (r *Registry) List() []core.CapabilityInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.CapabilityInfo, 0, len(r.caps))
	for _, c := range r.caps {
		out = append(out, core.InfoOf(c))
	}
	return out
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.caps)
}

// Lookup returns the first capability registered under name.
func (r *Registry) Lookup(name string) (core.Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.caps {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// Call executes the capability registered under name with args. A missing
// name yields a *NotFoundError; otherwise the capability's own result and
// error are returned verbatim.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	c, ok := r.Lookup(name)
	if !ok {
		r.logger.Warn("capability.call.not_found", "capability", name)
		r.record(ctx, name, "not_found", 0)
		return nil, &NotFoundError{Name: name}
	}

	ctx, span := r.tracer.Start(ctx, "capability.call",
		trace.WithAttributes(attribute.String("capability.name", name)))
	defer span.End()

	start := time.Now()
	r.logger.Debug("capability.call.start", "capability", name)

	result, err := c.Execute(ctx, args)
	elapsed := time.Since(start)
	logging.LogCapabilityCall(r.logger, name, elapsed, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.record(ctx, name, "error", elapsed)
		return result, err
	}

	r.record(ctx, name, "ok", elapsed)
	return result, nil
}

func (r *Registry) record(ctx context.Context, name, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("capability", name),
		attribute.String("outcome", outcome),
	)
	if r.calls != nil {
		r.calls.Add(ctx, 1, attrs)
	}
	if r.dur != nil && outcome != "not_found" {
		r.dur.Record(ctx, d.Seconds(), attrs)
	}
}
