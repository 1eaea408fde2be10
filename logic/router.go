package logic

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentkernel/adapter"
	"github.com/hupe1980/agentkernel/internal/resilience"
	"github.com/hupe1980/agentkernel/logging"
)

// Options configures a Router.
type Options struct {
	// Timeout bounds each query. Zero disables it.
	Timeout time.Duration
	// MaxConcurrency bounds QueryBatch. Zero or less means unbounded.
	MaxConcurrency int
	// MaxFailures consecutive failures open a provider's breaker.
	MaxFailures int
	// Cooldown is how long an open breaker rejects calls.
	Cooldown time.Duration

	Logger        logging.Logger
	MeterProvider metric.MeterProvider
}

type route struct {
	adapter adapter.Adapter
	breaker *resilience.Breaker
}

// ProviderStatus is a read-only view of one registered adapter.
type ProviderStatus struct {
	Provider adapter.Provider `json:"provider"`
	Breaker  string           `json:"breaker"`
}

// Router is a CoreLogic over registered adapters. Safe for concurrent use.
type Router struct {
	mu     sync.RWMutex
	routes []route
	opts   Options

	queries metric.Int64Counter
}

var _ CoreLogic = (*Router)(nil)

// NewRouter creates an empty router.
func NewRouter(optFns ...func(o *Options)) *Router {
	opts := Options{
		MaxConcurrency: 4,
		MaxFailures:    3,
		Cooldown:       30 * time.Second,
		Logger:         logging.NoOpLogger{},
		MeterProvider:  otel.GetMeterProvider(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	meter := opts.MeterProvider.Meter("github.com/hupe1980/agentkernel/logic")
	queries, err := meter.Int64Counter("agentkernel.logic.queries",
		metric.WithDescription("Queries routed to provider adapters"))
	if err != nil {
		opts.Logger.Warn("logic.metrics.disabled", "error", err)
	}

	return &Router{opts: opts, queries: queries}
}

// Register adds an adapter. A second adapter for the same provider replaces
// the first in place.
func (r *Router) Register(a adapter.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt := route{adapter: a, breaker: resilience.NewBreaker(r.opts.MaxFailures, r.opts.Cooldown)}
	for i := range r.routes {
		if r.routes[i].adapter.Provider() == a.Provider() {
			r.routes[i] = rt
			return
		}
	}
	r.routes = append(r.routes, rt)
}

// Providers lists registered adapters in registration order.
func (r *Router) Providers() []ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ProviderStatus, len(r.routes))
	for i, rt := range r.routes {
		out[i] = ProviderStatus{Provider: rt.adapter.Provider(), Breaker: rt.breaker.State().String()}
	}
	return out
}

// CheckHealth probes every adapter and feeds the outcome into its breaker.
func (r *Router) CheckHealth(ctx context.Context) map[adapter.Provider]error {
	r.mu.RLock()
	routes := append([]route(nil), r.routes...)
	r.mu.RUnlock()

	out := make(map[adapter.Provider]error, len(routes))
	for _, rt := range routes {
		err := rt.breaker.Execute(func() error { return rt.adapter.HealthCheck(ctx) })
		if err != nil {
			r.opts.Logger.Warn("logic.health_check_failed", "provider", rt.adapter.Provider().String(), "error", err)
		}
		out[rt.adapter.Provider()] = err
	}
	return out
}

// Query routes q to one adapter.
func (r *Router) Query(ctx context.Context, q Query) (QueryResult, error) {
	rt, err := r.pick(q.Provider)
	if err != nil {
		r.record(ctx, nil, "unavailable")
		return QueryResult{}, err
	}
	p := rt.adapter.Provider()

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	var resp adapter.Response
	start := time.Now()
	err = rt.breaker.Execute(func() error {
		var cerr error
		resp, cerr = rt.adapter.Chat(ctx, q.Messages())
		return cerr
	})

	if errors.Is(err, resilience.ErrCircuitOpen) {
		r.record(ctx, &p, "unavailable")
		return QueryResult{}, &UnavailableError{Provider: &p, Reason: "circuit open"}
	}
	logging.LogModelCall(r.opts.Logger, p.String(), resp.InputTokens+resp.OutputTokens, time.Since(start), err)

	switch {
	case err != nil && r.opts.Timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded):
		r.record(ctx, &p, "timeout")
		return QueryResult{}, &TimeoutError{After: r.opts.Timeout}
	case err != nil:
		r.record(ctx, &p, "error")
		return QueryResult{}, &QueryError{Provider: p, Err: err}
	}

	r.record(ctx, &p, "ok")
	return QueryResult{
		QueryID:      q.ID,
		ProviderUsed: resp.Provider,
		Content:      resp.Content,
		LatencyMS:    resp.LatencyMS,
	}, nil
}

// QueryBatch runs queries concurrently, bounded by MaxConcurrency.
func (r *Router) QueryBatch(ctx context.Context, qs []Query) []BatchResult {
	out := make([]BatchResult, len(qs))

	g, gctx := errgroup.WithContext(ctx)
	if r.opts.MaxConcurrency > 0 {
		g.SetLimit(r.opts.MaxConcurrency)
	}
	for i, q := range qs {
		g.Go(func() error {
			res, err := r.Query(gctx, q)
			out[i] = BatchResult{Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (r *Router) pick(pinned *adapter.Provider) (route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if pinned != nil {
		for _, rt := range r.routes {
			if rt.adapter.Provider() == *pinned {
				return rt, nil
			}
		}
		return route{}, &UnavailableError{Provider: pinned, Reason: "not registered"}
	}
	for _, rt := range r.routes {
		if rt.breaker.Ready() {
			return rt, nil
		}
	}
	if len(r.routes) == 0 {
		return route{}, &UnavailableError{Reason: "no adapters registered"}
	}
	return route{}, &UnavailableError{Reason: "no healthy adapter"}
}

func (r *Router) record(ctx context.Context, p *adapter.Provider, outcome string) {
	attrs := []attribute.KeyValue{attribute.String("outcome", outcome)}
	if p != nil {
		attrs = append(attrs, attribute.String("provider", p.String()))
	}
	if r.queries != nil {
		r.queries.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
