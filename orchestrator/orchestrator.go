package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentkernel/bus"
	"github.com/hupe1980/agentkernel/capability"
	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/logging"
	"github.com/hupe1980/agentkernel/memory"
	"github.com/hupe1980/agentkernel/task"
)

const instrumentationName = "github.com/hupe1980/agentkernel/orchestrator"

// Options configures an Orchestrator. Every dependency has an in-process
// default so New() is usable as is.
type Options struct {
	Config Config

	// Bus carries messages between agents. Defaults to bus.New(bus.DefaultCapacity).
	Bus *bus.Bus
	// Store is the shared memory store. Defaults to memory.NewInMemoryStore().
	Store core.MemoryStore
	// Registry lists capabilities handed to agents at Init.
	Registry *capability.Registry
	// Tracker records tasks for snapshots.
	Tracker *task.Tracker

	Clock     Clock
	Callbacks *CallbackManager

	Logger         logging.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

type slot struct {
	agent core.Agent
	sub   *bus.Subscription
}

// Orchestrator owns the agent list and the shared bus and runs the tick loop.
//
// Agents are kept in registration order. Registering an id that is already
// present swaps the agent in place, keeping its position and its bus
// subscription. Registration is safe while Run is active; the change takes
// effect at the next pass, and an agent added mid-run is not Init'ed.
type Orchestrator struct {
	config    Config
	bus       *bus.Bus
	store     core.MemoryStore
	registry  *capability.Registry
	tracker   *task.Tracker
	clock     Clock
	callbacks *CallbackManager
	logger    logging.Logger
	tracer    trace.Tracer

	mu    sync.RWMutex
	slots []*slot
	index map[string]int

	passes  uint64
	running bool

	ticks     metric.Int64Counter
	published metric.Int64Counter
	lagged    metric.Int64Counter
	duration  metric.Float64Histogram
}

// New creates an orchestrator.
func New(optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Config:         DefaultConfig,
		Clock:          RealClock{},
		Logger:         logging.NoOpLogger{},
		TracerProvider: otel.GetTracerProvider(),
		MeterProvider:  otel.GetMeterProvider(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Bus == nil {
		opts.Bus = bus.New(bus.DefaultCapacity)
	}
	if opts.Store == nil {
		opts.Store = memory.NewInMemoryStore()
	}
	if opts.Registry == nil {
		opts.Registry = capability.NewRegistry(func(o *capability.Options) {
			o.Logger = opts.Logger
			o.TracerProvider = opts.TracerProvider
			o.MeterProvider = opts.MeterProvider
		})
	}
	if opts.Tracker == nil {
		opts.Tracker = task.NewTracker(0)
	}
	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}

	o := &Orchestrator{
		config:    opts.Config,
		bus:       opts.Bus,
		store:     opts.Store,
		registry:  opts.Registry,
		tracker:   opts.Tracker,
		clock:     opts.Clock,
		callbacks: opts.Callbacks,
		logger:    opts.Logger,
		tracer:    opts.TracerProvider.Tracer(instrumentationName),
		index:     make(map[string]int),
	}
	o.initMetrics(opts.MeterProvider.Meter(instrumentationName))
	return o
}

func (o *Orchestrator) initMetrics(meter metric.Meter) {
	var err error
	if o.ticks, err = meter.Int64Counter("agentkernel.ticks",
		metric.WithDescription("Completed tick passes")); err != nil {
		o.logger.Warn("orchestrator.metrics.disabled", "error", err)
	}
	if o.published, err = meter.Int64Counter("agentkernel.messages.published",
		metric.WithDescription("Messages published by agents")); err != nil {
		o.logger.Warn("orchestrator.metrics.disabled", "error", err)
	}
	if o.lagged, err = meter.Int64Counter("agentkernel.messages.lagged",
		metric.WithDescription("Messages lost by lagging agent subscriptions")); err != nil {
		o.logger.Warn("orchestrator.metrics.disabled", "error", err)
	}
	if o.duration, err = meter.Float64Histogram("agentkernel.tick.duration_seconds",
		metric.WithDescription("Duration of a full tick pass in seconds")); err != nil {
		o.logger.Warn("orchestrator.metrics.disabled", "error", err)
	}
}

// Bus returns the shared bus.
func (o *Orchestrator) Bus() *bus.Bus { return o.bus }

// Store returns the shared memory store.
func (o *Orchestrator) Store() core.MemoryStore { return o.store }

// Registry returns the capability registry.
func (o *Orchestrator) Registry() *capability.Registry { return o.registry }

// Tracker returns the task tracker.
func (o *Orchestrator) Tracker() *task.Tracker { return o.tracker }

// Callbacks returns the lifecycle hook manager.
func (o *Orchestrator) Callbacks() *CallbackManager { return o.callbacks }

// RegisterAgent adds a, or replaces the agent registered under the same id.
func (o *Orchestrator) RegisterAgent(a core.Agent) {
	id := a.Metadata().ID

	o.mu.Lock()
	defer o.mu.Unlock()

	if i, ok := o.index[id]; ok {
		o.slots[i].agent = a
		o.logger.Info("orchestrator.agent.replaced", "agent", id)
		return
	}
	o.index[id] = len(o.slots)
	o.slots = append(o.slots, &slot{agent: a, sub: o.bus.SubscribeAs(id)})
	o.logger.Info("orchestrator.agent.registered", "agent", id)
}

// Agents returns agent metadata in registration order.
func (o *Orchestrator) Agents() []core.AgentMetadata {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]core.AgentMetadata, len(o.slots))
	for i, s := range o.slots {
		out[i] = s.agent.Metadata()
	}
	return out
}

// Passes returns the number of completed passes.
func (o *Orchestrator) Passes() uint64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.passes
}

// Run initializes every agent and then runs passes until ctx is done, an
// agent or hook fails, or Config.MaxTicks passes have completed.
//
// Cancellation returns ctx.Err(). Failures return *AgentError or *HookError.
// Run must not be called concurrently with itself.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return ErrRunning
	}
	o.running = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	err := o.run(ctx)
	if err != nil && ctx.Err() == nil {
		o.onError(ctx, err)
	}
	return err
}

func (o *Orchestrator) run(ctx context.Context) error {
	if err := o.initAgents(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.pass(ctx); err != nil {
			return err
		}
		if o.config.MaxTicks > 0 && o.Passes() >= uint64(o.config.MaxTicks) {
			o.logger.Info("orchestrator.stopped", "passes", o.Passes())
			return nil
		}
		if err := o.clock.Sleep(ctx, o.config.TickInterval); err != nil {
			return err
		}
	}
}

func (o *Orchestrator) initAgents(ctx context.Context) error {
	caps := o.registry.List()
	for _, s := range o.snapshotSlots() {
		id := s.agent.Metadata().ID
		err := o.call(ctx, func(cctx context.Context) error { return s.agent.Init(cctx, caps) })
		if err != nil {
			return o.agentError(ctx, id, OpInit, err)
		}
	}
	o.logger.Info("orchestrator.started", "agents", len(o.snapshotSlots()), "capabilities", len(caps))
	return nil
}

func (o *Orchestrator) pass(ctx context.Context) error {
	o.mu.RLock()
	n := o.passes
	o.mu.RUnlock()

	ctx, span := o.tracer.Start(ctx, "orchestrator.pass",
		trace.WithAttributes(attribute.Int64("pass", int64(n))))
	defer span.End()

	if err := o.callbacks.ExecuteCallbacks(ctx, CallbackBeforeTick, &CallbackContext{Pass: n}); err != nil {
		return o.fail(span, &HookError{Type: CallbackBeforeTick, Err: err})
	}

	start := time.Now()
	published := 0
	for _, s := range o.snapshotSlots() {
		count, err := o.step(ctx, s)
		published += count
		if err != nil {
			return o.fail(span, err)
		}
	}

	o.mu.Lock()
	o.passes++
	o.mu.Unlock()

	if o.ticks != nil {
		o.ticks.Add(ctx, 1)
	}
	if o.duration != nil {
		o.duration.Record(ctx, time.Since(start).Seconds())
	}
	span.SetAttributes(attribute.Int("published", published))

	if err := o.callbacks.ExecuteCallbacks(ctx, CallbackAfterTick, &CallbackContext{Pass: n, Published: published}); err != nil {
		return o.fail(span, &HookError{Type: CallbackAfterTick, Err: err})
	}
	return nil
}

// step delivers pending messages to one agent, ticks it and publishes its
// output. It returns the number of messages published.
func (o *Orchestrator) step(ctx context.Context, s *slot) (int, error) {
	id := s.agent.Metadata().ID

	msgs, missed := s.sub.Drain()
	if missed > 0 {
		o.logger.Warn("orchestrator.agent.lagged", "agent", id, "missed", missed)
		if o.lagged != nil {
			o.lagged.Add(ctx, int64(missed), metric.WithAttributes(attribute.String("agent", id)))
		}
	}

	for _, msg := range msgs {
		if msg.Source == id || !msg.IsFor(id) {
			continue
		}
		err := o.call(ctx, func(cctx context.Context) error { return s.agent.OnMessage(cctx, msg) })
		if err != nil {
			return 0, o.agentError(ctx, id, OpOnMessage, err)
		}
	}

	var out []core.Message
	err := o.call(ctx, func(cctx context.Context) error {
		var terr error
		out, terr = s.agent.Tick(cctx)
		return terr
	})
	if err != nil {
		return 0, o.agentError(ctx, id, OpTick, err)
	}

	for _, msg := range out {
		msg = o.stamp(id, msg)
		delivered := o.bus.Publish(msg)
		o.logger.Debug("orchestrator.message.published",
			"agent", id, "message_id", msg.ID, "kind", string(msg.Kind), "delivered", delivered)
	}
	if o.published != nil && len(out) > 0 {
		o.published.Add(ctx, int64(len(out)), metric.WithAttributes(attribute.String("agent", id)))
	}
	return len(out), nil
}

// stamp fills fields an agent left empty.
func (o *Orchestrator) stamp(id string, msg core.Message) core.Message {
	if msg.ID == "" {
		msg.ID = core.NewID()
	}
	if msg.Source == "" {
		msg.Source = id
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = o.clock.Now()
	}
	return msg
}

// call runs fn, bounded by Config.TickTimeout when set. A call that ignores
// its context is abandoned at the deadline; the loop stops anyway, so the
// agent is never called again.
func (o *Orchestrator) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if o.config.TickTimeout <= 0 {
		return fn(ctx)
	}

	cctx, cancel := context.WithTimeout(ctx, o.config.TickTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(cctx) }()

	return awaitCall(ctx, cctx, done, o.config.TickTimeout)
}

// awaitCall waits for a call result or its deadline. A result that is already
// available when the deadline fires takes precedence.
func awaitCall(ctx, cctx context.Context, done <-chan error, timeout time.Duration) error {
	select {
	case err := <-done:
		return callResult(ctx, cctx, err, timeout)
	case <-cctx.Done():
		select {
		case err := <-done:
			return callResult(ctx, cctx, err, timeout)
		default:
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return timeoutError(timeout)
	}
}

func callResult(ctx, cctx context.Context, err error, timeout time.Duration) error {
	if err != nil && errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return timeoutError(timeout)
	}
	return err
}

// agentError wraps err unless the loop itself is being cancelled.
func (o *Orchestrator) agentError(ctx context.Context, id, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &AgentError{AgentID: id, Op: op, Err: err}
}

func (o *Orchestrator) fail(span trace.Span, err error) error {
	if !errors.Is(err, context.Canceled) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (o *Orchestrator) onError(ctx context.Context, err error) {
	cc := &CallbackContext{Pass: o.Passes(), Err: err}
	var ae *AgentError
	if errors.As(err, &ae) {
		cc.AgentID = ae.AgentID
	}
	o.logger.Error("orchestrator.failed", "agent", cc.AgentID, "error", err)
	if herr := o.callbacks.ExecuteCallbacks(ctx, CallbackOnError, cc); herr != nil {
		o.logger.Warn("orchestrator.callback.failed", "callback", string(CallbackOnError), "error", herr)
	}
}

func (o *Orchestrator) snapshotSlots() []*slot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*slot, len(o.slots))
	for i, s := range o.slots {
		cp := *s
		out[i] = &cp
	}
	return out
}
