package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentkernel/adapter"
	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/logging"
	"github.com/hupe1980/agentkernel/logic"
	"github.com/hupe1980/agentkernel/task"
)

// Intent payload fields understood by ModelAgent.
const (
	FieldPrompt     = "prompt"
	FieldSystem     = "system"
	FieldProvider   = "provider"
	FieldCapability = "capability"
	FieldArgs       = "args"
)

// TaskKindQuery is the task kind recorded for answered intents.
const TaskKindQuery = "query"

// ErrInvalidIntent is reported when an intent payload carries no prompt.
var ErrInvalidIntent = errors.New("invalid intent")

// CapabilityCaller invokes a capability by name. *capability.Registry
// satisfies it.
type CapabilityCaller interface {
	Call(ctx context.Context, name string, args map[string]any) (any, error)
}

// ModelAgentOptions configures a ModelAgent.
type ModelAgentOptions struct {
	// Provider pins queries to one backend and selects which broadcast
	// intents this agent accepts. Nil lets the router choose and accepts
	// only targeted intents.
	Provider    *adapter.Provider
	Instruction Instruction
	// Capabilities enables intents that request a capability call.
	Capabilities CapabilityCaller
	// Tracker, when set, records every task created.
	Tracker *task.Tracker
	// MaxPerTick bounds the intents answered in one tick. Zero means no bound.
	MaxPerTick int
	Clock      func() time.Time
	Logger     logging.Logger
}

// ModelAgent answers intent messages with a model backend. Each intent
// becomes a task that is driven through initialize, begin execution,
// validate and complete; the result is persisted under task.Key(id) and
// returned to the sender as a data message. Any failure fails the task and
// is reported to the sender as an error message.
type ModelAgent struct {
	BaseAgent
	logic   logic.CoreLogic
	store   core.MemoryStore
	opts    ModelAgentOptions
	pending []core.Message
}

var _ core.Agent = (*ModelAgent)(nil)

// NewModelAgent creates a ModelAgent.
func NewModelAgent(meta core.AgentMetadata, backend logic.CoreLogic, store core.MemoryStore, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction: NewInstructionFromTemplate("You are {{.agent}}, one agent in a cooperative multi-agent system."),
		MaxPerTick:  8,
		Clock:       func() time.Time { return time.Now().UTC() },
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &ModelAgent{
		BaseAgent: NewBaseAgent(meta),
		logic:     backend,
		store:     store,
		opts:      opts,
	}
}

// WithProvider pins the agent to p.
func WithProvider(p adapter.Provider) func(o *ModelAgentOptions) {
	return func(o *ModelAgentOptions) { o.Provider = &p }
}

// Pending returns the number of intents waiting for the next tick.
func (a *ModelAgent) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// OnMessage queues intents this agent should answer. Other messages go to
// the inbox.
func (a *ModelAgent) OnMessage(ctx context.Context, msg core.Message) error {
	if msg.Kind != core.KindIntent || !a.accepts(msg) {
		return a.BaseAgent.OnMessage(ctx, msg)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = append(a.pending, msg)
	return nil
}

func (a *ModelAgent) accepts(msg core.Message) bool {
	if msg.Target != nil {
		return *msg.Target == a.meta.ID
	}
	if a.opts.Provider == nil {
		return false
	}
	p, ok := payloadString(msg.Payload, FieldProvider)
	return ok && strings.EqualFold(p, a.opts.Provider.String())
}

// Tick answers queued intents.
func (a *ModelAgent) Tick(ctx context.Context) ([]core.Message, error) {
	a.mu.Lock()
	batch := a.pending
	if a.opts.MaxPerTick > 0 && len(batch) > a.opts.MaxPerTick {
		batch = batch[:a.opts.MaxPerTick]
	}
	a.pending = a.pending[len(batch):]
	a.mu.Unlock()

	out := make([]core.Message, 0, len(batch))
	for _, intent := range batch {
		out = append(out, a.answer(ctx, intent))
	}
	return out, nil
}

func (a *ModelAgent) answer(ctx context.Context, intent core.Message) core.Message {
	prompt, _ := promptOf(intent.Payload)
	t := task.New(core.TaskMeta{
		Origin:      intent.Source,
		Kind:        TaskKindQuery,
		Description: summarize(prompt),
	}, intent.Payload, task.WithClock(a.opts.Clock))
	if a.opts.Tracker != nil {
		a.opts.Tracker.Track(t)
	}

	result, version, err := a.run(ctx, t, intent, prompt)
	if err != nil {
		t.Fail()
		a.opts.Logger.Warn("agent.task_failed", "agent", a.meta.ID, "task_id", t.ID(), "error", err)
		return a.SendTo(intent.Source, core.KindError, map[string]any{
			"task_id":   t.ID(),
			"intent_id": intent.ID,
			"phase":     task.Failed.String(),
			"error":     err.Error(),
		})
	}

	a.opts.Logger.Debug("agent.task_completed", "agent", a.meta.ID, "task_id", t.ID(), "version", version)
	return a.SendTo(intent.Source, core.KindData, map[string]any{
		"task_id":   result.TaskID,
		"intent_id": intent.ID,
		"phase":     result.Phase.String(),
		"output":    result.Output,
		"version":   version,
	})
}

func (a *ModelAgent) run(ctx context.Context, t *task.Task, intent core.Message, prompt string) (task.Result, uint64, error) {
	if err := t.Initialize(); err != nil {
		return task.Result{}, 0, err
	}
	if prompt == "" {
		return task.Result{}, 0, fmt.Errorf("%w: missing %q", ErrInvalidIntent, FieldPrompt)
	}
	if err := t.BeginExecution(); err != nil {
		return task.Result{}, 0, err
	}

	output := map[string]any{}

	if name, ok := payloadString(intent.Payload, FieldCapability); ok && name != "" {
		if a.opts.Capabilities == nil {
			return task.Result{}, 0, fmt.Errorf("capability %q requested but none are available", name)
		}
		res, err := a.opts.Capabilities.Call(ctx, name, payloadArgs(intent.Payload))
		if err != nil {
			return task.Result{}, 0, fmt.Errorf("capability %s: %w", name, err)
		}
		output["capability"] = name
		output["capability_result"] = res
		prompt = fmt.Sprintf("%s\n\nResult of capability %s:\n%s", prompt, name, render(res))
	}

	q, err := a.query(ctx, intent, prompt)
	if err != nil {
		return task.Result{}, 0, err
	}
	res, err := a.logic.Query(ctx, q)
	if err != nil {
		return task.Result{}, 0, err
	}
	output["content"] = res.Content
	output["provider"] = res.ProviderUsed.String()
	output["query_id"] = res.QueryID
	output["latency_ms"] = res.LatencyMS

	if err := t.Validate(output); err != nil {
		return task.Result{}, 0, err
	}
	result, err := t.Complete()
	if err != nil {
		return task.Result{}, 0, err
	}
	version, err := task.Persist(ctx, a.store, result)
	if err != nil {
		return task.Result{}, 0, err
	}
	return result, version, nil
}

func (a *ModelAgent) query(ctx context.Context, intent core.Message, prompt string) (logic.Query, error) {
	q := logic.NewQuery(prompt)

	system, ok := payloadString(intent.Payload, FieldSystem)
	if !ok {
		var err error
		system, err = a.opts.Instruction.Resolve(ctx, InstructionContext{
			Agent:        a.Metadata(),
			Capabilities: a.Capabilities(),
			Intent:       intent,
			Prompt:       prompt,
		})
		if err != nil {
			return logic.Query{}, fmt.Errorf("resolve instruction: %w", err)
		}
	}
	if system != "" {
		q = q.WithSystem(system)
	}
	if a.opts.Provider != nil {
		q = q.WithProvider(*a.opts.Provider)
	}
	return q, nil
}

// promptOf accepts a bare string payload or an object with a prompt field.
func promptOf(payload any) (string, bool) {
	if s, ok := payload.(string); ok {
		return s, true
	}
	return payloadString(payload, FieldPrompt)
}

func payloadString(payload any, key string) (string, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := m[key].(string)
	return s, ok
}

func payloadArgs(payload any) map[string]any {
	m, ok := payload.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	if args, ok := m[FieldArgs].(map[string]any); ok {
		return args
	}
	return map[string]any{}
}

func render(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func summarize(s string) string {
	const limit = 80
	if r := []rune(s); len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return s
}
