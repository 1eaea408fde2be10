package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkernel/adapter"
	"github.com/hupe1980/agentkernel/capability"
	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/logic"
	"github.com/hupe1980/agentkernel/memory"
	"github.com/hupe1980/agentkernel/task"
)

type fixture struct {
	mock    *adapter.Mock
	store   *memory.InMemoryStore
	tracker *task.Tracker
	agent   *ModelAgent
}

func newFixture(t *testing.T, optFns ...func(o *ModelAgentOptions)) *fixture {
	t.Helper()
	mock := adapter.NewMock(adapter.Claude).AddResponse("hello", "world")
	router := logic.NewRouter()
	router.Register(mock)

	store := memory.NewInMemoryStore()
	tracker := task.NewTracker(0)

	opts := append([]func(o *ModelAgentOptions){
		WithProvider(adapter.Claude),
		func(o *ModelAgentOptions) { o.Tracker = tracker },
	}, optFns...)

	a := NewModelAgent(core.AgentMetadata{ID: "claude", Name: "Claude"}, router, store, opts...)
	require.NoError(t, a.Init(context.Background(), nil))
	return &fixture{mock: mock, store: store, tracker: tracker, agent: a}
}

func (f *fixture) deliver(t *testing.T, msgs ...core.Message) []core.Message {
	t.Helper()
	for _, m := range msgs {
		require.NoError(t, f.agent.OnMessage(context.Background(), m))
	}
	out, err := f.agent.Tick(context.Background())
	require.NoError(t, err)
	return out
}

func TestModelAgent_AnswersTargetedIntent(t *testing.T) {
	f := newFixture(t)
	intent := core.NewDirectMessage("user", "claude", core.KindIntent, map[string]any{"prompt": "hello"})

	out := f.deliver(t, intent)
	require.Len(t, out, 1)
	reply := out[0]
	assert.Equal(t, core.KindData, reply.Kind)
	assert.Equal(t, "claude", reply.Source)
	require.NotNil(t, reply.Target)
	assert.Equal(t, "user", *reply.Target)

	payload := reply.Payload.(map[string]any)
	assert.Equal(t, "completed", payload["phase"])
	assert.Equal(t, intent.ID, payload["intent_id"])
	assert.Equal(t, uint64(1), payload["version"])
	output := payload["output"].(map[string]any)
	assert.Equal(t, "world", output["content"])
	assert.Equal(t, "claude", output["provider"])

	taskID := payload["task_id"].(string)
	rec, err := f.store.Load(context.Background(), task.Key(taskID))
	require.NoError(t, err)
	res := rec.Value.(task.Result)
	assert.Equal(t, task.Completed, res.Phase)
	assert.Equal(t, output, res.Output)

	tk, ok := f.tracker.Get(taskID)
	require.True(t, ok)
	assert.Equal(t, task.Completed, tk.Phase())
	assert.Equal(t, core.TaskMeta{Origin: "user", Kind: TaskKindQuery, Description: "hello"}, tk.Meta())

	calls := f.mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, adapter.RoleSystem, calls[0][0].Role)
	assert.Equal(t, "You are Claude, one agent in a cooperative multi-agent system.", calls[0][0].Content)
}

func TestModelAgent_BroadcastIntentFiltering(t *testing.T) {
	f := newFixture(t)

	other := core.NewMessage("user", core.KindIntent, map[string]any{"prompt": "hi", "provider": "grok"})
	mine := core.NewMessage("user", core.KindIntent, map[string]any{"prompt": "hi", "provider": "Claude"})
	unrouted := core.NewMessage("user", core.KindIntent, map[string]any{"prompt": "hi"})
	status := core.NewMessage("user", core.KindStatus, "ignored")

	out := f.deliver(t, other, mine, unrouted, status)
	require.Len(t, out, 1)
	assert.Equal(t, mine.ID, out[0].Payload.(map[string]any)["intent_id"])
	assert.Equal(t, 3, f.agent.InboxLen())
}

func TestModelAgent_StringPayloadAndSystemOverride(t *testing.T) {
	f := newFixture(t)

	out := f.deliver(t,
		core.NewDirectMessage("user", "claude", core.KindIntent, "hello"),
		core.NewDirectMessage("user", "claude", core.KindIntent, map[string]any{"prompt": "x", "system": "terse"}),
	)
	require.Len(t, out, 2)
	assert.Equal(t, core.KindData, out[0].Kind)

	calls := f.mock.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, adapter.System("terse"), calls[1][0])
}

func TestModelAgent_InvalidIntentFailsTask(t *testing.T) {
	f := newFixture(t)

	out := f.deliver(t, core.NewDirectMessage("user", "claude", core.KindIntent, map[string]any{"nope": 1}))
	require.Len(t, out, 1)
	assert.Equal(t, core.KindError, out[0].Kind)
	payload := out[0].Payload.(map[string]any)
	assert.Equal(t, "failed", payload["phase"])
	assert.Contains(t, payload["error"], "invalid intent")

	sums := f.tracker.Summaries()
	require.Len(t, sums, 1)
	assert.Equal(t, task.Failed, sums[0].Phase)

	keys, err := f.store.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestModelAgent_BackendFailure(t *testing.T) {
	f := newFixture(t)
	f.mock.FailWith(&adapter.RateLimitedError{Provider: adapter.Claude, RetryAfter: time.Second})

	out := f.deliver(t, core.NewDirectMessage("user", "claude", core.KindIntent, "hello"))
	require.Len(t, out, 1)
	assert.Equal(t, core.KindError, out[0].Kind)
	assert.Contains(t, out[0].Payload.(map[string]any)["error"], "rate limited")
}

func TestModelAgent_CapabilityCall(t *testing.T) {
	reg := capability.NewRegistry()
	reg.Register(capability.NewFunction("weather", "Current weather", nil,
		func(_ context.Context, args map[string]any) (any, error) {
			return map[string]any{"city": args["city"], "temp_c": 21}, nil
		}))
	reg.Register(capability.NewFunction("broken", "Always fails", nil,
		func(context.Context, map[string]any) (any, error) { return nil, errors.New("sensor offline") }))

	f := newFixture(t, func(o *ModelAgentOptions) { o.Capabilities = reg })

	out := f.deliver(t,
		core.NewDirectMessage("user", "claude", core.KindIntent, map[string]any{
			"prompt": "Summarize", "capability": "weather", "args": map[string]any{"city": "Berlin"},
		}),
		core.NewDirectMessage("user", "claude", core.KindIntent, map[string]any{
			"prompt": "Summarize", "capability": "broken",
		}),
		core.NewDirectMessage("user", "claude", core.KindIntent, map[string]any{
			"prompt": "Summarize", "capability": "missing",
		}),
	)
	require.Len(t, out, 3)

	require.Equal(t, core.KindData, out[0].Kind)
	output := out[0].Payload.(map[string]any)["output"].(map[string]any)
	assert.Equal(t, "weather", output["capability"])
	assert.Equal(t, map[string]any{"city": "Berlin", "temp_c": 21}, output["capability_result"])
	calls := f.mock.Calls()
	assert.Contains(t, calls[0][len(calls[0])-1].Content, `"city":"Berlin"`)

	assert.Equal(t, core.KindError, out[1].Kind)
	assert.Contains(t, out[1].Payload.(map[string]any)["error"], "sensor offline")
	assert.Equal(t, core.KindError, out[2].Kind)
	assert.Contains(t, out[2].Payload.(map[string]any)["error"], "not found")
}

func TestModelAgent_MaxPerTick(t *testing.T) {
	f := newFixture(t, func(o *ModelAgentOptions) { o.MaxPerTick = 2 })

	var msgs []core.Message
	for i := 0; i < 5; i++ {
		msgs = append(msgs, core.NewDirectMessage("user", "claude", core.KindIntent, "hello"))
	}
	assert.Len(t, f.deliver(t, msgs...), 2)
	assert.Equal(t, 3, f.agent.Pending())
	assert.Len(t, f.deliver(t), 2)
	assert.Len(t, f.deliver(t), 1)
	assert.Zero(t, f.agent.Pending())
}
