package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkernel/core"
)

func TestBaseAgent_Metadata(t *testing.T) {
	caps := []string{"echo"}
	b := NewBaseAgent(core.AgentMetadata{ID: "a1", Version: "1.0.0", Capabilities: caps})
	caps[0] = "mutated"

	meta := b.Metadata()
	assert.Equal(t, "a1", meta.Name)
	assert.Equal(t, []string{"echo"}, meta.Capabilities)

	meta.Capabilities[0] = "changed"
	assert.Equal(t, []string{"echo"}, b.Metadata().Capabilities)
	assert.Equal(t, "a1", b.ID())
}

func TestBaseAgent_InitRecordsCapabilities(t *testing.T) {
	b := NewBaseAgent(core.AgentMetadata{ID: "a1"})
	assert.False(t, b.Initialized())

	require.NoError(t, b.Init(context.Background(), []core.CapabilityInfo{{Name: "echo"}, {Name: "sum"}}))
	assert.True(t, b.Initialized())
	assert.Len(t, b.Capabilities(), 2)
	assert.True(t, b.HasCapability("sum"))
	assert.False(t, b.HasCapability("missing"))
}

func TestBaseAgent_Inbox(t *testing.T) {
	b := NewBaseAgent(core.AgentMetadata{ID: "a1"})
	m1 := core.NewMessage("x", core.KindStatus, 1)
	m2 := core.NewMessage("y", core.KindData, 2)
	require.NoError(t, b.OnMessage(context.Background(), m1))
	require.NoError(t, b.OnMessage(context.Background(), m2))
	assert.Equal(t, 2, b.InboxLen())

	assert.Equal(t, []core.Message{m1, m2}, b.DrainInbox())
	assert.Empty(t, b.DrainInbox())

	out, err := b.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestBaseAgent_SendHelpers(t *testing.T) {
	b := NewBaseAgent(core.AgentMetadata{ID: "a1"})
	m := b.Send(core.KindStatus, "ok")
	assert.Equal(t, "a1", m.Source)
	assert.True(t, m.IsBroadcast())

	d := b.SendTo("a2", core.KindCommand, "go")
	require.NotNil(t, d.Target)
	assert.Equal(t, "a2", *d.Target)
}

func TestFuncAgent(t *testing.T) {
	var initCaps []core.CapabilityInfo
	var seen []core.Message
	errStop := errors.New("stop")

	f := NewFuncAgent(core.AgentMetadata{ID: "f1"},
		WithInit(func(_ context.Context, caps []core.CapabilityInfo) error {
			initCaps = caps
			return nil
		}),
		WithOnMessage(func(_ context.Context, _ *FuncAgent, msg core.Message) error {
			seen = append(seen, msg)
			return nil
		}),
		WithTick(func(_ context.Context, self *FuncAgent) ([]core.Message, error) {
			if len(seen) > 1 {
				return nil, errStop
			}
			return []core.Message{self.Send(core.KindStatus, len(seen))}, nil
		}),
	)

	caps := []core.CapabilityInfo{{Name: "echo"}}
	require.NoError(t, f.Init(context.Background(), caps))
	assert.Equal(t, caps, initCaps)
	assert.True(t, f.HasCapability("echo"))

	require.NoError(t, f.OnMessage(context.Background(), core.NewMessage("x", core.KindData, nil)))
	out, err := f.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].Payload)

	require.NoError(t, f.OnMessage(context.Background(), core.NewMessage("x", core.KindData, nil)))
	_, err = f.Tick(context.Background())
	assert.ErrorIs(t, err, errStop)
	assert.Zero(t, f.InboxLen())
}

func TestFuncAgent_Defaults(t *testing.T) {
	f := NewFuncAgent(core.AgentMetadata{ID: "f1"})
	require.NoError(t, f.OnMessage(context.Background(), core.NewMessage("x", core.KindData, nil)))
	assert.Equal(t, 1, f.InboxLen())
	out, err := f.Tick(context.Background())
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestInstruction(t *testing.T) {
	ic := InstructionContext{
		Agent:        core.AgentMetadata{ID: "a1", Name: "Alpha"},
		Capabilities: []core.CapabilityInfo{{Name: "echo"}, {Name: "sum"}},
		Intent:       core.NewMessage("user", core.KindIntent, nil),
	}

	s, err := NewInstructionFromText("static").Resolve(context.Background(), ic)
	require.NoError(t, err)
	assert.Equal(t, "static", s)
	assert.True(t, NewInstructionFromText("x").IsStatic())

	tmpl := NewInstructionFromTemplate(`You are {{.agent}} serving {{.source}}. Tools: {{join ", " .capabilities}}.`)
	assert.False(t, tmpl.IsStatic())
	s, err = tmpl.Resolve(context.Background(), ic)
	require.NoError(t, err)
	assert.Equal(t, "You are Alpha serving user. Tools: echo, sum.", s)

	fn := NewInstructionFromFunc(func(_ context.Context, ic InstructionContext) (string, error) {
		return "dynamic " + ic.Agent.ID, nil
	})
	s, err = fn.Resolve(context.Background(), ic)
	require.NoError(t, err)
	assert.Equal(t, "dynamic a1", s)
}
