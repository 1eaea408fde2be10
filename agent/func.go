package agent

import (
	"context"

	"github.com/hupe1980/agentkernel/core"
)

// FuncAgentOptions holds the closures backing a FuncAgent. Nil closures fall
// back to BaseAgent behavior.
type FuncAgentOptions struct {
	InitFn    func(ctx context.Context, capabilities []core.CapabilityInfo) error
	TickFn    func(ctx context.Context, self *FuncAgent) ([]core.Message, error)
	MessageFn func(ctx context.Context, self *FuncAgent, msg core.Message) error
}

// FuncAgent is an agent assembled from closures.
type FuncAgent struct {
	BaseAgent
	opts FuncAgentOptions
}

var _ core.Agent = (*FuncAgent)(nil)

// NewFuncAgent creates a FuncAgent.
func NewFuncAgent(meta core.AgentMetadata, optFns ...func(o *FuncAgentOptions)) *FuncAgent {
	var opts FuncAgentOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &FuncAgent{BaseAgent: NewBaseAgent(meta), opts: opts}
}

// WithTick sets the tick closure.
func WithTick(fn func(ctx context.Context, self *FuncAgent) ([]core.Message, error)) func(o *FuncAgentOptions) {
	return func(o *FuncAgentOptions) { o.TickFn = fn }
}

// WithOnMessage sets the message closure.
func WithOnMessage(fn func(ctx context.Context, self *FuncAgent, msg core.Message) error) func(o *FuncAgentOptions) {
	return func(o *FuncAgentOptions) { o.MessageFn = fn }
}

// WithInit sets the init closure. The capability listing is recorded first.
func WithInit(fn func(ctx context.Context, capabilities []core.CapabilityInfo) error) func(o *FuncAgentOptions) {
	return func(o *FuncAgentOptions) { o.InitFn = fn }
}

func (f *FuncAgent) Init(ctx context.Context, capabilities []core.CapabilityInfo) error {
	if err := f.BaseAgent.Init(ctx, capabilities); err != nil {
		return err
	}
	if f.opts.InitFn != nil {
		return f.opts.InitFn(ctx, capabilities)
	}
	return nil
}

func (f *FuncAgent) OnMessage(ctx context.Context, msg core.Message) error {
	if f.opts.MessageFn != nil {
		return f.opts.MessageFn(ctx, f, msg)
	}
	return f.BaseAgent.OnMessage(ctx, msg)
}

func (f *FuncAgent) Tick(ctx context.Context) ([]core.Message, error) {
	if f.opts.TickFn != nil {
		return f.opts.TickFn(ctx, f)
	}
	return nil, nil
}
