package agent

import (
	"context"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/internal/util"
)

// InstructionContext is the data available when resolving a system prompt.
type InstructionContext struct {
	Agent        core.AgentMetadata
	Capabilities []core.CapabilityInfo
	Intent       core.Message
	Prompt       string
}

// data exposes the context to templates.
func (ic InstructionContext) data() map[string]any {
	names := make([]string, len(ic.Capabilities))
	for i, c := range ic.Capabilities {
		names[i] = c.Name
	}
	return map[string]any{
		"agent":        ic.Agent.Name,
		"agent_id":     ic.Agent.ID,
		"version":      ic.Agent.Version,
		"capabilities": names,
		"source":       ic.Intent.Source,
		"prompt":       ic.Prompt,
	}
}

// Provider supplies instruction text at runtime.
type Provider interface {
	Instruction(ctx context.Context, ic InstructionContext) (string, error)
}

// Func adapts an ordinary function to a Provider.
type Func func(ctx context.Context, ic InstructionContext) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(ctx context.Context, ic InstructionContext) (string, error) {
	return f(ctx, ic)
}

// Instruction is either static text, a text/template, or a dynamic provider.
type Instruction struct {
	text     string
	template bool
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromTemplate creates an Instruction rendered per intent.
// Available fields: agent, agent_id, version, capabilities, source, prompt.
func NewInstructionFromTemplate(text string) Instruction {
	return Instruction{text: text, template: true}
}

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(ctx context.Context, ic InstructionContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic reports whether the instruction is plain text.
func (i Instruction) IsStatic() bool { return i.provider == nil && !i.template }

// Resolve returns the instruction text.
func (i Instruction) Resolve(ctx context.Context, ic InstructionContext) (string, error) {
	switch {
	case i.provider != nil:
		return i.provider.Instruction(ctx, ic)
	case i.template:
		return util.RenderTemplate(i.text, ic.data())
	default:
		return i.text, nil
	}
}
