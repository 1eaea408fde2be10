package orchestrator

import (
	"errors"
	"fmt"
	"time"
)

// Agent operations reported in AgentError.Op.
const (
	OpInit      = "init"
	OpOnMessage = "on_message"
	OpTick      = "tick"
)

// ErrCallTimeout is wrapped when an agent call exceeds Config.TickTimeout.
var ErrCallTimeout = errors.New("agent call timed out")

// ErrRunning is returned by Run while another Run is active.
var ErrRunning = errors.New("orchestrator is already running")

// AgentError identifies the agent and operation that stopped the loop.
type AgentError struct {
	AgentID string
	Op      string
	Err     error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent %s: %s: %v", e.AgentID, e.Op, e.Err)
}

func (e *AgentError) Unwrap() error { return e.Err }

// HookError reports a lifecycle callback that stopped the loop.
type HookError struct {
	Type CallbackType
	Err  error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s hook: %v", e.Type, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

func timeoutError(d time.Duration) error {
	return fmt.Errorf("%w after %s", ErrCallTimeout, d)
}
