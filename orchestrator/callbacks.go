package orchestrator

import (
	"context"
	"sync"

	"github.com/hupe1980/agentkernel/logging"
)

// CallbackType names a point in the tick loop where callbacks run.
//
// Callbacks run synchronously on the loop goroutine. A BeforeTick or
// AfterTick callback that returns an error stops Run like an agent error.
type CallbackType string

const (
	// CallbackBeforeTick runs before each pass.
	CallbackBeforeTick CallbackType = "before_tick"
	// CallbackAfterTick runs after each completed pass.
	CallbackAfterTick CallbackType = "after_tick"
	// CallbackOnError runs once with the error that is about to stop Run.
	// Errors returned from these callbacks are logged and otherwise ignored.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext describes the loop state handed to callbacks.
type CallbackContext struct {
	// Pass counts completed passes before this one, starting at zero.
	Pass uint64
	// Published is the number of messages published in the pass. Only set
	// for CallbackAfterTick.
	Published int
	// AgentID names the failing agent for CallbackOnError, when known.
	AgentID string
	// Err is the stopping error for CallbackOnError.
	Err error
	// Metadata is free-form storage shared by the callbacks of one event.
	Metadata map[string]any
}

// Callback is a loop lifecycle hook.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, cc *CallbackContext) error
}

// FunctionCallback wraps a function as a Callback.
//
//	cb := orchestrator.NewFunctionCallback(orchestrator.CallbackAfterTick,
//	    func(ctx context.Context, cc *orchestrator.CallbackContext) error {
//	        log.Printf("pass %d published %d messages", cc.Pass, cc.Published)
//	        return nil
//	    })
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, cc *CallbackContext) error
}

// NewFunctionCallback creates a function-based callback.
func NewFunctionCallback(t CallbackType, fn func(ctx context.Context, cc *CallbackContext) error) *FunctionCallback {
	return &FunctionCallback{callbackType: t, fn: fn}
}

func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

func (c *FunctionCallback) Execute(ctx context.Context, cc *CallbackContext) error {
	return c.fn(ctx, cc)
}

// CallbackManager keeps callbacks per type in registration order. It is
// safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{callbacks: make(map[CallbackType][]Callback)}
}

// RegisterCallback appends cb under its type.
func (cm *CallbackManager) RegisterCallback(cb Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks[cb.Type()] = append(cm.callbacks[cb.Type()], cb)
}

// ExecuteCallbacks runs the callbacks of type t in order and stops at the
// first error.
func (cm *CallbackManager) ExecuteCallbacks(ctx context.Context, t CallbackType, cc *CallbackContext) error {
	cm.mu.RLock()
	callbacks := append([]Callback(nil), cm.callbacks[t]...)
	cm.mu.RUnlock()

	for _, cb := range callbacks {
		if err := cb.Execute(ctx, cc); err != nil {
			return err
		}
	}
	return nil
}

// LoggingCallback logs every event of one type.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a logging callback for t.
func NewLoggingCallback(t CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{callbackType: t, logger: logger}
}

func (c *LoggingCallback) Type() CallbackType { return c.callbackType }

func (c *LoggingCallback) Execute(_ context.Context, cc *CallbackContext) error {
	if c.logger == nil {
		return nil
	}
	args := []any{"callback", string(c.callbackType), "pass", cc.Pass}
	switch c.callbackType {
	case CallbackAfterTick:
		args = append(args, "published", cc.Published)
	case CallbackOnError:
		args = append(args, "agent", cc.AgentID, "error", cc.Err)
	}
	c.logger.Debug("orchestrator.callback", args...)
	return nil
}
