package task

import (
	"sync"
	"time"

	"github.com/hupe1980/agentkernel/core"
)

// Result is the immutable outcome of a completed task.
type Result struct {
	TaskID      string    `json:"task_id"`
	Output      any       `json:"output"`
	Phase       Phase     `json:"phase"`
	CompletedAt time.Time `json:"completed_at"`
}

// State is a point-in-time copy of a task.
type State struct {
	ID        string        `json:"id"`
	Meta      core.TaskMeta `json:"meta"`
	Phase     Phase         `json:"phase"`
	Input     any           `json:"input"`
	Output    any           `json:"output,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Options configures a Task.
type Options struct {
	// Now supplies timestamps. Defaults to time.Now in UTC.
	Now func() time.Time
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) func(o *Options) {
	return func(o *Options) { o.Now = now }
}

// Task is a unit of work. It is safe for concurrent use.
type Task struct {
	mu    sync.Mutex
	now   func() time.Time
	state State
}

// New creates a Pending task with a fresh id.
func New(meta core.TaskMeta, input any, optFns ...func(o *Options)) *Task {
	opts := Options{Now: func() time.Time { return time.Now().UTC() }}
	for _, fn := range optFns {
		fn(&opts)
	}

	now := opts.Now()

	return &Task{
		now: opts.Now,
		state: State{
			ID:        core.NewID(),
			Meta:      meta,
			Phase:     Pending,
			Input:     input,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// FromState rebuilds a task from a snapshot, for example one loaded from a store.
func FromState(s State, optFns ...func(o *Options)) *Task {
	t := New(s.Meta, s.Input, optFns...)
	t.state = s
	return t
}

// ID returns the task identifier.
func (t *Task) ID() string { return t.state.ID }

// Meta returns the task metadata.
func (t *Task) Meta() core.TaskMeta { return t.state.Meta }

// Phase returns the current phase.
func (t *Task) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Phase
}

// Snapshot returns a copy of the current state.
func (t *Task) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Initialize moves Pending to Initialized.
func (t *Task) Initialize() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.advance(Pending, Initialized, ErrInitialization)
}

// BeginExecution moves Initialized to Executing.
func (t *Task) BeginExecution() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.advance(Initialized, Executing, ErrExecution)
}

// Validate attaches output and moves Executing to Validated.
func (t *Task) Validate(output any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.advance(Executing, Validated, ErrValidation); err != nil {
		return err
	}
	t.state.Output = output
	return nil
}

// Complete moves Validated to Completed and returns the result. A missing
// output is reported as an empty object.
func (t *Task) Complete() (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.advance(Validated, Completed, ErrCompletion); err != nil {
		return Result{}, err
	}
	output := t.state.Output
	if output == nil {
		output = map[string]any{}
	}
	return Result{
		TaskID:      t.state.ID,
		Output:      output,
		Phase:       t.state.Phase,
		CompletedAt: t.state.UpdatedAt,
	}, nil
}

// Fail moves the task to Failed from any phase, including Failed and Completed.
func (t *Task) Fail() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Phase = Failed
	t.state.UpdatedAt = t.now()
}

func (t *Task) advance(from, to Phase, kind error) error {
	if t.state.Phase != from {
		return &PhaseError{Kind: kind, Expected: from, Actual: t.state.Phase}
	}
	t.state.Phase = to
	t.state.UpdatedAt = t.now()
	return nil
}
