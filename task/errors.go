package task

import (
	"errors"
	"fmt"
)

// Transition error kinds. Match with errors.Is.
var (
	ErrInitialization = errors.New("initialization failed")
	ErrExecution      = errors.New("execution failed")
	ErrValidation     = errors.New("validation failed")
	ErrCompletion     = errors.New("completion failed")
)

// PhaseError reports a transition attempted from the wrong phase.
type PhaseError struct {
	Kind     error
	Expected Phase
	Actual   Phase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Kind, e.Expected, e.Actual)
}

func (e *PhaseError) Unwrap() error { return e.Kind }
