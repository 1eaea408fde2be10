package task

import (
	"encoding/json"
	"fmt"
)

// Phase is a lifecycle stage.
type Phase int

const (
	Pending Phase = iota
	Initialized
	Executing
	Validated
	Completed
	Failed
)

var phaseNames = [...]string{"pending", "initialized", "executing", "validated", "completed", "failed"}

// String returns the snake_case phase name.
func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool { return p == Completed || p == Failed }

// ParsePhase converts a phase name to a Phase.
func ParsePhase(s string) (Phase, error) {
	for i, n := range phaseNames {
		if n == s {
			return Phase(i), nil
		}
	}
	return Pending, fmt.Errorf("unknown task phase %q", s)
}

// MarshalJSON encodes the phase as its name.
func (p Phase) MarshalJSON() ([]byte, error) { return json.Marshal(p.String()) }

// UnmarshalJSON decodes a phase name.
func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParsePhase(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}
