package core

import (
	"errors"
	"fmt"
)

// Memory store error kinds. Match with errors.Is.
var (
	ErrNotFound      = errors.New("key not found")
	ErrSerialization = errors.New("serialization failed")
	ErrBackend       = errors.New("backend failure")
)

// MemoryError describes a failed memory store operation. Kind is one of
// ErrNotFound, ErrSerialization or ErrBackend.
type MemoryError struct {
	Op   string `json:"op"`
	Key  string `json:"key,omitempty"`
	Kind error  `json:"-"`
	Err  error  `json:"-"`
}

func (e *MemoryError) Error() string {
	msg := fmt.Sprintf("memory %s", e.Op)
	if e.Key != "" {
		msg += fmt.Sprintf(" %q", e.Key)
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *MemoryError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NotFoundError reports a missing key.
func NotFoundError(op, key string) error {
	return &MemoryError{Op: op, Key: key, Kind: ErrNotFound}
}

// SerializationError reports a value that could not be encoded or decoded.
func SerializationError(op, key string, err error) error {
	return &MemoryError{Op: op, Key: key, Kind: ErrSerialization, Err: err}
}

// BackendError reports a storage failure.
func BackendError(op, key string, err error) error {
	return &MemoryError{Op: op, Key: key, Kind: ErrBackend, Err: err}
}
