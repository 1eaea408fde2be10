package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// LogLevel orders log entries from most to least verbose.
type LogLevel int

const (
	LogLevelTrace LogLevel = iota
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// String returns the upper-case level name.
func (l LogLevel) String() string {
	switch l {
	case LogLevelTrace:
		return "TRACE"
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel converts a level name (case-insensitive) to a LogLevel.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LogLevelTrace, nil
	case "DEBUG":
		return LogLevelDebug, nil
	case "INFO":
		return LogLevelInfo, nil
	case "WARN", "WARNING":
		return LogLevelWarn, nil
	case "ERROR":
		return LogLevelError, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
}

// MarshalJSON encodes the level as its name.
func (l LogLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a level name.
func (l *LogLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	lvl, err := ParseLogLevel(s)
	if err != nil {
		return err
	}
	*l = lvl
	return nil
}

// LogEntry is a single structured log record.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
}

// NewLogEntry creates an entry stamped with the current time.
func NewLogEntry(level LogLevel, source, message string) LogEntry {
	return LogEntry{Timestamp: time.Now().UTC(), Level: level, Source: source, Message: message}
}

// WithData returns a copy of the entry carrying data.
func (e LogEntry) WithData(data any) LogEntry {
	e.Data = data
	return e
}

// LogSink receives log entries.
type LogSink interface {
	Emit(entry LogEntry)
}

// MemoryLogSink keeps emitted entries in memory. With a positive limit only
// the most recent entries are kept.
type MemoryLogSink struct {
	mu      sync.Mutex
	limit   int
	entries []LogEntry
}

// MemoryLogSinkOptions configures a MemoryLogSink.
type MemoryLogSinkOptions struct {
	// Limit bounds the number of retained entries. Zero or less keeps all.
	Limit int
}

// NewMemoryLogSink creates an empty sink.
func NewMemoryLogSink(optFns ...func(o *MemoryLogSinkOptions)) *MemoryLogSink {
	opts := MemoryLogSinkOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &MemoryLogSink{limit: max(opts.Limit, 0)}
}

// Emit appends entry, dropping the oldest entry when the sink is full.
func (s *MemoryLogSink) Emit(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limit > 0 && len(s.entries) >= s.limit {
		copy(s.entries, s.entries[1:])
		s.entries = s.entries[:len(s.entries)-1]
	}
	s.entries = append(s.entries, entry)
}

// Entries returns a copy of the entries in emission order.
func (s *MemoryLogSink) Entries() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LogEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries held.
func (s *MemoryLogSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
