package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/agentkernel/core"
)

// LogLevel is the kernel log level.
type LogLevel = core.LogLevel

const (
	LogLevelTrace = core.LogLevelTrace
	LogLevelDebug = core.LogLevelDebug
	LogLevelInfo  = core.LogLevelInfo
	LogLevelWarn  = core.LogLevelWarn
	LogLevelError = core.LogLevelError
)

// LevelTrace is the slog level used for trace records.
const LevelTrace = slog.LevelDebug - 4

// Logger defines the minimal logging interface. Args are slog style
// key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogLevel converts a kernel level to its slog equivalent.
func SlogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelTrace:
		return LevelTrace
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// KernelLevel converts a slog level to the nearest kernel level.
func KernelLevel(l slog.Level) LogLevel {
	switch {
	case l < slog.LevelDebug:
		return LogLevelTrace
	case l < slog.LevelInfo:
		return LogLevelDebug
	case l < slog.LevelWarn:
		return LogLevelInfo
	case l < slog.LevelError:
		return LogLevelWarn
	default:
		return LogLevelError
	}
}

// KernelLogger wraps slog.Logger adding component scoping and a few
// domain helpers. With* methods return modified copies.
type KernelLogger struct {
	logger    *slog.Logger
	context   map[string]any
	component string
}

var _ Logger = (*KernelLogger)(nil)

// LoggerConfig configures construction of a KernelLogger.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	Component string
	// Sink additionally receives every record as a core.LogEntry.
	Sink        core.LogSink
	CustomAttrs map[string]any
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stdout, CustomAttrs: map[string]any{}}
}

// NewLogger builds a KernelLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *KernelLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: SlogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	if cfg.Sink != nil {
		handler = NewTeeHandler(handler, NewSinkHandler(cfg.Sink, cfg.Level))
	}

	ctx := make(map[string]any, len(cfg.CustomAttrs))
	for k, v := range cfg.CustomAttrs {
		ctx[k] = v
	}
	return &KernelLogger{logger: slog.New(handler), context: ctx, component: cfg.Component}
}

// NewSlogLogger creates a KernelLogger writing to stdout.
func NewSlogLogger(level LogLevel, format string, addSource bool) *KernelLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	if format != "" {
		cfg.Format = format
	}
	cfg.AddSource = addSource
	return NewLogger(cfg)
}

func (l *KernelLogger) clone() *KernelLogger {
	nl := *l
	nl.context = make(map[string]any, len(l.context))
	for k, v := range l.context {
		nl.context[k] = v
	}
	return &nl
}

// WithContext adds a key/value attribute that will be attached to every log entry.
func (l *KernelLogger) WithContext(key string, value any) *KernelLogger {
	nl := l.clone()
	nl.context[key] = value
	return nl
}

// WithComponent sets the logical component (orchestrator, agent id, bus, ...).
func (l *KernelLogger) WithComponent(c string) *KernelLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

func (l *KernelLogger) baseArgs() []any {
	args := make([]any, 0, len(l.context)+1)
	if l.component != "" {
		args = append(args, slog.String("component", l.component))
	}
	for k, v := range l.context {
		args = append(args, slog.Any(k, v))
	}
	return args
}

func (l *KernelLogger) log(level slog.Level, msg string, args ...any) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	l.logger.Log(ctx, level, msg, append(l.baseArgs(), args...)...)
}

// Debug logs at debug level.
func (l *KernelLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }

// Info logs at info level.
func (l *KernelLogger) Info(msg string, args ...any) { l.log(slog.LevelInfo, msg, args...) }

// Warn logs at warn level.
func (l *KernelLogger) Warn(msg string, args ...any) { l.log(slog.LevelWarn, msg, args...) }

// Error logs at error level.
func (l *KernelLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

// LogCapabilityCall records the outcome of a capability invocation.
func LogCapabilityCall(l Logger, name string, dur time.Duration, err error) {
	args := []any{slog.String("capability", name), slog.Duration("duration", dur), slog.Bool("success", err == nil)}
	if err != nil {
		l.Warn("capability.call.failed", append(args, slog.String("error", err.Error()))...)
		return
	}
	l.Debug("capability.call.completed", args...)
}

// LogModelCall records provider latency and token usage.
func LogModelCall(l Logger, provider string, tokens int, dur time.Duration, err error) {
	args := []any{slog.String("provider", provider), slog.Int("token_count", tokens), slog.Duration("duration", dur), slog.Bool("success", err == nil)}
	if err != nil {
		l.Warn("model.call.failed", append(args, slog.String("error", err.Error()))...)
		return
	}
	l.Debug("model.call.completed", args...)
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
