// Package logging provides the minimal Logger interface used across the
// kernel plus slog based implementations.
//
// Components accept a Logger through their functional options and default
// to NoOpLogger. NewLogger builds a KernelLogger writing JSON or text to an
// io.Writer; when LoggerConfig.Sink is set every record is also emitted as a
// core.LogEntry so dashboards can show recent activity:
//
//	sink := core.NewMemoryLogSink()
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "text", Output: os.Stderr, Sink: sink})
//	k := agentkernel.New(func(o *agentkernel.Options) { o.Logger = logger })
package logging
