package orchestrator

import "time"

// Config tunes the tick loop.
type Config struct {
	// TickInterval is the pause after each full pass.
	TickInterval time.Duration
	// TickTimeout bounds every Init, OnMessage and Tick call. Zero disables
	// the bound, so a blocking agent stalls the whole loop.
	TickTimeout time.Duration
	// MaxTicks stops Run with a nil error after that many passes. Zero runs
	// until the context is cancelled or an agent fails.
	MaxTicks int
}

// DefaultConfig is a 100ms cadence with no per-call timeout and no pass limit.
var DefaultConfig = Config{
	TickInterval: 100 * time.Millisecond,
}
