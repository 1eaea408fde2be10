// Package config loads kernel settings from defaults, an optional YAML file
// and AGENTKERNEL_* environment variables, in that order of precedence.
package config

import (
	"time"

	"github.com/hupe1980/agentkernel/adapter"
	"github.com/hupe1980/agentkernel/core"
)

// Config holds all kernel settings.
type Config struct {
	Logging      Logging          `yaml:"logging"`
	Orchestrator Orchestrator     `yaml:"orchestrator"`
	Memory       Memory           `yaml:"memory"`
	Router       Router           `yaml:"router"`
	Dashboard    Dashboard        `yaml:"dashboard"`
	NATS         NATS             `yaml:"nats"`
	MCP          MCP              `yaml:"mcp"`
	Providers    []adapter.Config `yaml:"providers"`
}

// Logging controls the structured logger.
type Logging struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"` // json or text
	Service   string `yaml:"service"`
	AddSource bool   `yaml:"add_source"`
	// SinkSize caps the in-memory log buffer served by the dashboard.
	SinkSize int `yaml:"sink_size"`
}

// ParsedLevel returns Level as a core.LogLevel.
func (l Logging) ParsedLevel() core.LogLevel {
	lvl, err := core.ParseLogLevel(l.Level)
	if err != nil {
		return core.LogLevelInfo
	}
	return lvl
}

// Orchestrator controls the tick loop.
type Orchestrator struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	// TickTimeout bounds each agent call. Zero disables it.
	TickTimeout time.Duration `yaml:"tick_timeout"`
	// MaxTicks stops the loop after that many passes. Zero runs until cancelled.
	MaxTicks    int `yaml:"max_ticks"`
	BusCapacity int `yaml:"bus_capacity"`
}

// Memory backend names.
const (
	BackendMemory   = "memory"
	BackendSharded  = "sharded"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendNATSKV   = "natskv"
)

// Memory selects and configures the memory store backend.
type Memory struct {
	Backend string `yaml:"backend"`
	// Path is the SQLite database file.
	Path string `yaml:"path"`
	// DSN is the PostgreSQL connection string.
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
	// Bucket is the JetStream KV bucket; the server comes from NATS.URL.
	Bucket string `yaml:"bucket"`
	Shards int    `yaml:"shards"`
	// CacheSize enables a read cache of that many records when positive.
	CacheSize int64 `yaml:"cache_size"`
}

// Router controls provider routing.
type Router struct {
	Timeout        time.Duration `yaml:"timeout"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	MaxFailures    int           `yaml:"max_failures"`
	Cooldown       time.Duration `yaml:"cooldown"`
}

// Dashboard controls the read-only HTTP view.
type Dashboard struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	// OriginPatterns lists browser origins (host patterns) allowed to open
	// the websocket stream. Empty allows same-host origins only.
	OriginPatterns []string `yaml:"origin_patterns"`
}

// NATS controls the bus bridge and the natskv backend.
type NATS struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
	Bridge bool   `yaml:"bridge"`
}

// MCP controls the Model Context Protocol capability server.
type MCP struct {
	// Stdio serves capabilities over stdin/stdout. Logs move to stderr.
	Stdio   bool   `yaml:"stdio"`
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// Defaults returns a Config with the reference settings: in-memory store,
// 100ms ticks, bus capacity 1024 and no tick timeout.
func Defaults() Config {
	return Config{
		Logging: Logging{
			Level:    "info",
			Format:   "json",
			Service:  "agentkernel",
			SinkSize: 1000,
		},
		Orchestrator: Orchestrator{
			TickInterval: 100 * time.Millisecond,
			BusCapacity:  1024,
		},
		Memory: Memory{
			Backend: BackendMemory,
			Path:    "agentkernel.db",
			Table:   "kernel_records",
			Bucket:  "agentkernel",
			Shards:  16,
		},
		Router: Router{
			MaxConcurrency: 4,
			MaxFailures:    3,
			Cooldown:       30 * time.Second,
		},
		Dashboard: Dashboard{
			Addr: ":8080",
		},
		NATS: NATS{
			URL:    "nats://localhost:4222",
			Prefix: "agentkernel.bus",
		},
		MCP: MCP{
			Name:    "agentkernel",
			Version: "0.1.0",
		},
	}
}
