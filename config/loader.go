package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentkernel/core"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "agentkernel.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if p := os.Getenv("AGENTKERNEL_CONFIG"); p != "" {
		path = p
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit YAML path.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML unmarshals the file at path over cfg. A missing file is ignored.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator supplied path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays non-empty environment variables onto cfg.
func loadEnv(cfg *Config) {
	setString(&cfg.Logging.Level, "AGENTKERNEL_LOG_LEVEL")
	setString(&cfg.Logging.Format, "AGENTKERNEL_LOG_FORMAT")
	setString(&cfg.Logging.Service, "AGENTKERNEL_LOG_SERVICE")
	setBool(&cfg.Logging.AddSource, "AGENTKERNEL_LOG_ADD_SOURCE")
	setInt(&cfg.Logging.SinkSize, "AGENTKERNEL_LOG_SINK_SIZE")

	setDuration(&cfg.Orchestrator.TickInterval, "AGENTKERNEL_TICK_INTERVAL")
	setDuration(&cfg.Orchestrator.TickTimeout, "AGENTKERNEL_TICK_TIMEOUT")
	setInt(&cfg.Orchestrator.MaxTicks, "AGENTKERNEL_MAX_TICKS")
	setInt(&cfg.Orchestrator.BusCapacity, "AGENTKERNEL_BUS_CAPACITY")

	setString(&cfg.Memory.Backend, "AGENTKERNEL_MEMORY_BACKEND")
	setString(&cfg.Memory.Path, "AGENTKERNEL_MEMORY_PATH")
	setString(&cfg.Memory.DSN, "AGENTKERNEL_MEMORY_DSN")
	setString(&cfg.Memory.Table, "AGENTKERNEL_MEMORY_TABLE")
	setString(&cfg.Memory.Bucket, "AGENTKERNEL_MEMORY_BUCKET")
	setInt(&cfg.Memory.Shards, "AGENTKERNEL_MEMORY_SHARDS")
	setInt64(&cfg.Memory.CacheSize, "AGENTKERNEL_MEMORY_CACHE_SIZE")

	setDuration(&cfg.Router.Timeout, "AGENTKERNEL_ROUTER_TIMEOUT")
	setInt(&cfg.Router.MaxConcurrency, "AGENTKERNEL_ROUTER_MAX_CONCURRENCY")
	setInt(&cfg.Router.MaxFailures, "AGENTKERNEL_ROUTER_MAX_FAILURES")
	setDuration(&cfg.Router.Cooldown, "AGENTKERNEL_ROUTER_COOLDOWN")

	setBool(&cfg.Dashboard.Enabled, "AGENTKERNEL_DASHBOARD_ENABLED")
	setString(&cfg.Dashboard.Addr, "AGENTKERNEL_DASHBOARD_ADDR")
	setList(&cfg.Dashboard.OriginPatterns, "AGENTKERNEL_DASHBOARD_ORIGINS")

	setString(&cfg.NATS.URL, "AGENTKERNEL_NATS_URL")
	setString(&cfg.NATS.Prefix, "AGENTKERNEL_NATS_PREFIX")
	setBool(&cfg.NATS.Bridge, "AGENTKERNEL_NATS_BRIDGE")

	setBool(&cfg.MCP.Stdio, "AGENTKERNEL_MCP_STDIO")
}

// validate checks ranges and backend specific requirements.
func validate(cfg *Config) error {
	if _, err := core.ParseLogLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be json or text, got %q", cfg.Logging.Format)
	}
	if cfg.Orchestrator.TickInterval < 0 {
		return errors.New("orchestrator.tick_interval must be >= 0")
	}
	if cfg.Orchestrator.TickTimeout < 0 {
		return errors.New("orchestrator.tick_timeout must be >= 0")
	}
	if cfg.Orchestrator.MaxTicks < 0 {
		return errors.New("orchestrator.max_ticks must be >= 0")
	}
	if cfg.Orchestrator.BusCapacity < 1 {
		return errors.New("orchestrator.bus_capacity must be >= 1")
	}
	if cfg.Router.MaxFailures < 1 {
		return errors.New("router.max_failures must be >= 1")
	}

	switch cfg.Memory.Backend {
	case BackendMemory:
	case BackendSharded:
		if cfg.Memory.Shards < 1 {
			return errors.New("memory.shards must be >= 1")
		}
	case BackendSQLite:
		if cfg.Memory.Path == "" {
			return errors.New("memory.path is required for sqlite")
		}
	case BackendPostgres:
		if cfg.Memory.DSN == "" {
			return errors.New("memory.dsn is required for postgres")
		}
	case BackendNATSKV:
		if cfg.NATS.URL == "" || cfg.Memory.Bucket == "" {
			return errors.New("nats.url and memory.bucket are required for natskv")
		}
	default:
		return fmt.Errorf("memory.backend %q is not supported", cfg.Memory.Backend)
	}

	if cfg.NATS.Bridge && cfg.NATS.URL == "" {
		return errors.New("nats.url is required when nats.bridge is enabled")
	}

	seen := map[string]bool{}
	for i, p := range cfg.Providers {
		name := p.Provider.String()
		if seen[name] {
			return fmt.Errorf("providers[%d]: duplicate provider %s", i, name)
		}
		seen[name] = true
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// setList splits a comma separated variable, ignoring empty items.
func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}
