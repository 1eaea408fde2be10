// Command agentkernel runs the coordination kernel with one model agent per
// configured provider, the built-in memory capabilities and, when enabled,
// the dashboard, the NATS bus bridge and an MCP stdio server.
//
// Configuration is read from agentkernel.yaml (or $AGENTKERNEL_CONFIG) and
// AGENTKERNEL_* environment variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentkernel/bus"
	"github.com/hupe1980/agentkernel/bus/natsbridge"
	"github.com/hupe1980/agentkernel/capability"
	"github.com/hupe1980/agentkernel/capability/mcp"
	"github.com/hupe1980/agentkernel/config"
	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/dashboard"
	"github.com/hupe1980/agentkernel/logging"
	"github.com/hupe1980/agentkernel/orchestrator"
	"github.com/hupe1980/agentkernel/task"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "agentkernel:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	var out io.Writer = os.Stdout
	if cfg.MCP.Stdio {
		out = os.Stderr
	}
	sink := core.NewMemoryLogSink(func(o *core.MemoryLogSinkOptions) { o.Limit = cfg.Logging.SinkSize })
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:       cfg.Logging.ParsedLevel(),
		Format:      cfg.Logging.Format,
		Output:      out,
		AddSource:   cfg.Logging.AddSource,
		Sink:        sink,
		CustomAttrs: map[string]any{"service": cfg.Logging.Service},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Infrastructure ---

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("memory: %w", err)
	}
	defer closeStore()
	logger.Info("memory.ready", "backend", cfg.Memory.Backend, "cache_size", cfg.Memory.CacheSize)

	registry := capability.NewRegistry(func(o *capability.Options) {
		o.Logger = logger.WithComponent("capability")
	})
	registry.RegisterAll(capability.MemoryCapabilities(store)...)

	tracker := task.NewTracker(0)

	orch := orchestrator.New(func(o *orchestrator.Options) {
		o.Config = orchestrator.Config{
			TickInterval: cfg.Orchestrator.TickInterval,
			TickTimeout:  cfg.Orchestrator.TickTimeout,
			MaxTicks:     cfg.Orchestrator.MaxTicks,
		}
		o.Bus = bus.New(cfg.Orchestrator.BusCapacity)
		o.Store = store
		o.Registry = registry
		o.Tracker = tracker
		o.Logger = logger.WithComponent("orchestrator")
	})

	// --- Agents ---

	router := newRouter(ctx, cfg, logger)
	for _, a := range modelAgents(cfg, router, orch, logger) {
		orch.RegisterAgent(a)
	}

	// --- Surfaces ---

	g, gctx := errgroup.WithContext(ctx)

	if cfg.NATS.Bridge {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name(cfg.Logging.Service))
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer nc.Close()

		bridge := natsbridge.New(nc, orch.Bus(), func(o *natsbridge.Options) {
			o.Prefix = cfg.NATS.Prefix
			o.Logger = logger.WithComponent("natsbridge")
		})
		g.Go(func() error { return ignoreCanceled(bridge.Run(gctx)) })
	}

	if cfg.Dashboard.Enabled {
		srv := dashboard.New(orch, func(o *dashboard.Options) {
			o.Addr = cfg.Dashboard.Addr
			o.OriginPatterns = cfg.Dashboard.OriginPatterns
			o.Logs = sink
			o.ServiceName = cfg.Logging.Service
			o.Logger = logger.WithComponent("dashboard")
		})
		g.Go(func() error { return srv.ListenAndServe(gctx) })
	}

	if cfg.MCP.Stdio {
		srv := mcp.NewServer(registry, func(o *mcp.Options) {
			o.Name = cfg.MCP.Name
			o.Version = cfg.MCP.Version
			o.Logger = logger.WithComponent("mcp")
		})
		// ServeStdio has no context; it returns when stdin closes.
		go func() {
			if err := srv.ServeStdio(); err != nil {
				logger.Warn("mcp.stdio.stopped", "error", err)
			}
		}()
	}

	g.Go(func() error {
		err := ignoreCanceled(orch.Run(gctx))
		if err == nil && cfg.Orchestrator.MaxTicks > 0 {
			// Finite run: stop the other surfaces too.
			stop()
		}
		return err
	})

	logger.Info("kernel.started",
		"agents", len(orch.Agents()),
		"capabilities", registry.Len(),
		"dashboard", cfg.Dashboard.Enabled,
		"nats_bridge", cfg.NATS.Bridge,
	)

	err = g.Wait()
	logger.Info("kernel.stopped", "passes", orch.Passes(), "tasks", tracker.Len())
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
