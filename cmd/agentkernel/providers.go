package main

import (
	"context"

	"github.com/hupe1980/agentkernel/adapter"
	"github.com/hupe1980/agentkernel/adapter/anthropic"
	"github.com/hupe1980/agentkernel/adapter/openai"
	"github.com/hupe1980/agentkernel/agent"
	"github.com/hupe1980/agentkernel/config"
	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/logging"
	"github.com/hupe1980/agentkernel/logic"
	"github.com/hupe1980/agentkernel/orchestrator"
)

// newRouter registers one adapter per configured provider and logs the
// initial health of each. Unhealthy providers stay registered; their
// breaker decides.
func newRouter(ctx context.Context, cfg *config.Config, logger *logging.KernelLogger) *logic.Router {
	router := logic.NewRouter(func(o *logic.Options) {
		o.Timeout = cfg.Router.Timeout
		o.MaxConcurrency = cfg.Router.MaxConcurrency
		o.MaxFailures = cfg.Router.MaxFailures
		o.Cooldown = cfg.Router.Cooldown
		o.Logger = logger.WithComponent("logic")
	})

	for _, pc := range cfg.Providers {
		router.Register(newAdapter(pc))
	}

	for p, err := range router.CheckHealth(ctx) {
		if err != nil {
			logger.Warn("provider.unhealthy", "provider", p.String(), "error", err)
			continue
		}
		logger.Info("provider.ready", "provider", p.String())
	}
	return router
}

func newAdapter(pc adapter.Config) adapter.Adapter {
	if pc.Provider == adapter.Claude {
		return anthropic.New(pc)
	}
	// Every other provider speaks the OpenAI chat completions protocol at
	// its own base URL.
	return openai.New(pc)
}

// modelAgents creates one ModelAgent per provider, pinned to it.
func modelAgents(cfg *config.Config, router *logic.Router, orch *orchestrator.Orchestrator, logger *logging.KernelLogger) []core.Agent {
	agents := make([]core.Agent, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		id := "model-" + pc.Provider.String()
		agents = append(agents, agent.NewModelAgent(
			core.AgentMetadata{ID: id, Name: id, Version: "1.0.0", Capabilities: []string{"query"}},
			router,
			orch.Store(),
			agent.WithProvider(pc.Provider),
			func(o *agent.ModelAgentOptions) {
				o.Capabilities = orch.Registry()
				o.Tracker = orch.Tracker()
				o.Logger = logger.WithComponent(id)
			},
		))
	}
	return agents
}
