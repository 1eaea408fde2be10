// Package orchestrator drives registered agents with a single cooperative
// tick loop.
//
// Each pass visits agents in registration order. For every agent the loop
// first delivers the bus messages addressed to it (broadcasts and messages
// targeting its id, minus the ones it authored), then calls Tick and
// publishes the returned messages. Passes never overlap and are separated
// by Config.TickInterval.
//
// The loop is fail-fast: the first error returned by Init, OnMessage, Tick
// or a lifecycle hook stops Run and is returned as an *AgentError or
// *HookError. Healthy agents are not kept running once one agent fails.
//
// Subscriptions that fall behind lose their oldest messages. The loop logs
// and counts the loss and carries on; it is never treated as an agent error.
package orchestrator
