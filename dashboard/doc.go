// Package dashboard serves a read-only HTTP view of a running kernel.
//
// JSON endpoints return the same snapshots the orchestrator exposes:
//
//	GET /healthz
//	GET /api/snapshot
//	GET /api/agents
//	GET /api/tasks
//	GET /api/capabilities
//	GET /api/keys
//	GET /api/subscriptions
//	GET /api/logs?limit=n
//	GET /ws
//
// /ws upgrades to a websocket and streams every bus message as a
// {"type":"message","message":{...}} frame. When the connection falls behind
// the bus it receives {"type":"lagged","missed":n} and continues with the
// oldest retained message. Nothing served here mutates kernel state.
package dashboard
