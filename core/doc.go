// Package core provides the foundational protocol types and contracts shared by
// every agentkernel component. It defines:
//
//   - Agents (independent units ticked by the orchestrator)
//   - Messages (immutable records exchanged over the bus)
//   - Capabilities (named, described operations callable by name)
//   - Memory stores (versioned key/value persistence)
//   - Log entries and sinks
//
// The package keeps implementation concerns (stores, bus, orchestration loop)
// out of scope and exposes small interfaces so backends can be swapped without
// introducing dependency cycles.
package core
