// Package agent contains reusable core.Agent implementations driven by the
// orchestrator tick loop. It covers three concerns:
//
//  1. BaseAgent: identity, the capability listing received at Init and an
//     inbox for messages delivered between ticks. Embed it and override Tick.
//  2. FuncAgent: an agent assembled from closures, handy in tests and small
//     programs.
//  3. ModelAgent: answers intent messages by driving a task through its
//     lifecycle against a logic.CoreLogic backend and persisting the result
//     in the memory store.
//
// Execution model:
//   - The orchestrator calls Init once, then OnMessage for each pending bus
//     message addressed to the agent, then Tick, once per pass.
//   - Messages returned from Tick are published after the call returns.
//   - Ticks of different agents never overlap; an agent needs no locking
//     against the loop itself, only against its own background goroutines.
package agent
