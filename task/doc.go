// Package task implements the phased task lifecycle.
//
// Every unit of work moves through Pending, Initialized, Executing, Validated
// and Completed in that order. A transition attempted from any other phase is
// rejected with a *PhaseError and leaves the task untouched. Fail moves a task
// to Failed from any phase and never errors.
//
// Completed results are persisted into a core.MemoryStore with Persist, and
// live tasks can be listed read-only through a Tracker.
package task
