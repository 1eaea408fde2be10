// Package memory contains concrete core.MemoryStore implementations. The
// store interface and Record type reside in the core package; depend on
// core.MemoryStore in your code and select an implementation at wiring time.
//
// InMemoryStore is the reference backend. ShardedStore spreads keys over
// independently locked shards, and CachedStore adds a read cache in front of
// any store. Durable backends live in the sqlite, postgres and natskv
// subpackages and share the JSON codec defined here.
package memory
