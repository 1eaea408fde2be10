// Package logic routes queries to provider adapters.
//
// A Router holds adapters in registration order. A query pinned to a
// provider goes to that adapter; an unpinned query goes to the first adapter
// whose circuit breaker currently admits calls. Failed calls are never
// retried on another adapter.
package logic
