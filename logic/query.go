package logic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentkernel/adapter"
	"github.com/hupe1980/agentkernel/core"
)

// Query is a single prompt submitted for routing.
type Query struct {
	ID            string            `json:"id"`
	Content       string            `json:"content"`
	SystemContext *string           `json:"system_context,omitempty"`
	Provider      *adapter.Provider `json:"provider,omitempty"`
}

// NewQuery creates a query with a fresh id.
func NewQuery(content string) Query {
	return Query{ID: core.NewID(), Content: content}
}

// WithSystem attaches a system prompt.
func (q Query) WithSystem(s string) Query {
	q.SystemContext = &s
	return q
}

// WithProvider pins the query to p.
func (q Query) WithProvider(p adapter.Provider) Query {
	q.Provider = &p
	return q
}

// Messages builds the conversation sent to the adapter.
func (q Query) Messages() []adapter.ChatMessage {
	msgs := make([]adapter.ChatMessage, 0, 2)
	if q.SystemContext != nil && *q.SystemContext != "" {
		msgs = append(msgs, adapter.System(*q.SystemContext))
	}
	return append(msgs, adapter.User(q.Content))
}

// QueryResult is the answer to a query.
type QueryResult struct {
	QueryID      string           `json:"query_id"`
	ProviderUsed adapter.Provider `json:"provider_used"`
	Content      string           `json:"content"`
	LatencyMS    int64            `json:"latency_ms"`
}

// BatchResult pairs a batch entry with its outcome.
type BatchResult struct {
	Result QueryResult
	Err    error
}

// CoreLogic answers queries.
type CoreLogic interface {
	Query(ctx context.Context, q Query) (QueryResult, error)
	// QueryBatch returns one result per query, in input order.
	QueryBatch(ctx context.Context, qs []Query) []BatchResult
}

var (
	// ErrProviderUnavailable is returned when no adapter can take the query.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrQueryFailed wraps adapter failures.
	ErrQueryFailed = errors.New("query failed")
	// ErrTimeout is matched by TimeoutError.
	ErrTimeout = errors.New("query timeout")
)

// UnavailableError names the provider that could not be used. Provider is
// nil for unpinned queries.
type UnavailableError struct {
	Provider *adapter.Provider
	Reason   string
}

func (e *UnavailableError) Error() string {
	if e.Provider == nil {
		return fmt.Sprintf("%s: %s", ErrProviderUnavailable, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrProviderUnavailable, e.Provider, e.Reason)
}

func (e *UnavailableError) Is(target error) bool { return target == ErrProviderUnavailable }

// QueryError wraps an adapter failure.
type QueryError struct {
	Provider adapter.Provider
	Err      error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrQueryFailed, e.Provider, e.Err)
}

func (e *QueryError) Unwrap() []error { return []error{ErrQueryFailed, e.Err} }

// TimeoutError reports a query that exceeded the router timeout.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %d ms", e.After.Milliseconds())
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }
