package adapter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Mock is a deterministic Adapter. Unknown prompts are echoed back.
type Mock struct {
	provider Provider
	model    string

	mu        sync.Mutex
	responses map[string]string
	err       error
	healthErr error
	calls     [][]ChatMessage
}

var _ Adapter = (*Mock)(nil)

// NewMock creates a mock for provider.
func NewMock(provider Provider) *Mock {
	return &Mock{
		provider:  provider,
		model:     "mock-" + provider.String(),
		responses: map[string]string{},
	}
}

// AddResponse registers a canned reply for the last user message content.
func (m *Mock) AddResponse(prompt, response string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
	return m
}

// FailWith makes every Chat call return err. Pass nil to clear.
func (m *Mock) FailWith(err error) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Unhealthy makes HealthCheck return err. Pass nil to clear.
func (m *Mock) Unhealthy(err error) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthErr = err
	return m
}

// Calls returns the conversations received so far.
func (m *Mock) Calls() [][]ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]ChatMessage, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *Mock) Provider() Provider { return m.provider }

func (m *Mock) Chat(ctx context.Context, messages []ChatMessage) (Response, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return Response{}, &RequestError{Provider: m.provider, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, append([]ChatMessage(nil), messages...))
	if m.err != nil {
		return Response{}, m.err
	}

	prompt := lastUser(messages)
	if prompt == "" {
		return Response{}, &InvalidResponseError{Provider: m.provider, Message: "no user message"}
	}
	content, ok := m.responses[prompt]
	if !ok {
		content = fmt.Sprintf("Mock response to: %s", prompt)
	}

	return Response{
		Provider:     m.provider,
		Model:        m.model,
		Content:      content,
		InputTokens:  countWords(messages),
		OutputTokens: len(strings.Fields(content)),
		LatencyMS:    time.Since(start).Milliseconds(),
	}, nil
}

func (m *Mock) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &RequestError{Provider: m.provider, Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthErr
}

func lastUser(messages []ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func countWords(messages []ChatMessage) int {
	n := 0
	for _, m := range messages {
		n += len(strings.Fields(m.Content))
	}
	return n
}
