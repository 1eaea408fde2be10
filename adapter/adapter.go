package adapter

import (
	"context"
	"fmt"
	"strings"
)

// Provider identifies a model vendor.
type Provider int

const (
	Claude Provider = iota
	Gemini
	Grok
	Manus
	OpenWeight
)

var providerNames = [...]string{"claude", "gemini", "grok", "manus", "openweight"}

func (p Provider) String() string {
	if p < 0 || int(p) >= len(providerNames) {
		return fmt.Sprintf("provider(%d)", int(p))
	}
	return providerNames[p]
}

// ParseProvider parses a lowercase provider name.
func ParseProvider(s string) (Provider, error) {
	for i, name := range providerNames {
		if strings.EqualFold(s, name) {
			return Provider(i), nil
		}
	}
	return 0, fmt.Errorf("unknown provider %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Provider) MarshalText() ([]byte, error) {
	if p < 0 || int(p) >= len(providerNames) {
		return nil, fmt.Errorf("unknown provider %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Provider) UnmarshalText(b []byte) error {
	v, err := ParseProvider(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Config describes how to reach one provider.
type Config struct {
	Provider  Provider `json:"provider" yaml:"provider"`
	BaseURL   string   `json:"base_url" yaml:"base_url"`
	Model     string   `json:"model" yaml:"model"`
	MaxTokens int      `json:"max_tokens" yaml:"max_tokens"`
	// APIKey is never serialized.
	APIKey string `json:"-" yaml:"api_key"`
}

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System returns a system message.
func System(content string) ChatMessage { return ChatMessage{Role: RoleSystem, Content: content} }

// User returns a user message.
func User(content string) ChatMessage { return ChatMessage{Role: RoleUser, Content: content} }

// Assistant returns an assistant message.
func Assistant(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}

// Response is the result of one generation.
type Response struct {
	Provider     Provider `json:"provider"`
	Model        string   `json:"model"`
	Content      string   `json:"content"`
	InputTokens  int      `json:"input_tokens"`
	OutputTokens int      `json:"output_tokens"`
	LatencyMS    int64    `json:"latency_ms"`
}

// Adapter is implemented by every provider backend.
type Adapter interface {
	Provider() Provider
	Chat(ctx context.Context, messages []ChatMessage) (Response, error)
	// HealthCheck is a lightweight connectivity and credential probe.
	HealthCheck(ctx context.Context) error
}
