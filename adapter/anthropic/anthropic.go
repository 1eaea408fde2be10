// Package anthropic implements adapter.Adapter on the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/agentkernel/adapter"
)

// DefaultModel is used when the config leaves the model empty.
const DefaultModel = anthropic.ModelClaudeSonnet4_20250514

// Options configures the adapter.
type Options struct {
	Temperature float64
	// RequestOptions are passed to the SDK client, for example retries or an HTTP client.
	RequestOptions []option.RequestOption
}

// Adapter talks to Claude models.
type Adapter struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	opts      Options
}

var _ adapter.Adapter = (*Adapter)(nil)

// New creates an adapter from cfg. An empty APIKey falls back to the SDK's
// ANTHROPIC_API_KEY lookup.
func New(cfg adapter.Config, optFns ...func(o *Options)) *Adapter {
	opts := Options{Temperature: 0.7}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if cfg.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	clientOpts = append(clientOpts, opts.RequestOptions...)

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &Adapter{
		client:    anthropic.NewClient(clientOpts...),
		model:     model,
		maxTokens: maxTokens,
		opts:      opts,
	}
}

func (a *Adapter) Provider() adapter.Provider { return adapter.Claude }

// Chat sends the conversation. System messages are lifted into the system prompt.
func (a *Adapter) Chat(ctx context.Context, messages []adapter.ChatMessage) (adapter.Response, error) {
	params := anthropic.MessageNewParams{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Temperature: anthropic.Float(a.opts.Temperature),
	}
	for _, m := range messages {
		switch m.Role {
		case adapter.RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case adapter.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	start := time.Now()
	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return adapter.Response{}, a.translate(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	if text.Len() == 0 {
		return adapter.Response{}, &adapter.InvalidResponseError{Provider: adapter.Claude, Message: "no text content"}
	}

	return adapter.Response{
		Provider:     adapter.Claude,
		Model:        string(resp.Model),
		Content:      text.String(),
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
		LatencyMS:    time.Since(start).Milliseconds(),
	}, nil
}

// HealthCheck lists a single model to verify reachability and credentials.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if _, err := a.client.Models.List(ctx, anthropic.ModelListParams{Limit: anthropic.Int(1)}); err != nil {
		return a.translate(err)
	}
	return nil
}

func (a *Adapter) translate(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		var h http.Header
		if apiErr.Response != nil {
			h = apiErr.Response.Header
		}
		return adapter.FromStatus(adapter.Claude, apiErr.StatusCode, h, err)
	}
	return &adapter.RequestError{Provider: adapter.Claude, Err: err}
}
