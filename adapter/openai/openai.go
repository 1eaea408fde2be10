// Package openai implements adapter.Adapter on the OpenAI Chat Completions
// API. Gemini, Grok, Manus and open-weight servers expose compatible
// endpoints, so the same adapter serves them when BaseURL points there.
package openai

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/agentkernel/adapter"
)

// DefaultModel is used when the config leaves the model empty.
const DefaultModel = openai.ChatModelGPT4oMini

// Options configures the adapter.
type Options struct {
	Temperature    float64
	RequestOptions []option.RequestOption
}

// Adapter talks to an OpenAI compatible endpoint.
type Adapter struct {
	client    openai.Client
	provider  adapter.Provider
	model     string
	maxTokens int64
	opts      Options
}

var _ adapter.Adapter = (*Adapter)(nil)

// New creates an adapter for cfg.Provider. An empty APIKey falls back to
// the SDK's OPENAI_API_KEY lookup.
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

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &Adapter{
		client:    openai.NewClient(clientOpts...),
		provider:  cfg.Provider,
		model:     model,
		maxTokens: maxTokens,
		opts:      opts,
	}
}

func (a *Adapter) Provider() adapter.Provider { return a.provider }

func (a *Adapter) Chat(ctx context.Context, messages []adapter.ChatMessage) (adapter.Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:       a.model,
		MaxTokens:   openai.Int(a.maxTokens),
		Temperature: openai.Float(a.opts.Temperature),
	}
	for _, m := range messages {
		switch m.Role {
		case adapter.RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case adapter.RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	start := time.Now()
	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return adapter.Response{}, a.translate(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return adapter.Response{}, &adapter.InvalidResponseError{Provider: a.provider, Message: "no choices"}
	}

	return adapter.Response{
		Provider:     a.provider,
		Model:        resp.Model,
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
		LatencyMS:    time.Since(start).Milliseconds(),
	}, nil
}

// HealthCheck lists models to verify reachability and credentials.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if _, err := a.client.Models.List(ctx); err != nil {
		return a.translate(err)
	}
	return nil
}

func (a *Adapter) translate(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		var h http.Header
		if apiErr.Response != nil {
			h = apiErr.Response.Header
		}
		return adapter.FromStatus(a.provider, apiErr.StatusCode, h, err)
	}
	return &adapter.RequestError{Provider: a.provider, Err: err}
}
