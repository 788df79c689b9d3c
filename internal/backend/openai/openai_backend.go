package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"examsolver/internal/backend"
	"examsolver/internal/config"
	"examsolver/internal/port"
)

const (
	providerName    = "openai"
	defaultModel    = "gpt-4o"
	defaultMaxToken = 512
)

func init() {
	backend.RegisterProvider(providerName, func(cfg *config.BackendProviderConfig) (port.ReasoningBackend, error) {
		return NewBackend(cfg), nil
	})
}

// Backend implements port.ReasoningBackend using the OpenAI Chat Completions API.
type Backend struct {
	client    openai.Client
	model     string
	maxTokens int64
}

// NewBackend creates an OpenAI-backed reasoning backend from a provider config.
func NewBackend(cfg *config.BackendProviderConfig) *Backend {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxToken
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	if cfg.TimeoutSecs > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(cfg.TimeoutSecs)*time.Second))
	}

	return &Backend{
		client:    openai.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (b *Backend) Answer(ctx context.Context, req port.ReasoningRequest) (*port.ReasoningResponse, error) {
	completion, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: b.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(backend.SystemPrompt),
			openai.UserMessage(backend.BuildPrompt(req)),
		},
		MaxCompletionTokens: openai.Int(b.maxTokens),
	})
	if err != nil {
		return nil, classify(err)
	}

	if len(completion.Choices) == 0 {
		return nil, &backend.TransientError{Provider: providerName, Err: fmt.Errorf("empty response from API: no choices")}
	}

	return &port.ReasoningResponse{
		Text:      completion.Choices[0].Message.Content,
		ModelUsed: b.model,
	}, nil
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		var header http.Header
		if apiErr.Response != nil {
			header = apiErr.Response.Header
		}
		return backend.ClassifyStatus(providerName, apiErr.StatusCode, header, err)
	}
	return backend.ClassifyStatus(providerName, 0, nil, err)
}
