package claude

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"examsolver/internal/backend"
	"examsolver/internal/config"
	"examsolver/internal/port"
)

const (
	providerName    = "claude"
	defaultModel    = "claude-sonnet-4-20250514"
	defaultMaxToken = 512
)

func init() {
	backend.RegisterProvider(providerName, func(cfg *config.BackendProviderConfig) (port.ReasoningBackend, error) {
		return NewBackend(cfg), nil
	})
}

// Backend implements port.ReasoningBackend using the Anthropic Messages API.
// Retries are left to the caller, so the SDK's own retry loop is disabled.
type Backend struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewBackend creates a Claude-backed reasoning backend from a provider config.
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
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (b *Backend) Answer(ctx context.Context, req port.ReasoningRequest) (*port.ReasoningResponse, error) {
	message, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: b.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: backend.SystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(backend.BuildPrompt(req))),
		},
	})
	if err != nil {
		return nil, classify(err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return &port.ReasoningResponse{
		Text:      sb.String(),
		ModelUsed: b.model,
	}, nil
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		var header http.Header
		if apiErr.Response != nil {
			header = apiErr.Response.Header
		}
		return backend.ClassifyStatus(providerName, apiErr.StatusCode, header, err)
	}
	return backend.ClassifyStatus(providerName, 0, nil, err)
}
