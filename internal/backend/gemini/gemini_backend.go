package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"

	"examsolver/internal/backend"
	"examsolver/internal/config"
	"examsolver/internal/port"
)

const (
	providerName    = "gemini"
	defaultModel    = "gemini-2.0-flash"
	defaultMaxToken = 512
)

func init() {
	backend.RegisterProvider(providerName, func(cfg *config.BackendProviderConfig) (port.ReasoningBackend, error) {
		return NewBackend(context.Background(), cfg)
	})
}

// Backend implements port.ReasoningBackend using Google's Gemini API.
type Backend struct {
	client    *genai.Client
	model     string
	maxTokens int32
}

// NewBackend creates a Gemini-backed reasoning backend from a provider config.
func NewBackend(ctx context.Context, cfg *config.BackendProviderConfig) (*Backend, error) {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := int32(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxToken
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Backend{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

func (b *Backend) Answer(ctx context.Context, req port.ReasoningRequest) (*port.ReasoningResponse, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(backend.BuildPrompt(req), genai.RoleUser),
	}
	resp, err := b.client.Models.GenerateContent(ctx, b.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(backend.SystemPrompt, genai.RoleUser),
		MaxOutputTokens:   b.maxTokens,
	})
	if err != nil {
		return nil, classify(err)
	}

	if len(resp.Candidates) == 0 {
		return nil, &backend.TransientError{Provider: providerName, Err: fmt.Errorf("empty response from API: no candidates")}
	}

	return &port.ReasoningResponse{
		Text:      resp.Text(),
		ModelUsed: b.model,
	}, nil
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return backend.ClassifyStatus(providerName, apiErr.Code, nil, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return backend.ClassifyStatus(providerName, apiErrPtr.Code, nil, err)
	}
	return backend.ClassifyStatus(providerName, 0, nil, err)
}
