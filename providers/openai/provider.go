// Package openai implements a provider for OpenAI-compatible chat APIs.
// Any backend speaking the /chat/completions protocol can be used through
// it by overriding the base URL.
package openai

import (
	"context"
	"net/http"

	"github.com/ember-labs/relay/core"
)

// DefaultBaseURL is the OpenAI API endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// Config holds provider settings.
type Config struct {
	APIKey     core.Secret
	BaseURL    string
	HTTPClient *http.Client
}

// OpenAI is a provider for OpenAI-compatible chat APIs.
// It is safe for concurrent use.
type OpenAI struct {
	config Config
}

// New creates a new provider with the given API key and options.
func New(apiKey string, opts ...Option) *OpenAI {
	cfg := Config{
		APIKey:     core.NewSecret(apiKey),
		BaseURL:    DefaultBaseURL,
		HTTPClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &OpenAI{config: cfg}
}

// ID returns the provider identifier.
func (p *OpenAI) ID() string {
	return "openai"
}

// Chat performs a non-streaming chat completion.
func (p *OpenAI) Chat(ctx context.Context, req *core.ChatRequest) (*core.ChatResponse, error) {
	return p.doChat(ctx, req)
}

// buildHeaders constructs the HTTP headers for an API request.
func (p *OpenAI) buildHeaders() http.Header {
	headers := make(http.Header)
	if !p.config.APIKey.IsEmpty() {
		headers.Set("Authorization", "Bearer "+p.config.APIKey.Expose())
	}
	headers.Set("Content-Type", "application/json")
	return headers
}

var _ core.Provider = (*OpenAI)(nil)
