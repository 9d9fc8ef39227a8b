package openai

import "net/http"

// Option customizes provider configuration.
type Option func(*Config)

// WithBaseURL overrides the API endpoint. Use this to point the provider at
// any OpenAI-compatible backend (a local server, a proxy, another vendor).
func WithBaseURL(baseURL string) Option {
	return func(c *Config) {
		if baseURL != "" {
			c.BaseURL = baseURL
		}
	}
}

// WithHTTPClient overrides the HTTP client, e.g. to set timeouts.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		if client != nil {
			c.HTTPClient = client
		}
	}
}
