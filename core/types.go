package core

import "context"

// ModelID is a string identifier for a model (e.g., "gpt-4o", "claude-sonnet-4").
type ModelID string

// Role identifies the author of a message.
type Role string

const (
	// RoleSystem is used for system instructions.
	RoleSystem Role = "system"
	// RoleUser is used for end-user messages.
	RoleUser Role = "user"
	// RoleAssistant is used for model responses.
	RoleAssistant Role = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TokenUsage reports token consumption for a completed request.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatRequest represents a request to a chat model.
type ChatRequest struct {
	Model       ModelID   `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// ChatResponse is the non-streaming result of a chat request.
type ChatResponse struct {
	ID     string     `json:"id"`
	Model  ModelID    `json:"model"`
	Output string     `json:"output"`
	Usage  TokenUsage `json:"usage"`
}

// Provider is the interface model backends implement.
// Providers SHOULD be safe for concurrent use.
type Provider interface {
	// ID returns the provider identifier (e.g., "openai").
	ID() string
	// Chat performs a non-streaming chat completion.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}
