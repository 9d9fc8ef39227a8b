package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/ember-labs/relay/core"
)

// chatCompletionsPath is the API endpoint for chat completions.
const chatCompletionsPath = "/chat/completions"

// doChat performs a non-streaming chat completion request.
func (p *OpenAI) doChat(ctx context.Context, req *core.ChatRequest) (*core.ChatResponse, error) {
	wireReq := buildRequest(req)

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, newDecodeError(err)
	}

	url := p.config.BaseURL + chatCompletionsPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, newTransportError(err)
	}
	httpReq.Header = p.buildHeaders()

	resp, err := p.config.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, newTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransportError(err)
	}

	requestID := resp.Header.Get("x-request-id")

	if resp.StatusCode >= 400 {
		return nil, normalizeError(resp.StatusCode, respBody, requestID)
	}

	var wireResp chatResponse
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		return nil, newDecodeError(err)
	}

	return mapResponse(&wireResp), nil
}

// buildRequest converts a core request to the wire format.
func buildRequest(req *core.ChatRequest) *chatRequest {
	out := &chatRequest{
		Model:       string(req.Model),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, chatMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}

// mapResponse converts a wire response to a core.ChatResponse.
func mapResponse(resp *chatResponse) *core.ChatResponse {
	result := &core.ChatResponse{
		ID:    resp.ID,
		Model: core.ModelID(resp.Model),
		Usage: core.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) > 0 {
		result.Output = resp.Choices[0].Message.Content
	}
	return result
}
