package openai

import (
	"encoding/json"
	"net/http"

	"github.com/ember-labs/relay/core"
)

// normalizeError converts an HTTP error response into a core.Failure so the
// classifier can see the status, code, and message the backend reported.
func normalizeError(status int, body []byte, requestID string) error {
	var envelope errorResponse
	_ = json.Unmarshal(body, &envelope)

	message := envelope.Error.Message
	if message == "" {
		message = http.StatusText(status)
	}
	code := envelope.Error.Code
	if code == "" {
		code = envelope.Error.Type
	}

	return &core.Failure{
		Provider:  "openai",
		Status:    status,
		RequestID: requestID,
		Code:      code,
		Message:   message,
		Err:       sentinelForStatus(status),
	}
}

// newTransportError wraps a transport failure, keeping the original error as
// the cause so classification can inspect the underlying network condition.
func newTransportError(err error) error {
	return &core.Failure{
		Provider: "openai",
		Message:  err.Error(),
		Err:      err,
	}
}

// newDecodeError wraps a response parsing failure. Decode failures are not
// retryable: the backend answered, it just answered garbage.
func newDecodeError(err error) error {
	return &core.Failure{
		Provider: "openai",
		Message:  err.Error(),
		Err:      core.ErrDecode,
	}
}

// sentinelForStatus maps an HTTP status code to a core sentinel error.
func sentinelForStatus(status int) error {
	switch {
	case status == http.StatusBadRequest:
		return core.ErrBadRequest
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return core.ErrUnauthorized
	case status == http.StatusNotFound:
		return core.ErrNotFound
	case status == http.StatusTooManyRequests:
		return core.ErrRateLimited
	default:
		return core.ErrServer
	}
}
