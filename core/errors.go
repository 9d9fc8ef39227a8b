package core

import (
	"errors"
	"fmt"
)

// Failure is the structured error shape produced by providers and internal
// subsystems. None of the fields are mandatory: upstream APIs, proxied
// runtimes, and transport layers each fill in whatever they know.
type Failure struct {
	Provider  string
	Status    int
	RequestID string
	Code      string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *Failure) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s: %s (status=%d, code=%s, request_id=%s)",
			e.Provider, e.Message, e.Status, e.Code, e.RequestID)
	}
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s (status=%d, code=%s)",
			e.Provider, e.Message, e.Status, e.Code)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chaining.
func (e *Failure) Unwrap() error {
	return e.Err
}

// Error codes surfaced by embedded worker runtimes and proxied backends.
// Classification treats these as unrecoverable: the process state can no
// longer be trusted.
const (
	CodeOutOfMemory            = "ERR_OUT_OF_MEMORY"
	CodeScriptExecutionTimeout = "ERR_SCRIPT_EXECUTION_TIMEOUT"
	CodeWorkerOutOfMemory      = "ERR_WORKER_OUT_OF_MEMORY"
	CodeWorkerUncaught         = "ERR_WORKER_UNCAUGHT_EXCEPTION"
	CodeWorkerInitFailed       = "ERR_WORKER_INIT_FAILED"
)

// Error codes for operator-fixable configuration problems.
const (
	CodeInvalidConfig      = "ERR_INVALID_CONFIG"
	CodeMissingAPIKey      = "ERR_MISSING_API_KEY"
	CodeMissingCredentials = "ERR_MISSING_CREDENTIALS"
)

// CodeAborted marks an intentionally cancelled operation.
const CodeAborted = "ABORT_ERR"

// Sentinel errors for classification.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
	ErrServer       = errors.New("server error")
	ErrNetwork      = errors.New("network error")
	ErrDecode       = errors.New("decode error")
)

// NewConfigFailure builds a Failure carrying a configuration error code.
// Reported to the guard it terminates the process with operator guidance.
func NewConfigFailure(code, format string, args ...any) *Failure {
	return &Failure{Code: code, Message: fmt.Sprintf(format, args...)}
}
