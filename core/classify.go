package core

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// Class is the categorical verdict for a failure. Predicates below are
// independent; Classify applies the priority order the guard relies on.
type Class int

const (
	ClassUnclassified Class = iota
	ClassAbort
	ClassFatal
	ClassConfig
	ClassTransientNetwork
	ClassRateLimit
)

func (c Class) String() string {
	switch c {
	case ClassAbort:
		return "abort"
	case ClassFatal:
		return "fatal"
	case ClassConfig:
		return "config"
	case ClassTransientNetwork:
		return "transient-network"
	case ClassRateLimit:
		return "rate-limit"
	default:
		return "unclassified"
	}
}

// maxCauseDepth bounds cause-chain recursion. Cause chains are built from
// arbitrary upstream values and may be cyclic; past this depth classification
// gives up and reports false rather than guessing.
const maxCauseDepth = 10

// abortMessage is the literal message surfaced by upstream SDKs when a
// request is cancelled. Exact match only; near-miss phrasings do not count.
const abortMessage = "This operation was aborted"

var fatalCodes = map[string]bool{
	CodeOutOfMemory:            true,
	CodeScriptExecutionTimeout: true,
	CodeWorkerOutOfMemory:      true,
	CodeWorkerUncaught:         true,
	CodeWorkerInitFailed:       true,
}

var configCodes = map[string]bool{
	CodeInvalidConfig:      true,
	CodeMissingAPIKey:      true,
	CodeMissingCredentials: true,
}

// transientCodes are string error codes that proxied Node-style backends and
// generic HTTP clients attach to infrastructure blips.
var transientCodes = map[string]bool{
	"ECONNRESET":              true,
	"ECONNREFUSED":            true,
	"ENOTFOUND":               true,
	"ETIMEDOUT":               true,
	"ESOCKETTIMEDOUT":         true,
	"ECONNABORTED":            true,
	"EPIPE":                   true,
	"EHOSTUNREACH":            true,
	"ENETUNREACH":             true,
	"EAI_AGAIN":               true,
	"UND_ERR_CONNECT_TIMEOUT": true,
	"UND_ERR_HEADERS_TIMEOUT": true,
	"UND_ERR_BODY_TIMEOUT":    true,
	"UND_ERR_SOCKET":          true,
}

// rateLimitPhrases are matched case-insensitively against error text.
var rateLimitPhrases = []string{
	"rate limit",
	"rate-limit",
	"rate_limit",
	"too many requests",
	"429",
	"quota",
	"resource exhausted",
	"overloaded",
}

// Classify maps an error to a single Class, applying the process policy's
// priority order. Abort is checked first: cancellations are intentional and
// must never be mistaken for a crash-worthy condition.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassUnclassified
	case IsAbort(err):
		return ClassAbort
	case IsFatal(err):
		return ClassFatal
	case IsConfig(err):
		return ClassConfig
	case IsTransientNetwork(err):
		return ClassTransientNetwork
	case IsRateLimit(err):
		return ClassRateLimit
	default:
		return ClassUnclassified
	}
}

// IsAbort reports whether err is an intentional cancellation: a
// context.Canceled anywhere in the chain, an abort code, or the exact
// upstream abort message.
func IsAbort(err error) bool {
	if err == nil {
		return false
	}
	if chainIs(err, context.Canceled, 0) {
		return true
	}
	if codeOf(err) == CodeAborted {
		return true
	}
	return messageOf(err) == abortMessage
}

// IsFatal reports whether err carries an unrecoverable runtime code, on the
// error itself or on its direct cause. The lookup is deliberately shallow:
// a fatal code buried under layers of wrapping belongs to some inner
// operation, not to this one.
func IsFatal(err error) bool {
	return codeInSet(err, fatalCodes)
}

// IsConfig reports whether err carries an operator-fixable configuration
// code, on the error itself or on its direct cause.
func IsConfig(err error) bool {
	return codeInSet(err, configCodes)
}

// IsTransientNetwork reports whether err is an infrastructure blip worth
// retrying against a different target. It follows cause chains to
// maxCauseDepth and treats an aggregate as transient iff any member is.
func IsTransientNetwork(err error) bool {
	return isTransientNetwork(err, 0)
}

func isTransientNetwork(err error, depth int) bool {
	if err == nil || depth > maxCauseDepth {
		return false
	}

	if members := aggregateOf(err); members != nil {
		for _, m := range members {
			if isTransientNetwork(m, depth+1) {
				return true
			}
		}
		return false
	}

	if transientCodes[codeOf(err)] {
		return true
	}
	cause := errors.Unwrap(err)
	if cause != nil && transientCodes[codeOf(cause)] {
		return true
	}

	if isNativeTransient(err) {
		return true
	}

	// Generic transport wrappers surface the bare "fetch failed" text. When
	// a cause is attached the verdict belongs to the cause; without one the
	// failure can only be the transport itself.
	if messageOf(err) == "fetch failed" {
		if cause != nil && cause != err {
			return isTransientNetwork(cause, depth+1)
		}
		return true
	}

	if cause != nil && cause != err {
		return isTransientNetwork(cause, depth+1)
	}
	return false
}

// transientErrnos are the errno spellings of the transient code set.
var transientErrnos = map[syscall.Errno]bool{
	syscall.ECONNRESET:   true,
	syscall.ECONNREFUSED: true,
	syscall.ECONNABORTED: true,
	syscall.EPIPE:        true,
	syscall.EHOSTUNREACH: true,
	syscall.ENETUNREACH:  true,
	syscall.ETIMEDOUT:    true,
}

// isNativeTransient covers the Go-native spellings of the transient set:
// syscall errnos, DNS failures, and transport timeouts. It inspects only
// this node; walking the chain is the caller's depth-bounded job.
// errors.Is/errors.As are avoided on purpose: they follow arbitrary cause
// chains with no cycle guard.
func isNativeTransient(err error) bool {
	if errno, ok := err.(syscall.Errno); ok {
		return transientErrnos[errno]
	}
	if _, ok := err.(*net.DNSError); ok {
		return true
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}
	return false
}

// IsRateLimit reports whether err represents provider throttling: a 429
// status, throttling wording in the error text, or either of those on a
// cause. Overload responses are merged into the same bucket as true 429s.
func IsRateLimit(err error) bool {
	return isRateLimit(err, 0)
}

func isRateLimit(err error, depth int) bool {
	if err == nil || depth > maxCauseDepth {
		return false
	}

	if statusOf(err) == 429 || codeOf(err) == "429" {
		return true
	}
	if err == ErrRateLimited {
		return true
	}

	// Phrase-match the message only. The full rendering of a structured
	// failure includes code, status, and request ID, and a request ID that
	// happens to contain "429" is not a rate limit.
	text := strings.ToLower(messageOf(err))
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}

	if cause := errors.Unwrap(err); cause != nil && cause != err {
		return isRateLimit(cause, depth+1)
	}
	return false
}

// codeOf extracts a string error code without walking the chain.
func codeOf(err error) string {
	if f, ok := err.(*Failure); ok {
		return f.Code
	}
	if c, ok := err.(interface{ Code() string }); ok {
		return c.Code()
	}
	return ""
}

// statusOf extracts an HTTP-style status without walking the chain.
func statusOf(err error) int {
	if f, ok := err.(*Failure); ok {
		return f.Status
	}
	if s, ok := err.(interface{ StatusCode() int }); ok {
		return s.StatusCode()
	}
	return 0
}

// messageOf returns the error's own message, not the concatenated chain
// rendering, when the shape allows it.
func messageOf(err error) string {
	if f, ok := err.(*Failure); ok {
		return f.Message
	}
	return err.Error()
}

// aggregateOf returns the members of an aggregate error, or nil.
// Covers errors.Join and any other multi-cause container.
func aggregateOf(err error) []error {
	if agg, ok := err.(interface{ Unwrap() []error }); ok {
		return agg.Unwrap()
	}
	return nil
}

// chainIs is a depth-bounded equality walk over causes and aggregate
// members. It replaces errors.Is where the input may carry a cyclic chain.
func chainIs(err, target error, depth int) bool {
	if err == nil || depth > maxCauseDepth {
		return false
	}
	if err == target {
		return true
	}
	if members := aggregateOf(err); members != nil {
		for _, m := range members {
			if chainIs(m, target, depth+1) {
				return true
			}
		}
		return false
	}
	if cause := errors.Unwrap(err); cause != nil && cause != err {
		return chainIs(cause, target, depth+1)
	}
	return false
}

// codeInSet implements the shallow one-level code lookup shared by the
// fatal and config predicates.
func codeInSet(err error, set map[string]bool) bool {
	if err == nil {
		return false
	}
	if set[codeOf(err)] {
		return true
	}
	if cause := errors.Unwrap(err); cause != nil {
		return set[codeOf(cause)]
	}
	return false
}
