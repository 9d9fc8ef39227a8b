package core

import (
	"context"
	"fmt"
)

// Target identifies one provider+model pair in a fallback chain.
type Target struct {
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model" yaml:"model"`
}

func (t Target) String() string {
	return t.Provider + "/" + t.Model
}

// Chain is an ordered, non-empty sequence of targets: the primary followed
// by its named fallbacks.
type Chain []Target

// Validate rejects chains that cannot be attempted. An empty chain is a
// configuration error, caught before any work runs.
func (c Chain) Validate() error {
	if len(c) == 0 {
		return NewConfigFailure(CodeInvalidConfig, "fallback chain is empty: configure a primary model")
	}
	return nil
}

// RetryReason records why a failed attempt was followed by another target.
type RetryReason int

const (
	// ReasonOther marks a non-retryable failure; it aborts the chain.
	ReasonOther RetryReason = iota
	// ReasonRateLimit marks provider throttling.
	ReasonRateLimit
	// ReasonTransientNetwork marks an infrastructure blip.
	ReasonTransientNetwork
)

func (r RetryReason) String() string {
	switch r {
	case ReasonRateLimit:
		return "rate-limit"
	case ReasonTransientNetwork:
		return "transient-network"
	default:
		return "other"
	}
}

// Attempt is the record of one failed attempt within a fallback run,
// in chronological order. Successes are not recorded.
type Attempt struct {
	Target  Target
	Reason  RetryReason
	Message string
}

// WorkFunc is the unit of work executed once per target. It performs the
// actual call (network or otherwise) and fails with an arbitrary error.
type WorkFunc[R any] func(ctx context.Context, target Target) (R, error)

// ExhaustedError is raised when every target in a chain failed retryably.
// It carries one Attempt and one underlying error per target.
type ExhaustedError struct {
	Attempts []Attempt
	Errs     []error
}

func (e *ExhaustedError) Error() string {
	if n := len(e.Errs); n > 0 {
		return fmt.Sprintf("all %d models failed: %v", len(e.Attempts), e.Errs[n-1])
	}
	return fmt.Sprintf("all %d models failed", len(e.Attempts))
}

// Unwrap exposes the per-target errors as an aggregate.
func (e *ExhaustedError) Unwrap() []error {
	return e.Errs
}

// RunFallback attempts targets strictly in chain order, one at a time, with
// no delay between attempts and no target tried twice. On success it returns
// the result plus the records of the failed predecessors. A failure
// classified as rate limiting or a transient network problem advances to the
// next target; anything else (including cancellation) aborts the chain and
// is returned verbatim, never wrapped. When the last target also fails
// retryably the result is an *ExhaustedError carrying every attempt.
//
// RunFallback performs no logging; callers layer observation on top using
// the returned attempts.
func RunFallback[R any](ctx context.Context, chain Chain, work WorkFunc[R]) (R, []Attempt, error) {
	var zero R

	if err := chain.Validate(); err != nil {
		return zero, nil, err
	}

	var (
		attempts []Attempt
		errs     []error
	)
	for i, target := range chain {
		result, err := work(ctx, target)
		if err == nil {
			return result, attempts, nil
		}

		reason := retryReasonFor(err)
		if reason == ReasonOther {
			return zero, attempts, err
		}

		attempts = append(attempts, Attempt{
			Target:  target,
			Reason:  reason,
			Message: err.Error(),
		})
		errs = append(errs, err)

		if i == len(chain)-1 {
			return zero, attempts, &ExhaustedError{Attempts: attempts, Errs: errs}
		}
	}

	// Unreachable: the loop always returns.
	return zero, attempts, nil
}

// retryReasonFor buckets a failed attempt. Rate limiting is checked first so
// a throttling response that also smells like a network problem keeps its
// throttling attribution.
func retryReasonFor(err error) RetryReason {
	switch {
	case IsRateLimit(err):
		return ReasonRateLimit
	case IsTransientNetwork(err):
		return ReasonTransientNetwork
	default:
		return ReasonOther
	}
}
