// Package core implements Relay's failure taxonomy, process-level error
// policy, and model fallback orchestration.
//
// # Failure classification
//
// Errors produced by providers arrive in loosely structured shapes: wrapped
// causes, aggregates, provider-specific status and text conventions. The
// classifier maps any error value to one of six classes:
//
//   - [ClassAbort]: intentional cancellation, never crash-worthy
//   - [ClassFatal]: unrecoverable runtime condition (out of memory, dead worker)
//   - [ClassConfig]: operator-fixable configuration problem
//   - [ClassTransientNetwork]: infrastructure blip, retried against a fallback
//   - [ClassRateLimit]: provider throttling, retried against a fallback
//   - [ClassUnclassified]: unknown, treated as non-retryable
//
// The predicates [IsAbort], [IsFatal], [IsConfig], [IsTransientNetwork], and
// [IsRateLimit] are independent, total, and side-effect-free; they never
// panic and terminate even on cyclic cause chains. [Classify] applies the
// priority order the process policy relies on.
//
// # Fallback orchestration
//
// [RunFallback] walks a [Chain] of provider+model targets in order, invoking
// a caller-supplied unit of work once per target:
//
//	resp, attempts, err := core.RunFallback(ctx, chain,
//	    func(ctx context.Context, t core.Target) (*core.ChatResponse, error) {
//	        return callProvider(ctx, t, req)
//	    })
//
// Rate-limited and transient-network failures advance to the next target;
// everything else propagates verbatim. When every target fails retryably the
// caller receives an [*ExhaustedError] carrying one [Attempt] per target.
// The orchestrator introduces no delay and performs no logging.
//
// # Process guard
//
// [Guard] is the last line of defense for errors that escaped every
// subsystem. Registered [Handler] functions get first refusal; otherwise the
// classification decides between continuing and terminating. The guard
// returns an abstract [Decision] rather than exiting, so the policy is
// testable; the shell that owns main performs the actual os.Exit.
package core
