package core

import (
	"fmt"
	"log/slog"
	"sync"
)

// logTag prefixes every guard log line so gateway decisions are greppable
// in mixed output.
const logTag = "relay:"

// Handler inspects a reported error and returns true to claim it, stopping
// the global policy from acting on it.
type Handler func(err error) bool

type handlerEntry struct {
	id uint64
	fn Handler
}

// Registry is the process-scoped, ordered set of recovery handlers.
// It is constructed at process start, mutated throughout the process
// lifetime by arbitrary subsystems, and drained at shutdown. All methods
// are safe for concurrent use, including from within a running handler.
type Registry struct {
	mu      sync.Mutex
	nextID  uint64
	entries []handlerEntry
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a handler and returns a capability that removes it.
// Handlers run in insertion order. The returned function is idempotent.
func (r *Registry) Register(h Handler) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.entries = append(r.entries, handlerEntry{id: id, fn: h})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, e := range r.entries {
			if e.id == id {
				r.entries = append(r.entries[:i], r.entries[i+1:]...)
				return
			}
		}
	}
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Drain removes all handlers. Called at shutdown.
func (r *Registry) Drain() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}

// snapshot copies the current handler list so iteration tolerates
// concurrent registration and unregistration.
func (r *Registry) snapshot() []handlerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]handlerEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Decision is the abstract verdict for a reported error. The guard never
// exits the process itself; the shell that owns main performs the halt.
type Decision struct {
	Class     Class
	Handled   bool
	Terminate bool
	ExitCode  int
}

// Guard consumes errors that escaped every subsystem and decides whether
// the process keeps running.
type Guard struct {
	reg *Registry
	log *slog.Logger
}

// NewGuard creates a guard over the given registry. A nil logger falls back
// to slog.Default().
func NewGuard(reg *Registry, logger *slog.Logger) *Guard {
	if reg == nil {
		reg = NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{reg: reg, log: logger}
}

// Registry returns the guard's handler registry.
func (g *Guard) Registry() *Registry {
	return g.reg
}

// Handled iterates registered handlers in insertion order; the first to
// return true claims the error. A panicking handler is logged and counted
// as false, and never blocks the handlers after it.
func (g *Guard) Handled(err error) bool {
	for _, entry := range g.reg.snapshot() {
		if g.runHandler(entry.fn, err) {
			return true
		}
	}
	return false
}

func (g *Guard) runHandler(h Handler, err error) (claimed bool) {
	defer func() {
		if rec := recover(); rec != nil {
			g.log.Error(logTag+" recovery handler panicked", "panic", fmt.Sprint(rec))
			claimed = false
		}
	}()
	return h(err)
}

// Report applies the process-level policy to one escaped error. Handlers
// get first refusal; otherwise the classification priority order decides.
// Abort is checked first because cancellations are always intentional and
// must never crash the process. Unknown errors terminate as a fail-safe:
// continuing on a fault nobody understands is worse than restarting.
func (g *Guard) Report(err error) Decision {
	if g.Handled(err) {
		return Decision{Handled: true}
	}

	class := Classify(err)
	switch class {
	case ClassAbort:
		g.log.Warn(logTag+" aborted operation", "error", formatError(err))
	case ClassFatal:
		g.log.Error(logTag+" fatal runtime error, exiting", "error", formatError(err))
	case ClassConfig:
		g.log.Error(logTag+" configuration error, fix the config and restart", "error", formatError(err))
	case ClassTransientNetwork:
		g.log.Warn(logTag+" transient network error", "error", formatError(err))
	case ClassRateLimit:
		g.log.Warn(logTag+" provider rate limit", "error", formatError(err))
	default:
		g.log.Error(logTag+" unclassified error, exiting", "error", formatError(err))
	}

	terminate := class == ClassFatal || class == ClassConfig || class == ClassUnclassified
	d := Decision{Class: class, Terminate: terminate}
	if terminate {
		d.ExitCode = 1
	}
	return d
}

// formatError renders the error for a log line, including any stack an
// implementation chooses to expose through %+v.
func formatError(err error) string {
	if err == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%+v", err)
}
