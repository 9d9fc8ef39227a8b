// Package gateway implements the HTTP front of Relay: it accepts chat
// requests, resolves the route's fallback chain, and forwards work through
// core.RunFallback. All observation (logging, metrics) of fallback behavior
// lives here; the orchestrator itself stays silent.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ember-labs/relay/core"
)

// DefaultRoute is used when a request does not name a route.
const DefaultRoute = "default"

// ProviderResolver returns a ready-to-use provider for a name, or an error
// (classified as config when the provider is known but unusable).
type ProviderResolver func(name string) (core.Provider, error)

// Options configures a Server.
type Options struct {
	Addr    string
	Routes  map[string]core.Chain
	Resolve ProviderResolver
	Logger  *slog.Logger
	// Report receives errors that escaped a request handler (panics).
	// Usually wired to core.Guard.Report via the serve command.
	Report func(err error)
}

// Server is the Relay HTTP gateway.
type Server struct {
	opts Options
	log  *slog.Logger
	http *http.Server
}

// NewServer builds a gateway server. Routes must be validated beforehand;
// an unknown route in a request is a client error, an empty chain is not
// expected past config validation.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{opts: opts, log: opts.Logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat", s.recovered(s.handleChat))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the gateway mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start begins serving. It returns once the listener is bound; serve errors
// after that are delivered to the returned channel.
func (s *Server) Start() (<-chan error, error) {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return nil, fmt.Errorf("gateway listen on %s: %w", s.http.Addr, err)
	}
	s.log.Info("gateway listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh, nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// chatRequest is the gateway's request body.
type chatRequest struct {
	Route       string         `json:"route,omitempty"`
	Messages    []core.Message `json:"messages"`
	Temperature float32        `json:"temperature,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
}

// attemptView is the wire rendering of one failed attempt.
type attemptView struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Reason   string `json:"reason"`
	Message  string `json:"message"`
}

// chatResponse is the gateway's success body.
type chatResponse struct {
	ID       string          `json:"id"`
	Model    core.ModelID    `json:"model"`
	Output   string          `json:"output"`
	Usage    core.TokenUsage `json:"usage"`
	Attempts []attemptView   `json:"attempts,omitempty"`
}

type errorBody struct {
	Error    string        `json:"error"`
	Class    string        `json:"class"`
	Attempts []attemptView `json:"attempts,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()
	w.Header().Set("x-relay-request-id", requestID)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), core.ClassUnclassified, nil)
		return
	}
	if len(req.Messages) == 0 {
		s.writeError(w, http.StatusBadRequest, "no messages", core.ClassUnclassified, nil)
		return
	}

	routeName := req.Route
	if routeName == "" {
		routeName = DefaultRoute
	}
	chain, ok := s.opts.Routes[routeName]
	if !ok {
		requestsTotal.WithLabelValues(routeName, "unknown_route").Inc()
		s.writeError(w, http.StatusNotFound, "unknown route: "+routeName, core.ClassConfig, nil)
		return
	}

	log := s.log.With("request_id", requestID, "route", routeName)

	work := func(ctx context.Context, target core.Target) (*core.ChatResponse, error) {
		provider, err := s.opts.Resolve(target.Provider)
		if err != nil {
			return nil, err
		}
		return provider.Chat(ctx, &core.ChatRequest{
			Model:       core.ModelID(target.Model),
			Messages:    req.Messages,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		})
	}

	resp, attempts, err := core.RunFallback(r.Context(), chain, work)
	requestDuration.WithLabelValues(routeName).Observe(time.Since(start).Seconds())
	for _, a := range attempts {
		fallbackAttemptsTotal.WithLabelValues(a.Target.Provider, a.Reason.String()).Inc()
		log.Warn("attempt failed, trying next target",
			"target", a.Target.String(), "reason", a.Reason.String(), "cause", a.Message)
	}

	if err != nil {
		class := core.Classify(err)
		failuresTotal.WithLabelValues(class.String()).Inc()
		requestsTotal.WithLabelValues(routeName, "error").Inc()
		log.Error("request failed", "class", class.String(), "error", err)
		s.writeError(w, statusFor(err, class), err.Error(), class, attempts)
		return
	}

	requestsTotal.WithLabelValues(routeName, "ok").Inc()
	log.Info("request served",
		"model", resp.Model, "attempts", len(attempts), "duration", time.Since(start))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chatResponse{
		ID:       resp.ID,
		Model:    resp.Model,
		Output:   resp.Output,
		Usage:    resp.Usage,
		Attempts: attemptViews(attempts),
	})
}

// statusFor maps a terminal fallback error to an HTTP status for the client.
func statusFor(err error, class core.Class) int {
	var exhausted *core.ExhaustedError
	if errors.As(err, &exhausted) {
		return http.StatusBadGateway
	}

	var failure *core.Failure
	if errors.As(err, &failure) && failure.Status >= 400 {
		return failure.Status
	}

	switch class {
	case core.ClassAbort:
		// Client went away; nobody reads this status, but be explicit.
		return 499
	case core.ClassRateLimit:
		return http.StatusTooManyRequests
	case core.ClassTransientNetwork:
		return http.StatusBadGateway
	case core.ClassConfig:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func attemptViews(attempts []core.Attempt) []attemptView {
	if len(attempts) == 0 {
		return nil
	}
	out := make([]attemptView, len(attempts))
	for i, a := range attempts {
		out[i] = attemptView{
			Provider: a.Target.Provider,
			Model:    a.Target.Model,
			Reason:   a.Reason.String(),
			Message:  a.Message,
		}
	}
	return out
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string, class core.Class, attempts []core.Attempt) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{
		Error:    msg,
		Class:    class.String(),
		Attempts: attemptViews(attempts),
	})
}

// recovered converts a handler panic into a report to the process guard
// instead of killing the connection silently.
func (s *Server) recovered(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("panic in handler: %v", rec)
				}
				if s.opts.Report != nil {
					s.opts.Report(err)
				}
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}
