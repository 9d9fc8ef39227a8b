package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/ember-labs/relay/core"
	"github.com/ember-labs/relay/gateway"
)

const shutdownTimeout = 10 * time.Second

func (a *App) newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway server",
		Long: `Run the HTTP gateway. Requests to /v1/chat are routed through the
configured fallback chains; /healthz and /metrics expose liveness and
Prometheus metrics.`,
		RunE: a.runServe,
	}
	cmd.Flags().StringVar(&a.serveAddr, "addr", "", "listen address (overrides config)")
	return cmd
}

func (a *App) runServe(cmd *cobra.Command, args []string) error {
	logger := a.newLogger()
	guard := core.NewGuard(core.NewRegistry(), logger)

	// A broken routing table is fatal at startup, not at first request.
	if err := a.cfg.Validate(); err != nil {
		return a.crash(guard, err)
	}

	ks, err := a.openKeystore()
	if err != nil {
		return a.crash(guard, err)
	}
	resolve := a.buildResolver(a.cfg, ks)

	addr := a.cfg.Server.Addr
	if a.serveAddr != "" {
		addr = a.serveAddr
	}

	srv := gateway.NewServer(gateway.Options{
		Addr:    addr,
		Routes:  a.cfg.RouteChains(),
		Resolve: resolve,
		Logger:  logger,
		Report: func(err error) {
			if decision := guard.Report(err); decision.Terminate {
				a.exit(decision.ExitCode)
			}
		},
	})

	errCh, err := srv.Start()
	if err != nil {
		return a.crash(guard, err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err, ok := <-errCh:
		if ok && err != nil {
			return a.crash(guard, err)
		}
		return nil
	case <-cmd.Context().Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return a.crash(guard, err)
	}

	logger.Info("gateway stopped gracefully")
	return nil
}

// crash routes a startup or serve error through the guard so classification
// decides the exit, then honors the decision. A handled or continue-class
// error still ends serve; it just exits clean.
func (a *App) crash(guard *core.Guard, err error) error {
	if decision := guard.Report(err); decision.Terminate {
		a.exit(decision.ExitCode)
	}
	return err
}

// newLogger builds the process logger. Level comes from config, --verbose
// forces debug.
func (a *App) newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch a.cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if a.verbose {
		level = slog.LevelDebug
	}

	return slog.New(tint.NewHandler(a.stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	}))
}
