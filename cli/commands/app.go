// Package commands implements the CLI command structure using Cobra.
package commands

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ember-labs/relay/cli/config"
	"github.com/ember-labs/relay/cli/keystore"
	"github.com/ember-labs/relay/gateway"
)

// ConfigLoader loads CLI config from a path.
type ConfigLoader func(path string) (*config.Config, error)

// KeystoreOpener creates a keystore instance.
type KeystoreOpener func() (keystore.Keystore, error)

// ResolverBuilder turns config plus keystore into a provider resolver.
type ResolverBuilder func(cfg *config.Config, ks keystore.Keystore) gateway.ProviderResolver

// AppOption customizes App dependencies.
type AppOption func(*App)

// App holds CLI state and runtime dependencies.
type App struct {
	root *cobra.Command

	loadConfig    ConfigLoader
	openKeystore  KeystoreOpener
	buildResolver ResolverBuilder
	exit          func(code int)
	stdin         io.Reader
	stdout        io.Writer
	stderr        io.Writer

	cfgFile    string
	jsonOutput bool
	verbose    bool
	cfg        *config.Config

	chatRoute       string
	chatPrompt      string
	chatSystem      string
	chatTemperature float32
	chatMaxTokens   int

	serveAddr string
}

// WithConfigLoader injects a config loader dependency.
func WithConfigLoader(loader ConfigLoader) AppOption {
	return func(a *App) {
		if loader != nil {
			a.loadConfig = loader
		}
	}
}

// WithKeystoreOpener injects a keystore opener dependency.
func WithKeystoreOpener(opener KeystoreOpener) AppOption {
	return func(a *App) {
		if opener != nil {
			a.openKeystore = opener
		}
	}
}

// WithResolverBuilder injects a provider resolver builder dependency.
func WithResolverBuilder(builder ResolverBuilder) AppOption {
	return func(a *App) {
		if builder != nil {
			a.buildResolver = builder
		}
	}
}

// WithExit injects the process exit function used on terminate decisions.
func WithExit(exit func(code int)) AppOption {
	return func(a *App) {
		if exit != nil {
			a.exit = exit
		}
	}
}

// WithIO injects process I/O streams.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) AppOption {
	return func(a *App) {
		if stdin != nil {
			a.stdin = stdin
		}
		if stdout != nil {
			a.stdout = stdout
		}
		if stderr != nil {
			a.stderr = stderr
		}
	}
}

// NewApp creates a new CLI app with default dependencies.
func NewApp(opts ...AppOption) *App {
	a := &App{
		loadConfig:    config.Load,
		openKeystore:  keystore.Open,
		buildResolver: newProviderResolver,
		exit:          os.Exit,
		stdin:         os.Stdin,
		stdout:        os.Stdout,
		stderr:        os.Stderr,
	}

	for _, opt := range opts {
		opt(a)
	}

	a.root = a.newRootCommand()
	return a
}

func (a *App) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "relay",
		Short: "Relay - model gateway with classified fallback",
		Long: `Relay is a gateway that routes chat requests across model providers.

Each route is an ordered fallback chain; when a target fails with a rate
limit or a transient network error the next target is tried, anything else
stops the chain immediately.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
		SilenceUsage: true,
	}

	// Global flags available to all commands.
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ~/.relay/config.yaml)")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "emit JSON output")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "enable debug logging")

	root.AddCommand(a.newServeCommand())
	root.AddCommand(a.newChatCommand())
	root.AddCommand(a.newKeysCommand())
	root.AddCommand(a.newVersionCommand())

	return root
}

// Execute runs the root command.
func (a *App) Execute() error {
	return a.root.Execute()
}

// SetArgs overrides command-line arguments, mainly for tests.
func (a *App) SetArgs(args []string) {
	a.root.SetArgs(args)
}

func (a *App) initConfig() error {
	path := a.cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}

	cfg, err := a.loadConfig(path)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

var defaultApp = NewApp()

// Execute runs the default app root command.
func Execute() error {
	return defaultApp.Execute()
}
