// Package config handles gateway configuration loading and validation.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ember-labs/relay/core"
)

// Config represents the gateway configuration.
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Logging   LoggingConfig             `yaml:"logging"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Routes    map[string]RouteConfig    `yaml:"routes"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ProviderConfig holds configuration for a specific provider.
type ProviderConfig struct {
	// Type names the registered provider implementation. Defaults to the
	// provider's configured name, so "openai" needs no type line.
	Type      string `yaml:"type,omitempty"`
	APIKeyRef string `yaml:"api_key_ref,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty"`
}

// RouteConfig is one logical request route: a primary target plus named
// fallbacks, tried in order.
type RouteConfig struct {
	Primary   core.Target   `yaml:"primary"`
	Fallbacks []core.Target `yaml:"fallbacks,omitempty"`
}

// Chain flattens a route into the fallback chain the orchestrator consumes.
func (r RouteConfig) Chain() core.Chain {
	chain := make(core.Chain, 0, 1+len(r.Fallbacks))
	if r.Primary != (core.Target{}) {
		chain = append(chain, r.Primary)
	}
	return append(chain, r.Fallbacks...)
}

// DefaultConfigPath returns the default configuration file path.
// - macOS/Linux: ~/.relay/config.yaml
// - Windows: %USERPROFILE%\.relay\config.yaml
func DefaultConfigPath() string {
	var homeDir string
	if runtime.GOOS == "windows" {
		homeDir = os.Getenv("USERPROFILE")
	} else {
		homeDir = os.Getenv("HOME")
	}
	if homeDir == "" {
		return "config.yaml"
	}
	return filepath.Join(homeDir, ".relay", "config.yaml")
}

// Load reads configuration from the given path. A .env file in the working
// directory is overlaid first, and ${VAR} references in the YAML are
// expanded from the environment. A missing config file returns an empty
// config without error; commands that need routes validate explicitly.
func Load(path string) (*Config, error) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	cfg := &Config{
		Providers: make(map[string]ProviderConfig),
		Routes:    make(map[string]RouteConfig),
	}
	applyDefaults(cfg)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	if cfg.Routes == nil {
		cfg.Routes = make(map[string]RouteConfig)
	}
	applyDefaults(cfg)

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// GetProvider returns the provider config for the given ID, or nil.
func (c *Config) GetProvider(id string) *ProviderConfig {
	if c.Providers == nil {
		return nil
	}
	if pc, ok := c.Providers[id]; ok {
		return &pc
	}
	return nil
}

// Validate checks that every route has a usable, non-empty chain. Errors are
// config-classified so the guard crashes the process with operator guidance
// rather than limping along with a broken routing table.
func (c *Config) Validate() error {
	if len(c.Routes) == 0 {
		return core.NewConfigFailure(core.CodeInvalidConfig, "no routes configured: define at least a %q route", "default")
	}
	for name, route := range c.Routes {
		chain := route.Chain()
		if err := chain.Validate(); err != nil {
			return core.NewConfigFailure(core.CodeInvalidConfig, "route %q: fallback chain is empty", name)
		}
		for _, target := range chain {
			if target.Provider == "" || target.Model == "" {
				return core.NewConfigFailure(core.CodeInvalidConfig,
					"route %q: target %q needs both provider and model", name, target)
			}
		}
	}
	return nil
}

// RouteChains flattens all routes for the gateway server.
func (c *Config) RouteChains() map[string]core.Chain {
	out := make(map[string]core.Chain, len(c.Routes))
	for name, route := range c.Routes {
		out[name] = route.Chain()
	}
	return out
}
