package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ember-labs/relay/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
logging:
  level: debug
providers:
  openai:
    api_key_ref: openai
  local:
    type: openai
    base_url: http://localhost:11434/v1
routes:
  default:
    primary:
      provider: openai
      model: gpt-4o
    fallbacks:
      - provider: local
        model: llama3
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %q, want :9090", cfg.Server.Addr)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if pc := cfg.GetProvider("local"); pc == nil || pc.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("GetProvider(local) = %+v", pc)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	chain := cfg.Routes["default"].Chain()
	want := core.Chain{
		{Provider: "openai", Model: "gpt-4o"},
		{Provider: "local", Model: "llama3"},
	}
	if len(chain) != len(want) {
		t.Fatalf("chain length = %d, want %d", len(chain), len(want))
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Errorf("chain[%d] = %v, want %v", i, chain[i], want[i])
		}
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Providers == nil || cfg.Routes == nil {
		t.Error("maps should be initialized on missing file")
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("RELAY_TEST_BASE_URL", "http://internal:9000/v1")
	path := writeConfig(t, `
providers:
  openai:
    base_url: ${RELAY_TEST_BASE_URL}
routes:
  default:
    primary:
      provider: openai
      model: gpt-4o
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.GetProvider("openai").BaseURL; got != "http://internal:9000/v1" {
		t.Errorf("BaseURL = %q, want expanded env value", got)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "routes: [not: a map")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() should fail on malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		routes  map[string]RouteConfig
		wantErr bool
	}{
		{
			name: "valid single route",
			routes: map[string]RouteConfig{
				"default": {Primary: core.Target{Provider: "openai", Model: "gpt-4o"}},
			},
		},
		{
			name:    "no routes",
			routes:  map[string]RouteConfig{},
			wantErr: true,
		},
		{
			name: "empty chain",
			routes: map[string]RouteConfig{
				"default": {},
			},
			wantErr: true,
		},
		{
			name: "target missing model",
			routes: map[string]RouteConfig{
				"default": {Primary: core.Target{Provider: "openai"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Routes: tt.routes}
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !core.IsConfig(err) {
				t.Errorf("Validate() error should classify as config, got %v", err)
			}
		})
	}
}

func TestValidateErrorNamesRoute(t *testing.T) {
	cfg := &Config{Routes: map[string]RouteConfig{"premium": {}}}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "premium") {
		t.Errorf("Validate() error = %v, want route name in message", err)
	}
}

func TestRouteChains(t *testing.T) {
	cfg := &Config{Routes: map[string]RouteConfig{
		"default": {Primary: core.Target{Provider: "openai", Model: "gpt-4o"}},
		"cheap":   {Primary: core.Target{Provider: "local", Model: "llama3"}},
	}}
	chains := cfg.RouteChains()
	if len(chains) != 2 {
		t.Fatalf("RouteChains() length = %d, want 2", len(chains))
	}
	if chains["cheap"][0].Model != "llama3" {
		t.Errorf("cheap route = %v", chains["cheap"])
	}
}
