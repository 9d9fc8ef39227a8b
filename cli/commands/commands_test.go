package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ember-labs/relay/cli/config"
	"github.com/ember-labs/relay/cli/keystore"
	"github.com/ember-labs/relay/core"
	"github.com/ember-labs/relay/gateway"
)

// memKeystore is an in-memory Keystore for tests.
type memKeystore struct {
	data map[string]string
}

func newMemKeystore() *memKeystore {
	return &memKeystore{data: make(map[string]string)}
}

func (m *memKeystore) Set(name, value string) error {
	m.data[name] = value
	return nil
}

func (m *memKeystore) Get(name string) (string, error) {
	v, ok := m.data[name]
	if !ok {
		return "", &keystore.NotFoundError{Name: name}
	}
	return v, nil
}

func (m *memKeystore) Delete(name string) error {
	if _, ok := m.data[name]; !ok {
		return &keystore.NotFoundError{Name: name}
	}
	delete(m.data, name)
	return nil
}

func (m *memKeystore) List() ([]string, error) {
	names := make([]string, 0, len(m.data))
	for name := range m.data {
		names = append(names, name)
	}
	return names, nil
}

// scriptedProvider returns queued errors before succeeding.
type scriptedProvider struct {
	id    string
	errs  []error
	calls int
}

func (p *scriptedProvider) ID() string { return p.id }

func (p *scriptedProvider) Chat(_ context.Context, req *core.ChatRequest) (*core.ChatResponse, error) {
	p.calls++
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return nil, err
	}
	return &core.ChatResponse{
		ID:     "resp-1",
		Model:  req.Model,
		Output: "hello from " + p.id,
		Usage:  core.TokenUsage{PromptTokens: 3, CompletionTokens: 5, TotalTokens: 8},
	}, nil
}

type testApp struct {
	app      *App
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
	ks       *memKeystore
	exitCode *int
}

func newTestApp(t *testing.T, cfg *config.Config, providersByName map[string]core.Provider, stdin string) *testApp {
	t.Helper()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	ks := newMemKeystore()
	exitCode := -1

	app := NewApp(
		WithConfigLoader(func(string) (*config.Config, error) { return cfg, nil }),
		WithKeystoreOpener(func() (keystore.Keystore, error) { return ks, nil }),
		WithResolverBuilder(func(*config.Config, keystore.Keystore) gateway.ProviderResolver {
			return func(name string) (core.Provider, error) {
				p, ok := providersByName[name]
				if !ok {
					return nil, core.NewConfigFailure(core.CodeInvalidConfig, "provider %q: unknown", name)
				}
				return p, nil
			}
		}),
		WithExit(func(code int) { exitCode = code }),
		WithIO(strings.NewReader(stdin), stdout, stderr),
	)

	return &testApp{app: app, stdout: stdout, stderr: stderr, ks: ks, exitCode: &exitCode}
}

func twoTargetConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Addr: ":0"},
		Logging: config.LoggingConfig{Level: "error"},
		Routes: map[string]config.RouteConfig{
			"default": {
				Primary:   core.Target{Provider: "primary", Model: "model-a"},
				Fallbacks: []core.Target{{Provider: "backup", Model: "model-b"}},
			},
		},
	}
}

func TestChatSucceedsOnPrimary(t *testing.T) {
	primary := &scriptedProvider{id: "primary"}
	ta := newTestApp(t, twoTargetConfig(), map[string]core.Provider{"primary": primary}, "")

	ta.app.SetArgs([]string{"chat", "--prompt", "hi"})
	if err := ta.app.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(ta.stdout.String(), "hello from primary") {
		t.Errorf("stdout = %q, want provider output", ta.stdout.String())
	}
}

func TestChatFallsBackOnRateLimit(t *testing.T) {
	primary := &scriptedProvider{id: "primary", errs: []error{
		&core.Failure{Provider: "primary", Status: 429, Message: "rate limited", Err: core.ErrRateLimited},
	}}
	backup := &scriptedProvider{id: "backup"}
	ta := newTestApp(t, twoTargetConfig(), map[string]core.Provider{
		"primary": primary,
		"backup":  backup,
	}, "")

	ta.app.SetArgs([]string{"chat", "--prompt", "hi"})
	if err := ta.app.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if backup.calls != 1 {
		t.Errorf("backup.calls = %d, want 1", backup.calls)
	}
	if !strings.Contains(ta.stdout.String(), "hello from backup") {
		t.Errorf("stdout = %q, want backup output", ta.stdout.String())
	}
}

func TestChatNonRetryableExitsProvider(t *testing.T) {
	primary := &scriptedProvider{id: "primary", errs: []error{
		&core.Failure{Provider: "primary", Status: 401, Message: "bad key", Err: core.ErrUnauthorized},
	}}
	backup := &scriptedProvider{id: "backup"}
	ta := newTestApp(t, twoTargetConfig(), map[string]core.Provider{
		"primary": primary,
		"backup":  backup,
	}, "")

	ta.app.SetArgs([]string{"chat", "--prompt", "hi"})
	err := ta.app.Execute()

	var exitErr *exitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != ExitProvider {
		t.Fatalf("Execute() error = %v, want exit code %d", err, ExitProvider)
	}
	if backup.calls != 0 {
		t.Errorf("backup.calls = %d, want 0 after non-retryable failure", backup.calls)
	}
}

func TestChatExhaustedExitsNetwork(t *testing.T) {
	rateLimited := &core.Failure{Status: 429, Message: "rate limited", Err: core.ErrRateLimited}
	primary := &scriptedProvider{id: "primary", errs: []error{rateLimited}}
	backup := &scriptedProvider{id: "backup", errs: []error{rateLimited}}
	ta := newTestApp(t, twoTargetConfig(), map[string]core.Provider{
		"primary": primary,
		"backup":  backup,
	}, "")

	ta.app.SetArgs([]string{"chat", "--prompt", "hi"})
	err := ta.app.Execute()

	var exitErr *exitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != ExitNetwork {
		t.Fatalf("Execute() error = %v, want exit code %d", err, ExitNetwork)
	}
	if !strings.Contains(ta.stderr.String(), "all 2 models failed") {
		t.Errorf("stderr = %q, want exhaustion message", ta.stderr.String())
	}
}

func TestChatUnknownRouteExitsValidation(t *testing.T) {
	ta := newTestApp(t, twoTargetConfig(), nil, "")

	ta.app.SetArgs([]string{"chat", "--route", "nonexistent", "--prompt", "hi"})
	err := ta.app.Execute()

	var exitErr *exitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != ExitValidation {
		t.Fatalf("Execute() error = %v, want exit code %d", err, ExitValidation)
	}
}

func TestChatEmptyRoutesExitsValidation(t *testing.T) {
	cfg := &config.Config{Routes: map[string]config.RouteConfig{}}
	ta := newTestApp(t, cfg, nil, "")

	ta.app.SetArgs([]string{"chat", "--prompt", "hi"})
	err := ta.app.Execute()

	var exitErr *exitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != ExitValidation {
		t.Fatalf("Execute() error = %v, want exit code %d", err, ExitValidation)
	}
}

func TestChatJSONOutput(t *testing.T) {
	primary := &scriptedProvider{id: "primary"}
	ta := newTestApp(t, twoTargetConfig(), map[string]core.Provider{"primary": primary}, "")

	ta.app.SetArgs([]string{"chat", "--prompt", "hi", "--json"})
	if err := ta.app.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	out := ta.stdout.String()
	for _, want := range []string{`"output"`, `"model"`, `"usage"`} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout missing %s: %q", want, out)
		}
	}
}

func TestKeysSetListDelete(t *testing.T) {
	ta := newTestApp(t, twoTargetConfig(), nil, "sk-test-key\n")

	ta.app.SetArgs([]string{"keys", "set", "openai"})
	if err := ta.app.Execute(); err != nil {
		t.Fatalf("keys set error = %v", err)
	}
	if got := ta.ks.data["openai"]; got != "sk-test-key" {
		t.Errorf("stored key = %q, want sk-test-key", got)
	}

	ta.app.SetArgs([]string{"keys", "list"})
	if err := ta.app.Execute(); err != nil {
		t.Fatalf("keys list error = %v", err)
	}
	if !strings.Contains(ta.stdout.String(), "openai") {
		t.Errorf("list output = %q, want openai", ta.stdout.String())
	}

	ta.app.SetArgs([]string{"keys", "delete", "openai"})
	if err := ta.app.Execute(); err != nil {
		t.Fatalf("keys delete error = %v", err)
	}
	if _, ok := ta.ks.data["openai"]; ok {
		t.Error("key should be deleted")
	}
}

func TestKeysDeleteMissing(t *testing.T) {
	ta := newTestApp(t, twoTargetConfig(), nil, "")

	ta.app.SetArgs([]string{"keys", "delete", "openai"})
	err := ta.app.Execute()
	if err == nil || !strings.Contains(err.Error(), "no key stored") {
		t.Errorf("Execute() error = %v, want no-key message", err)
	}
}

func TestKeysSetRejectsEmpty(t *testing.T) {
	ta := newTestApp(t, twoTargetConfig(), nil, "\n")

	ta.app.SetArgs([]string{"keys", "set", "openai"})
	if err := ta.app.Execute(); err == nil {
		t.Error("keys set with empty input should fail")
	}
}

func TestVersionOutput(t *testing.T) {
	ta := newTestApp(t, twoTargetConfig(), nil, "")

	ta.app.SetArgs([]string{"version"})
	if err := ta.app.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(ta.stdout.String(), "relay "+Version) {
		t.Errorf("version output = %q", ta.stdout.String())
	}
}

func TestVersionJSON(t *testing.T) {
	ta := newTestApp(t, twoTargetConfig(), nil, "")

	ta.app.SetArgs([]string{"version", "--json"})
	if err := ta.app.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(ta.stdout.String(), `"version":"`+Version+`"`) {
		t.Errorf("version JSON = %q", ta.stdout.String())
	}
}

func TestExitError(t *testing.T) {
	err := exitWithCode(ExitValidation, errors.New("test error"))

	if err.Error() != "test error" {
		t.Errorf("Error() = %q, want 'test error'", err.Error())
	}

	exitErr, ok := err.(*exitError)
	if !ok {
		t.Fatal("expected *exitError type")
	}
	if exitErr.ExitCode() != ExitValidation {
		t.Errorf("ExitCode() = %d, want %d", exitErr.ExitCode(), ExitValidation)
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name string
		code int
		want int
	}{
		{"success", ExitSuccess, 0},
		{"validation", ExitValidation, 1},
		{"provider", ExitProvider, 2},
		{"network", ExitNetwork, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.want {
				t.Errorf("exit code %s = %d, want %d", tt.name, tt.code, tt.want)
			}
		})
	}
}

func TestHandleChatErrorClasses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "config failure",
			err:  core.NewConfigFailure(core.CodeMissingAPIKey, "no key"),
			want: ExitValidation,
		},
		{
			name: "rate limit",
			err:  fmt.Errorf("call: %w", core.ErrRateLimited),
			want: ExitNetwork,
		},
		{
			name: "exhausted chain",
			err:  &core.ExhaustedError{Errs: []error{errors.New("a"), errors.New("b")}},
			want: ExitNetwork,
		},
		{
			name: "provider refusal",
			err:  &core.Failure{Provider: "openai", Status: 401, Message: "bad key"},
			want: ExitProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t, twoTargetConfig(), nil, "")
			err := ta.app.handleChatError(tt.err)

			var exitErr *exitError
			if !errors.As(err, &exitErr) || exitErr.ExitCode() != tt.want {
				t.Errorf("handleChatError() = %v, want exit code %d", err, tt.want)
			}
		})
	}
}
