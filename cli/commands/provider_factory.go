package commands

import (
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/ember-labs/relay/cli/config"
	"github.com/ember-labs/relay/cli/keystore"
	"github.com/ember-labs/relay/core"
	"github.com/ember-labs/relay/gateway"
	"github.com/ember-labs/relay/providers"

	// Registers the openai provider factory.
	_ "github.com/ember-labs/relay/providers/openai"
)

// newProviderResolver builds the resolver the gateway and the chat command
// use to turn a target's provider name into a live provider. Providers are
// constructed once and cached; resolution failures are config-classified so
// the guard treats a broken provider block as an operator error.
func newProviderResolver(cfg *config.Config, ks keystore.Keystore) gateway.ProviderResolver {
	var (
		mu    sync.Mutex
		cache = make(map[string]core.Provider)
	)

	return func(name string) (core.Provider, error) {
		mu.Lock()
		defer mu.Unlock()

		if p, ok := cache[name]; ok {
			return p, nil
		}

		pc := cfg.GetProvider(name)

		// The implementation type defaults to the provider's own name, so
		// plain "openai" blocks need no type line. A divergent type lets an
		// OpenAI-compatible endpoint run under any name.
		implType := name
		baseURL := ""
		keyRef := name
		if pc != nil {
			if pc.Type != "" {
				implType = pc.Type
			}
			baseURL = pc.BaseURL
			if pc.APIKeyRef != "" {
				keyRef = pc.APIKeyRef
			}
		}

		apiKey, err := resolveAPIKey(ks, name, keyRef, pc != nil && pc.APIKeyRef != "")
		if err != nil {
			return nil, err
		}

		p, err := providers.Create(implType, apiKey, baseURL)
		if err != nil {
			return nil, core.NewConfigFailure(core.CodeInvalidConfig,
				"provider %q: %v (registered: %v)", name, err, providers.List())
		}
		cache[name] = p
		return p, nil
	}
}

// resolveAPIKey looks up the key in the keystore, falling back to the
// <NAME>_API_KEY environment variable. An explicitly configured api_key_ref
// that resolves to nothing is an error; an implicit lookup may come up empty,
// which suits local endpoints that take no key.
func resolveAPIKey(ks keystore.Keystore, name, ref string, explicit bool) (string, error) {
	if ks != nil {
		key, err := ks.Get(ref)
		if err == nil {
			return key, nil
		}
		var notFound *keystore.NotFoundError
		if !errors.As(err, &notFound) {
			return "", err
		}
	}

	if key := os.Getenv(envKeyName(name)); key != "" {
		return key, nil
	}

	if explicit {
		return "", core.NewConfigFailure(core.CodeMissingAPIKey,
			"provider %q: no key stored under %q: run 'relay keys set %s' first", name, ref, ref)
	}
	return "", nil
}

func envKeyName(provider string) string {
	upper := strings.ToUpper(strings.ReplaceAll(provider, "-", "_"))
	return upper + "_API_KEY"
}
