// Package providers contains model backend implementations for Relay.
//
// Each provider lives in its own subpackage (e.g., providers/openai) and
// implements core.Provider. Providers register themselves from init() so the
// gateway can construct them by name from configuration.
package providers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ember-labs/relay/core"
)

// Factory creates a provider instance. baseURL may be empty to use the
// provider's default endpoint; some providers ignore the key parameter.
type Factory func(apiKey, baseURL string) core.Provider

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a provider factory to the registry. It is typically called
// from a provider's init() function. Registering the same name twice
// overwrites the earlier factory.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves a provider factory by name, or nil if not registered.
func Get(name string) Factory {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[name]
}

// Create creates a new provider instance by name.
func Create(name, apiKey, baseURL string) (core.Provider, error) {
	factory := Get(name)
	if factory == nil {
		return nil, fmt.Errorf("unknown provider: %s (available: %v)", name, List())
	}
	return factory(apiKey, baseURL), nil
}

// List returns the names of all registered providers in sorted order.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered returns true if a provider with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}
