// Package keystore stores provider API keys encrypted at rest.
package keystore

import (
	"os"
	"path/filepath"
	"runtime"
)

// Keystore is the key storage contract the CLI commands program against.
type Keystore interface {
	// Set stores a named secret, overwriting any previous value.
	Set(name, value string) error
	// Get retrieves a secret by name. Returns *NotFoundError if absent.
	Get(name string) (string, error)
	// Delete removes a secret by name.
	Delete(name string) error
	// List returns all stored secret names, sorted.
	List() ([]string, error)
}

// NotFoundError is returned when a requested secret does not exist.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return "key not found: " + e.Name
}

// DefaultPath returns the default keystore file path.
// - macOS/Linux: ~/.relay/keys.enc
// - Windows: %USERPROFILE%\.relay\keys.enc
func DefaultPath() string {
	var homeDir string
	if runtime.GOOS == "windows" {
		homeDir = os.Getenv("USERPROFILE")
	} else {
		homeDir = os.Getenv("HOME")
	}
	if homeDir == "" {
		return "keys.enc"
	}
	return filepath.Join(homeDir, ".relay", "keys.enc")
}

// Open creates a keystore backed by the encrypted file at the default path.
func Open() (Keystore, error) {
	return OpenFile(DefaultPath())
}
