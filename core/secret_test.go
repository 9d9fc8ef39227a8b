package core

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestSecretRedaction(t *testing.T) {
	secret := NewSecret("sk-abc123")

	if got := secret.String(); got != "[REDACTED]" {
		t.Errorf("String() = %q", got)
	}
	if got := fmt.Sprintf("%#v", secret); got != "core.Secret{[REDACTED]}" {
		t.Errorf("GoString() = %q", got)
	}

	data, err := json.Marshal(secret)
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(data) != `"[REDACTED]"` {
		t.Errorf("MarshalJSON() = %s", data)
	}

	text, err := secret.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error = %v", err)
	}
	if string(text) != "[REDACTED]" {
		t.Errorf("MarshalText() = %s", text)
	}
}

func TestSecretExpose(t *testing.T) {
	secret := NewSecret("sk-abc123")
	if got := secret.Expose(); got != "sk-abc123" {
		t.Errorf("Expose() = %q", got)
	}

	if !NewSecret("").IsEmpty() {
		t.Error("empty secret should report IsEmpty")
	}
	if secret.IsEmpty() {
		t.Error("non-empty secret should not report IsEmpty")
	}
}
