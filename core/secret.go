package core

const redacted = "[REDACTED]"

// Secret holds an API key or similar credential. Every formatting path a
// key could leak through (%v, %#v, JSON, text-based encoders like YAML)
// renders the same placeholder; the value only leaves through Expose, at
// the one place that builds the Authorization header.
type Secret struct {
	value string
}

// NewSecret wraps a credential string.
func NewSecret(value string) Secret {
	return Secret{value: value}
}

// IsEmpty reports whether no credential was configured. Local endpoints
// legitimately run with an empty key.
func (s Secret) IsEmpty() bool {
	return s.value == ""
}

// Expose returns the wrapped value. Callers must not log or serialize it.
func (s Secret) Expose() string {
	return s.value
}

func (s Secret) String() string {
	return redacted
}

// GoString keeps %#v from dumping the unexported field.
func (s Secret) GoString() string {
	return "core.Secret{" + redacted + "}"
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}
