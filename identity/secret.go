package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// secretBytes is the entropy of a generated temporary password.
const secretBytes = 16

const redacted = "[REDACTED]"

// Secret is a plaintext credential. It formats and marshals as a fixed
// placeholder so it cannot reach a log line or a response by accident.
type Secret struct {
	value string
}

// NewSecret wraps an existing plaintext credential
func NewSecret(plaintext string) Secret {
	return Secret{value: plaintext}
}

// GenerateSecret returns a random hex-encoded secret with 128 bits of entropy
func GenerateSecret() (Secret, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return Secret{}, fmt.Errorf("generating secret: %w", err)
	}
	return Secret{value: hex.EncodeToString(b)}, nil
}

// Reveal returns the plaintext. Call it only at the point of hashing or delivery.
func (s Secret) Reveal() string { return s.value }

// IsZero reports whether the secret is empty
func (s Secret) IsZero() bool { return s.value == "" }

func (s Secret) String() string   { return redacted }
func (s Secret) GoString() string { return redacted }

// MarshalJSON implements json.Marshaler
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// MarshalText implements encoding.TextMarshaler, which zap uses for zap.Any
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}
