package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SecretScalar is a 32-byte secp256k1 private scalar. Its formatting methods
// are deliberately redacted so the raw value cannot leak through logs or
// error messages; persistence goes through the vault's encrypted envelope,
// never through fmt or JSON.
type SecretScalar [32]byte

// Slice returns the scalar as a []byte. Callers that sign with it should
// wipe any derived copies when done.
func (s SecretScalar) Slice() []byte { return s[:] }

// IsZero reports whether the scalar is unset.
func (s SecretScalar) IsZero() bool { return s == SecretScalar{} }

func (s SecretScalar) String() string   { return "[redacted]" }
func (s SecretScalar) GoString() string { return "domain.SecretScalar{[redacted]}" }

// MarshalText always fails; a SecretScalar must never be serialised outside
// the vault's encrypted record format.
func (s SecretScalar) MarshalText() ([]byte, error) {
	return nil, ErrSecretNotSerializable
}

// SessionKey is the ephemeral keypair granted restricted authority over a
// smart account. Priv is owned by the vault; everything else is public.
type SessionKey struct {
	RecordID  string
	Identity  Identity
	Address   common.Address
	Priv      SecretScalar
	CreatedAt time.Time
}
