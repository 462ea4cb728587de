// Package derive maps identity strings to deterministic account slots.
package derive

import (
	"encoding/binary"

	"github.com/zeebo/blake3"

	"agentpay/internal/domain"
	"agentpay/internal/fault"
)

// labelSeparator joins an identity with an optional agent label before
// hashing. A newline cannot occur in either input's meaningful prefix
// without changing the digest, so "a"+"b" and "ab" never collide.
const labelSeparator = "\n"

// Slot derives the account slot for an identity. The derivation is pure and
// total: the same identity always yields the same slot, and distinct
// identities collide only with ~2^-64 probability. An empty identity is a
// precondition violation.
func Slot(identity domain.Identity) (domain.SlotIndex, error) {
	if identity == "" {
		return 0, fault.New(fault.InvalidInput, "derive.Slot", "empty identity")
	}
	return mix([]byte(identity)), nil
}

// SlotWithLabel derives a slot for an identity qualified by an agent label,
// giving one user multiple independent account slots.
func SlotWithLabel(identity domain.Identity, label string) (domain.SlotIndex, error) {
	if identity == "" {
		return 0, fault.New(fault.InvalidInput, "derive.SlotWithLabel", "empty identity")
	}
	if label == "" {
		return Slot(identity)
	}
	return mix([]byte(string(identity) + labelSeparator + label)), nil
}

// mix hashes the input and folds two independent 32-bit lanes of the digest
// into one 64-bit slot.
func mix(input []byte) domain.SlotIndex {
	sum := blake3.Sum256(input)
	hi := binary.BigEndian.Uint32(sum[0:4])
	lo := binary.BigEndian.Uint32(sum[4:8])
	return domain.SlotIndex(uint64(hi)<<32 | uint64(lo))
}
