// Package sessionkey generates and signs with ephemeral secp256k1 keypairs.
//
// Private scalars are handled as fixed-size arrays and wiped after use where
// practical; only the derived public address ever leaves the vault boundary.
package sessionkey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"agentpay/internal/domain"
	"agentpay/internal/util/memzero"
)

// Generate returns a fresh secp256k1 private scalar and its derived address.
func Generate() (domain.SecretScalar, common.Address, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return domain.SecretScalar{}, common.Address{}, fmt.Errorf("generate session key: %w", err)
	}
	addr := crypto.PubkeyToAddress(priv.PublicKey)

	var scalar domain.SecretScalar
	raw := crypto.FromECDSA(priv)
	copy(scalar[:], raw)
	memzero.Zero(raw)
	return scalar, addr, nil
}

// AddressOf derives the address for a stored scalar.
func AddressOf(scalar domain.SecretScalar) (common.Address, error) {
	priv, err := crypto.ToECDSA(scalar.Slice())
	if err != nil {
		return common.Address{}, fmt.Errorf("parse session key: %w", err)
	}
	return crypto.PubkeyToAddress(priv.PublicKey), nil
}

// SignHash produces a 65-byte [R || S || V] signature over a 32-byte digest.
func SignHash(scalar domain.SecretScalar, hash common.Hash) ([]byte, error) {
	raw := append([]byte(nil), scalar.Slice()...)
	defer memzero.Zero(raw)

	priv, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("parse session key: %w", err)
	}
	sig, err := crypto.Sign(hash[:], priv)
	if err != nil {
		return nil, fmt.Errorf("sign with session key: %w", err)
	}
	return sig, nil
}

// Fingerprint returns a short digest of an address for display and logging.
func Fingerprint(addr common.Address) string {
	sum := sha256.Sum256(addr[:])
	return hex.EncodeToString(sum[:10])
}
