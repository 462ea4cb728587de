// Package signer provides owner signing backends. The owner's key is the
// primary authority over every smart account; it is exercised only during
// installation flows and never stored in the session key vault.
package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"agentpay/internal/domain"
)

// Local signs with an in-process secp256k1 key. Intended for development
// and server deployments where the owner key is provisioned to the host;
// interactive owner approval flows implement domain.OwnerSigner elsewhere
// and return domain.ErrOwnerRejected on decline.
type Local struct {
	priv *ecdsa.PrivateKey
	addr common.Address
}

// FromHex builds a local signer from a hex-encoded private key.
func FromHex(hexKey string) (*Local, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	priv, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse owner key: %w", err)
	}
	return &Local{priv: priv, addr: crypto.PubkeyToAddress(priv.PublicKey)}, nil
}

// FromFile reads a hex-encoded private key from a 0600 key file.
func FromFile(path string) (*Local, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read owner key file: %w", err)
	}
	return FromHex(string(b))
}

// Address returns the owner address.
func (l *Local) Address() common.Address { return l.addr }

// SignHash signs a 32-byte digest, producing a 65-byte [R || S || V]
// signature.
func (l *Local) SignHash(_ context.Context, hash common.Hash) ([]byte, error) {
	sig, err := crypto.Sign(hash[:], l.priv)
	if err != nil {
		return nil, fmt.Errorf("owner sign: %w", err)
	}
	return sig, nil
}

// Compile-time assertion that Local implements domain.OwnerSigner.
var _ domain.OwnerSigner = (*Local)(nil)
