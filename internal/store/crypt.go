package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"agentpay/internal/util/memzero"
)

const saltBytes = 16

// envelope is the at-rest form of an encrypted record.
type envelope struct {
	Salt  []byte `json:"salt"`
	Nonce []byte `json:"nonce"`
	CT    []byte `json:"ct"`
}

// deriveKEK derives a key-encryption key from the vault passphrase using
// Argon2id.
func deriveKEK(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1<<16, 8, 1, chacha20poly1305.KeySize)
}

// seal encrypts plaintext under the passphrase with a fresh salt and nonce.
// The plaintext is wiped on success.
func seal(passphrase string, plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	kek := deriveKEK(passphrase, salt)
	defer memzero.Zero(kek)

	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ct := aead.Seal(nil, nonce, plaintext, salt)
	memzero.Zero(plaintext)
	return json.Marshal(envelope{Salt: salt, Nonce: nonce, CT: ct})
}

// open decrypts a sealed blob.
func open(passphrase string, blob []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, err
	}
	if len(env.Salt) != saltBytes {
		return nil, errors.New("malformed envelope salt")
	}
	kek := deriveKEK(passphrase, env.Salt)
	defer memzero.Zero(kek)

	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, env.Nonce, env.CT, env.Salt)
}
