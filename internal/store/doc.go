// Package store provides persistence for agentpay's session keys and
// installed-authorization metadata.
//
// The Session Key Vault keeps one record per identity. The file-backed
// implementation seals each record with ChaCha20-Poly1305 under an
// Argon2id-derived key and writes it 0600 via atomic replace; the in-memory
// implementation backs tests. Both serialise first-time creation per
// identity so concurrent callers converge on a single key.
//
// Key material never leaves this package except inside domain.SessionKey,
// whose secret field is redacted from all formatting paths.
package store
