// Package domain holds agentpay's core types and the narrow interfaces that
// connect them.
//
// The shape of the system: an owner-controlled signer delegates bounded
// authority over a deterministic smart account to an ephemeral session key.
// The session key lives in a Vault, its on-chain constraints in a Grant, and
// routine traffic flows through the Bundler without ever touching the
// owner's signer again.
//
// Types here carry no behaviour beyond derivation and encoding; services in
// internal/services implement the operations.
package domain
