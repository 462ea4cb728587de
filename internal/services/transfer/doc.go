// Package transfer relays session-authorized call batches to the bundler.
//
// The relay reconstructs the session authority from local state on every
// request, encodes the batch, signs with the vault-held key and submits.
// Policy enforcement belongs to the chain; this package's job is to carry
// the chain's verdict back to the caller intact, including the distinction
// between a confirmed rejection and an unknown outcome after a timeout.
package transfer
