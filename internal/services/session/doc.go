// Package session manages the policy-bound secondary authorization path on
// a smart account: installation, rotation and revocation of session keys.
//
// State transitions always require an owner signature and are ordered by
// on-chain state, never by process-local bookkeeping: a session install
// first verifies (and if needed performs) the owner installation against
// the chain itself.
package session
