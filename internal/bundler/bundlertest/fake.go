// Package bundlertest provides an in-memory bundler and chain pair for
// service tests. The fake stands in for the entrypoint and the session
// validator: it recovers the signer from each operation's signature,
// tracks deployments and installed session keys, and rejects operations
// the on-chain validators would reject, using the same error markers a
// real bundler surfaces.
package bundlertest

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"agentpay/internal/domain"
	"agentpay/internal/fault"
	"agentpay/internal/userop"
)

type sessionEntry struct {
	window   domain.TimeWindowPolicy
	policies []domain.CallPolicy
}

// Fake implements domain.Bundler and domain.ChainReader against in-memory
// state. Zero-value maps are initialised by New; all methods are safe for
// concurrent use.
type Fake struct {
	cfg domain.OwnerConfig

	// Now supplies validation time for session windows. Defaults to
	// time.Now.
	Now func() time.Time

	// Err, when set, is returned verbatim by SendUserOperation before any
	// state changes. Used to simulate transport failures and timeouts.
	Err error

	mu       sync.Mutex
	deployed map[common.Address]bool
	sessions map[common.Address]sessionEntry
	nonces   map[common.Address]uint64
	balances map[common.Address]*big.Int
	decimals map[common.Address]uint8
	sent     []*domain.UserOperation
}

// New returns a fake wired to the given owner configuration.
func New(cfg domain.OwnerConfig) *Fake {
	return &Fake{
		cfg:      cfg,
		Now:      time.Now,
		deployed: make(map[common.Address]bool),
		sessions: make(map[common.Address]sessionEntry),
		nonces:   make(map[common.Address]uint64),
		balances: make(map[common.Address]*big.Int),
		decimals: make(map[common.Address]uint8),
	}
}

// SendUserOperation validates and applies one operation. Owner-signed
// operations may deploy the account or manage session keys on the
// validator; session-signed operations are checked against the installed
// window and call policies.
func (f *Fake) SendUserOperation(_ context.Context, op *domain.UserOperation, entryPoint common.Address) (common.Hash, error) {
	const opName = "bundlertest.Send"

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return common.Hash{}, f.Err
	}
	if entryPoint != f.cfg.EntryPoint {
		return common.Hash{}, fault.Newf(fault.InvalidInput, opName, "unknown entrypoint %s", entryPoint)
	}

	hash := userop.Hash(op, entryPoint, f.cfg.ChainID)
	signer, err := recoverSigner(hash, op.Signature)
	if err != nil {
		return common.Hash{}, fault.Wrap(fault.PolicyViolation, opName, err)
	}
	f.sent = append(f.sent, op)
	txHash := crypto.Keccak256Hash(hash[:], op.Signature)

	if len(op.InitCode) > 0 {
		if signer != f.cfg.Owner {
			return common.Hash{}, fault.New(fault.PolicyViolation, opName, "AA24 signature error: deployment not signed by owner")
		}
		f.deployed[op.Sender] = true
		f.nonces[op.Sender]++
		return txHash, nil
	}

	calls, err := userop.DecodeCallData(op.CallData)
	if err != nil {
		return common.Hash{}, fault.Wrap(fault.InvalidInput, opName, err)
	}

	if signer == f.cfg.Owner {
		for _, c := range calls {
			if c.To == f.cfg.SessionValidator {
				if err := f.applyValidatorCall(c.Data); err != nil {
					return common.Hash{}, fault.Wrap(fault.InvalidInput, opName, err)
				}
				continue
			}
			f.applyValue(c)
		}
		f.nonces[op.Sender]++
		return txHash, nil
	}

	entry, ok := f.sessions[signer]
	if !ok {
		return common.Hash{}, fault.Newf(fault.PolicyViolation, opName, "AA24 signature error: session key %s not authorized", signer)
	}
	now := uint64(f.Now().Unix())
	if now < entry.window.ValidAfter || now >= entry.window.ValidUntil {
		return common.Hash{}, fault.New(fault.PolicyViolation, opName, "AA22 expired or not due")
	}
	for _, c := range calls {
		if err := permits(entry.policies, c); err != nil {
			return common.Hash{}, err
		}
	}
	for _, c := range calls {
		f.applyValue(c)
	}
	f.nonces[op.Sender]++
	return txHash, nil
}

// applyValidatorCall replays an enable or disable payload against the
// session registry.
func (f *Fake) applyValidatorCall(data []byte) error {
	if key, window, policies, err := userop.DecodeEnableSessionKey(data); err == nil {
		f.sessions[key] = sessionEntry{window: window, policies: policies}
		return nil
	}
	key, err := userop.DecodeDisableSessionKey(data)
	if err != nil {
		return err
	}
	delete(f.sessions, key)
	return nil
}

// applyValue credits a call's native value to its target.
func (f *Fake) applyValue(c domain.Call) {
	if c.Value == nil || c.Value.Sign() <= 0 {
		return
	}
	cur := f.balances[c.To]
	if cur == nil {
		cur = new(big.Int)
	}
	f.balances[c.To] = new(big.Int).Add(cur, c.Value)
}

// permits checks one call against the installed call policies. An empty
// policy list means the window alone constrains the key.
func permits(policies []domain.CallPolicy, c domain.Call) error {
	if len(policies) == 0 {
		return nil
	}
	for _, p := range policies {
		if p.Permits(c.To, c.Selector(), c.Value) {
			return nil
		}
	}
	return fault.Newf(fault.PolicyViolation, "bundlertest.Send", "session key policy violation: call to %s not permitted", c.To)
}

func recoverSigner(hash common.Hash, sig []byte) (common.Address, error) {
	pub, err := crypto.SigToPub(hash[:], sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// CodeAt reports deployed contract code: a marker byte for accounts the
// fake has deployed, empty otherwise.
func (f *Fake) CodeAt(_ context.Context, account common.Address) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deployed[account] {
		return []byte{0x60}, nil
	}
	return nil, nil
}

// BalanceAt reads the fake ledger. Unknown addresses hold zero.
func (f *Fake) BalanceAt(_ context.Context, account common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b := f.balances[account]; b != nil {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

// CallContract answers the two view calls the services issue: entrypoint
// getNonce and token decimals.
func (f *Fake) CallContract(_ context.Context, to common.Address, data []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if to == f.cfg.EntryPoint {
		sender, _, err := userop.DecodeGetNonceCall(data)
		if err != nil {
			return nil, fault.Wrap(fault.InvalidInput, "bundlertest.CallContract", err)
		}
		nonce := new(big.Int).SetUint64(f.nonces[sender])
		return common.LeftPadBytes(nonce.Bytes(), 32), nil
	}
	if d, ok := f.decimals[to]; ok {
		return common.LeftPadBytes([]byte{d}, 32), nil
	}
	return nil, fault.Newf(fault.InvalidInput, "bundlertest.CallContract", "execution reverted: no contract at %s", to)
}

// SetBalance seeds the ledger.
func (f *Fake) SetBalance(account common.Address, wei *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[account] = new(big.Int).Set(wei)
}

// SetDecimals registers a token contract with its declared precision.
func (f *Fake) SetDecimals(token common.Address, d uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decimals[token] = d
}

// Deployed reports whether the fake has seen a deployment for the account.
func (f *Fake) Deployed(account common.Address) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deployed[account]
}

// SessionEnabled reports whether a session key is currently installed.
func (f *Fake) SessionEnabled(key common.Address) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[key]
	return ok
}

// SessionPolicies returns the call policies installed for a session key.
func (f *Fake) SessionPolicies(key common.Address) ([]domain.CallPolicy, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.sessions[key]
	return e.policies, ok
}

// Sent returns the operations the fake accepted for relay, in order.
func (f *Fake) Sent() []*domain.UserOperation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.UserOperation, len(f.sent))
	copy(out, f.sent)
	return out
}

var (
	_ domain.Bundler     = (*Fake)(nil)
	_ domain.ChainReader = (*Fake)(nil)
)
