package transfer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"agentpay/internal/account"
	"agentpay/internal/amount"
	"agentpay/internal/domain"
	"agentpay/internal/fault"
	"agentpay/internal/sessionkey"
	"agentpay/internal/userop"
)

// Service is the transaction relay. It rebuilds the session authority from
// the vault-held key and the stored grant, encodes the call batch, signs
// with the session key, and submits to the bundler. The owner is never
// involved, and policy enforcement stays on-chain: a rejection from the
// chain is propagated to the caller, never absorbed here.
//
// Submission is not idempotent. A caller that needs at-most-once semantics
// must deduplicate by request id before calling Submit; blind retries can
// double-spend. The returned record's RequestID exists for exactly that
// bookkeeping.
type Service struct {
	vault   domain.Vault
	grants  domain.GrantStore
	chain   domain.ChainReader
	bundler domain.Bundler
	cfg     domain.OwnerConfig
	gas     domain.GasParams
}

// New constructs a transfer service.
func New(vault domain.Vault, grants domain.GrantStore, chain domain.ChainReader, bundler domain.Bundler, cfg domain.OwnerConfig, gas domain.GasParams) *Service {
	return &Service{vault: vault, grants: grants, chain: chain, bundler: bundler, cfg: cfg, gas: gas}
}

// Submit relays one or more calls through the account. On failure the
// returned record carries the classified error alongside the error value,
// so HTTP surfaces can render {ok:false, error} without re-deriving it.
func (s *Service) Submit(ctx context.Context, acct common.Address, identity domain.Identity, calls []domain.Call) (domain.TransactionRecord, error) {
	const op = "transfer.Submit"
	rec := domain.TransactionRecord{RequestID: uuid.New()}

	if acct == (common.Address{}) {
		return fail(rec, fault.New(fault.InvalidInput, op, "account address is zero"))
	}
	if len(calls) == 0 {
		return fail(rec, fault.New(fault.InvalidInput, op, "empty call list"))
	}
	for _, c := range calls {
		if c.To == (common.Address{}) {
			return fail(rec, fault.New(fault.InvalidInput, op, "call target is zero"))
		}
		if c.Value != nil && c.Value.Sign() < 0 {
			return fail(rec, fault.New(fault.InvalidInput, op, "call value is negative"))
		}
	}

	// Reconstruct the session authority: vault key + stored grant. Pure
	// local state; no owner interaction, no signature prompt.
	key, ok, err := s.vault.Load(identity)
	if err != nil {
		return fail(rec, fmt.Errorf("%s: session key vault: %w", op, err))
	}
	if !ok {
		return fail(rec, fault.Newf(fault.InvalidInput, op, "no session key for identity %q", identity))
	}
	grant, ok, err := s.grants.LoadGrant(identity)
	if err != nil {
		return fail(rec, fmt.Errorf("%s: grant store: %w", op, err))
	}
	if !ok {
		return fail(rec, fault.Newf(fault.InvalidInput, op, "no session authorization installed for %q", identity))
	}
	if grant.SessionAddress != key.Address {
		return fail(rec, fault.Newf(fault.InvalidInput, op,
			"session key was rotated but not re-installed (grant holds %s)", grant.SessionAddress))
	}

	callData, err := userop.EncodeExecuteBatch(calls)
	if err != nil {
		return fail(rec, fault.Wrap(fault.InvalidInput, op, err))
	}
	nonce, err := account.EntryPointNonce(ctx, s.chain, s.cfg.EntryPoint, acct)
	if err != nil {
		return fail(rec, err)
	}

	uop := &domain.UserOperation{
		Sender:               acct,
		Nonce:                nonce,
		InitCode:             []byte{},
		CallData:             callData,
		CallGasLimit:         s.gas.CallGasLimit,
		VerificationGasLimit: s.gas.VerificationGasLimit,
		PreVerificationGas:   s.gas.PreVerificationGas,
		MaxFeePerGas:         s.gas.MaxFeePerGas,
		MaxPriorityFeePerGas: s.gas.MaxPriorityFeePerGas,
	}
	hash := userop.Hash(uop, s.cfg.EntryPoint, s.cfg.ChainID)

	sig, err := sessionkey.SignHash(key.Priv, hash)
	if err != nil {
		return fail(rec, fault.Wrap(fault.InvalidInput, op, err))
	}
	uop.Signature = sig

	// Beyond this point an error does not mean the operation is dead: once
	// the request reaches the bundler the transaction may land regardless
	// of what we observe. The bundler client classifies timeouts as
	// UnknownOutcome for exactly that reason.
	txHash, err := s.bundler.SendUserOperation(ctx, uop, s.cfg.EntryPoint)
	if err != nil {
		return fail(rec, err)
	}

	rec.TxHash = txHash
	rec.OK = true
	return rec, nil
}

// SubmitNative relays a native-currency transfer: value-bearing call with
// empty calldata.
func (s *Service) SubmitNative(ctx context.Context, acct common.Address, identity domain.Identity, to common.Address, amountWei *big.Int) (domain.TransactionRecord, error) {
	const op = "transfer.SubmitNative"
	if amountWei == nil || amountWei.Sign() <= 0 {
		return fail(domain.TransactionRecord{RequestID: uuid.New()},
			fault.New(fault.InvalidInput, op, "amount must be positive"))
	}
	return s.Submit(ctx, acct, identity, []domain.Call{{To: to, Value: amountWei}})
}

// SubmitToken relays a fungible-token transfer. The token's decimal
// precision is read from the contract unless an explicit override is
// supplied; the decimal amount string is scaled accordingly.
func (s *Service) SubmitToken(ctx context.Context, acct common.Address, identity domain.Identity, token, to common.Address, amountStr string, decimalsOverride *uint8) (domain.TransactionRecord, error) {
	const op = "transfer.SubmitToken"
	rec := domain.TransactionRecord{RequestID: uuid.New()}

	if token == (common.Address{}) {
		return fail(rec, fault.New(fault.InvalidInput, op, "token address is zero"))
	}
	decimals, err := s.tokenDecimals(ctx, token, decimalsOverride)
	if err != nil {
		return fail(rec, err)
	}
	value, err := amount.ParseUnits(amountStr, decimals)
	if err != nil {
		return fail(rec, err)
	}
	data, err := userop.EncodeERC20Transfer(to, value)
	if err != nil {
		return fail(rec, fault.Wrap(fault.InvalidInput, op, err))
	}
	return s.Submit(ctx, acct, identity, []domain.Call{{To: token, Value: new(big.Int), Data: data}})
}

// tokenDecimals resolves the token's declared precision.
func (s *Service) tokenDecimals(ctx context.Context, token common.Address, override *uint8) (uint8, error) {
	if override != nil {
		return *override, nil
	}
	ret, err := s.chain.CallContract(ctx, token, userop.EncodeDecimalsCall())
	if err != nil {
		return 0, err
	}
	decimals, err := userop.DecodeDecimalsResult(ret)
	if err != nil {
		return 0, fault.Wrap(fault.InvalidInput, "transfer.tokenDecimals", err)
	}
	return decimals, nil
}

// fail fills a record from a classified error, preserving the error value.
func fail(rec domain.TransactionRecord, err error) (domain.TransactionRecord, error) {
	rec.OK = false
	rec.Err = err.Error()
	return rec, err
}

// Compile-time assertion that Service implements domain.TransferService.
var _ domain.TransferService = (*Service)(nil)
