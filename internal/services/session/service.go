package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"agentpay/internal/account"
	"agentpay/internal/domain"
	"agentpay/internal/fault"
	"agentpay/internal/sessionkey"
	"agentpay/internal/userop"
)

// Service installs, rotates and revokes the policy-bound secondary
// authorization path on a smart account.
//
// Every transition is one owner-signed operation: the owner registers the
// session key's public address together with its policy set on the session
// validator. After installation the chain enforces the policies; this
// service never re-checks them off-chain.
type Service struct {
	installer *account.Installer
	vault     domain.Vault
	grants    domain.GrantStore
	chain     domain.ChainReader
	bundler   domain.Bundler
	gas       domain.GasParams
	now       func() time.Time
}

// New constructs a session service.
func New(installer *account.Installer, vault domain.Vault, grants domain.GrantStore, chain domain.ChainReader, bundler domain.Bundler, gas domain.GasParams) *Service {
	return &Service{
		installer: installer,
		vault:     vault,
		grants:    grants,
		chain:     chain,
		bundler:   bundler,
		gas:       gas,
		now:       time.Now,
	}
}

// Install registers the identity's session key with the given policy set.
//
// Steps:
//  1. Validate the policy set before anything is signed or submitted.
//  2. Ensure the owner authority is installed, checking on-chain state so
//     the owner->session ordering survives process restarts.
//  3. Get or create the identity's session key in the vault.
//  4. Build the enable payload, have the owner sign it once, submit it.
//  5. Persist the grant metadata; a re-install overwrites the previous
//     grant (last write wins on the authorization path).
func (s *Service) Install(ctx context.Context, signer domain.OwnerSigner, identity domain.Identity, params domain.InstallParams) (domain.InstallResult, error) {
	const op = "session.Install"

	window, callPolicies, err := s.validate(op, params)
	if err != nil {
		return domain.InstallResult{}, err
	}

	acct, err := s.installer.InstallOwnerAuthority(ctx, signer, identity)
	if err != nil {
		return domain.InstallResult{}, err
	}

	key, err := s.vault.GetOrCreate(identity)
	if err != nil {
		return domain.InstallResult{}, fmt.Errorf("%s: session key vault: %w", op, err)
	}

	txHash, err := s.submitEnable(ctx, signer, acct, key.Address, window, callPolicies)
	if err != nil {
		return domain.InstallResult{}, err
	}

	grant := domain.Grant{
		Identity:       identity,
		SessionAddress: key.Address,
		Policies:       params.Policies,
		InstalledAt:    s.now().UTC(),
		TxHash:         txHash,
	}
	if err := s.grants.SaveGrant(identity, grant); err != nil {
		return domain.InstallResult{}, fmt.Errorf("%s: grant store: %w", op, err)
	}

	log.Printf("session authority installed: account=%s session=%s tx=%s", acct.Address, key.Address, txHash)
	return domain.InstallResult{
		Account:        acct,
		SessionAddress: key.Address,
		TxHash:         txHash,
		Grant:          grant,
	}, nil
}

// Rotate replaces the identity's session key and installs the new key with
// the given policies. The superseded key's on-chain authorization survives
// until revoked or expired; Rotate flags that condition instead of hiding
// it.
//
// The replacement key is written to the vault only after the owner has
// signed its installation and the bundler has accepted it. A declined or
// failed rotation leaves the current key and grant fully usable.
func (s *Service) Rotate(ctx context.Context, signer domain.OwnerSigner, identity domain.Identity, params domain.InstallParams) (domain.InstallResult, error) {
	const op = "session.Rotate"

	window, callPolicies, err := s.validate(op, params)
	if err != nil {
		return domain.InstallResult{}, err
	}

	if old, ok, err := s.grants.LoadGrant(identity); err == nil && ok {
		if w, hasWindow := old.Window(); hasWindow && w.Active(s.now()) {
			log.Printf("rotating %s: previous session key %s remains valid on-chain until %d; revoke it explicitly",
				identity, old.SessionAddress, w.ValidUntil)
		}
	}

	acct, err := s.installer.InstallOwnerAuthority(ctx, signer, identity)
	if err != nil {
		return domain.InstallResult{}, err
	}

	priv, addr, err := sessionkey.Generate()
	if err != nil {
		return domain.InstallResult{}, fmt.Errorf("%s: generate session key: %w", op, err)
	}
	key := domain.SessionKey{
		RecordID:  uuid.NewString(),
		Identity:  identity,
		Address:   addr,
		Priv:      priv,
		CreatedAt: s.now().UTC(),
	}

	txHash, err := s.submitEnable(ctx, signer, acct, key.Address, window, callPolicies)
	if err != nil {
		return domain.InstallResult{}, err
	}

	if err := s.vault.Save(identity, key); err != nil {
		return domain.InstallResult{}, fmt.Errorf("%s: session key vault: %w", op, err)
	}
	grant := domain.Grant{
		Identity:       identity,
		SessionAddress: key.Address,
		Policies:       params.Policies,
		InstalledAt:    s.now().UTC(),
		TxHash:         txHash,
	}
	if err := s.grants.SaveGrant(identity, grant); err != nil {
		return domain.InstallResult{}, fmt.Errorf("%s: grant store: %w", op, err)
	}

	log.Printf("session authority rotated: account=%s session=%s tx=%s", acct.Address, key.Address, txHash)
	return domain.InstallResult{
		Account:        acct,
		SessionAddress: key.Address,
		TxHash:         txHash,
		Grant:          grant,
	}, nil
}

// Revoke disables the identity's current session key on-chain and deletes
// the stored grant. Requires the owner's signature.
func (s *Service) Revoke(ctx context.Context, signer domain.OwnerSigner, identity domain.Identity) (common.Hash, error) {
	const op = "session.Revoke"

	grant, ok, err := s.grants.LoadGrant(identity)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%s: grant store: %w", op, err)
	}
	if !ok {
		return common.Hash{}, fault.Newf(fault.InvalidInput, op, "no session authorization installed for %q", identity)
	}

	acct, err := s.installer.ResolveAddress(ctx, identity)
	if err != nil {
		return common.Hash{}, err
	}
	if !acct.OwnerInstalled {
		return common.Hash{}, fault.New(fault.InvalidInput, op, "account is not deployed")
	}

	disable, err := userop.EncodeDisableSessionKey(grant.SessionAddress)
	if err != nil {
		return common.Hash{}, fault.Wrap(fault.InvalidInput, op, err)
	}
	txHash, err := s.submitOwnerCall(ctx, signer, acct, disable)
	if err != nil {
		return common.Hash{}, err
	}

	if err := s.grants.DeleteGrant(identity); err != nil {
		return common.Hash{}, fmt.Errorf("%s: grant store: %w", op, err)
	}
	log.Printf("session authority revoked: account=%s session=%s tx=%s", acct.Address, grant.SessionAddress, txHash)
	return txHash, nil
}

// submitEnable builds, owner-signs and submits the enableSessionKey call.
func (s *Service) submitEnable(ctx context.Context, signer domain.OwnerSigner, acct domain.SmartAccount, sessionAddr common.Address, window domain.TimeWindowPolicy, policies []domain.CallPolicy) (common.Hash, error) {
	enable, err := userop.EncodeEnableSessionKey(sessionAddr, window, policies)
	if err != nil {
		return common.Hash{}, fault.Wrap(fault.InvalidInput, "session.Install", err)
	}
	return s.submitOwnerCall(ctx, signer, acct, enable)
}

// submitOwnerCall wraps a validator call in an owner-signed operation.
func (s *Service) submitOwnerCall(ctx context.Context, signer domain.OwnerSigner, acct domain.SmartAccount, validatorCall []byte) (common.Hash, error) {
	const op = "session.submit"
	cfg := s.installer.Config()

	callData, err := userop.EncodeExecute(domain.Call{To: cfg.SessionValidator, Data: validatorCall})
	if err != nil {
		return common.Hash{}, fault.Wrap(fault.InvalidInput, op, err)
	}
	nonce, err := account.EntryPointNonce(ctx, s.chain, cfg.EntryPoint, acct.Address)
	if err != nil {
		return common.Hash{}, err
	}

	uop := &domain.UserOperation{
		Sender:               acct.Address,
		Nonce:                nonce,
		InitCode:             []byte{},
		CallData:             callData,
		CallGasLimit:         s.gas.CallGasLimit,
		VerificationGasLimit: s.gas.VerificationGasLimit,
		PreVerificationGas:   s.gas.PreVerificationGas,
		MaxFeePerGas:         s.gas.MaxFeePerGas,
		MaxPriorityFeePerGas: s.gas.MaxPriorityFeePerGas,
	}
	hash := userop.Hash(uop, cfg.EntryPoint, cfg.ChainID)

	sig, err := signer.SignHash(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrOwnerRejected) {
			return common.Hash{}, fault.Wrap(fault.AuthorizationRejected, op, err)
		}
		return common.Hash{}, fault.Wrap(fault.NetworkUnavailable, op, err)
	}
	uop.Signature = sig

	txHash, err := s.bundler.SendUserOperation(ctx, uop, cfg.EntryPoint)
	if err != nil {
		return common.Hash{}, fault.Wrap(fault.NetworkUnavailable, op, err)
	}
	return txHash, nil
}

// validate checks a policy set before any signing or submission. A set must
// carry exactly one time window; an empty call-policy list is accepted only
// when the caller explicitly opts into time-window-only enforcement, which
// shifts spend limiting to the relay layer's trust boundary.
func (s *Service) validate(op string, params domain.InstallParams) (domain.TimeWindowPolicy, []domain.CallPolicy, error) {
	var window domain.TimeWindowPolicy
	var haveWindow bool
	var calls []domain.CallPolicy

	for _, p := range params.Policies {
		switch v := p.(type) {
		case domain.TimeWindowPolicy:
			if haveWindow {
				return window, nil, fault.New(fault.InvalidInput, op, "multiple time windows in policy set")
			}
			window, haveWindow = v, true
		case domain.CallPolicy:
			if v.Target == (common.Address{}) {
				return window, nil, fault.New(fault.InvalidInput, op, "call policy target is zero")
			}
			if v.ValueLimit != nil && v.ValueLimit.Sign() < 0 {
				return window, nil, fault.New(fault.InvalidInput, op, "call policy value limit is negative")
			}
			calls = append(calls, v)
		default:
			return window, nil, fault.Newf(fault.InvalidInput, op, "unsupported policy kind %T", p)
		}
	}

	if !haveWindow {
		return window, nil, fault.New(fault.InvalidInput, op, "policy set has no time window")
	}
	if window.ValidUntil == 0 || window.ValidUntil <= window.ValidAfter {
		return window, nil, fault.New(fault.InvalidInput, op, "time window is empty or inverted")
	}
	if window.ValidUntil <= uint64(s.now().Unix()) {
		return window, nil, fault.New(fault.InvalidInput, op, "time window already elapsed")
	}
	if len(calls) == 0 && !params.AllowTimeWindowOnly {
		return window, nil, fault.New(fault.InvalidInput, op,
			"empty call-policy set requires explicit time-window-only opt-in")
	}
	return window, calls, nil
}

// Compile-time assertion that Service implements domain.SessionService.
var _ domain.SessionService = (*Service)(nil)
