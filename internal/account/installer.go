package account

import (
	"context"
	"errors"
	"log"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"agentpay/internal/derive"
	"agentpay/internal/domain"
	"agentpay/internal/fault"
	"agentpay/internal/userop"
)

// Installer gives the owner's key primary control over the resolved account.
// Installation is one owner-signed deployment operation; for an already
// deployed account it is a no-op and the owner is not asked to sign.
type Installer struct {
	resolver *Resolver
	chain    domain.ChainReader
	bundler  domain.Bundler
	gas      domain.GasParams
}

// NewInstaller returns an installer over the resolver's configuration.
func NewInstaller(resolver *Resolver, chain domain.ChainReader, bundler domain.Bundler, gas domain.GasParams) *Installer {
	return &Installer{resolver: resolver, chain: chain, bundler: bundler, gas: gas}
}

// ResolveAddress derives the slot for an identity and resolves its account.
func (in *Installer) ResolveAddress(ctx context.Context, identity domain.Identity) (domain.SmartAccount, error) {
	slot, err := derive.Slot(identity)
	if err != nil {
		return domain.SmartAccount{}, err
	}
	return in.resolver.Resolve(ctx, slot)
}

// InstallOwnerAuthority deploys the account for the identity's slot with the
// owner's sudo validator installed. Idempotent: a deployed account is
// returned as-is. The owner signs at most once per call.
func (in *Installer) InstallOwnerAuthority(ctx context.Context, signer domain.OwnerSigner, identity domain.Identity) (domain.SmartAccount, error) {
	const op = "account.InstallOwnerAuthority"

	acct, err := in.ResolveAddress(ctx, identity)
	if err != nil {
		return domain.SmartAccount{}, err
	}
	if acct.OwnerInstalled {
		return acct, nil
	}
	if signer.Address() != in.resolver.Config().Owner {
		return domain.SmartAccount{}, fault.Newf(fault.InvalidInput, op,
			"signer %s does not match configured owner %s", signer.Address(), in.resolver.Config().Owner)
	}

	initCode, err := in.resolver.InitCode(acct.Slot)
	if err != nil {
		return domain.SmartAccount{}, err
	}
	opn := &domain.UserOperation{
		Sender:               acct.Address,
		Nonce:                new(big.Int),
		InitCode:             initCode,
		CallData:             []byte{},
		CallGasLimit:         in.gas.CallGasLimit,
		VerificationGasLimit: in.gas.VerificationGasLimit,
		PreVerificationGas:   in.gas.PreVerificationGas,
		MaxFeePerGas:         in.gas.MaxFeePerGas,
		MaxPriorityFeePerGas: in.gas.MaxPriorityFeePerGas,
	}

	hash := userop.Hash(opn, in.resolver.Config().EntryPoint, in.resolver.Config().ChainID)
	sig, err := signer.SignHash(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrOwnerRejected) {
			return domain.SmartAccount{}, fault.Wrap(fault.AuthorizationRejected, op, err)
		}
		return domain.SmartAccount{}, fault.Wrap(fault.NetworkUnavailable, op, err)
	}
	opn.Signature = sig

	txHash, err := in.bundler.SendUserOperation(ctx, opn, in.resolver.Config().EntryPoint)
	if err != nil {
		return domain.SmartAccount{}, fault.Wrap(fault.NetworkUnavailable, op, err)
	}

	log.Printf("owner authority installed: account=%s slot=%d tx=%s", acct.Address, acct.Slot, txHash)
	acct.OwnerInstalled = true
	return acct, nil
}

// Config returns the owner configuration the installer operates under.
func (in *Installer) Config() domain.OwnerConfig { return in.resolver.Config() }

// EntryPointNonce reads an account's current operation nonce from the
// entrypoint.
func EntryPointNonce(ctx context.Context, chain domain.ChainReader, entryPoint, account common.Address) (*big.Int, error) {
	data, err := userop.EncodeGetNonce(account, new(big.Int))
	if err != nil {
		return nil, err
	}
	ret, err := chain.CallContract(ctx, entryPoint, data)
	if err != nil {
		return nil, fault.Wrap(fault.NetworkUnavailable, "account.EntryPointNonce", err)
	}
	return userop.DecodeGetNonceResult(ret)
}

// Compile-time assertion that Installer implements domain.AccountService.
var _ domain.AccountService = (*Installer)(nil)
