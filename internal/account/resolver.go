package account

import (
	"context"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"agentpay/internal/domain"
	"agentpay/internal/fault"
	"agentpay/internal/userop"
)

// Resolver computes the deterministic counterfactual address of a smart
// account from the owner configuration and a slot index. The computation is
// pure; Resolve additionally checks deployment state with a read-only call
// but never submits a transaction.
type Resolver struct {
	cfg   domain.OwnerConfig
	chain domain.ChainReader
}

// NewResolver returns a resolver for the given owner configuration.
func NewResolver(cfg domain.OwnerConfig, chain domain.ChainReader) *Resolver {
	return &Resolver{cfg: cfg, chain: chain}
}

// Config returns the owner configuration the resolver derives from.
func (r *Resolver) Config() domain.OwnerConfig { return r.cfg }

// Salt binds the owner address and slot into the CREATE2 salt.
func (r *Resolver) Salt(slot domain.SlotIndex) common.Hash {
	var buf [28]byte
	copy(buf[:20], r.cfg.Owner.Bytes())
	binary.BigEndian.PutUint64(buf[20:], uint64(slot))
	return crypto.Keccak256Hash(buf[:])
}

// InitCode returns the deployment payload for the slot: the factory address
// followed by the createAccount calldata. Carried in a user operation it
// deploys the account with the owner's sudo validator installed.
func (r *Resolver) InitCode(slot domain.SlotIndex) ([]byte, error) {
	call, err := userop.EncodeCreateAccount(r.cfg.Owner, r.cfg.SudoValidator, r.Salt(slot))
	if err != nil {
		return nil, err
	}
	return append(r.cfg.Factory.Bytes(), call...), nil
}

// Address computes the counterfactual account address for the slot. The
// same inputs always yield the same address, deployed or not.
func (r *Resolver) Address(slot domain.SlotIndex) (common.Address, error) {
	if err := r.validateConfig(); err != nil {
		return common.Address{}, err
	}
	initCode, err := r.InitCode(slot)
	if err != nil {
		return common.Address{}, err
	}
	// CREATE2: keccak256(0xff ++ deployer ++ salt ++ keccak256(initCode))[12:]
	salt := r.Salt(slot)
	buf := make([]byte, 0, 1+20+32+32)
	buf = append(buf, 0xff)
	buf = append(buf, r.cfg.Factory.Bytes()...)
	buf = append(buf, salt.Bytes()...)
	buf = append(buf, crypto.Keccak256(initCode)...)
	return common.BytesToAddress(crypto.Keccak256(buf)[12:]), nil
}

// Resolve computes the address and reads its deployment state from the
// chain.
func (r *Resolver) Resolve(ctx context.Context, slot domain.SlotIndex) (domain.SmartAccount, error) {
	addr, err := r.Address(slot)
	if err != nil {
		return domain.SmartAccount{}, err
	}
	code, err := r.chain.CodeAt(ctx, addr)
	if err != nil {
		return domain.SmartAccount{}, fault.Wrap(fault.NetworkUnavailable, "account.Resolve", err)
	}
	return domain.SmartAccount{
		Address:        addr,
		ChainID:        r.cfg.ChainID,
		Slot:           slot,
		OwnerInstalled: len(code) > 0,
	}, nil
}

func (r *Resolver) validateConfig() error {
	const op = "account.Resolver"
	switch {
	case r.cfg.Owner == (common.Address{}):
		return fault.New(fault.InvalidInput, op, "owner address is zero")
	case r.cfg.Factory == (common.Address{}):
		return fault.New(fault.InvalidInput, op, "factory address is zero")
	case r.cfg.EntryPoint == (common.Address{}):
		return fault.New(fault.InvalidInput, op, "entrypoint address is zero")
	case r.cfg.SudoValidator == (common.Address{}):
		return fault.New(fault.InvalidInput, op, "sudo validator address is zero")
	case r.cfg.ChainID == 0:
		return fault.New(fault.InvalidInput, op, "chain id is zero")
	}
	return nil
}
