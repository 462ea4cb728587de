package domain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrOwnerRejected is returned by OwnerSigner implementations when the user
// declines to sign. Callers map it to an authorization-rejected fault.
var ErrOwnerRejected = errors.New("owner rejected the signature request")

// Vault generates, persists and retrieves session keypairs keyed by
// identity. GetOrCreate must resolve concurrent first-time creation to a
// single winner; all callers observe the same key.
type Vault interface {
	GetOrCreate(identity Identity) (SessionKey, error)
	Load(identity Identity) (SessionKey, bool, error)
	Save(identity Identity, key SessionKey) error
	Rotate(identity Identity) (SessionKey, error)
}

// GrantStore persists the public metadata of installed session
// authorizations, so the relay can rebuild a session authority without any
// owner interaction.
type GrantStore interface {
	SaveGrant(identity Identity, grant Grant) error
	LoadGrant(identity Identity) (Grant, bool, error)
	DeleteGrant(identity Identity) error
}

// ChainReader performs read-only queries against the target chain. It never
// submits a transaction.
type ChainReader interface {
	CodeAt(ctx context.Context, account common.Address) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Bundler relays encoded user operations to the chain for inclusion.
type Bundler interface {
	SendUserOperation(ctx context.Context, op *UserOperation, entryPoint common.Address) (common.Hash, error)
}

// OwnerSigner is the owner's signing capability. It is only exercised during
// one-time installation flows; routine relay traffic never touches it.
type OwnerSigner interface {
	Address() common.Address
	SignHash(ctx context.Context, hash common.Hash) ([]byte, error)
}

// AccountService resolves and installs smart accounts.
type AccountService interface {
	ResolveAddress(ctx context.Context, identity Identity) (SmartAccount, error)
	InstallOwnerAuthority(ctx context.Context, signer OwnerSigner, identity Identity) (SmartAccount, error)
}

// InstallParams is the input to a session-authorization installation.
// AllowTimeWindowOnly must be set explicitly to install a grant whose only
// on-chain constraint is the time window; it is never the default.
type InstallParams struct {
	Policies            []Policy
	AllowTimeWindowOnly bool
}

// InstallResult reports a completed session installation.
type InstallResult struct {
	Account        SmartAccount
	SessionAddress common.Address
	TxHash         common.Hash
	Grant          Grant
}

// SessionService installs, rotates and revokes session authorizations.
// Every transition requires the owner's signature.
type SessionService interface {
	Install(ctx context.Context, signer OwnerSigner, identity Identity, params InstallParams) (InstallResult, error)
	Rotate(ctx context.Context, signer OwnerSigner, identity Identity, params InstallParams) (InstallResult, error)
	Revoke(ctx context.Context, signer OwnerSigner, identity Identity) (common.Hash, error)
}

// TransferService is the transaction relay: it encodes calls, signs them
// with the vault-held session key, and submits them for execution. The chain
// is the authority on policy enforcement; rejections are propagated, never
// swallowed.
type TransferService interface {
	Submit(ctx context.Context, account common.Address, identity Identity, calls []Call) (TransactionRecord, error)
	SubmitNative(ctx context.Context, account common.Address, identity Identity, to common.Address, amountWei *big.Int) (TransactionRecord, error)
	SubmitToken(ctx context.Context, account common.Address, identity Identity, token, to common.Address, amount string, decimalsOverride *uint8) (TransactionRecord, error)
}

// BalanceService reads native balances.
type BalanceService interface {
	Native(ctx context.Context, account common.Address) (Balance, error)
}
