package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Identity is the opaque string identifying an end user, as issued by the
// external identity provider. It is derivation input only; it never carries
// key material.
type Identity string

// String returns the string form of the identity.
func (id Identity) String() string { return string(id) }

// SlotIndex is the deterministic account slot derived from an Identity.
// The same identity always maps to the same slot.
type SlotIndex uint64

// SmartAccount is the on-chain programmable account controlled by the owner.
// The address is a pure function of the owner configuration and the slot, so
// it exists counterfactually before any deployment transaction.
type SmartAccount struct {
	Address        common.Address
	ChainID        uint64
	Slot           SlotIndex
	OwnerInstalled bool
}

// OwnerConfig is everything needed to derive and control a smart account:
// the owner's signing address and the fixed module addresses for the target
// chain.
type OwnerConfig struct {
	Owner            common.Address
	EntryPoint       common.Address
	Factory          common.Address
	SudoValidator    common.Address
	SessionValidator common.Address
	ChainID          uint64
}

// Balance is a native-currency balance in both machine and human form.
type Balance struct {
	Wei       string `json:"balanceRaw"` // decimal string, smallest unit
	Formatted string `json:"balance"`   // human decimal, e.g. "0.002"
}

// Grant is the metadata of an installed session authorization. It contains
// only public material; the relay layer reconstructs the session authority
// from a Grant plus the vault-held key, with no owner interaction.
type Grant struct {
	Identity       Identity
	SessionAddress common.Address
	Policies       []Policy
	InstalledAt    time.Time
	TxHash         common.Hash
}
