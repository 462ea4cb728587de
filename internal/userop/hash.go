package userop

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"agentpay/internal/domain"
)

// Hash computes the canonical digest the account's validators verify: the
// keccak of the packed static fields, bound to the entrypoint and chain so a
// signed operation cannot be replayed across chains or entrypoints.
func Hash(op *domain.UserOperation, entryPoint common.Address, chainID uint64) common.Hash {
	packed := packForHash(op)
	inner := crypto.Keccak256(packed)

	buf := make([]byte, 0, 96)
	buf = append(buf, inner...)
	buf = append(buf, common.LeftPadBytes(entryPoint.Bytes(), 32)...)
	buf = append(buf, common.LeftPadBytes(new(big.Int).SetUint64(chainID).Bytes(), 32)...)
	return crypto.Keccak256Hash(buf)
}

// packForHash lays the operation out as ten 32-byte words, with dynamic
// fields represented by their keccak digests.
func packForHash(op *domain.UserOperation) []byte {
	words := [][]byte{
		common.LeftPadBytes(op.Sender.Bytes(), 32),
		common.LeftPadBytes(bigOrZero(op.Nonce).Bytes(), 32),
		crypto.Keccak256(op.InitCode),
		crypto.Keccak256(op.CallData),
		common.LeftPadBytes(new(big.Int).SetUint64(op.CallGasLimit).Bytes(), 32),
		common.LeftPadBytes(new(big.Int).SetUint64(op.VerificationGasLimit).Bytes(), 32),
		common.LeftPadBytes(new(big.Int).SetUint64(op.PreVerificationGas).Bytes(), 32),
		common.LeftPadBytes(bigOrZero(op.MaxFeePerGas).Bytes(), 32),
		common.LeftPadBytes(bigOrZero(op.MaxPriorityFeePerGas).Bytes(), 32),
		crypto.Keccak256(op.PaymasterAndData),
	}
	buf := make([]byte, 0, len(words)*32)
	for _, w := range words {
		buf = append(buf, w...)
	}
	return buf
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
