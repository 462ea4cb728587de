package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// UserOperation is the account-abstraction envelope submitted to a bundler.
// The smart account validates it against an installed authorization path
// (owner sudo validator or policy-bound session validator) identified by the
// signature contents.
type UserOperation struct {
	Sender               common.Address
	Nonce                *big.Int
	InitCode             []byte
	CallData             []byte
	CallGasLimit         uint64
	VerificationGasLimit uint64
	PreVerificationGas   uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	PaymasterAndData     []byte
	Signature            []byte
}

// GasParams are the static gas and fee parameters applied to submitted
// operations. Bundler-side estimation can tighten these; they only need to
// be generous enough for inclusion.
type GasParams struct {
	CallGasLimit         uint64
	VerificationGasLimit uint64
	PreVerificationGas   uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// DefaultGasParams returns conservative inclusion parameters.
func DefaultGasParams() GasParams {
	return GasParams{
		CallGasLimit:         500_000,
		VerificationGasLimit: 400_000,
		PreVerificationGas:   60_000,
		MaxFeePerGas:         big.NewInt(2_000_000_000), // 2 gwei
		MaxPriorityFeePerGas: big.NewInt(1_000_000_000),
	}
}

// UserOperationRPC is the hex-encoded wire form accepted by bundlers.
type UserOperationRPC struct {
	Sender               common.Address `json:"sender"`
	Nonce                *hexutil.Big   `json:"nonce"`
	InitCode             hexutil.Bytes  `json:"initCode"`
	CallData             hexutil.Bytes  `json:"callData"`
	CallGasLimit         hexutil.Uint64 `json:"callGasLimit"`
	VerificationGasLimit hexutil.Uint64 `json:"verificationGasLimit"`
	PreVerificationGas   hexutil.Uint64 `json:"preVerificationGas"`
	MaxFeePerGas         *hexutil.Big   `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big   `json:"maxPriorityFeePerGas"`
	PaymasterAndData     hexutil.Bytes  `json:"paymasterAndData"`
	Signature            hexutil.Bytes  `json:"signature"`
}

// RPC converts the operation to its bundler wire form.
func (op *UserOperation) RPC() UserOperationRPC {
	return UserOperationRPC{
		Sender:               op.Sender,
		Nonce:                (*hexutil.Big)(op.Nonce),
		InitCode:             op.InitCode,
		CallData:             op.CallData,
		CallGasLimit:         hexutil.Uint64(op.CallGasLimit),
		VerificationGasLimit: hexutil.Uint64(op.VerificationGasLimit),
		PreVerificationGas:   hexutil.Uint64(op.PreVerificationGas),
		MaxFeePerGas:         (*hexutil.Big)(op.MaxFeePerGas),
		MaxPriorityFeePerGas: (*hexutil.Big)(op.MaxPriorityFeePerGas),
		PaymasterAndData:     op.PaymasterAndData,
		Signature:            op.Signature,
	}
}
