package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Call is the atomic unit of an on-chain action: a target, a native value,
// and calldata. A native transfer has empty Data; a token transfer targets
// the token contract with zero Value.
type Call struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// Selector returns the first four bytes of the calldata, or the zero
// selector for a bare value transfer.
func (c Call) Selector() Selector {
	var s Selector
	if len(c.Data) >= 4 {
		copy(s[:], c.Data[:4])
	}
	return s
}

// TransactionRecord is the outcome of one relay submission. It is returned
// to the caller and never persisted here.
type TransactionRecord struct {
	RequestID uuid.UUID   `json:"requestId"`
	TxHash    common.Hash `json:"txHash"`
	OK        bool        `json:"ok"`
	Err       string      `json:"error,omitempty"`
}
