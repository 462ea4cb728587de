package userop

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"agentpay/internal/domain"
)

// Decoders for the account stack's calldata. Production code only encodes;
// these exist for inspection surfaces and for test harnesses that stand in
// for the chain's validators.

type decodedCall struct {
	To    common.Address `json:"to"`
	Value *big.Int       `json:"value"`
	Data  []uint8        `json:"data"`
}

type decodedPolicy struct {
	Target     common.Address `json:"target"`
	Selector   [4]uint8       `json:"selector"`
	ValueLimit *big.Int       `json:"valueLimit"`
}

// DecodeCallData decodes an execute or executeBatch payload back into its
// call list.
func DecodeCallData(data []byte) ([]domain.Call, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("decode calldata: too short")
	}
	selector, args := data[:4], data[4:]

	switch {
	case bytes.Equal(selector, accountABI.Methods["execute"].ID):
		out, err := accountABI.Methods["execute"].Inputs.Unpack(args)
		if err != nil {
			return nil, fmt.Errorf("decode execute: %w", err)
		}
		return []domain.Call{{
			To:    out[0].(common.Address),
			Value: out[1].(*big.Int),
			Data:  out[2].([]byte),
		}}, nil

	case bytes.Equal(selector, accountABI.Methods["executeBatch"].ID):
		out, err := accountABI.Methods["executeBatch"].Inputs.Unpack(args)
		if err != nil {
			return nil, fmt.Errorf("decode executeBatch: %w", err)
		}
		raw := *abi.ConvertType(out[0], new([]decodedCall)).(*[]decodedCall)
		calls := make([]domain.Call, 0, len(raw))
		for _, c := range raw {
			calls = append(calls, domain.Call{To: c.To, Value: c.Value, Data: c.Data})
		}
		return calls, nil

	default:
		return nil, fmt.Errorf("decode calldata: unknown selector %x", selector)
	}
}

// DecodeEnableSessionKey decodes an enableSessionKey payload.
func DecodeEnableSessionKey(data []byte) (common.Address, domain.TimeWindowPolicy, []domain.CallPolicy, error) {
	method := validatorABI.Methods["enableSessionKey"]
	if len(data) < 4 || !bytes.Equal(data[:4], method.ID) {
		return common.Address{}, domain.TimeWindowPolicy{}, nil, fmt.Errorf("not an enableSessionKey payload")
	}
	out, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return common.Address{}, domain.TimeWindowPolicy{}, nil, fmt.Errorf("decode enableSessionKey: %w", err)
	}
	key := out[0].(common.Address)
	window := domain.TimeWindowPolicy{
		ValidAfter: out[1].(*big.Int).Uint64(),
		ValidUntil: out[2].(*big.Int).Uint64(),
	}
	raw := *abi.ConvertType(out[3], new([]decodedPolicy)).(*[]decodedPolicy)
	policies := make([]domain.CallPolicy, 0, len(raw))
	for _, p := range raw {
		policies = append(policies, domain.CallPolicy{
			Target:     p.Target,
			Selector:   domain.Selector(p.Selector),
			ValueLimit: p.ValueLimit,
		})
	}
	return key, window, policies, nil
}

// DecodeGetNonceCall decodes an entrypoint getNonce(sender, key) call.
func DecodeGetNonceCall(data []byte) (common.Address, *big.Int, error) {
	method := entryPointABI.Methods["getNonce"]
	if len(data) < 4 || !bytes.Equal(data[:4], method.ID) {
		return common.Address{}, nil, fmt.Errorf("not a getNonce payload")
	}
	out, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("decode getNonce call: %w", err)
	}
	return out[0].(common.Address), out[1].(*big.Int), nil
}

// DecodeDisableSessionKey decodes a disableSessionKey payload.
func DecodeDisableSessionKey(data []byte) (common.Address, error) {
	method := validatorABI.Methods["disableSessionKey"]
	if len(data) < 4 || !bytes.Equal(data[:4], method.ID) {
		return common.Address{}, fmt.Errorf("not a disableSessionKey payload")
	}
	out, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return common.Address{}, fmt.Errorf("decode disableSessionKey: %w", err)
	}
	return out[0].(common.Address), nil
}
