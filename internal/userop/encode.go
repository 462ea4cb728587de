package userop

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"agentpay/internal/domain"
)

// batchCall mirrors the account's (address,uint256,bytes) tuple layout.
type batchCall struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// abiPolicy mirrors the validator's (address,bytes4,uint256) tuple layout.
type abiPolicy struct {
	Target     common.Address
	Selector   [4]byte
	ValueLimit *big.Int
}

// EncodeExecute encodes a single call through the account's execute entry.
func EncodeExecute(call domain.Call) ([]byte, error) {
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}
	data, err := accountABI.Pack("execute", call.To, value, call.Data)
	if err != nil {
		return nil, fmt.Errorf("encode execute: %w", err)
	}
	return data, nil
}

// EncodeExecuteBatch encodes one or more calls into the account's native
// call-batch format.
func EncodeExecuteBatch(calls []domain.Call) ([]byte, error) {
	if len(calls) == 0 {
		return nil, fmt.Errorf("encode executeBatch: empty call list")
	}
	batch := make([]batchCall, 0, len(calls))
	for _, c := range calls {
		value := c.Value
		if value == nil {
			value = new(big.Int)
		}
		data := c.Data
		if data == nil {
			data = []byte{}
		}
		batch = append(batch, batchCall{To: c.To, Value: value, Data: data})
	}
	data, err := accountABI.Pack("executeBatch", batch)
	if err != nil {
		return nil, fmt.Errorf("encode executeBatch: %w", err)
	}
	return data, nil
}

// EncodeCreateAccount encodes the factory call that deploys the account for
// (owner, validator, salt). Prefixed with the factory address it forms a
// user operation's initCode.
func EncodeCreateAccount(owner, validator common.Address, salt common.Hash) ([]byte, error) {
	data, err := factoryABI.Pack("createAccount", owner, validator, salt)
	if err != nil {
		return nil, fmt.Errorf("encode createAccount: %w", err)
	}
	return data, nil
}

// EncodeEnableSessionKey encodes the validator call installing a session key
// with its time window and call policies.
func EncodeEnableSessionKey(key common.Address, window domain.TimeWindowPolicy, policies []domain.CallPolicy) ([]byte, error) {
	abiPolicies := make([]abiPolicy, 0, len(policies))
	for _, p := range policies {
		limit := p.ValueLimit
		if limit == nil {
			limit = new(big.Int)
		}
		abiPolicies = append(abiPolicies, abiPolicy{
			Target:     p.Target,
			Selector:   [4]byte(p.Selector),
			ValueLimit: limit,
		})
	}
	data, err := validatorABI.Pack("enableSessionKey",
		key,
		new(big.Int).SetUint64(window.ValidAfter),
		new(big.Int).SetUint64(window.ValidUntil),
		abiPolicies,
	)
	if err != nil {
		return nil, fmt.Errorf("encode enableSessionKey: %w", err)
	}
	return data, nil
}

// EncodeDisableSessionKey encodes the validator call revoking a session key.
func EncodeDisableSessionKey(key common.Address) ([]byte, error) {
	data, err := validatorABI.Pack("disableSessionKey", key)
	if err != nil {
		return nil, fmt.Errorf("encode disableSessionKey: %w", err)
	}
	return data, nil
}

// EncodeERC20Transfer encodes transfer(recipient, amount) for a fungible
// token contract.
func EncodeERC20Transfer(recipient common.Address, amount *big.Int) ([]byte, error) {
	data, err := erc20ABI.Pack("transfer", recipient, amount)
	if err != nil {
		return nil, fmt.Errorf("encode transfer: %w", err)
	}
	return data, nil
}

// EncodeDecimalsCall encodes the decimals() view call.
func EncodeDecimalsCall() []byte {
	data, err := erc20ABI.Pack("decimals")
	if err != nil {
		panic(err) // static input, cannot fail
	}
	return data
}

// DecodeDecimalsResult decodes the return of decimals().
func DecodeDecimalsResult(ret []byte) (uint8, error) {
	out, err := erc20ABI.Unpack("decimals", ret)
	if err != nil {
		return 0, fmt.Errorf("decode decimals: %w", err)
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decode decimals: unexpected type %T", out[0])
	}
	return d, nil
}

// EncodeGetNonce encodes entrypoint getNonce(sender, key).
func EncodeGetNonce(sender common.Address, key *big.Int) ([]byte, error) {
	data, err := entryPointABI.Pack("getNonce", sender, key)
	if err != nil {
		return nil, fmt.Errorf("encode getNonce: %w", err)
	}
	return data, nil
}

// DecodeGetNonceResult decodes the return of getNonce.
func DecodeGetNonceResult(ret []byte) (*big.Int, error) {
	out, err := entryPointABI.Unpack("getNonce", ret)
	if err != nil {
		return nil, fmt.Errorf("decode getNonce: %w", err)
	}
	nonce, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("decode getNonce: unexpected type %T", out[0])
	}
	return nonce, nil
}
