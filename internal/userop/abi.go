package userop

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ABI fragments for the account stack. The account exposes the call-batch
// execution surface, the factory deterministic deployment, the session
// validator the policy-bound authorization path, and the entrypoint the
// per-sender nonce.
const (
	accountABIJSON = `[
		{"type":"function","name":"execute","inputs":[
			{"name":"to","type":"address"},
			{"name":"value","type":"uint256"},
			{"name":"data","type":"bytes"}]},
		{"type":"function","name":"executeBatch","inputs":[
			{"name":"calls","type":"tuple[]","components":[
				{"name":"to","type":"address"},
				{"name":"value","type":"uint256"},
				{"name":"data","type":"bytes"}]}]}
	]`

	factoryABIJSON = `[
		{"type":"function","name":"createAccount","inputs":[
			{"name":"owner","type":"address"},
			{"name":"validator","type":"address"},
			{"name":"salt","type":"bytes32"}],
		 "outputs":[{"name":"account","type":"address"}]}
	]`

	validatorABIJSON = `[
		{"type":"function","name":"enableSessionKey","inputs":[
			{"name":"key","type":"address"},
			{"name":"validAfter","type":"uint48"},
			{"name":"validUntil","type":"uint48"},
			{"name":"policies","type":"tuple[]","components":[
				{"name":"target","type":"address"},
				{"name":"selector","type":"bytes4"},
				{"name":"valueLimit","type":"uint256"}]}]},
		{"type":"function","name":"disableSessionKey","inputs":[
			{"name":"key","type":"address"}]}
	]`

	erc20ABIJSON = `[
		{"type":"function","name":"transfer","inputs":[
			{"name":"to","type":"address"},
			{"name":"amount","type":"uint256"}],
		 "outputs":[{"name":"ok","type":"bool"}]},
		{"type":"function","name":"decimals","inputs":[],
		 "outputs":[{"name":"","type":"uint8"}],"stateMutability":"view"}
	]`

	entryPointABIJSON = `[
		{"type":"function","name":"getNonce","inputs":[
			{"name":"sender","type":"address"},
			{"name":"key","type":"uint192"}],
		 "outputs":[{"name":"nonce","type":"uint256"}],"stateMutability":"view"}
	]`
)

var (
	accountABI    = mustABI(accountABIJSON)
	factoryABI    = mustABI(factoryABIJSON)
	validatorABI  = mustABI(validatorABIJSON)
	erc20ABI      = mustABI(erc20ABIJSON)
	entryPointABI = mustABI(entryPointABIJSON)
)

func mustABI(src string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		panic(err)
	}
	return parsed
}
