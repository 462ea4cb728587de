package userop_test

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"agentpay/internal/domain"
	"agentpay/internal/userop"
)

func TestEncodeERC20Transfer(t *testing.T) {
	recipient := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	data, err := userop.EncodeERC20Transfer(recipient, big.NewInt(25_500_000))
	if err != nil {
		t.Fatalf("EncodeERC20Transfer: %v", err)
	}

	// transfer(address,uint256) selector.
	if got := hex.EncodeToString(data[:4]); got != "a9059cbb" {
		t.Fatalf("want selector a9059cbb, got %s", got)
	}
	if len(data) != 4+32+32 {
		t.Fatalf("want 68 bytes, got %d", len(data))
	}
	if !bytes.Equal(data[4:36], common.LeftPadBytes(recipient.Bytes(), 32)) {
		t.Fatal("recipient word mismatch")
	}
	if !bytes.Equal(data[36:68], common.LeftPadBytes(big.NewInt(25_500_000).Bytes(), 32)) {
		t.Fatal("amount word mismatch")
	}
}

func TestEncodeExecuteBatch_RejectsEmpty(t *testing.T) {
	if _, err := userop.EncodeExecuteBatch(nil); err == nil {
		t.Fatal("want error for empty call list")
	}
}

func TestEncodeExecuteBatch_Deterministic(t *testing.T) {
	calls := []domain.Call{
		{To: common.HexToAddress("0x1"), Value: big.NewInt(1)},
		{To: common.HexToAddress("0x2"), Value: big.NewInt(2), Data: []byte{0xde, 0xad}},
	}
	a, err := userop.EncodeExecuteBatch(calls)
	if err != nil {
		t.Fatalf("EncodeExecuteBatch: %v", err)
	}
	b, err := userop.EncodeExecuteBatch(calls)
	if err != nil {
		t.Fatalf("EncodeExecuteBatch: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("encoding not deterministic")
	}
	if len(a) < 4 {
		t.Fatal("missing selector")
	}
}

func TestDecimalsRoundTrip(t *testing.T) {
	call := userop.EncodeDecimalsCall()
	// decimals() selector.
	if got := hex.EncodeToString(call); got != "313ce567" {
		t.Fatalf("want selector 313ce567, got %s", got)
	}

	ret := common.LeftPadBytes([]byte{6}, 32)
	d, err := userop.DecodeDecimalsResult(ret)
	if err != nil {
		t.Fatalf("DecodeDecimalsResult: %v", err)
	}
	if d != 6 {
		t.Fatalf("want 6, got %d", d)
	}
}

func TestGetNonceRoundTrip(t *testing.T) {
	sender := common.HexToAddress("0xabc")
	data, err := userop.EncodeGetNonce(sender, big.NewInt(0))
	if err != nil {
		t.Fatalf("EncodeGetNonce: %v", err)
	}
	if len(data) != 4+32+32 {
		t.Fatalf("want 68 bytes, got %d", len(data))
	}

	ret := common.LeftPadBytes(big.NewInt(7).Bytes(), 32)
	nonce, err := userop.DecodeGetNonceResult(ret)
	if err != nil {
		t.Fatalf("DecodeGetNonceResult: %v", err)
	}
	if nonce.Int64() != 7 {
		t.Fatalf("want nonce 7, got %s", nonce)
	}
}

func TestHash_BindsEntryPointAndChain(t *testing.T) {
	op := &domain.UserOperation{
		Sender:   common.HexToAddress("0x1234"),
		Nonce:    big.NewInt(1),
		CallData: []byte{0x01},
	}
	entryA := common.HexToAddress("0xaa")
	entryB := common.HexToAddress("0xbb")

	h1 := userop.Hash(op, entryA, 1)
	h2 := userop.Hash(op, entryA, 1)
	if h1 != h2 {
		t.Fatal("hash not deterministic")
	}
	if userop.Hash(op, entryB, 1) == h1 {
		t.Fatal("hash must bind the entrypoint")
	}
	if userop.Hash(op, entryA, 2) == h1 {
		t.Fatal("hash must bind the chain id")
	}
}

func TestHash_SensitiveToCallData(t *testing.T) {
	base := &domain.UserOperation{Sender: common.HexToAddress("0x1"), Nonce: big.NewInt(0)}
	entry := common.HexToAddress("0xaa")

	h1 := userop.Hash(base, entry, 1)
	changed := *base
	changed.CallData = []byte{0xff}
	if userop.Hash(&changed, entry, 1) == h1 {
		t.Fatal("hash must change with calldata")
	}
}

func TestEncodeEnableSessionKey_EmptyPolicies(t *testing.T) {
	window := domain.TimeWindowPolicy{ValidAfter: 0, ValidUntil: 1_900_000_000}
	data, err := userop.EncodeEnableSessionKey(common.HexToAddress("0x5e55"), window, nil)
	if err != nil {
		t.Fatalf("EncodeEnableSessionKey: %v", err)
	}
	if len(data) < 4 {
		t.Fatal("missing selector")
	}
}

func TestEncodeDisableSessionKey(t *testing.T) {
	data, err := userop.EncodeDisableSessionKey(common.HexToAddress("0x5e55"))
	if err != nil {
		t.Fatalf("EncodeDisableSessionKey: %v", err)
	}
	if len(data) != 4+32 {
		t.Fatalf("want 36 bytes, got %d", len(data))
	}
}
