package account_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"agentpay/internal/account"
	"agentpay/internal/domain"
	"agentpay/internal/fault"
)

type fakeChain struct {
	code     map[common.Address][]byte
	balances map[common.Address]*big.Int
	calls    map[common.Address][]byte // static return per contract
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		code:     make(map[common.Address][]byte),
		balances: make(map[common.Address]*big.Int),
		calls:    make(map[common.Address][]byte),
	}
}

func (f *fakeChain) CodeAt(_ context.Context, a common.Address) ([]byte, error) {
	return f.code[a], nil
}

func (f *fakeChain) BalanceAt(_ context.Context, a common.Address) (*big.Int, error) {
	if b, ok := f.balances[a]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (f *fakeChain) CallContract(_ context.Context, to common.Address, _ []byte) ([]byte, error) {
	return f.calls[to], nil
}

type fakeBundler struct {
	sent []*domain.UserOperation
}

func (f *fakeBundler) SendUserOperation(_ context.Context, op *domain.UserOperation, _ common.Address) (common.Hash, error) {
	f.sent = append(f.sent, op)
	return crypto.Keccak256Hash(op.CallData, op.InitCode), nil
}

type fakeSigner struct {
	addr   common.Address
	reject bool
	signed int
}

func (f *fakeSigner) Address() common.Address { return f.addr }

func (f *fakeSigner) SignHash(_ context.Context, hash common.Hash) ([]byte, error) {
	if f.reject {
		return nil, domain.ErrOwnerRejected
	}
	f.signed++
	sig := make([]byte, 65)
	copy(sig, hash[:])
	return sig, nil
}

func testConfig() domain.OwnerConfig {
	return domain.OwnerConfig{
		Owner:            common.HexToAddress("0x1111111111111111111111111111111111111111"),
		EntryPoint:       common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Factory:          common.HexToAddress("0x3333333333333333333333333333333333333333"),
		SudoValidator:    common.HexToAddress("0x4444444444444444444444444444444444444444"),
		SessionValidator: common.HexToAddress("0x5555555555555555555555555555555555555555"),
		ChainID:          31337,
	}
}

func TestAddress_DeterministicAcrossDeployment(t *testing.T) {
	chain := newFakeChain()
	r := account.NewResolver(testConfig(), chain)

	before, err := r.Address(42)
	if err != nil {
		t.Fatalf("Address: %v", err)
	}

	acct, err := r.Resolve(context.Background(), 42)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if acct.OwnerInstalled {
		t.Fatal("undeployed account reported as installed")
	}

	// Deploy, then resolve again: same address, now installed.
	chain.code[before] = []byte{0x60, 0x80}
	after, err := r.Resolve(context.Background(), 42)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if after.Address != before {
		t.Fatalf("address changed across deployment: %s != %s", after.Address, before)
	}
	if !after.OwnerInstalled {
		t.Fatal("deployed account not reported as installed")
	}
}

func TestAddress_DistinctSlots(t *testing.T) {
	r := account.NewResolver(testConfig(), newFakeChain())
	a, _ := r.Address(1)
	b, _ := r.Address(2)
	if a == b {
		t.Fatal("distinct slots produced the same address")
	}
}

func TestAddress_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Factory = common.Address{}
	r := account.NewResolver(cfg, newFakeChain())
	if _, err := r.Address(1); !fault.IsKind(err, fault.InvalidInput) {
		t.Fatalf("want InvalidInput, got %v", err)
	}
}

func TestInstallOwnerAuthority_DeploysOnce(t *testing.T) {
	chain := newFakeChain()
	bundler := &fakeBundler{}
	cfg := testConfig()
	r := account.NewResolver(cfg, chain)
	in := account.NewInstaller(r, chain, bundler, domain.DefaultGasParams())
	signer := &fakeSigner{addr: cfg.Owner}

	acct, err := in.InstallOwnerAuthority(context.Background(), signer, "user-42")
	if err != nil {
		t.Fatalf("InstallOwnerAuthority: %v", err)
	}
	if !acct.OwnerInstalled {
		t.Fatal("account not marked installed")
	}
	if signer.signed != 1 {
		t.Fatalf("want exactly one owner signature, got %d", signer.signed)
	}
	if len(bundler.sent) != 1 || len(bundler.sent[0].InitCode) == 0 {
		t.Fatal("deployment operation missing init code")
	}

	// Second install with the account now deployed: no signature, no send.
	chain.code[acct.Address] = []byte{0x01}
	again, err := in.InstallOwnerAuthority(context.Background(), signer, "user-42")
	if err != nil {
		t.Fatalf("second InstallOwnerAuthority: %v", err)
	}
	if again.Address != acct.Address {
		t.Fatal("install not idempotent on address")
	}
	if signer.signed != 1 || len(bundler.sent) != 1 {
		t.Fatal("re-install must not sign or submit again")
	}
}

func TestInstallOwnerAuthority_RejectionIsFatal(t *testing.T) {
	chain := newFakeChain()
	cfg := testConfig()
	r := account.NewResolver(cfg, chain)
	in := account.NewInstaller(r, chain, &fakeBundler{}, domain.DefaultGasParams())
	signer := &fakeSigner{addr: cfg.Owner, reject: true}

	_, err := in.InstallOwnerAuthority(context.Background(), signer, "user-42")
	if !fault.IsKind(err, fault.AuthorizationRejected) {
		t.Fatalf("want AuthorizationRejected, got %v", err)
	}
}

func TestInstallOwnerAuthority_WrongSigner(t *testing.T) {
	chain := newFakeChain()
	r := account.NewResolver(testConfig(), chain)
	in := account.NewInstaller(r, chain, &fakeBundler{}, domain.DefaultGasParams())
	signer := &fakeSigner{addr: common.HexToAddress("0xdead")}

	_, err := in.InstallOwnerAuthority(context.Background(), signer, "user-42")
	if !fault.IsKind(err, fault.InvalidInput) {
		t.Fatalf("want InvalidInput, got %v", err)
	}
}
