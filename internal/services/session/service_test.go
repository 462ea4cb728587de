package session_test

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"agentpay/internal/account"
	"agentpay/internal/bundler/bundlertest"
	"agentpay/internal/domain"
	"agentpay/internal/fault"
	"agentpay/internal/services/session"
	"agentpay/internal/signer"
	"agentpay/internal/store"
)

type harness struct {
	svc       *session.Service
	fake      *bundlertest.Fake
	installer *account.Installer
	vault     domain.Vault
	grants    domain.GrantStore
	owner     *signer.Local
	cfg       domain.OwnerConfig
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate owner key: %v", err)
	}
	owner, err := signer.FromHex(hex.EncodeToString(crypto.FromECDSA(key)))
	if err != nil {
		t.Fatalf("build owner signer: %v", err)
	}

	cfg := domain.OwnerConfig{
		Owner:            owner.Address(),
		EntryPoint:       common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789"),
		Factory:          common.HexToAddress("0x9406Cc6185a346906296840746125a0E44976454"),
		SudoValidator:    common.HexToAddress("0x7a0C4d11f7dD3Bfd81C8Aa2e8f5B95bAcB0D54b1"),
		SessionValidator: common.HexToAddress("0x2E9C20a9a2D1E24c8A1A5dA079E4AC5BdE24fEb6"),
		ChainID:          11155111,
	}

	fake := bundlertest.New(cfg)
	resolver := account.NewResolver(cfg, fake)
	installer := account.NewInstaller(resolver, fake, fake, domain.DefaultGasParams())
	vault := store.NewMemoryVault()
	grants := store.NewMemoryGrantStore()

	return &harness{
		svc:       session.New(installer, vault, grants, fake, fake, domain.DefaultGasParams()),
		fake:      fake,
		installer: installer,
		vault:     vault,
		grants:    grants,
		owner:     owner,
		cfg:       cfg,
	}
}

func windowFromNow(d time.Duration) domain.TimeWindowPolicy {
	now := uint64(time.Now().Unix())
	return domain.TimeWindowPolicy{ValidAfter: now - 10, ValidUntil: now + uint64(d.Seconds())}
}

func TestInstall_DeploysAccountAndEnablesKey(t *testing.T) {
	h := newHarness(t)
	target := common.HexToAddress("0x1111111111111111111111111111111111111111")

	res, err := h.svc.Install(context.Background(), h.owner, "user-42", domain.InstallParams{
		Policies: []domain.Policy{
			windowFromNow(time.Hour),
			domain.CallPolicy{Target: target},
		},
	})
	if err != nil {
		t.Fatalf("Install: %v", err)
	}

	if res.Account.Address == (common.Address{}) {
		t.Fatal("account address is zero")
	}
	if !h.fake.Deployed(res.Account.Address) {
		t.Fatal("account was not deployed")
	}
	if !h.fake.SessionEnabled(res.SessionAddress) {
		t.Fatal("session key was not enabled on the validator")
	}
	if res.TxHash == (common.Hash{}) {
		t.Fatal("install tx hash is zero")
	}

	grant, ok, err := h.grants.LoadGrant("user-42")
	if err != nil || !ok {
		t.Fatalf("grant not persisted: ok=%v err=%v", ok, err)
	}
	if grant.SessionAddress != res.SessionAddress {
		t.Fatalf("grant session address %s, want %s", grant.SessionAddress, res.SessionAddress)
	}

	key, ok, err := h.vault.Load("user-42")
	if err != nil || !ok {
		t.Fatalf("vault key missing: ok=%v err=%v", ok, err)
	}
	if key.Address != res.SessionAddress {
		t.Fatalf("vault key address %s, want %s", key.Address, res.SessionAddress)
	}
}

func TestInstall_SecondIdentityReusesDeployment(t *testing.T) {
	h := newHarness(t)
	params := domain.InstallParams{
		Policies:            []domain.Policy{windowFromNow(time.Hour)},
		AllowTimeWindowOnly: true,
	}

	first, err := h.svc.Install(context.Background(), h.owner, "user-1", params)
	if err != nil {
		t.Fatalf("first install: %v", err)
	}
	second, err := h.svc.Install(context.Background(), h.owner, "user-2", params)
	if err != nil {
		t.Fatalf("second install: %v", err)
	}
	if first.Account.Address == second.Account.Address {
		t.Fatal("distinct identities resolved to the same account")
	}
	if first.SessionAddress == second.SessionAddress {
		t.Fatal("distinct identities share a session key")
	}
}

func TestInstall_RejectsPolicySetWithoutWindow(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Install(context.Background(), h.owner, "user-42", domain.InstallParams{
		Policies: []domain.Policy{
			domain.CallPolicy{Target: common.HexToAddress("0x3333333333333333333333333333333333333333")},
		},
	})
	if !fault.IsKind(err, fault.InvalidInput) {
		t.Fatalf("want InvalidInput, got %v", err)
	}
	if len(h.fake.Sent()) != 0 {
		t.Fatal("rejected install reached the bundler")
	}
}

func TestInstall_RejectsElapsedWindow(t *testing.T) {
	h := newHarness(t)
	past := uint64(time.Now().Add(-2 * time.Hour).Unix())

	_, err := h.svc.Install(context.Background(), h.owner, "user-42", domain.InstallParams{
		Policies: []domain.Policy{
			domain.TimeWindowPolicy{ValidAfter: past, ValidUntil: past + 60},
			domain.CallPolicy{Target: common.HexToAddress("0x3333333333333333333333333333333333333333")},
		},
	})
	if !fault.IsKind(err, fault.InvalidInput) {
		t.Fatalf("want InvalidInput, got %v", err)
	}
}

func TestInstall_EmptyCallPoliciesRequireOptIn(t *testing.T) {
	h := newHarness(t)
	params := domain.InstallParams{Policies: []domain.Policy{windowFromNow(time.Hour)}}

	_, err := h.svc.Install(context.Background(), h.owner, "user-42", params)
	if !fault.IsKind(err, fault.InvalidInput) {
		t.Fatalf("want InvalidInput without opt-in, got %v", err)
	}

	params.AllowTimeWindowOnly = true
	if _, err := h.svc.Install(context.Background(), h.owner, "user-42", params); err != nil {
		t.Fatalf("Install with opt-in: %v", err)
	}
}

func TestInstall_ReinstallOverwritesGrant(t *testing.T) {
	h := newHarness(t)
	first := common.HexToAddress("0x1111111111111111111111111111111111111111")
	second := common.HexToAddress("0x2222222222222222222222222222222222222222")

	if _, err := h.svc.Install(context.Background(), h.owner, "user-42", domain.InstallParams{
		Policies: []domain.Policy{windowFromNow(time.Hour), domain.CallPolicy{Target: first}},
	}); err != nil {
		t.Fatalf("first install: %v", err)
	}
	res, err := h.svc.Install(context.Background(), h.owner, "user-42", domain.InstallParams{
		Policies: []domain.Policy{windowFromNow(time.Hour), domain.CallPolicy{Target: second}},
	})
	if err != nil {
		t.Fatalf("second install: %v", err)
	}

	grant, ok, _ := h.grants.LoadGrant("user-42")
	if !ok {
		t.Fatal("grant missing after re-install")
	}
	calls := grant.CallPolicies()
	if len(calls) != 1 || calls[0].Target != second {
		t.Fatalf("grant holds %+v, want single policy for %s", calls, second)
	}

	policies, ok := h.fake.SessionPolicies(res.SessionAddress)
	if !ok || len(policies) != 1 || policies[0].Target != second {
		t.Fatalf("validator holds %+v, want single policy for %s", policies, second)
	}
}

type rejectingSigner struct {
	addr common.Address
}

func (r *rejectingSigner) Address() common.Address { return r.addr }
func (r *rejectingSigner) SignHash(context.Context, common.Hash) ([]byte, error) {
	return nil, domain.ErrOwnerRejected
}

func TestInstall_OwnerDecline(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Install(context.Background(), &rejectingSigner{addr: h.cfg.Owner}, "user-42", domain.InstallParams{
		Policies:            []domain.Policy{windowFromNow(time.Hour)},
		AllowTimeWindowOnly: true,
	})
	if !fault.IsKind(err, fault.AuthorizationRejected) {
		t.Fatalf("want AuthorizationRejected, got %v", err)
	}
	if len(h.fake.Sent()) != 0 {
		t.Fatal("declined install reached the bundler")
	}
}

func TestRotate_ReplacesKeyAndGrant(t *testing.T) {
	h := newHarness(t)
	params := domain.InstallParams{
		Policies:            []domain.Policy{windowFromNow(time.Hour)},
		AllowTimeWindowOnly: true,
	}

	first, err := h.svc.Install(context.Background(), h.owner, "user-42", params)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	rotated, err := h.svc.Rotate(context.Background(), h.owner, "user-42", params)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if rotated.SessionAddress == first.SessionAddress {
		t.Fatal("rotate kept the old session key")
	}
	if !h.fake.SessionEnabled(rotated.SessionAddress) {
		t.Fatal("rotated key not enabled on the validator")
	}
	grant, ok, _ := h.grants.LoadGrant("user-42")
	if !ok || grant.SessionAddress != rotated.SessionAddress {
		t.Fatalf("grant holds %s, want %s", grant.SessionAddress, rotated.SessionAddress)
	}
}

func TestRevoke_DisablesKeyAndDeletesGrant(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.Install(context.Background(), h.owner, "user-42", domain.InstallParams{
		Policies:            []domain.Policy{windowFromNow(time.Hour)},
		AllowTimeWindowOnly: true,
	})
	if err != nil {
		t.Fatalf("install: %v", err)
	}

	txHash, err := h.svc.Revoke(context.Background(), h.owner, "user-42")
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if txHash == (common.Hash{}) {
		t.Fatal("revoke tx hash is zero")
	}
	if h.fake.SessionEnabled(res.SessionAddress) {
		t.Fatal("session key still enabled after revoke")
	}
	if _, ok, _ := h.grants.LoadGrant("user-42"); ok {
		t.Fatal("grant survived revoke")
	}
}

func TestRevoke_UnknownIdentity(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Revoke(context.Background(), h.owner, "nobody")
	if !fault.IsKind(err, fault.InvalidInput) {
		t.Fatalf("want InvalidInput, got %v", err)
	}
}

func TestRotate_DeclinedLeavesCurrentKeyUsable(t *testing.T) {
	h := newHarness(t)
	params := domain.InstallParams{
		Policies:            []domain.Policy{windowFromNow(time.Hour)},
		AllowTimeWindowOnly: true,
	}

	first, err := h.svc.Install(context.Background(), h.owner, "user-42", params)
	if err != nil {
		t.Fatalf("install: %v", err)
	}

	_, err = h.svc.Rotate(context.Background(), &rejectingSigner{addr: h.cfg.Owner}, "user-42", params)
	if !fault.IsKind(err, fault.AuthorizationRejected) {
		t.Fatalf("want AuthorizationRejected, got %v", err)
	}

	key, ok, err := h.vault.Load("user-42")
	if err != nil || !ok {
		t.Fatalf("vault lost the key after declined rotate: ok=%v err=%v", ok, err)
	}
	if key.Address != first.SessionAddress {
		t.Fatalf("vault holds %s after declined rotate, want %s", key.Address, first.SessionAddress)
	}
	grant, ok, _ := h.grants.LoadGrant("user-42")
	if !ok || grant.SessionAddress != first.SessionAddress {
		t.Fatalf("grant holds %s after declined rotate, want %s", grant.SessionAddress, first.SessionAddress)
	}
	if !h.fake.SessionEnabled(first.SessionAddress) {
		t.Fatal("original session key no longer enabled")
	}
}

type failingVault struct{ err error }

func (v *failingVault) GetOrCreate(domain.Identity) (domain.SessionKey, error) {
	return domain.SessionKey{}, v.err
}
func (v *failingVault) Load(domain.Identity) (domain.SessionKey, bool, error) {
	return domain.SessionKey{}, false, v.err
}
func (v *failingVault) Save(domain.Identity, domain.SessionKey) error { return v.err }
func (v *failingVault) Rotate(domain.Identity) (domain.SessionKey, error) {
	return domain.SessionKey{}, v.err
}

var _ domain.Vault = (*failingVault)(nil)

// A vault failure is local state, not a network condition; it must not come
// back classified as retryable.
func TestInstall_VaultFailureIsNotNetwork(t *testing.T) {
	h := newHarness(t)
	svc := session.New(h.installer, &failingVault{err: errors.New("wrong passphrase")},
		h.grants, h.fake, h.fake, domain.DefaultGasParams())

	_, err := svc.Install(context.Background(), h.owner, "user-42", domain.InstallParams{
		Policies:            []domain.Policy{windowFromNow(time.Hour)},
		AllowTimeWindowOnly: true,
	})
	if err == nil {
		t.Fatal("want error from failing vault")
	}
	if fault.IsKind(err, fault.NetworkUnavailable) {
		t.Fatalf("vault failure classified as NetworkUnavailable: %v", err)
	}
}
