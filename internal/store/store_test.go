package store_test

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"agentpay/internal/domain"
	"agentpay/internal/store"
)

func TestFileVault_GetOrCreatePersists(t *testing.T) {
	dir := t.TempDir()
	v := store.NewFileVault(dir, "vault-pass")

	key, err := v.GetOrCreate("user-1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if key.Priv.IsZero() || key.Address == (common.Address{}) || key.RecordID == "" {
		t.Fatal("incomplete session key")
	}

	// A new vault handle over the same dir sees the same key.
	again, err := store.NewFileVault(dir, "vault-pass").GetOrCreate("user-1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if again.Address != key.Address || again.Priv != key.Priv {
		t.Fatal("key changed across vault reopen")
	}
}

func TestFileVault_ConcurrentFirstCreateConverges(t *testing.T) {
	v := store.NewFileVault(t.TempDir(), "vault-pass")

	const n = 32
	keys := make([]domain.SessionKey, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k, err := v.GetOrCreate("brand-new")
			if err != nil {
				t.Errorf("GetOrCreate: %v", err)
				return
			}
			keys[i] = k
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if keys[i].Address != keys[0].Address {
			t.Fatalf("caller %d observed a different key", i)
		}
	}
}

func TestFileVault_OneRecordPerIdentity(t *testing.T) {
	dir := t.TempDir()
	v := store.NewFileVault(dir, "vault-pass")
	if _, err := v.GetOrCreate("solo"); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, err := v.GetOrCreate("solo"); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	count := 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".enc") {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("want exactly one vault record, got %d", count)
	}
}

func TestFileVault_RecordIsEncryptedAndPrivate(t *testing.T) {
	dir := t.TempDir()
	v := store.NewFileVault(dir, "vault-pass")
	key, err := v.GetOrCreate("secret-holder")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("want one file, got %d", len(entries))
	}
	info, err := entries[0].Info()
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("want 0600 perms, got %v", info.Mode().Perm())
	}

	blob, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	// Neither the identity nor the address appears in the sealed blob.
	if strings.Contains(string(blob), "secret-holder") {
		t.Fatal("identity visible in vault file")
	}
	if strings.Contains(strings.ToLower(string(blob)), strings.ToLower(key.Address.Hex()[2:])) {
		t.Fatal("address visible in vault file")
	}
}

func TestFileVault_WrongPassphraseFails(t *testing.T) {
	dir := t.TempDir()
	if _, err := store.NewFileVault(dir, "correct").GetOrCreate("user"); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, _, err := store.NewFileVault(dir, "wrong").Load("user"); err == nil {
		t.Fatal("expected decryption failure with wrong passphrase")
	}
}

func TestFileVault_RotateReplacesKey(t *testing.T) {
	v := store.NewFileVault(t.TempDir(), "vault-pass")
	before, err := v.GetOrCreate("rotating")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	after, err := v.Rotate("rotating")
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if after.Address == before.Address {
		t.Fatal("rotation did not change the key")
	}
	loaded, ok, err := v.Load("rotating")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if loaded.Address != after.Address {
		t.Fatal("loaded key is not the rotated one")
	}
}

func TestFileVault_LoadAbsent(t *testing.T) {
	v := store.NewFileVault(t.TempDir(), "vault-pass")
	_, ok, err := v.Load("nobody")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("absent identity reported present")
	}
}

func TestMemoryVault_Converges(t *testing.T) {
	v := store.NewMemoryVault()
	const n = 16
	addrs := make([]common.Address, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k, err := v.GetOrCreate("fresh")
			if err != nil {
				t.Errorf("GetOrCreate: %v", err)
				return
			}
			addrs[i] = k.Address
		}(i)
	}
	wg.Wait()
	for i := 1; i < n; i++ {
		if addrs[i] != addrs[0] {
			t.Fatal("memory vault returned divergent keys")
		}
	}
}

func TestFileGrantStore_RoundTripAndOverwrite(t *testing.T) {
	s := store.NewFileGrantStore(t.TempDir())

	first := domain.Grant{
		Identity:       "user-1",
		SessionAddress: common.HexToAddress("0xaaaa"),
		Policies: []domain.Policy{
			domain.TimeWindowPolicy{ValidAfter: 100, ValidUntil: 200},
			domain.CallPolicy{Target: common.HexToAddress("0xbbbb"), ValueLimit: big.NewInt(5)},
		},
		InstalledAt: time.Now().UTC().Truncate(time.Second),
		TxHash:      common.HexToHash("0x01"),
	}
	if err := s.SaveGrant("user-1", first); err != nil {
		t.Fatalf("SaveGrant: %v", err)
	}

	got, ok, err := s.LoadGrant("user-1")
	if err != nil || !ok {
		t.Fatalf("LoadGrant: ok=%v err=%v", ok, err)
	}
	if got.SessionAddress != first.SessionAddress || len(got.Policies) != 2 {
		t.Fatal("grant did not round-trip")
	}
	w, ok := got.Window()
	if !ok || w.ValidUntil != 200 {
		t.Fatal("time window lost in round trip")
	}
	cps := got.CallPolicies()
	if len(cps) != 1 || cps[0].ValueLimit.Cmp(big.NewInt(5)) != 0 {
		t.Fatal("call policy lost in round trip")
	}

	// Last write wins.
	second := first
	second.Policies = []domain.Policy{domain.TimeWindowPolicy{ValidAfter: 300, ValidUntil: 400}}
	if err := s.SaveGrant("user-1", second); err != nil {
		t.Fatalf("SaveGrant: %v", err)
	}
	got, _, err = s.LoadGrant("user-1")
	if err != nil {
		t.Fatalf("LoadGrant: %v", err)
	}
	w, _ = got.Window()
	if w.ValidAfter != 300 {
		t.Fatal("second grant did not supersede the first")
	}
}

func TestFileGrantStore_Delete(t *testing.T) {
	s := store.NewFileGrantStore(t.TempDir())
	g := domain.Grant{Identity: "user-1", Policies: []domain.Policy{domain.TimeWindowPolicy{ValidUntil: 1}}}
	if err := s.SaveGrant("user-1", g); err != nil {
		t.Fatalf("SaveGrant: %v", err)
	}
	if err := s.DeleteGrant("user-1"); err != nil {
		t.Fatalf("DeleteGrant: %v", err)
	}
	_, ok, err := s.LoadGrant("user-1")
	if err != nil {
		t.Fatalf("LoadGrant: %v", err)
	}
	if ok {
		t.Fatal("grant still present after delete")
	}
}
