package store

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"agentpay/internal/domain"
	"agentpay/internal/sessionkey"
)

// keyRecord is the plaintext layout inside a vault envelope. It exists only
// within this package; callers see domain.SessionKey.
type keyRecord struct {
	RecordID  string         `json:"id"`
	Identity  string         `json:"identity"`
	Priv      [32]byte       `json:"priv"`
	Address   common.Address `json:"address"`
	CreatedAt time.Time      `json:"createdAt"`
}

// FileVault is the durable session-key vault: one encrypted record per
// identity under dir, sealed with an Argon2id-derived key. Creation is
// serialised per identity, so concurrent first-time callers converge on a
// single key.
type FileVault struct {
	dir        string
	passphrase string

	mu    sync.Mutex
	locks map[domain.Identity]*sync.Mutex
}

// NewFileVault opens a vault rooted at dir.
func NewFileVault(dir, passphrase string) *FileVault {
	return &FileVault{
		dir:        dir,
		passphrase: passphrase,
		locks:      make(map[domain.Identity]*sync.Mutex),
	}
}

// GetOrCreate returns the identity's key, generating and persisting one if
// absent. Exactly one key ever exists per identity within a vault.
func (v *FileVault) GetOrCreate(identity domain.Identity) (domain.SessionKey, error) {
	if identity == "" {
		return domain.SessionKey{}, errors.New("vault: empty identity")
	}
	lock := v.lockFor(identity)
	lock.Lock()
	defer lock.Unlock()

	key, ok, err := v.load(identity)
	if err != nil {
		return domain.SessionKey{}, err
	}
	if ok {
		return key, nil
	}
	return v.createLocked(identity)
}

// Load returns the identity's key if present.
func (v *FileVault) Load(identity domain.Identity) (domain.SessionKey, bool, error) {
	lock := v.lockFor(identity)
	lock.Lock()
	defer lock.Unlock()
	return v.load(identity)
}

// Save persists a key provisioned out of band.
func (v *FileVault) Save(identity domain.Identity, key domain.SessionKey) error {
	if identity == "" {
		return errors.New("vault: empty identity")
	}
	lock := v.lockFor(identity)
	lock.Lock()
	defer lock.Unlock()
	return v.save(identity, key)
}

// Rotate replaces the identity's key with a fresh one. The previous grant
// remains valid on-chain until revoked or expired; callers are expected to
// follow with a session re-install and revocation.
func (v *FileVault) Rotate(identity domain.Identity) (domain.SessionKey, error) {
	if identity == "" {
		return domain.SessionKey{}, errors.New("vault: empty identity")
	}
	lock := v.lockFor(identity)
	lock.Lock()
	defer lock.Unlock()
	return v.createLocked(identity)
}

func (v *FileVault) lockFor(identity domain.Identity) *sync.Mutex {
	v.mu.Lock()
	defer v.mu.Unlock()
	m, ok := v.locks[identity]
	if !ok {
		m = &sync.Mutex{}
		v.locks[identity] = m
	}
	return m
}

func (v *FileVault) createLocked(identity domain.Identity) (domain.SessionKey, error) {
	priv, addr, err := sessionkey.Generate()
	if err != nil {
		return domain.SessionKey{}, err
	}
	key := domain.SessionKey{
		RecordID:  uuid.NewString(),
		Identity:  identity,
		Address:   addr,
		Priv:      priv,
		CreatedAt: time.Now().UTC(),
	}
	if err := v.save(identity, key); err != nil {
		return domain.SessionKey{}, err
	}
	return key, nil
}

func (v *FileVault) save(identity domain.Identity, key domain.SessionKey) error {
	rec := keyRecord{
		RecordID:  key.RecordID,
		Identity:  string(identity),
		Priv:      [32]byte(key.Priv),
		Address:   key.Address,
		CreatedAt: key.CreatedAt,
	}
	plain, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("vault: encode record: %w", err)
	}
	blob, err := seal(v.passphrase, plain)
	if err != nil {
		return fmt.Errorf("vault: seal record: %w", err)
	}
	return writeFile(v.path(identity), blob, 0o600)
}

func (v *FileVault) load(identity domain.Identity) (domain.SessionKey, bool, error) {
	blob, err := os.ReadFile(v.path(identity))
	if errors.Is(err, os.ErrNotExist) {
		return domain.SessionKey{}, false, nil
	}
	if err != nil {
		return domain.SessionKey{}, false, err
	}
	plain, err := open(v.passphrase, blob)
	if err != nil {
		return domain.SessionKey{}, false, fmt.Errorf("vault: open record: %w", err)
	}
	var rec keyRecord
	if err := json.Unmarshal(plain, &rec); err != nil {
		return domain.SessionKey{}, false, fmt.Errorf("vault: decode record: %w", err)
	}
	return domain.SessionKey{
		RecordID:  rec.RecordID,
		Identity:  domain.Identity(rec.Identity),
		Address:   rec.Address,
		Priv:      domain.SecretScalar(rec.Priv),
		CreatedAt: rec.CreatedAt,
	}, true, nil
}

// path maps an identity to a stable filename without exposing the identity
// string in the directory listing.
func (v *FileVault) path(identity domain.Identity) string {
	sum := blake3.Sum256([]byte(identity))
	return filepath.Join(v.dir, "sk-"+hex.EncodeToString(sum[:12])+".enc")
}

// Compile-time assertion that FileVault implements domain.Vault.
var _ domain.Vault = (*FileVault)(nil)
