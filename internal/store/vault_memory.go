package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"agentpay/internal/domain"
	"agentpay/internal/sessionkey"
)

// MemoryVault is the in-process vault backing, used by tests and ephemeral
// deployments. Same serialisation guarantees as FileVault, no durability.
type MemoryVault struct {
	mu   sync.Mutex
	keys map[domain.Identity]domain.SessionKey
}

// NewMemoryVault returns an empty in-memory vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{keys: make(map[domain.Identity]domain.SessionKey)}
}

func (v *MemoryVault) GetOrCreate(identity domain.Identity) (domain.SessionKey, error) {
	if identity == "" {
		return domain.SessionKey{}, errors.New("vault: empty identity")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if key, ok := v.keys[identity]; ok {
		return key, nil
	}
	return v.createLocked(identity)
}

func (v *MemoryVault) Load(identity domain.Identity) (domain.SessionKey, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	key, ok := v.keys[identity]
	return key, ok, nil
}

func (v *MemoryVault) Save(identity domain.Identity, key domain.SessionKey) error {
	if identity == "" {
		return errors.New("vault: empty identity")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys[identity] = key
	return nil
}

func (v *MemoryVault) Rotate(identity domain.Identity) (domain.SessionKey, error) {
	if identity == "" {
		return domain.SessionKey{}, errors.New("vault: empty identity")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.createLocked(identity)
}

func (v *MemoryVault) createLocked(identity domain.Identity) (domain.SessionKey, error) {
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
	v.keys[identity] = key
	return key, nil
}

// Compile-time assertion that MemoryVault implements domain.Vault.
var _ domain.Vault = (*MemoryVault)(nil)
