package store

import (
	"path/filepath"
	"sync"

	"agentpay/internal/domain"
)

const grantsFile = "grants.json"

// FileGrantStore persists installed-authorization metadata as one JSON map
// keyed by identity. Grants hold only public material (session address,
// policies, tx hash), so the file is not encrypted.
type FileGrantStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileGrantStore returns a grant store rooted at dir.
func NewFileGrantStore(dir string) *FileGrantStore {
	return &FileGrantStore{dir: dir}
}

func (s *FileGrantStore) SaveGrant(identity domain.Identity, grant domain.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := make(map[string]domain.Grant)
	if _, err := readJSON(s.path(), &m); err != nil {
		return err
	}
	m[string(identity)] = grant
	return writeJSON(s.path(), m, 0o600)
}

func (s *FileGrantStore) LoadGrant(identity domain.Identity) (domain.Grant, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := make(map[string]domain.Grant)
	if _, err := readJSON(s.path(), &m); err != nil {
		return domain.Grant{}, false, err
	}
	g, ok := m[string(identity)]
	return g, ok, nil
}

func (s *FileGrantStore) DeleteGrant(identity domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := make(map[string]domain.Grant)
	found, err := readJSON(s.path(), &m)
	if err != nil || !found {
		return err
	}
	delete(m, string(identity))
	return writeJSON(s.path(), m, 0o600)
}

func (s *FileGrantStore) path() string { return filepath.Join(s.dir, grantsFile) }

// MemoryGrantStore is the in-process grant store for tests.
type MemoryGrantStore struct {
	mu     sync.Mutex
	grants map[domain.Identity]domain.Grant
}

// NewMemoryGrantStore returns an empty in-memory grant store.
func NewMemoryGrantStore() *MemoryGrantStore {
	return &MemoryGrantStore{grants: make(map[domain.Identity]domain.Grant)}
}

func (s *MemoryGrantStore) SaveGrant(identity domain.Identity, grant domain.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[identity] = grant
	return nil
}

func (s *MemoryGrantStore) LoadGrant(identity domain.Identity) (domain.Grant, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[identity]
	return g, ok, nil
}

func (s *MemoryGrantStore) DeleteGrant(identity domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, identity)
	return nil
}

// Compile-time assertions against the domain interfaces.
var (
	_ domain.GrantStore = (*FileGrantStore)(nil)
	_ domain.GrantStore = (*MemoryGrantStore)(nil)
)
