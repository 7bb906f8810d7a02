package credentials

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// FileStore keeps the bearer credential in a local file.
// A missing file means no credential.
type FileStore struct {
	mu   sync.RWMutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Token reads the credential on every call so an external login is picked up
// without restarting.
func (s *FileStore) Token() string {
	if s == nil || s.path == "" {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, err := os.ReadFile(s.path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// Save writes the credential with owner-only permissions
func (s *FileStore) Save(token string) error {
	if s == nil || s.path == "" {
		return errors.New("credential path not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "create credential dir")
	}
	if err := os.WriteFile(s.path, []byte(strings.TrimSpace(token)+"\n"), 0o600); err != nil {
		return errors.Wrap(err, "write credential")
	}
	return nil
}

// Clear removes the stored credential
func (s *FileStore) Clear() error {
	if s == nil || s.path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove credential")
	}
	return nil
}

// Static is a fixed credential, handy for CLI flags and tests
type Static string

func (s Static) Token() string { return string(s) }
