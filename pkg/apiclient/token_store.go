package apiclient

import (
	"os"
	"strings"
	"sync"
)

// TokenStore holds the short-lived access token between requests. The refresh
// token never passes through here; it lives in the HTTP client's cookie jar.
type TokenStore interface {
	// AccessToken returns the current token, or "" when logged out.
	AccessToken() string
	// SetAccessToken replaces the current token.
	SetAccessToken(token string) error
	// Clear drops the current token.
	Clear() error
}

// MemoryTokenStore keeps the access token in process memory.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryTokenStore returns an empty in-memory store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *MemoryTokenStore) SetAccessToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	return s.SetAccessToken("")
}

// FileTokenStore mirrors the access token to a file so a restarted process can
// resume with its last token instead of forcing an immediate refresh. The file
// is written with owner-only permissions.
type FileTokenStore struct {
	mu    sync.Mutex
	path  string
	token string
}

// NewFileTokenStore loads any previously mirrored token from path.
func NewFileTokenStore(path string) (*FileTokenStore, error) {
	s := &FileTokenStore{path: path}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		s.token = strings.TrimSpace(string(data))
	case os.IsNotExist(err):
		// first run
	default:
		return nil, err
	}

	return s, nil
}

func (s *FileTokenStore) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *FileTokenStore) SetAccessToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		return err
	}
	s.token = token
	return nil
}

func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	s.token = ""
	return nil
}
