// Package auth handles the Google OAuth login flow and token storage.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
)

// FileTokenStore is a file-based implementation of token storage.
type FileTokenStore struct {
	Path string
}

// NewFileTokenStore creates a new FileTokenStore with the given path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{Path: path}
}

// SaveToken saves an OAuth token to the file at store.Path. The file is
// replaced atomically so a concurrent reader never sees a partial token.
func (store *FileTokenStore) SaveToken(token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(store.Path), ".token-*")
	if err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), store.Path); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

// LoadToken loads an OAuth token from the file at store.Path.
// Returns nil, nil if the file does not exist (no error).
func (store *FileTokenStore) LoadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(store.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	return &token, nil
}

// Session serializes use of a stored token: a caller holds it for the
// whole load, use and save cycle so concurrent requests never refresh and
// save over each other.
type Session struct {
	mu    sync.Mutex
	store TokenStore
}

// NewSession wraps store.
func NewSession(store TokenStore) *Session {
	return &Session{store: store}
}

// Use loads the token, passes it to fn and saves whatever token fn
// returns. A nil stored token is passed through as nil.
func (s *Session) Use(fn func(tok *oauth2.Token) *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.store.LoadToken()
	if err != nil {
		return err
	}

	before := snapshot(tok)
	after := fn(tok)
	if after == nil || snapshot(after) == before {
		return nil
	}
	return s.store.SaveToken(after)
}

type tokenState struct {
	access, refresh string
	expiry          int64
}

func snapshot(tok *oauth2.Token) tokenState {
	if tok == nil {
		return tokenState{}
	}
	return tokenState{access: tok.AccessToken, refresh: tok.RefreshToken, expiry: tok.Expiry.UnixNano()}
}
