// Package credential supplies and revokes the opaque API token used by the
// remote client.
//
// Tokens come from a file in the user's config directory (written by
// `practice login`) or from an environment variable. A Chain tries
// providers in order and reports ErrNoCredential only when every provider
// is empty.
package credential

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Provider supplies an API credential.
type Provider interface {
	// Token returns the current credential. It returns ErrNoCredential when
	// nothing is stored and ErrStorageUnavailable when the store fails.
	Token() (string, error)
}

// FileStore keeps a single token in a file readable only by its owner.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path. The file need not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Token reads the stored credential.
func (s *FileStore) Token() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

// Save writes token to the store, replacing any previous value.
func (s *FileStore) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("empty credential")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	// Write to a sibling and rename so watchers never see a half-written file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// Revoke deletes the stored credential. Revoking an empty store is not an error.
func (s *FileStore) Revoke() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// EnvProvider reads the credential from an environment variable.
type EnvProvider struct {
	Name string
}

// Token returns the variable's value.
func (p EnvProvider) Token() (string, error) {
	if p.Name == "" {
		return "", ErrNoCredential
	}
	token := strings.TrimSpace(os.Getenv(p.Name))
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

// Chain tries each provider in order.
type Chain []Provider

// Token returns the first credential found. A provider failing with anything
// other than ErrNoCredential stops the chain.
func (c Chain) Token() (string, error) {
	for _, p := range c {
		if p == nil {
			continue
		}
		token, err := p.Token()
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, ErrNoCredential) {
			return "", err
		}
	}
	return "", ErrNoCredential
}

// Static is a fixed credential, mostly useful in tests.
type Static string

// Token returns the fixed value.
func (s Static) Token() (string, error) {
	if s == "" {
		return "", ErrNoCredential
	}
	return string(s), nil
}
