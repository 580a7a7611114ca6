package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/schedula/domain/entities"
	"github.com/satriahrh/schedula/domain/repositories"
)

// FileCredentialStore keeps the signed-in user's token and profile in a JSON file
// readable only by its owner
type FileCredentialStore struct {
	path   string
	logger *zap.Logger
	now    func() time.Time

	mu    sync.RWMutex
	creds entities.Credentials
}

var _ repositories.CredentialStore = (*FileCredentialStore)(nil)

type storedCredentials struct {
	Token string         `json:"token"`
	User  *entities.User `json:"user"`
}

// NewFileCredentialStore opens the store at path. A missing file means signed out;
// an unreadable one is logged and treated the same way.
func NewFileCredentialStore(path string, logger *zap.Logger) *FileCredentialStore {
	s := &FileCredentialStore{path: path, logger: logger, now: time.Now}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		logger.Warn("Failed to read credentials", zap.String("path", path), zap.Error(err))
	default:
		var stored storedCredentials
		if err := json.Unmarshal(data, &stored); err != nil {
			logger.Warn("Ignoring corrupt credentials file", zap.String("path", path), zap.Error(err))
			break
		}
		s.creds = entities.Credentials{Token: stored.Token, User: stored.User}
	}
	return s
}

// Credentials returns the current credentials, or empty ones once the token has expired
func (s *FileCredentialStore) Credentials() entities.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.creds.Token != "" && Expired(s.creds.Token, s.now()) {
		return entities.Credentials{}
	}
	creds := s.creds
	if creds.User != nil {
		user := *creds.User
		creds.User = &user
	}
	return creds
}

// Save replaces the stored credentials
func (s *FileCredentialStore) Save(creds entities.Credentials) error {
	data, err := json.MarshalIndent(storedCredentials{Token: creds.Token, User: creds.User}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace credentials: %w", err)
	}

	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()
	return nil
}

// Clear forgets the credentials in memory and on disk
func (s *FileCredentialStore) Clear() error {
	s.mu.Lock()
	s.creds = entities.Credentials{}
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}
