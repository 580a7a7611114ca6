package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/schedula/domain/entities"
	"github.com/satriahrh/schedula/domain/repositories"
)

// ErrNotAuthenticated is returned when an operation needs a signed-in user
var ErrNotAuthenticated = errors.New("not authenticated")

// AuthService signs users in and out and keeps their credentials in a store
type AuthService struct {
	backend repositories.AuthBackend
	store   repositories.CredentialStore
	logger  *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(backend repositories.AuthBackend, store repositories.CredentialStore, logger *zap.Logger) *AuthService {
	return &AuthService{
		backend: backend,
		store:   store,
		logger:  logger,
	}
}

// Login signs in with email and password and stores the returned credentials
func (s *AuthService) Login(ctx context.Context, email, password string) (*entities.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}

	creds, err := s.backend.Login(ctx, email, password)
	if err != nil {
		s.logger.Warn("Login failed", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	if err := s.store.Save(creds); err != nil {
		return nil, fmt.Errorf("save credentials: %w", err)
	}

	s.logger.Info("User signed in", zap.String("userID", creds.UserID()))
	return creds.User, nil
}

// Signup creates an account and signs in as it
func (s *AuthService) Signup(ctx context.Context, name, email, password string) (*entities.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return nil, errors.New("name, email and password are required")
	}

	creds, err := s.backend.Signup(ctx, name, email, password)
	if err != nil {
		s.logger.Warn("Signup failed", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	if err := s.store.Save(creds); err != nil {
		return nil, fmt.Errorf("save credentials: %w", err)
	}

	s.logger.Info("Account created", zap.String("userID", creds.UserID()))
	return creds.User, nil
}

// Logout forgets the local credentials first, then tells the backend. A backend
// failure is logged; the user is signed out locally either way.
func (s *AuthService) Logout(ctx context.Context) error {
	creds := s.store.Credentials()
	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}

	if creds.Token != "" {
		if err := s.backend.Logout(ctx, creds.Token); err != nil {
			s.logger.Warn("Backend logout failed", zap.Error(err))
		}
	}

	s.logger.Info("User signed out", zap.String("userID", creds.UserID()))
	return nil
}

// Validate confirms the stored token with the backend and refreshes the stored
// user. Any non-2xx answer clears the store; transport errors keep it.
func (s *AuthService) Validate(ctx context.Context) (*entities.User, error) {
	creds := s.store.Credentials()
	if creds.Token == "" {
		return nil, ErrNotAuthenticated
	}

	user, err := s.backend.Validate(ctx, creds.Token)
	if err != nil {
		if errors.Is(err, repositories.ErrRejected) {
			s.logger.Info("Stored token rejected, clearing credentials", zap.Error(err))
			if clearErr := s.store.Clear(); clearErr != nil {
				s.logger.Error("Failed to clear credentials", zap.Error(clearErr))
			}
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("validate credentials: %w", err)
	}

	creds.User = user
	if err := s.store.Save(creds); err != nil {
		return nil, fmt.Errorf("save credentials: %w", err)
	}
	return user, nil
}

// Current returns the stored credentials without contacting the backend
func (s *AuthService) Current() entities.Credentials {
	return s.store.Credentials()
}
