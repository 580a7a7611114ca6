package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/satriahrh/schedula/domain/entities"
	"github.com/satriahrh/schedula/domain/repositories"
)

var _ repositories.AuthBackend = (*Client)(nil)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

// Login exchanges email and password for an access token
func (c *Client) Login(ctx context.Context, email, password string) (entities.Credentials, error) {
	result, err := c.do(ctx, http.MethodPost, "/auth/login", "", loginRequest{Email: email, Password: password})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			return entities.Credentials{}, repositories.ErrInvalidCredentials
		}
		return entities.Credentials{}, fmt.Errorf("login: %w", err)
	}

	creds := entities.Credentials{
		Token: result.Get("access_token").String(),
		User: &entities.User{
			ID:    result.Get("user_id").String(),
			Name:  result.Get("display_name").String(),
			Email: result.Get("email").String(),
		},
	}
	if creds.Token == "" || creds.User.ID == "" {
		return entities.Credentials{}, fmt.Errorf("login: %w: missing token or user", ErrInvalidResponse)
	}
	return creds, nil
}

// Signup creates an account and returns its credentials
func (c *Client) Signup(ctx context.Context, name, email, password string) (entities.Credentials, error) {
	result, err := c.do(ctx, http.MethodPost, "/auth/signup", "", signupRequest{DisplayName: name, Email: email, Password: password})
	if err != nil {
		return entities.Credentials{}, fmt.Errorf("signup: %w", err)
	}

	creds := entities.Credentials{
		Token: result.Get("token").String(),
		User:  userFrom(result.Get("user")),
	}
	if creds.Token == "" || creds.User == nil {
		return entities.Credentials{}, fmt.Errorf("signup: %w: missing token or user", ErrInvalidResponse)
	}
	return creds, nil
}

// Logout revokes token on the backend
func (c *Client) Logout(ctx context.Context, token string) error {
	if _, err := c.do(ctx, http.MethodPost, "/auth/logout", token, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Validate returns the user a token belongs to
func (c *Client) Validate(ctx context.Context, token string) (*entities.User, error) {
	result, err := c.do(ctx, http.MethodGet, "/auth/validate", token, nil)
	if err != nil {
		return nil, fmt.Errorf("validate token: %w", err)
	}

	user := userFrom(result.Get("user"))
	if user == nil {
		return nil, fmt.Errorf("validate token: %w: missing user", ErrInvalidResponse)
	}
	return user, nil
}

func userFrom(v gjson.Result) *entities.User {
	if !v.IsObject() || v.Get("id").String() == "" {
		return nil
	}
	return &entities.User{
		ID:    v.Get("id").String(),
		Name:  v.Get("name").String(),
		Email: v.Get("email").String(),
	}
}
