package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arlenko/mira/pkg/types"
)

type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *types.User `json:"user"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates with username and password. On success the returned
// token is installed on the client for subsequent requests.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	body, err := c.makeRequest(ctx, "POST", "/auth/login/", nil, LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	var auth AuthResponse
	if err := json.Unmarshal(body, &auth); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	if auth.Token == "" {
		return nil, fmt.Errorf("login: empty token in response")
	}

	c.SetToken(auth.Token)
	return &auth, nil
}

// Authenticate installs a persisted token after verifying it against the
// remote service. The previous token is restored on failure.
func (c *Client) Authenticate(ctx context.Context, token string) error {
	oldToken := c.Token()
	c.SetToken(token)

	if _, err := c.CurrentUser(ctx); err != nil {
		c.SetToken(oldToken)
		return fmt.Errorf("authenticate: %w", err)
	}
	return nil
}

func (c *Client) CurrentUser(ctx context.Context) (*types.User, error) {
	body, err := c.makeRequest(ctx, "GET", "/users/self/", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}

	var user types.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("decode user response: %w", err)
	}
	return &user, nil
}
