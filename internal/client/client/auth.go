package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/streamflow/internal/common"
	"github.com/dmitrijs2005/streamflow/internal/httperr"
	"github.com/dmitrijs2005/streamflow/internal/rpc"
)

// AuthClient calls the auth service's HTTP API.
type AuthClient struct {
	baseURL string
	http    *http.Client
}

func NewAuthClient(baseURL string, timeout time.Duration) *AuthClient {
	return &AuthClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type loginReply struct {
	Token            string `json:"token"`
	TokenType        string `json:"tokenType"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

// Login exchanges credentials for a session.
func (c *AuthClient) Login(ctx context.Context, email, password string) (*Session, error) {
	var out loginReply
	err := c.do(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Token == "" || !strings.EqualFold(out.TokenType, common.TokenType) {
		return nil, fmt.Errorf("%w: login returned no bearer token", ErrUnexpectedReply)
	}
	return newSession(out.Token)
}

// Logout revokes token.
func (c *AuthClient) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", "", map[string]string{"token": token}, nil)
}

// PasswordChange is the body of a password change.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ChangePassword changes the password of user id, acting as token's owner.
func (c *AuthClient) ChangePassword(ctx context.Context, token, id string, in PasswordChange) (*rpc.User, error) {
	var out rpc.User
	path := "/auth/users/" + url.PathEscape(id) + "/password"
	if err := c.do(ctx, http.MethodPatch, path, token, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *AuthClient) do(ctx context.Context, method, path, token string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerScheme+" "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		var e httperr.Body
		_ = json.Unmarshal(data, &e)
		return httperr.FromStatus(resp.StatusCode, e.Detail)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %w", ErrUnexpectedReply, err)
	}
	return nil
}
