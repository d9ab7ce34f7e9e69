// Package auth is the client for the plain request/response auth
// endpoints and the token store both it and the chat session share.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotAuthenticated is returned when the server answers 401.
var ErrNotAuthenticated = errors.New("not authenticated")

// Client talks to the auth collaborator. Every outgoing request
// carries the stored token in the Authorization header.
type Client struct {
	base   string
	http   *http.Client
	tokens TokenStore
	log    *zerolog.Logger
}

// NewClient builds a client for the given base URL.
func NewClient(base string, tokens TokenStore, logger *zerolog.Logger) *Client {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		base:   base,
		http:   &http.Client{Timeout: 15 * time.Second},
		tokens: tokens,
		log:    logger,
	}
}

// LoginRequest is the login request body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the registration request body.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries the issued token.
type AuthResponse struct {
	Token string `json:"token"`
}

// Profile is the current account as reported by the server.
type Profile struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Login authenticates and stores the issued token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp AuthResponse
	err := c.do(ctx, http.MethodPost, "/login", LoginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return "", err
	}
	if err := c.tokens.SetToken(resp.Token); err != nil {
		return "", err
	}
	c.log.Info().Str("username", username).Msg("logged in")
	return resp.Token, nil
}

// Register creates an account and stores the issued token.
func (c *Client) Register(ctx context.Context, username, email, password string) (string, error) {
	var resp AuthResponse
	err := c.do(ctx, http.MethodPost, "/register", RegisterRequest{Username: username, Email: email, Password: password}, &resp)
	if err != nil {
		return "", err
	}
	if err := c.tokens.SetToken(resp.Token); err != nil {
		return "", err
	}
	c.log.Info().Str("username", username).Msg("registered")
	return resp.Token, nil
}

// Logout ends the server session and clears the stored token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/logout", nil, nil); err != nil {
		return err
	}
	return c.tokens.Clear()
}

// Me fetches the current profile. ErrNotAuthenticated when the stored
// token is missing or rejected.
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodGet, "/profile", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.tokens.Token(); tok != "" {
		req.Header.Set("Authorization", "Token "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrNotAuthenticated
	}
	if resp.StatusCode >= 400 {
		var apiErr errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
