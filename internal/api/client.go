// Package api is the typed HTTP client for the dashboard backend.
//
// The session core never builds requests itself — it calls the named
// operations below. Each operation maps 1:1 to a backend endpoint:
//
//	GET   /user/me                      → Me
//	POST  /auth/login    (basic auth)   → Login
//	GET   /auth/callback?code=…         → Callback
//	POST  /auth/logout?isso_token=…     → Logout
//	PATCH /user/me                      → UpdateMe
//	GET   /contributor                  → Contributors
//	GET   /user/viewpoint               → ViewPoints
//
// Authenticated calls carry the primary token as a bearer credential.
// The token lives in the session manager, which is constructed after
// this client — so the client reads it through an injected TokenSource
// instead of holding a copy that would go stale on login/logout.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tuic/dashboard-session/internal/apperror"
	"github.com/tuic/dashboard-session/internal/model"
)

// TokenSource yields the current primary token, or "" when there is no
// authenticated session.
type TokenSource func() string

// Client talks to the dashboard backend.
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenSource
}

// New creates a Client for the backend at baseURL (no trailing slash).
// token may be nil for a client that only performs login calls.
func New(baseURL string, token TokenSource) *Client {
	if token == nil {
		token = func() string { return "" }
	}
	return &Client{
		baseURL: baseURL,
		// The UI event loop has no cancellation of its own; a hung
		// backend must not hang the client forever.
		http:  &http.Client{Timeout: 30 * time.Second},
		token: token,
	}
}

// LoginResponse is the shared payload returned by both login endpoints.
// isso_token is present only when the session is tied to a TaipeiPass
// identity-provider session.
type LoginResponse struct {
	Token     string     `json:"token"`
	IssoToken string     `json:"isso_token"`
	User      model.User `json:"user"`
}

// meResponse wraps the user record the way /user/me returns it.
type meResponse struct {
	User model.User `json:"user"`
}

// Me fetches the canonical current user using the stored primary token.
//
// A 401 means the token the store handed us is no longer accepted —
// that is a stale session, not a generic transport failure, and callers
// (the bootstrapper) need to tell the two apart.
func (c *Client) Me(ctx context.Context) (model.User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/user/me", nil, nil)
	if err != nil {
		return model.User{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return model.User{}, apperror.Transport("fetching current user", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return model.User{}, apperror.StaleSession(statusError(resp))
	}
	if resp.StatusCode != http.StatusOK {
		return model.User{}, apperror.Transport("fetching current user", statusError(resp))
	}

	var body meResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.User{}, apperror.Transport("decoding current user", err)
	}
	return body.User, nil
}

// Login exchanges account/secret for a session via basic auth.
func (c *Client) Login(ctx context.Context, account, secret string) (*LoginResponse, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/login", nil, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(account, secret)

	return c.doLogin(req, "logging in")
}

// Callback exchanges a federated authorization code for a session.
//
// code must already be sanitized by the caller (trimmed and
// percent-encoded); it travels as an ordinary query parameter value.
func (c *Client) Callback(ctx context.Context, code string) (*LoginResponse, error) {
	params := url.Values{}
	params.Set("code", code)

	req, err := c.newRequest(ctx, http.MethodGet, "/auth/callback", params, nil)
	if err != nil {
		return nil, err
	}

	return c.doLogin(req, "exchanging authorization code")
}

// Logout invalidates the federated identity-provider session.
func (c *Client) Logout(ctx context.Context, issoToken string) error {
	params := url.Values{}
	params.Set("isso_token", issoToken)

	req, err := c.newRequest(ctx, http.MethodPost, "/auth/logout", params, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperror.Transport("remote logout", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperror.Transport("remote logout", statusError(resp))
	}
	return nil
}

// UpdateMe sends a partial user update. The backend applies the fields
// and the caller re-fetches /user/me for the confirmed record — no
// optimistic decoding of this response.
func (c *Client) UpdateMe(ctx context.Context, draft model.User) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("api: encoding user update: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPatch, "/user/me", nil, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperror.Transport("updating user info", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperror.Transport("updating user info", statusError(resp))
	}
	return nil
}

// doLogin executes a request whose response carries the shared login
// payload shape.
func (c *Client) doLogin(req *http.Request, op string) (*LoginResponse, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperror.Transport(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperror.Transport(op, statusError(resp))
	}

	var body LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperror.Transport(op, err)
	}
	return &body, nil
}

// newRequest builds a request against the backend, attaching the bearer
// token when one is available.
func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("api: building %s %s: %w", method, path, err)
	}

	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func statusError(resp *http.Response) error {
	return fmt.Errorf("backend returned status %d", resp.StatusCode)
}
