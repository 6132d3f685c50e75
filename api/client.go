package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/veloflux/go-session/tenants"
	"github.com/veloflux/go-session/users"
)

// Backend endpoint paths, exactly as served by the VeloFlux API.
const (
	RouteAuthLogin   = "/auth/login"
	RouteAuthRefresh = "/auth/refresh"
	RouteProfile     = "/api/profile"
	RouteTenants     = "/api/tenants"
)

const defaultTimeout = 30 * time.Second

// LoginResponse is the /auth/login payload. Current backends return only
// the token; legacy backends also inline the user identity.
type LoginResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
}

type refreshResponse struct {
	Token string `json:"token"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileUpdateRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Client talks to the VeloFlux backend REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	csrf       *CSRFProvider
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client (primarily for
// tests and custom transports).
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithCSRFProvider attaches a CSRF token source; when set, every request
// carries an X-CSRF-Token header.
func WithCSRFProvider(csrf *CSRFProvider) ClientOption {
	return func(c *Client) {
		c.csrf = csrf
	}
}

// NewClient creates a Client for the backend at baseURL.
func NewClient(baseURL string, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var res LoginResponse
	err := c.doJSON(ctx, http.MethodPost, RouteAuthLogin, "", loginRequest{Email: email, Password: password}, &res)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Login]")
	}
	if res.Token == "" {
		return nil, errors.New("[Client.Login] backend returned no token")
	}
	return &res, nil
}

// Refresh exchanges the current token for a fresh one.
func (c *Client) Refresh(ctx context.Context, token string) (string, error) {
	var res refreshResponse
	err := c.doJSON(ctx, http.MethodPost, RouteAuthRefresh, token, nil, &res)
	if err != nil {
		return "", errors.Wrap(err, "[Client.Refresh]")
	}
	if res.Token == "" {
		return "", errors.New("[Client.Refresh] backend returned no token")
	}
	return res.Token, nil
}

// Profile fetches the profile of the token's user.
func (c *Client) Profile(ctx context.Context, token string) (*users.User, error) {
	var user users.User
	err := c.doJSON(ctx, http.MethodGet, RouteProfile, token, nil, &user)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Profile]")
	}
	return &user, nil
}

// UpdateProfile updates the user's name and returns the updated profile.
func (c *Client) UpdateProfile(ctx context.Context, token, firstName, lastName string) (*users.User, error) {
	var user users.User
	err := c.doJSON(ctx, http.MethodPut, RouteProfile, token, profileUpdateRequest{FirstName: firstName, LastName: lastName}, &user)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.UpdateProfile]")
	}
	return &user, nil
}

// Tenants lists the tenants visible to the token's user.
func (c *Client) Tenants(ctx context.Context, token string) ([]*tenants.Tenant, error) {
	var list []*tenants.Tenant
	err := c.doJSON(ctx, http.MethodGet, RouteTenants, token, nil, &list)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Tenants]")
	}
	return list, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if c.csrf != nil {
		csrfToken, err := c.csrf.Token()
		if err != nil {
			log.Warn().Err(err).Msg("request sent without CSRF token")
		} else {
			req.Header.Set(csrfHeader, csrfToken)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func statusError(path string, status int) error {
	switch {
	case path == RouteAuthLogin && (status == http.StatusUnauthorized || status == http.StatusForbidden):
		return InvalidCredentialsErr
	case status == http.StatusUnauthorized:
		return UnauthorizedErr
	case status >= 500:
		return fmt.Errorf("%w: status %d", ServerErr, status)
	default:
		return fmt.Errorf("unexpected status %d", status)
	}
}
