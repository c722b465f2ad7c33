package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"
)

const (
	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"
	authMarkerCookie   = "auth_status"
	authMarkerValue    = "authenticated"

	defaultTimeout = 10 * time.Second
)

// Client talks to the auth API over HTTP. The cookie jar carries the
// HttpOnly token cookies between calls the way a browser would, and the
// non-HttpOnly marker cookie is what HasAuthMarker inspects.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient builds a client for the auth API at baseURL.
func NewClient(baseURL string) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return &Client{
		base: base,
		http: &http.Client{Jar: jar, Timeout: defaultTimeout},
	}, nil
}

type apiEnvelope struct {
	Success   bool   `json:"success"`
	User      *User  `json:"user"`
	ExpiresAt string `json:"expiresAt"`
	Message   string `json:"message"`
}

// Login authenticates and primes the cookie jar with the session cookies.
func (c *Client) Login(ctx context.Context, email, password string) (*User, time.Time, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	env, err := c.do(ctx, http.MethodPost, "/api/auth/login", body)
	if err != nil {
		return nil, time.Time{}, err
	}
	return env.User, parseExpiry(env.ExpiresAt), nil
}

// Me returns the authenticated user, or ErrUnauthenticated on a 401.
func (c *Client) Me(ctx context.Context) (*User, time.Time, error) {
	env, err := c.do(ctx, http.MethodGet, "/api/auth/me", nil)
	if err != nil {
		return nil, time.Time{}, err
	}
	return env.User, parseExpiry(env.ExpiresAt), nil
}

// Refresh rotates the token pair and returns the new access expiry.
func (c *Client) Refresh(ctx context.Context) (time.Time, error) {
	env, err := c.do(ctx, http.MethodPost, "/api/auth/refresh", nil)
	if err != nil {
		return time.Time{}, err
	}
	return parseExpiry(env.ExpiresAt), nil
}

// Logout revokes the presented refresh token and drops the cookies.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil)
	return err
}

// ClearLocal drops the auth cookies from the jar without a server round
// trip. A normal logout gets expired cookies in the server response; this
// covers the path where the logout request itself failed and the stale
// cookies would otherwise keep authenticating.
func (c *Client) ClearLocal() {
	expired := make([]*http.Cookie, 0, 3)
	for _, name := range []string{accessTokenCookie, refreshTokenCookie, authMarkerCookie} {
		expired = append(expired, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1})
	}
	c.http.Jar.SetCookies(c.base, expired)
}

// HasAuthMarker reports whether the jar currently holds the
// authentication marker cookie.
func (c *Client) HasAuthMarker() bool {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == authMarkerCookie && ck.Value == authMarkerValue {
			return true
		}
	}
	return false
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*apiEnvelope, error) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthenticated
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, env.Message)
	}
	return &env, nil
}

func parseExpiry(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
