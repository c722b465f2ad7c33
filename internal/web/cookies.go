package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// Cookie names forming the transport contract with the client runtime.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
	// AuthStatusCookie is the non-HttpOnly marker the client runtime reads
	// to cheaply detect "there might be a session". Its presence is a hint,
	// never an authority; real authorization re-validates the access token.
	AuthStatusCookie = "auth_status"

	authStatusValue = "authenticated"
)

// CookieManager maps tokens to and from HTTP cookies. Token cookies carry a
// transport-layer HMAC signature independent of the JWT's own signature, so
// tampering is caught before any token parsing. A cookie whose signature
// fails verification is treated as absent, not as an error.
type CookieManager struct {
	secret []byte
	secure bool
}

// NewCookieManager returns a CookieManager signing with secret. secure
// controls the Secure cookie attribute and should be true in production.
func NewCookieManager(secret []byte, secure bool) *CookieManager {
	return &CookieManager{secret: secret, secure: secure}
}

// TokenPair is the cookie-facing view of an issued token pair.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// SetAuthCookies writes the signed access and refresh cookies plus the
// auth_status marker. Each cookie's MaxAge is derived from its token's
// expiry, so the cookie disappears no later than the token becomes invalid.
func (m *CookieManager) SetAuthCookies(c echo.Context, pair TokenPair) {
	now := time.Now()
	accessMaxAge := int(pair.AccessExpiresAt.Sub(now).Seconds())
	refreshMaxAge := int(pair.RefreshExpiresAt.Sub(now).Seconds())

	c.SetCookie(m.tokenCookie(AccessTokenCookie, m.sign(pair.AccessToken), accessMaxAge))
	c.SetCookie(m.tokenCookie(RefreshTokenCookie, m.sign(pair.RefreshToken), refreshMaxAge))

	marker := m.tokenCookie(AuthStatusCookie, authStatusValue, accessMaxAge)
	marker.HttpOnly = false
	c.SetCookie(marker)
}

// ReadAccessToken returns the verified access token from the request, or
// ("", false) when the cookie is absent or its transport signature fails.
func (m *CookieManager) ReadAccessToken(c echo.Context) (string, bool) {
	return m.readSigned(c, AccessTokenCookie)
}

// ReadRefreshToken returns the verified refresh token from the request, or
// ("", false) when the cookie is absent or its transport signature fails.
func (m *CookieManager) ReadRefreshToken(c echo.Context) (string, bool) {
	return m.readSigned(c, RefreshTokenCookie)
}

// ClearAuthCookies expires all three cookies unconditionally and asks the
// browser to drop cookie and storage state via Clear-Site-Data.
func (m *CookieManager) ClearAuthCookies(c echo.Context) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie, AuthStatusCookie} {
		expired := m.tokenCookie(name, "", -1)
		if name == AuthStatusCookie {
			expired.HttpOnly = false
		}
		c.SetCookie(expired)
	}
	c.Response().Header().Set("Clear-Site-Data", `"cookies", "storage"`)
}

func (m *CookieManager) tokenCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (m *CookieManager) readSigned(c echo.Context, name string) (string, bool) {
	cookie, err := c.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return m.verify(cookie.Value)
}

// sign appends a base64url HMAC-SHA256 over the value. JWTs contain dots,
// so verify splits on the last separator.
func (m *CookieManager) sign(value string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(value))
	return value + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (m *CookieManager) verify(signed string) (string, bool) {
	i := strings.LastIndex(signed, ".")
	if i < 0 {
		return "", false
	}
	value, sig := signed[:i], signed[i+1:]
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(value))
	if !hmac.Equal(got, mac.Sum(nil)) {
		return "", false
	}
	return value, true
}
