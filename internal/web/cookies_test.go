package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func newCookieContext(t *testing.T, cookies ...*http.Cookie) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func testPair() TokenPair {
	now := time.Now()
	return TokenPair{
		AccessToken:      "header.payload.signature",
		RefreshToken:     "rheader.rpayload.rsignature",
		AccessExpiresAt:  now.Add(15 * time.Minute),
		RefreshExpiresAt: now.Add(30 * 24 * time.Hour),
	}
}

func responseCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func TestSetAuthCookies(t *testing.T) {
	m := NewCookieManager([]byte("cookie-secret"), true)
	c, rec := newCookieContext(t)

	m.SetAuthCookies(c, testPair())

	access := responseCookie(t, rec, AccessTokenCookie)
	if access == nil {
		t.Fatal("access_token cookie not set")
	}
	if !access.HttpOnly || !access.Secure || access.SameSite != http.SameSiteLaxMode || access.Path != "/" {
		t.Errorf("access cookie attributes wrong: %+v", access)
	}
	if access.MaxAge < 14*60 || access.MaxAge > 15*60 {
		t.Errorf("access MaxAge = %d, want ~15m from token expiry", access.MaxAge)
	}
	if access.Value == "header.payload.signature" {
		t.Error("cookie value must carry the transport signature")
	}

	refresh := responseCookie(t, rec, RefreshTokenCookie)
	if refresh == nil {
		t.Fatal("refresh_token cookie not set")
	}
	if refresh.MaxAge <= access.MaxAge {
		t.Error("refresh cookie must outlive the access cookie")
	}

	marker := responseCookie(t, rec, AuthStatusCookie)
	if marker == nil {
		t.Fatal("auth_status cookie not set")
	}
	if marker.HttpOnly {
		t.Error("marker cookie must be readable by the client runtime")
	}
	if marker.Value != "authenticated" {
		t.Errorf("marker value = %q", marker.Value)
	}
	if marker.MaxAge != access.MaxAge {
		t.Errorf("marker lifetime %d should match access cookie %d", marker.MaxAge, access.MaxAge)
	}
}

func TestReadAccessToken_RoundTrip(t *testing.T) {
	m := NewCookieManager([]byte("cookie-secret"), false)
	c, rec := newCookieContext(t)
	m.SetAuthCookies(c, testPair())

	c2, _ := newCookieContext(t, responseCookie(t, rec, AccessTokenCookie))
	token, ok := m.ReadAccessToken(c2)
	if !ok {
		t.Fatal("signed cookie should verify")
	}
	if token != "header.payload.signature" {
		t.Errorf("token = %q", token)
	}
}

func TestReadAccessToken_TamperedIsAbsent(t *testing.T) {
	m := NewCookieManager([]byte("cookie-secret"), false)
	c, rec := newCookieContext(t)
	m.SetAuthCookies(c, testPair())

	ck := responseCookie(t, rec, AccessTokenCookie)
	ck.Value = "forged.payload.signature" + ck.Value[len("header.payload.signature"):]
	c2, _ := newCookieContext(t, ck)
	if _, ok := m.ReadAccessToken(c2); ok {
		t.Error("tampered cookie must be treated as absent")
	}
}

func TestReadAccessToken_WrongSecretIsAbsent(t *testing.T) {
	signer := NewCookieManager([]byte("secret-a"), false)
	reader := NewCookieManager([]byte("secret-b"), false)
	c, rec := newCookieContext(t)
	signer.SetAuthCookies(c, testPair())

	c2, _ := newCookieContext(t, responseCookie(t, rec, AccessTokenCookie))
	if _, ok := reader.ReadAccessToken(c2); ok {
		t.Error("cookie signed with another secret must be treated as absent")
	}
}

func TestReadAccessToken_Missing(t *testing.T) {
	m := NewCookieManager([]byte("cookie-secret"), false)
	c, _ := newCookieContext(t)
	if _, ok := m.ReadAccessToken(c); ok {
		t.Error("missing cookie should read as absent")
	}
	c2, _ := newCookieContext(t, &http.Cookie{Name: AccessTokenCookie, Value: "no-signature-here"})
	if _, ok := m.ReadAccessToken(c2); ok {
		t.Error("unsigned cookie should read as absent")
	}
}

func TestClearAuthCookies(t *testing.T) {
	m := NewCookieManager([]byte("cookie-secret"), false)
	c, rec := newCookieContext(t)

	m.ClearAuthCookies(c)

	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie, AuthStatusCookie} {
		ck := responseCookie(t, rec, name)
		if ck == nil {
			t.Errorf("%s should be explicitly expired", name)
			continue
		}
		if ck.MaxAge >= 0 || ck.Value != "" {
			t.Errorf("%s not expired: MaxAge=%d Value=%q", name, ck.MaxAge, ck.Value)
		}
	}
	if rec.Header().Get("Clear-Site-Data") == "" {
		t.Error("Clear-Site-Data header should be set on logout")
	}
}
