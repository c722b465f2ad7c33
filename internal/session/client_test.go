package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newAuthServer fakes the auth API's cookie and envelope behavior so the
// client's jar handling can be exercised without the full stack.
func newAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	writeJSON := func(w http.ResponseWriter, status int, env apiEnvelope) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(env)
	}
	user := &User{ID: "u1", Email: "a@x.com", Role: "user"}
	expiry := func() string { return time.Now().Add(15 * time.Minute).UTC().Format(time.RFC3339) }

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "acc-1", Path: "/", HttpOnly: true})
		http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "ref-1", Path: "/", HttpOnly: true})
		http.SetCookie(w, &http.Cookie{Name: "auth_status", Value: "authenticated", Path: "/"})
		writeJSON(w, http.StatusOK, apiEnvelope{Success: true, User: user, ExpiresAt: expiry()})
	})
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("access_token"); err != nil {
			writeJSON(w, http.StatusUnauthorized, apiEnvelope{Message: "authentication required"})
			return
		}
		writeJSON(w, http.StatusOK, apiEnvelope{Success: true, User: user})
	})
	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("refresh_token"); err != nil {
			writeJSON(w, http.StatusUnauthorized, apiEnvelope{Message: "no refresh token provided"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "ref-2", Path: "/", HttpOnly: true})
		writeJSON(w, http.StatusOK, apiEnvelope{Success: true, User: user, ExpiresAt: expiry()})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		for _, name := range []string{"access_token", "refresh_token", "auth_status"} {
			http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1})
		}
		writeJSON(w, http.StatusOK, apiEnvelope{Success: true})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_LoginPrimesJar(t *testing.T) {
	srv := newAuthServer(t)
	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if c.HasAuthMarker() {
		t.Fatal("fresh jar should have no marker")
	}

	user, expiresAt, err := c.Login(context.Background(), "a@x.com", "Abcd123!")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user == nil || user.Email != "a@x.com" {
		t.Errorf("user = %+v", user)
	}
	if expiresAt.IsZero() {
		t.Error("login should carry an expiry")
	}
	if !c.HasAuthMarker() {
		t.Error("marker cookie should be in the jar after login")
	}

	got, _, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if got.ID != "u1" {
		t.Errorf("me user = %+v", got)
	}
}

func TestClient_MeWithoutSession(t *testing.T) {
	srv := newAuthServer(t)
	c, _ := NewClient(srv.URL)

	if _, _, err := c.Me(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestClient_Refresh(t *testing.T) {
	srv := newAuthServer(t)
	c, _ := NewClient(srv.URL)
	if _, _, err := c.Login(context.Background(), "a@x.com", "Abcd123!"); err != nil {
		t.Fatal(err)
	}

	expiresAt, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Errorf("expiry = %v, want future", expiresAt)
	}
}

func TestClient_RefreshWithoutCookie(t *testing.T) {
	srv := newAuthServer(t)
	c, _ := NewClient(srv.URL)

	if _, err := c.Refresh(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestClient_ClearLocalDropsCookies(t *testing.T) {
	srv := newAuthServer(t)
	c, _ := NewClient(srv.URL)
	if _, _, err := c.Login(context.Background(), "a@x.com", "Abcd123!"); err != nil {
		t.Fatal(err)
	}

	c.ClearLocal()

	if c.HasAuthMarker() {
		t.Error("marker should be gone without any server round trip")
	}
	if _, _, err := c.Me(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("me after local clear = %v, want ErrUnauthenticated", err)
	}
}

func TestClient_LogoutDropsMarker(t *testing.T) {
	srv := newAuthServer(t)
	c, _ := NewClient(srv.URL)
	if _, _, err := c.Login(context.Background(), "a@x.com", "Abcd123!"); err != nil {
		t.Fatal(err)
	}

	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if c.HasAuthMarker() {
		t.Error("marker should be dropped by the expired cookie")
	}
	if _, _, err := c.Me(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("me after logout = %v, want ErrUnauthenticated", err)
	}
}
