package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testProvider(accessTTL, refreshTTL time.Duration) *TokenProvider {
	return NewTokenProvider(
		[]byte("test-access-secret"),
		[]byte("test-refresh-secret"),
		"tokengate-test",
		accessTTL,
		refreshTTL,
	)
}

func testSubject() TokenSubject {
	return TokenSubject{ID: "user-1", Email: "a@x.com", Role: "user"}
}

func TestIssueAccess_RoundTrip(t *testing.T) {
	p := testProvider(15*time.Minute, 30*24*time.Hour)

	token, expiresAt, err := p.IssueAccess(testSubject())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if until := time.Until(expiresAt); until < 14*time.Minute || until > 16*time.Minute {
		t.Errorf("expiresAt %v not around 15m from now", until)
	}

	claims, err := p.VerifyAccess(token)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("sub = %q, want user-1", claims.Subject)
	}
	if claims.Email != "a@x.com" {
		t.Errorf("email = %q, want a@x.com", claims.Email)
	}
	if claims.Role != "user" {
		t.Errorf("role = %q, want user", claims.Role)
	}
	if claims.ID == "" {
		t.Error("jti should be set")
	}
}

func TestIssueRefresh_RoundTrip(t *testing.T) {
	p := testProvider(15*time.Minute, 30*24*time.Hour)

	token, _, jti, err := p.IssueRefresh(testSubject())
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if jti == "" {
		t.Fatal("jti should be set")
	}
	claims, err := p.VerifyRefresh(token)
	if err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}
	if claims.ID != jti {
		t.Errorf("claims jti = %q, want %q", claims.ID, jti)
	}
	if claims.Subject != "user-1" {
		t.Errorf("sub = %q, want user-1", claims.Subject)
	}
}

func TestVerify_SecretsAreIndependent(t *testing.T) {
	p := testProvider(15*time.Minute, 30*24*time.Hour)

	refresh, _, _, err := p.IssueRefresh(testSubject())
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if _, err := p.VerifyAccess(refresh); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("refresh token passed access verification: err = %v", err)
	}

	access, _, err := p.IssueAccess(testSubject())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := p.VerifyRefresh(access); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("access token passed refresh verification: err = %v", err)
	}
}

func TestVerifyAccess_Tampered(t *testing.T) {
	p := testProvider(15*time.Minute, 30*24*time.Hour)

	token, _, err := p.IssueAccess(testSubject())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	// Flip one byte in the payload segment. Verification must fail with
	// ErrInvalidToken, never return stale claims.
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("token has %d segments, want 3", len(parts))
	}
	payload := []byte(parts[1])
	if payload[3] == 'A' {
		payload[3] = 'B'
	} else {
		payload[3] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	claims, err := p.VerifyAccess(tampered)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
	if claims != nil {
		t.Error("claims should be nil for tampered token")
	}
}

func TestVerifyAccess_WrongKey(t *testing.T) {
	p := testProvider(15*time.Minute, 30*24*time.Hour)
	other := NewTokenProvider([]byte("other-access"), []byte("other-refresh"), "tokengate-test", 15*time.Minute, time.Hour)

	token, _, err := other.IssueAccess(testSubject())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := p.VerifyAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyAccess_WrongIssuer(t *testing.T) {
	p := testProvider(15*time.Minute, 30*24*time.Hour)
	other := NewTokenProvider([]byte("test-access-secret"), []byte("test-refresh-secret"), "someone-else", 15*time.Minute, time.Hour)

	token, _, err := other.IssueAccess(testSubject())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := p.VerifyAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyAccess_Expired(t *testing.T) {
	// Negative TTL puts expiry beyond the leeway in the past.
	p := testProvider(-time.Minute, 30*24*time.Hour)

	token, _, err := p.IssueAccess(testSubject())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	claims, err := p.VerifyAccess(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("err = %v, want ErrTokenExpired", err)
	}
	if claims != nil {
		t.Error("claims should be nil for expired token")
	}
}

func TestVerifyAccess_ExpiryBoundary(t *testing.T) {
	// A token just inside its lifetime verifies; one expired beyond the
	// leeway does not. The leeway keeps the boundary tolerant to a couple
	// seconds of clock skew, no more.
	justValid := testProvider(50*time.Millisecond, time.Hour)
	token, _, err := justValid.IssueAccess(testSubject())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := justValid.VerifyAccess(token); err != nil {
		t.Errorf("token inside lifetime should verify: %v", err)
	}

	beyondLeeway := testProvider(-clockSkewLeeway-time.Second, time.Hour)
	token, _, err = beyondLeeway.IssueAccess(testSubject())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := beyondLeeway.VerifyAccess(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("err = %v, want ErrTokenExpired", err)
	}
}

func TestVerify_RejectsAlgNone(t *testing.T) {
	p := testProvider(15*time.Minute, 30*24*time.Hour)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "tokengate-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := p.VerifyAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken for alg=none", err)
	}
}

func TestIssue_UniqueJTI(t *testing.T) {
	p := testProvider(15*time.Minute, 30*24*time.Hour)
	_, _, jti1, err := p.IssueRefresh(testSubject())
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	_, _, jti2, err := p.IssueRefresh(testSubject())
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if jti1 == jti2 {
		t.Error("jti must be unique per token")
	}
}
