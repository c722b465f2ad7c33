package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when a token is malformed, tampered with,
	// or signed with the wrong key or method.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when a token's signature is valid but its
	// expiry has passed. Callers differentiate this from ErrInvalidToken:
	// an expired access token may be refreshed, an invalid one forces logout.
	ErrTokenExpired = errors.New("token expired")
)

// clockSkewLeeway is the tolerance applied to exp/iat validation.
const clockSkewLeeway = 2 * time.Second

// Claims holds the JWT claims carried by both access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// TokenSubject identifies the user a token is issued for.
type TokenSubject struct {
	ID    string
	Email string
	Role  string
}

// TokenProvider issues and validates JWT access and refresh tokens using
// HS256 with two independent secrets. Access tokens are short-lived and
// never persisted; refresh tokens are long-lived and correlated with a
// store record through their jti.
type TokenProvider struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenProvider returns a TokenProvider signing with the given secrets.
// The access and refresh secrets must differ so that a refresh token can
// never pass access-token verification.
func NewTokenProvider(accessSecret, refreshSecret []byte, issuer string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		issuer:        issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// AccessTTL returns the configured access token lifetime.
func (p *TokenProvider) AccessTTL() time.Duration { return p.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (p *TokenProvider) RefreshTTL() time.Duration { return p.refreshTTL }

// IssueAccess issues a short-lived access JWT for the subject.
// Returns the token string and its expiration time.
func (p *TokenProvider) IssueAccess(sub TokenSubject) (token string, expiresAt time.Time, err error) {
	token, expiresAt, _, err = p.issue(sub, p.accessSecret, p.accessTTL)
	return token, expiresAt, err
}

// IssueRefresh issues a long-lived refresh JWT for the subject.
// Returns the token string, its expiration time, and the jti used to
// correlate the token with its store record.
func (p *TokenProvider) IssueRefresh(sub TokenSubject) (token string, expiresAt time.Time, jti string, err error) {
	return p.issue(sub, p.refreshSecret, p.refreshTTL)
}

func (p *TokenProvider) issue(sub TokenSubject, secret []byte, ttl time.Duration) (string, time.Time, string, error) {
	jti := uuid.New().String()
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   sub.ID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: sub.Email,
		Role:  sub.Role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, "", err
	}
	return token, expiresAt, jti, nil
}

// VerifyAccess parses and validates an access token (signature, exp, iss).
// Returns ErrTokenExpired for a well-signed but expired token and
// ErrInvalidToken for everything else that fails.
func (p *TokenProvider) VerifyAccess(tokenString string) (*Claims, error) {
	return p.verify(tokenString, p.accessSecret)
}

// VerifyRefresh parses and validates a refresh token (signature, exp, iss).
// Error semantics match VerifyAccess.
func (p *TokenProvider) VerifyRefresh(tokenString string) (*Claims, error) {
	return p.verify(tokenString, p.refreshSecret)
}

func (p *TokenProvider) verify(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithLeeway(clockSkewLeeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
