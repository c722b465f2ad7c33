package domain

import "time"

// RefreshToken is one persisted refresh-token record. A new row is written
// for every issued refresh token; rotation revokes the presented row and
// inserts its successor in the same family. TokenHash is the SHA-256 hash
// of the raw token, never the token itself.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string // globally unique
	Family    string // groups tokens descended from one login
	ExpiresAt time.Time
	IsRevoked bool
	CreatedAt time.Time
	UserAgent string
	IPAddress string
}

// Active reports whether the record may be trusted at the given instant:
// not revoked and not past its expiry. Revocation is permanent.
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.IsRevoked && now.Before(t.ExpiresAt)
}

// Metadata carries the request attributes recorded with an issued token.
type Metadata struct {
	UserAgent string
	IPAddress string
	Family    string
}
