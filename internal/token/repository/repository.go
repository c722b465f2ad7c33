package repository

import (
	"context"
	"errors"

	"tokengate/internal/token/domain"
)

// ErrDuplicateToken is returned by Create when a row with the same token
// hash already exists. Token hashes are generated from unique jtis, so a
// collision indicates reuse of issued token material and is treated as a
// fatal integrity error, not a user-facing condition.
var ErrDuplicateToken = errors.New("duplicate refresh token")

// Repository defines persistence for refresh-token records.
//
// Revoke and RevokeAllForUser are idempotent: revoking an absent or
// already-revoked token is not an error, and revoked rows are never
// reactivated.
type Repository interface {
	// Create inserts a new refresh-token record. The record must have ID,
	// TokenHash, and Family set. Returns ErrDuplicateToken on a token-hash
	// collision.
	Create(ctx context.Context, t *domain.RefreshToken) error

	// FindByHash returns the record for the hash regardless of state, or
	// nil if absent. Used to distinguish replay of a rotated token from a
	// token that was never issued.
	FindByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)

	// ClaimActive atomically revokes the record for the hash iff it is
	// currently active, returning the claimed record. Returns nil when no
	// active record exists. Two concurrent claims of the same hash observe
	// exactly one winner; the loser gets nil.
	ClaimActive(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)

	// Revoke marks the record for the hash as revoked.
	Revoke(ctx context.Context, tokenHash string) error

	// RevokeFamily revokes every record in the given family.
	RevokeFamily(ctx context.Context, family string) error

	// RevokeAllForUser revokes every record belonging to the user.
	RevokeAllForUser(ctx context.Context, userID string) error
}
