package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"tokengate/internal/token/domain"
)

// pgUniqueViolation is the Postgres error code for unique constraint violations.
const pgUniqueViolation = "23505"

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a refresh-token repository that uses the
// given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const tokenColumns = "id, user_id, token_hash, family, expires_at, is_revoked, created_at, user_agent, ip_address"

// Create inserts a new refresh-token record. Returns ErrDuplicateToken when
// the token hash already exists; the unique index guarantees a token value
// maps to at most one row.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, family, expires_at, is_revoked, created_at, user_agent, ip_address)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID,
		t.UserID,
		t.TokenHash,
		t.Family,
		t.ExpiresAt,
		t.IsRevoked,
		t.CreatedAt,
		sql.NullString{String: t.UserAgent, Valid: t.UserAgent != ""},
		sql.NullString{String: t.IPAddress, Valid: t.IPAddress != ""},
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateToken
	}
	return err
}

// FindByHash returns the record for the hash regardless of state, or nil.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) FindByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM refresh_tokens WHERE token_hash = $1", tokenHash)
	return scanToken(row)
}

// ClaimActive revokes and returns the active record for the hash in one
// conditional update. The WHERE clause is the serialization point: of two
// concurrent claims for the same hash, the row version check lets exactly
// one UPDATE match.
func (r *PostgresRepository) ClaimActive(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE refresh_tokens SET is_revoked = TRUE
		 WHERE token_hash = $1 AND NOT is_revoked AND expires_at > $2
		 RETURNING `+tokenColumns,
		tokenHash, time.Now().UTC())
	return scanToken(row)
}

// Revoke marks the record for the hash as revoked. Idempotent: revoking an
// absent or already-revoked token is a no-op.
func (r *PostgresRepository) Revoke(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET is_revoked = TRUE WHERE token_hash = $1", tokenHash)
	return err
}

// RevokeFamily revokes every record in the family. Idempotent.
func (r *PostgresRepository) RevokeFamily(ctx context.Context, family string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET is_revoked = TRUE WHERE family = $1", family)
	return err
}

// RevokeAllForUser revokes every record belonging to the user. Idempotent.
func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET is_revoked = TRUE WHERE user_id = $1", userID)
	return err
}

func scanToken(row *sql.Row) (*domain.RefreshToken, error) {
	var (
		t         domain.RefreshToken
		userAgent sql.NullString
		ipAddress sql.NullString
	)
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.Family, &t.ExpiresAt, &t.IsRevoked, &t.CreatedAt, &userAgent, &ipAddress)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.UserAgent = userAgent.String
	t.IPAddress = ipAddress.String
	return &t, nil
}
