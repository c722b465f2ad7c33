package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tokengate/internal/cache"
	"tokengate/internal/metrics"
	"tokengate/internal/security"
	tokendomain "tokengate/internal/token/domain"
	userdomain "tokengate/internal/user/domain"
	userrepo "tokengate/internal/user/repository"
)

// Sentinel errors for the auth service; handlers map them to HTTP statuses.
var (
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// the error message cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDuplicateEmail     = errors.New("email already registered")
	// ErrTokenReuseOrExpired is returned when a presented refresh token is
	// invalid, expired, revoked, or already spent by rotation.
	ErrTokenReuseOrExpired = errors.New("refresh token is invalid or has been used")
)

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// TokenRepo is the minimal refresh-token repository needed by the auth service.
type TokenRepo interface {
	Create(ctx context.Context, t *tokendomain.RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (*tokendomain.RefreshToken, error)
	ClaimActive(ctx context.Context, tokenHash string) (*tokendomain.RefreshToken, error)
	Revoke(ctx context.Context, tokenHash string) error
	RevokeFamily(ctx context.Context, family string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// RevocationList invalidates outstanding access tokens ahead of their
// natural expiry. Implemented by cache.RevocationList; may be nil, in which
// case access tokens live out their full lifetime after logout-all.
type RevocationList interface {
	MarkRevoked(ctx context.Context, userID string, at time.Time) error
	RevokedSince(ctx context.Context, userID string) (time.Time, bool)
}

var _ RevocationList = (*cache.RevocationList)(nil)

// LoginResult holds the outcome of Login or Refresh: the user plus a fresh
// access/refresh token pair.
type LoginResult struct {
	User             *userdomain.User
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// RegisterParams carries registration input. Role is not accepted from the
// caller; every registration gets the default user role.
type RegisterParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AuthService implements register, login, refresh rotation, and revocation.
type AuthService struct {
	users       UserRepo
	tokens      TokenRepo
	hasher      *security.Hasher
	provider    *security.TokenProvider
	revocations RevocationList
}

// NewAuthService returns an AuthService with the given dependencies.
// revocations may be nil.
func NewAuthService(users UserRepo, tokens TokenRepo, hasher *security.Hasher, provider *security.TokenProvider, revocations RevocationList) *AuthService {
	return &AuthService{
		users:       users,
		tokens:      tokens,
		hasher:      hasher,
		provider:    provider,
		revocations: revocations,
	}
}

// Register creates a user with a bcrypt-hashed password and the default
// user role. Returns ErrDuplicateEmail when the email is taken.
func (s *AuthService) Register(ctx context.Context, p RegisterParams) (*userdomain.User, error) {
	email := strings.TrimSpace(strings.ToLower(p.Email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(p.Password); err != nil {
		return nil, err
	}
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}
	hashed, err := s.hasher.Hash([]byte(p.Password))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hashed,
		FirstName:    strings.TrimSpace(p.FirstName),
		LastName:     strings.TrimSpace(p.LastName),
		Role:         userdomain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, userrepo.ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	metrics.UserRegisteredTotal.Inc()
	return user, nil
}

// Login authenticates with email/password, issues an access/refresh token
// pair, and persists the refresh token with the request metadata under a
// fresh token family.
func (s *AuthService) Login(ctx context.Context, email, password string, meta tokendomain.Metadata) (*LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		metrics.LoginFailureTotal.Inc()
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		metrics.LoginFailureTotal.Inc()
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		metrics.LoginFailureTotal.Inc()
		return nil, ErrInvalidCredentials
	}

	if meta.Family == "" {
		meta.Family = NewTokenFamily(meta.UserAgent)
	}
	result, err := s.issuePair(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	metrics.LoginSuccessTotal.Inc()
	return result, nil
}

// Refresh validates the presented refresh token, atomically spends it, and
// issues a replacement pair in the same family. Reuse of an already-rotated
// token revokes the whole family: the rotation left the replayer holding a
// dead token, and the live descendant may be in an attacker's hands.
func (s *AuthService) Refresh(ctx context.Context, presentedToken string) (*LoginResult, error) {
	if presentedToken == "" {
		return nil, ErrTokenReuseOrExpired
	}
	claims, err := s.provider.VerifyRefresh(presentedToken)
	if err != nil {
		return nil, ErrTokenReuseOrExpired
	}

	hash := security.HashRefreshToken(presentedToken)
	claimed, err := s.tokens.ClaimActive(ctx, hash)
	if err != nil {
		return nil, err
	}
	if claimed == nil {
		s.handleReuse(ctx, hash, claims.Subject)
		return nil, ErrTokenReuseOrExpired
	}

	user, err := s.users.GetByID(ctx, claimed.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrTokenReuseOrExpired
	}

	result, err := s.issuePair(ctx, user, tokendomain.Metadata{
		UserAgent: claimed.UserAgent,
		IPAddress: claimed.IPAddress,
		Family:    claimed.Family,
	})
	if err != nil {
		return nil, err
	}
	metrics.TokensRefreshedTotal.Inc()
	return result, nil
}

// handleReuse runs when a verified refresh token has no active store row.
// If a revoked row exists the token was already spent: revoke its family so
// the rotated descendant is useless to whoever holds it.
func (s *AuthService) handleReuse(ctx context.Context, hash, subject string) {
	existing, err := s.tokens.FindByHash(ctx, hash)
	if err != nil || existing == nil {
		return
	}
	if existing.IsRevoked {
		metrics.TokenReuseTotal.Inc()
		log.Warn().
			Str("user_id", subject).
			Str("family", existing.Family).
			Msg("refresh token reuse detected, revoking family")
		if err := s.tokens.RevokeFamily(ctx, existing.Family); err != nil {
			log.Error().Err(err).Str("family", existing.Family).Msg("family revocation failed")
		}
	}
}

// RevokeRefreshToken revokes the store record for the presented token.
// Idempotent; revoking an unknown or already-revoked token is not an error.
func (s *AuthService) RevokeRefreshToken(ctx context.Context, presentedToken string) error {
	if presentedToken == "" {
		return nil
	}
	metrics.LogoutTotal.Inc()
	return s.tokens.Revoke(ctx, security.HashRefreshToken(presentedToken))
}

// RevokeAllUserTokens revokes every refresh token belonging to the user and
// records an access-revocation cut so outstanding access tokens are
// rejected before their natural expiry.
func (s *AuthService) RevokeAllUserTokens(ctx context.Context, userID string) error {
	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}
	metrics.LogoutTotal.Inc()
	if s.revocations != nil {
		if err := s.revocations.MarkRevoked(ctx, userID, time.Now().UTC()); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("access revocation cut not recorded")
		}
	}
	return nil
}

// ValidateAccessToken verifies the access token and loads its user.
// Returns (nil, nil) on any invalid, expired, or revoked token: callers
// treat that as unauthenticated, not as a failure.
func (s *AuthService) ValidateAccessToken(ctx context.Context, token string) (*userdomain.User, error) {
	if token == "" {
		return nil, nil
	}
	claims, err := s.provider.VerifyAccess(token)
	if err != nil {
		return nil, nil
	}
	if s.revocations != nil && claims.IssuedAt != nil {
		// Both iat and the stored cut have second precision, so the
		// comparison is strict: a token issued in the same second as the
		// cut stays valid rather than being rejected for its whole life.
		if cut, ok := s.revocations.RevokedSince(ctx, claims.Subject); ok && claims.IssuedAt.Time.Before(cut) {
			return nil, nil
		}
	}
	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// issuePair issues a new access/refresh token pair for the user and
// persists the refresh token record.
func (s *AuthService) issuePair(ctx context.Context, user *userdomain.User, meta tokendomain.Metadata) (*LoginResult, error) {
	sub := security.TokenSubject{ID: user.ID, Email: user.Email, Role: string(user.Role)}

	refreshToken, refreshExp, _, err := s.provider.IssueRefresh(sub)
	if err != nil {
		return nil, err
	}
	record := &tokendomain.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		TokenHash: security.HashRefreshToken(refreshToken),
		Family:    meta.Family,
		ExpiresAt: refreshExp,
		CreatedAt: time.Now().UTC(),
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		return nil, err
	}

	accessToken, accessExp, err := s.provider.IssueAccess(sub)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		User:             user,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// NewTokenFamily derives a fresh family id for a login chain. The browser
// label makes per-device revocation and audit queries readable; the uuid
// keeps families unique across logins from the same browser.
func NewTokenFamily(userAgent string) string {
	return fmt.Sprintf("%s-%s", DeriveDeviceFamily(userAgent), uuid.New().String())
}

// DeriveDeviceFamily maps a User-Agent header to a coarse browser family.
// Edge is checked before Chrome because its UA contains both product tokens.
func DeriveDeviceFamily(userAgent string) string {
	switch {
	case strings.Contains(userAgent, "Edg"):
		return "Edge"
	case strings.Contains(userAgent, "Chrome"):
		return "Chrome"
	case strings.Contains(userAgent, "Firefox"):
		return "Firefox"
	case strings.Contains(userAgent, "Safari"):
		return "Safari"
	default:
		return "Other"
	}
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	if !emailPattern.MatchString(email) {
		return errors.New("invalid email format")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
