// Package cache holds the redis-backed access-revocation list. Refresh
// rotation is the authoritative revocation mechanism; this list only
// shortens the window in which already-issued access tokens outlive a
// logout-all.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RevocationList records, per user, the instant at which all of the user's
// access tokens were invalidated. Entries expire after the access-token
// lifetime since older tokens die of natural expiry anyway.
type RevocationList struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRevocationList returns a RevocationList using the given redis client.
// ttl should be the access-token lifetime.
func NewRevocationList(client *redis.Client, prefix string, ttl time.Duration) *RevocationList {
	return &RevocationList{client: client, prefix: prefix, ttl: ttl}
}

func (l *RevocationList) key(userID string) string {
	return fmt.Sprintf("%s:revoked_after:%s", l.prefix, userID)
}

// MarkRevoked records that every access token issued to the user at or
// before now must be rejected.
func (l *RevocationList) MarkRevoked(ctx context.Context, userID string, at time.Time) error {
	return l.client.Set(ctx, l.key(userID), strconv.FormatInt(at.Unix(), 10), l.ttl).Err()
}

// RevokedSince returns the user's revocation cut, if one is recorded.
// Errors degrade open: a cache failure is logged and reported as "no cut"
// because the token store remains the source of truth.
func (l *RevocationList) RevokedSince(ctx context.Context, userID string) (time.Time, bool) {
	val, err := l.client.Get(ctx, l.key(userID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("user_id", userID).Msg("revocation list lookup failed")
		}
		return time.Time{}, false
	}
	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}
