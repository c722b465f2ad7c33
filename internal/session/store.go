package session

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const currentKey = "current"

// Event mutates the Store through Apply. All session state changes go
// through an event so logout suppression and epoch bumps apply uniformly.
type Event interface {
	isEvent()
}

// CredentialsResolved replaces the session with a freshly arbitrated
// descriptor.
type CredentialsResolved struct {
	Session Descriptor
}

// RefreshSucceeded extends the current session's expiry after a token
// rotation.
type RefreshSucceeded struct {
	ExpiresAt time.Time
}

// Cleared drops the session, e.g. after a failed renewal or when the
// cookie marker disappeared.
type Cleared struct{}

// LogoutStarted and LogoutFinished bracket an explicit logout. Between
// the two, every other event is suppressed so a slow in-flight refresh
// cannot resurrect the session.
type LogoutStarted struct{}
type LogoutFinished struct{}

func (CredentialsResolved) isEvent() {}
func (RefreshSucceeded) isEvent()    {}
func (Cleared) isEvent()             {}
func (LogoutStarted) isEvent()       {}
func (LogoutFinished) isEvent()      {}

// Store holds the client's session state. The descriptor lives in a TTL
// cache keyed by its own expiry, so an expired session reads back as
// unauthenticated without any timer firing.
type Store struct {
	mu               sync.Mutex
	cache            *ttlcache.Cache[string, Descriptor]
	logoutInProgress bool
	epoch            uint64
}

// NewStore returns an empty session store.
func NewStore() *Store {
	return &Store{
		cache: ttlcache.New[string, Descriptor](
			ttlcache.WithDisableTouchOnHit[string, Descriptor](),
		),
	}
}

// Current returns the session snapshot, or an unauthenticated descriptor
// when none is stored or the stored one has expired.
func (s *Store) Current() Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.cache.Get(currentKey)
	if item == nil {
		return Unauthenticated()
	}
	return item.Value()
}

// Epoch returns the session epoch. It is bumped on every logout and
// clear; callers snapshot it before slow work and discard their result
// when it no longer matches.
func (s *Store) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// LogoutInProgress reports whether a logout is underway.
func (s *Store) LogoutInProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logoutInProgress
}

// BeginLogout marks the logout flag and clears the session. Returns false
// when a logout is already underway, so only one caller runs the logout
// sequence.
func (s *Store) BeginLogout() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.logoutInProgress {
		return false
	}
	s.logoutInProgress = true
	s.epoch++
	s.cache.Delete(currentKey)
	return true
}

// Apply runs one event through the reducer. While a logout is in
// progress only LogoutFinished has any effect.
func (s *Store) Apply(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := ev.(type) {
	case LogoutStarted:
		s.logoutInProgress = true
		s.epoch++
		s.cache.Delete(currentKey)
	case LogoutFinished:
		s.logoutInProgress = false
	case CredentialsResolved:
		if s.logoutInProgress {
			return
		}
		s.set(e.Session)
	case RefreshSucceeded:
		if s.logoutInProgress {
			return
		}
		item := s.cache.Get(currentKey)
		if item == nil {
			return
		}
		cur := item.Value()
		cur.ExpiresAt = e.ExpiresAt
		s.set(cur)
	case Cleared:
		if s.logoutInProgress {
			return
		}
		s.epoch++
		s.cache.Delete(currentKey)
	}
}

func (s *Store) set(d Descriptor) {
	if !d.IsAuthenticated {
		s.epoch++
		s.cache.Delete(currentKey)
		return
	}
	ttl := ttlcache.NoTTL
	if !d.ExpiresAt.IsZero() {
		ttl = time.Until(d.ExpiresAt)
		if ttl <= 0 {
			return
		}
	}
	s.cache.Set(currentKey, d, ttl)
}
