package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrUnauthenticated is returned by AuthClient calls that came back with
// a definitive 401, as opposed to a transport failure.
var ErrUnauthenticated = errors.New("session: unauthenticated")

// AuthClient is the slice of the auth API the manager needs. Implemented
// by Client.
type AuthClient interface {
	Me(ctx context.Context) (*User, time.Time, error)
	Refresh(ctx context.Context) (time.Time, error)
	Logout(ctx context.Context) error
	// ClearLocal drops the auth cookies client-side, for when Logout
	// failed and no server response cleared them.
	ClearLocal()
	HasAuthMarker() bool
}

// Navigator performs client-side navigation. returnTo carries the path to
// come back to after login; sessionExpired selects the expiry notice.
type Navigator interface {
	NavigateToLogin(returnTo string, sessionExpired bool)
}

// Revalidator re-fetches view data after the session changed underneath
// it.
type Revalidator interface {
	Revalidate()
}

// ServerAuth is the authoritative session state delivered with a
// server-rendered load.
type ServerAuth struct {
	User      *User
	ExpiresAt time.Time
}

// Config tunes the manager's background loops. Zero fields take the
// defaults below.
type Config struct {
	RenewInterval  time.Duration // renewal tick, default 30s
	RenewThreshold time.Duration // refresh when expiry is closer than this, default 3m
	RenewCooldown  time.Duration // minimum gap between refreshes, default 60s
	CheckInterval  time.Duration // consistency tick, default 5s
}

func (c Config) withDefaults() Config {
	if c.RenewInterval <= 0 {
		c.RenewInterval = 30 * time.Second
	}
	if c.RenewThreshold <= 0 {
		c.RenewThreshold = 3 * time.Minute
	}
	if c.RenewCooldown <= 0 {
		c.RenewCooldown = 60 * time.Second
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 5 * time.Second
	}
	return c
}

// Manager arbitrates the session from its four sources and keeps it alive
// with background renewal and a marker consistency check.
type Manager struct {
	store  *Store
	client AuthClient
	nav    Navigator
	reval  Revalidator
	cfg    Config

	mu          sync.Mutex
	refreshing  bool
	lastRefresh time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager wires a manager. reval may be nil.
func NewManager(store *Store, client AuthClient, nav Navigator, reval Revalidator, cfg Config) *Manager {
	return &Manager{
		store:  store,
		client: client,
		nav:    nav,
		reval:  reval,
		cfg:    cfg.withDefaults(),
	}
}

// Store exposes the underlying session store.
func (m *Manager) Store() *Store { return m.store }

// Resolve determines the current session, consulting sources in fixed
// precedence: server authority, the cached client state, the auth API,
// and finally the bare cookie marker. With nothing to go on it clears
// the session and navigates to login with currentPath as the return
// target.
func (m *Manager) Resolve(ctx context.Context, server *ServerAuth, currentPath string) Descriptor {
	if server != nil {
		d := Descriptor{
			User:            server.User,
			IsAuthenticated: server.User != nil,
			ExpiresAt:       server.ExpiresAt,
			Source:          SourceServer,
		}
		m.store.Apply(CredentialsResolved{Session: d})
		return d
	}

	marker := m.client.HasAuthMarker()

	if cached := m.store.Current(); cached.IsAuthenticated && marker {
		cached.Source = SourceClient
		return cached
	}

	if marker {
		epoch := m.store.Epoch()
		user, expiresAt, err := m.client.Me(ctx)
		switch {
		case err == nil:
			d := Descriptor{User: user, IsAuthenticated: true, ExpiresAt: expiresAt, Source: SourceAPI}
			if m.store.Epoch() == epoch {
				m.store.Apply(CredentialsResolved{Session: d})
			}
			return d
		case !errors.Is(err, ErrUnauthenticated):
			// The marker says a session exists but the API is unreachable.
			// Report a provisional session without caching it.
			log.Warn().Err(err).Msg("session lookup failed, trusting cookie marker")
			return Descriptor{IsAuthenticated: true, Source: SourceCookie}
		}
	}

	m.store.Apply(Cleared{})
	m.nav.NavigateToLogin(currentPath, false)
	return Unauthenticated()
}

// Start launches the renewal and consistency loops. Stop tears them down.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(2)
	go m.loop(ctx, m.cfg.RenewInterval, m.renewTick)
	go m.loop(ctx, m.cfg.CheckInterval, m.consistencyTick)
}

// Stop cancels the background loops and waits for them to exit.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
		m.wg.Wait()
		m.cancel = nil
	}
}

func (m *Manager) loop(ctx context.Context, every time.Duration, tick func(context.Context)) {
	defer m.wg.Done()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			tick(ctx)
		}
	}
}

// renewTick refreshes the token pair when the session is close to expiry.
// The epoch snapshot ensures a refresh that raced a logout is discarded.
func (m *Manager) renewTick(ctx context.Context) {
	if m.store.LogoutInProgress() {
		return
	}
	cur := m.store.Current()
	if !cur.IsAuthenticated {
		return
	}
	until := time.Until(cur.ExpiresAt)
	if cur.ExpiresAt.IsZero() || until <= 0 || until >= m.cfg.RenewThreshold {
		return
	}

	m.mu.Lock()
	if m.refreshing || time.Since(m.lastRefresh) < m.cfg.RenewCooldown {
		m.mu.Unlock()
		return
	}
	m.refreshing = true
	m.mu.Unlock()

	epoch := m.store.Epoch()
	expiresAt, err := m.client.Refresh(ctx)

	m.mu.Lock()
	m.refreshing = false
	m.lastRefresh = time.Now()
	m.mu.Unlock()

	if m.store.Epoch() != epoch {
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("session renewal failed")
		m.store.Apply(Cleared{})
		m.nav.NavigateToLogin("", true)
		return
	}
	m.store.Apply(RefreshSucceeded{ExpiresAt: expiresAt})
	m.revalidate()
}

// consistencyTick reconciles the stored session with the cookie marker.
func (m *Manager) consistencyTick(ctx context.Context) {
	if m.store.LogoutInProgress() {
		return
	}
	cur := m.store.Current()
	marker := m.client.HasAuthMarker()

	switch {
	case cur.IsAuthenticated && !marker:
		// Cookies were cleared elsewhere, e.g. logout in another tab.
		m.store.Apply(Cleared{})
		m.revalidate()
	case !cur.IsAuthenticated && marker:
		epoch := m.store.Epoch()
		user, expiresAt, err := m.client.Me(ctx)
		if err != nil || m.store.Epoch() != epoch {
			return
		}
		m.store.Apply(CredentialsResolved{Session: Descriptor{
			User:            user,
			IsAuthenticated: true,
			ExpiresAt:       expiresAt,
			Source:          SourceAPI,
		}})
		m.revalidate()
	}
}

// Logout clears the session immediately, revokes the refresh token on a
// best-effort basis, and navigates to login. Logout always ends with the
// cookies gone: when the revoke request fails, the cookies are dropped
// locally so the consistency check cannot resurrect the session off the
// stale marker. The in-progress flag stays up until navigation so late
// refresh results cannot repopulate the store; concurrent calls collapse
// into one.
func (m *Manager) Logout(ctx context.Context) {
	if !m.store.BeginLogout() {
		return
	}
	if err := m.client.Logout(ctx); err != nil {
		log.Warn().Err(err).Msg("logout request failed, clearing cookies locally")
		m.client.ClearLocal()
	}
	m.nav.NavigateToLogin("", false)
	m.store.Apply(LogoutFinished{})
	m.revalidate()
}

func (m *Manager) revalidate() {
	if m.reval != nil {
		m.reval.Revalidate()
	}
}
