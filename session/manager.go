package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/veloflux/go-session/api"
	"github.com/veloflux/go-session/storage"
	"github.com/veloflux/go-session/users"
)

// API is the backend surface the session manager depends on. Satisfied by
// *api.Client; faked in tests via apifakes.
type API interface {
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
	Refresh(ctx context.Context, token string) (string, error)
	Profile(ctx context.Context, token string) (*users.User, error)
	UpdateProfile(ctx context.Context, token, firstName, lastName string) (*users.User, error)
}

// Manager owns the session: the bearer token and the resolved user
// profile. Both live behind one lock and are replaced wholesale, so a
// reader never observes a token without its matching user outside of the
// brief fetch during login (which tears the session down on failure).
type Manager struct {
	backend  API
	store    storage.Store
	throttle *LoginThrottle
	nowTime  func() time.Time

	mu    sync.RWMutex
	token string
	user  *users.User
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
		m.throttle.setNowFunc(nowFunc)
	}
}

// WithThrottlePolicy overrides the login throttle limits.
func WithThrottlePolicy(maxAttempts int, window time.Duration) ManagerOption {
	return func(m *Manager) {
		t := NewLoginThrottle(maxAttempts, window)
		t.setNowFunc(m.nowTime)
		m.throttle = t
	}
}

// NewManager initializes a Manager with required dependencies. Optional
// configuration can be provided via options (e.g. WithNowTime for
// testing).
func NewManager(backend API, store storage.Store, options ...ManagerOption) (*Manager, error) {
	if backend == nil {
		return nil, errors.New("[NewManager] backend API is required")
	}
	if store == nil {
		return nil, errors.New("[NewManager] store is required")
	}

	m := &Manager{
		backend:  backend,
		store:    store,
		throttle: NewLoginThrottle(DefaultMaxAttempts, DefaultLockoutWindow),
		nowTime:  time.Now,
	}

	for _, opt := range options {
		opt(m)
	}

	return m, nil
}

// Login authenticates the identifier against the backend, then fetches
// and adopts the user profile. A full throttle bucket rejects the call
// before any network I/O. A profile-fetch failure after a successful
// credential exchange tears the whole session down: the invariant is a
// token never outlives its matching user.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	if err := m.throttle.Check(email); err != nil {
		return err
	}

	res, err := m.backend.Login(ctx, email, password)
	if err != nil {
		m.throttle.RecordFailure(email)
		return errors.Wrap(err, "[Manager.Login] backend.Login")
	}
	m.throttle.Reset(email)

	if err := m.adoptToken(res.Token); err != nil {
		return errors.Wrap(err, "[Manager.Login] adoptToken")
	}

	user, err := m.backend.Profile(ctx, res.Token)
	if err != nil {
		m.Logout()
		return fmt.Errorf("[Manager.Login] %w: %v", ProfileFetchErr, err)
	}
	normalizeUser(user, res)

	if err := m.adoptUser(user); err != nil {
		return errors.Wrap(err, "[Manager.Login] adoptUser")
	}
	return nil
}

// Logout clears the persisted and in-memory session. Idempotent and
// purely local - no network call is made.
func (m *Manager) Logout() {
	if err := m.store.Delete(storage.TokenKey); err != nil {
		log.Warn().Err(err).Msg("failed to clear persisted token")
	}
	if err := m.store.Delete(storage.UserKey); err != nil {
		log.Warn().Err(err).Msg("failed to clear persisted user info")
	}
	m.mu.Lock()
	m.token = ""
	m.user = nil
	m.mu.Unlock()
}

// RefreshToken renews the held token. Returns false without a network
// call when no token is held; on backend failure the prior token stays in
// place and false is returned - callers decide whether that warrants a
// logout.
func (m *Manager) RefreshToken(ctx context.Context) bool {
	current := m.Token()
	if current == "" {
		return false
	}

	newToken, err := m.backend.Refresh(ctx, current)
	if err != nil {
		log.Warn().Err(err).Msg("token refresh failed")
		return false
	}
	if err := m.adoptToken(newToken); err != nil {
		log.Warn().Err(err).Msg("failed to persist refreshed token")
		return false
	}
	return true
}

// UpdateProfile updates the user's name on the backend and adopts the
// returned profile. On failure no local state changes.
func (m *Manager) UpdateProfile(ctx context.Context, firstName, lastName string) error {
	current := m.Token()
	if current == "" {
		return NotAuthenticatedErr
	}

	updated, err := m.backend.UpdateProfile(ctx, current, firstName, lastName)
	if err != nil {
		return errors.Wrap(err, "[Manager.UpdateProfile] backend.UpdateProfile")
	}
	if err := m.adoptUser(updated); err != nil {
		return errors.Wrap(err, "[Manager.UpdateProfile] adoptUser")
	}
	return nil
}

// Hydrate restores the session from persisted storage at startup. A
// stored token without a parseable cached user triggers a profile fetch;
// failure there tears the session down, exactly like during login.
func (m *Manager) Hydrate(ctx context.Context) error {
	storedToken, err := m.store.Get(storage.TokenKey)
	if err != nil {
		if errors.Is(err, storage.NotFoundErr) {
			return nil
		}
		return errors.Wrap(err, "[Manager.Hydrate] Get token")
	}

	m.mu.Lock()
	m.token = storedToken
	m.mu.Unlock()

	if storedUser, err := m.store.Get(storage.UserKey); err == nil {
		var user users.User
		unmarshalErr := json.Unmarshal([]byte(storedUser), &user)
		if unmarshalErr == nil {
			m.mu.Lock()
			m.user = &user
			m.mu.Unlock()
			return nil
		}
		log.Warn().Err(unmarshalErr).Msg("cached user info unreadable, refetching profile")
	}

	user, err := m.backend.Profile(ctx, storedToken)
	if err != nil {
		m.Logout()
		return fmt.Errorf("[Manager.Hydrate] %w: %v", ProfileFetchErr, err)
	}
	if err := m.adoptUser(user); err != nil {
		return errors.Wrap(err, "[Manager.Hydrate] adoptUser")
	}
	return nil
}

// Token returns the held bearer token, or "" when anonymous.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// User returns a copy of the resolved profile, or nil when anonymous.
func (m *Manager) User() *users.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Authenticated reports whether a token and matching user are held.
func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token != "" && m.user != nil
}

// Throttle exposes the login throttle for inspection.
func (m *Manager) Throttle() *LoginThrottle {
	return m.throttle
}

func (m *Manager) adoptToken(token string) error {
	if err := m.store.Set(storage.TokenKey, token); err != nil {
		return errors.Wrap(err, "persist token")
	}
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *Manager) adoptUser(user *users.User) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "marshal user")
	}
	if err := m.store.Set(storage.UserKey, string(payload)); err != nil {
		return errors.Wrap(err, "persist user")
	}
	m.mu.Lock()
	m.user = user
	m.mu.Unlock()
	return nil
}

// normalizeUser backfills identity fields from a legacy login response
// when the profile endpoint omits them.
func normalizeUser(user *users.User, res *api.LoginResponse) {
	if user.UserID == "" {
		user.UserID = res.UserID
	}
	if user.TenantID == "" {
		user.TenantID = res.TenantID
	}
}
