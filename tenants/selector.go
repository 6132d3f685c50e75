package tenants

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/veloflux/go-session/storage"
	"github.com/veloflux/go-session/users"
)

// Selector tracks the active tenant for the current session. The choice
// is persisted under storage.TenantKey and mirrored from other tabs via
// the store's watch channel; changes that arrive from outside are adopted
// in memory without being written back, so two tabs never ping-pong
// storage events between each other.
//
// The Selector performs no network I/O.
type Selector struct {
	store storage.Store

	lock        sync.RWMutex
	selected    string
	subscribers map[int]func(tenantID string)
	nextSub     int
	cancelWatch func()
}

// NewSelector creates a Selector over the given store and begins
// mirroring external changes to the tenant-selection key.
func NewSelector(store storage.Store) (*Selector, error) {
	if store == nil {
		return nil, errors.New("[NewSelector] store is required")
	}
	s := &Selector{
		store:       store,
		subscribers: make(map[int]func(string)),
	}
	s.cancelWatch = store.Watch(storage.TenantKey, s.onExternalChange)
	return s, nil
}

// Initialize seeds the selection: a persisted choice wins; otherwise the
// user's home tenant is adopted and persisted. Safe to call again when
// the session user resolves after startup.
func (s *Selector) Initialize(user *users.User) error {
	if stored, err := s.store.Get(storage.TenantKey); err == nil {
		s.adopt(stored)
		return nil
	}
	if user == nil || user.TenantID == "" {
		return nil
	}
	return s.Select(user.TenantID)
}

// Select sets the active tenant and persists it. An empty id deselects
// and clears the persisted choice.
func (s *Selector) Select(tenantID string) error {
	if tenantID == "" {
		if err := s.store.Delete(storage.TenantKey); err != nil {
			return errors.Wrap(err, "[Selector.Select] Delete")
		}
	} else {
		if err := s.store.Set(storage.TenantKey, tenantID); err != nil {
			return errors.Wrap(err, "[Selector.Select] Set")
		}
	}
	s.adopt(tenantID)
	return nil
}

// SelectedTenantID returns the active tenant id, or "" when none is
// selected.
func (s *Selector) SelectedTenantID() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.selected
}

// Subscribe registers fn to be called whenever the selection changes,
// from this tab or another. Returns a cancel function.
func (s *Selector) Subscribe(fn func(tenantID string)) (cancel func()) {
	s.lock.Lock()
	defer s.lock.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() {
		s.lock.Lock()
		defer s.lock.Unlock()
		delete(s.subscribers, id)
	}
}

// Close stops mirroring storage changes.
func (s *Selector) Close() {
	if s.cancelWatch != nil {
		s.cancelWatch()
	}
}

// onExternalChange mirrors a change made in another tab into memory.
// Deliberately no write-back: the originating tab already persisted it.
func (s *Selector) onExternalChange(_ string, value *string) {
	tenantID := ""
	if value != nil {
		tenantID = *value
	}
	log.Debug().Str("tenant_id", tenantID).Msg("tenant selection mirrored from another tab")
	s.adopt(tenantID)
}

func (s *Selector) adopt(tenantID string) {
	s.lock.Lock()
	if s.selected == tenantID {
		s.lock.Unlock()
		return
	}
	s.selected = tenantID
	subs := make([]func(string), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.lock.Unlock()

	for _, fn := range subs {
		fn(tenantID)
	}
}
