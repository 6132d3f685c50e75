package storage

import "sync"

// Backend is an in-memory key/value store shared by one or more Tab
// handles. It reproduces browser storage-event semantics: a write made
// through one tab is visible to every tab immediately, but change
// notifications are delivered only to the *other* tabs.
type Backend struct {
	lock   sync.RWMutex
	values map[string]string
	tabs   []*Tab
}

func NewBackend() *Backend {
	return &Backend{
		values: make(map[string]string),
	}
}

// NewTab creates a new handle onto the shared backend, analogous to
// opening the application in another browser tab.
func (b *Backend) NewTab() *Tab {
	b.lock.Lock()
	defer b.lock.Unlock()
	tab := &Tab{
		backend:  b,
		watchers: make(map[string]map[int]ChangeHandler),
	}
	b.tabs = append(b.tabs, tab)
	return tab
}

// NewMemory returns a single-tab in-memory store.
func NewMemory() Store {
	return NewBackend().NewTab()
}

func (b *Backend) set(origin *Tab, key, value string) {
	b.lock.Lock()
	b.values[key] = value
	tabs := make([]*Tab, len(b.tabs))
	copy(tabs, b.tabs)
	b.lock.Unlock()

	for _, tab := range tabs {
		if tab != origin {
			tab.notify(key, &value)
		}
	}
}

func (b *Backend) delete(origin *Tab, key string) {
	b.lock.Lock()
	_, existed := b.values[key]
	delete(b.values, key)
	tabs := make([]*Tab, len(b.tabs))
	copy(tabs, b.tabs)
	b.lock.Unlock()

	if !existed {
		return
	}
	for _, tab := range tabs {
		if tab != origin {
			tab.notify(key, nil)
		}
	}
}

func (b *Backend) get(key string) (string, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	value, ok := b.values[key]
	if !ok {
		return "", NotFoundErr
	}
	return value, nil
}

// Tab is one handle onto a shared Backend.
type Tab struct {
	backend   *Backend
	lock      sync.Mutex
	watchers  map[string]map[int]ChangeHandler
	nextWatch int
}

var _ Store = (*Tab)(nil)

func (t *Tab) Get(key string) (string, error) {
	return t.backend.get(key)
}

func (t *Tab) Set(key, value string) error {
	t.backend.set(t, key, value)
	return nil
}

func (t *Tab) Delete(key string) error {
	t.backend.delete(t, key)
	return nil
}

func (t *Tab) Watch(key string, handler ChangeHandler) (cancel func()) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.watchers[key] == nil {
		t.watchers[key] = make(map[int]ChangeHandler)
	}
	id := t.nextWatch
	t.nextWatch++
	t.watchers[key][id] = handler

	return func() {
		t.lock.Lock()
		defer t.lock.Unlock()
		delete(t.watchers[key], id)
	}
}

func (t *Tab) notify(key string, value *string) {
	t.lock.Lock()
	handlers := make([]ChangeHandler, 0, len(t.watchers[key]))
	for _, h := range t.watchers[key] {
		handlers = append(handlers, h)
	}
	t.lock.Unlock()

	for _, h := range handlers {
		h(key, value)
	}
}
