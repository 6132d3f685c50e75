package storage

import "errors"

// Keys under which session state is persisted. These match the browser
// storage keys used by the VeloFlux dashboard so exported sessions stay
// interchangeable between hosts.
const (
	TokenKey  = "vf_auth_token"
	UserKey   = "vf_user_info"
	TenantKey = "vf_selected_tenant"
	CSRFKey   = "vf_csrf_token"
)

var NotFoundErr = errors.New("key not found")

// ChangeHandler receives externally-originated changes to a watched key.
// value is nil when the key was deleted.
type ChangeHandler func(key string, value *string)

// Store defines the persistence port for session state. Implementations
// hold JSON-serialized string values under fixed keys and surface changes
// made outside this handle (another tab, another process) through Watch.
// A handle is never notified about its own writes.
type Store interface {
	// Get retrieves the value for a key, or NotFoundErr when absent
	Get(key string) (string, error)

	// Set stores a value under a key
	Set(key, value string) error

	// Delete removes a key, succeeding when the key is already absent
	Delete(key string) error

	// Watch registers a handler for external changes to a key and
	// returns a cancel function that unregisters it
	Watch(key string, handler ChangeHandler) (cancel func())
}
