package storage_test

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veloflux/go-session/storage"
)

func TestMemoryRoundTrip(t *testing.T) {
	store := storage.NewMemory()

	_, err := store.Get(storage.TokenKey)
	require.ErrorIs(t, err, storage.NotFoundErr)

	require.NoError(t, store.Set(storage.TokenKey, "tok-1"))
	value, err := store.Get(storage.TokenKey)
	require.NoError(t, err)
	require.Equal(t, "tok-1", value)

	require.NoError(t, store.Delete(storage.TokenKey))
	_, err = store.Get(storage.TokenKey)
	require.ErrorIs(t, err, storage.NotFoundErr)

	// deleting an absent key succeeds
	require.NoError(t, store.Delete(storage.TokenKey))
}

func TestMemoryNotifiesOtherTabsOnly(t *testing.T) {
	backend := storage.NewBackend()
	tabA := backend.NewTab()
	tabB := backend.NewTab()

	var tabAEvents, tabBEvents []string
	cancelA := tabA.Watch(storage.TenantKey, func(_ string, value *string) {
		tabAEvents = append(tabAEvents, deref(value))
	})
	defer cancelA()
	cancelB := tabB.Watch(storage.TenantKey, func(_ string, value *string) {
		tabBEvents = append(tabBEvents, deref(value))
	})
	defer cancelB()

	require.NoError(t, tabA.Set(storage.TenantKey, "t1"))
	require.Empty(t, tabAEvents, "writer must not observe its own write")
	require.Equal(t, []string{"t1"}, tabBEvents)

	// values are shared even though events are not
	value, err := tabA.Get(storage.TenantKey)
	require.NoError(t, err)
	require.Equal(t, "t1", value)

	require.NoError(t, tabB.Delete(storage.TenantKey))
	require.Equal(t, []string{"<deleted>"}, tabAEvents)
	require.Equal(t, []string{"t1"}, tabBEvents)
}

func TestMemoryWatchCancel(t *testing.T) {
	backend := storage.NewBackend()
	tabA := backend.NewTab()
	tabB := backend.NewTab()

	events := 0
	cancel := tabB.Watch(storage.TokenKey, func(string, *string) { events++ })

	require.NoError(t, tabA.Set(storage.TokenKey, "tok-1"))
	cancel()
	require.NoError(t, tabA.Set(storage.TokenKey, "tok-2"))
	require.Equal(t, 1, events)
}

func TestFileRoundTripAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	store, err := storage.NewFile(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(storage.TokenKey, "tok-1"))
	require.NoError(t, store.Set(storage.UserKey, `{"user_id":"u1"}`))
	require.NoError(t, store.Delete(storage.UserKey))
	require.NoError(t, store.Close())

	reopened, err := storage.NewFile(path)
	require.NoError(t, err)
	defer reopened.Close()

	value, err := reopened.Get(storage.TokenKey)
	require.NoError(t, err)
	require.Equal(t, "tok-1", value)
	_, err = reopened.Get(storage.UserKey)
	require.ErrorIs(t, err, storage.NotFoundErr)
}

func TestFileWatchSeesExternalWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	store, err := storage.NewFile(path)
	require.NoError(t, err)
	defer store.Close()

	changes := make(chan string, 1)
	cancel := store.Watch(storage.TenantKey, func(_ string, value *string) {
		changes <- deref(value)
	})
	defer cancel()

	// simulate another process rewriting the file
	require.NoError(t, os.WriteFile(path, []byte(`{"vf_selected_tenant":"t9"}`), 0o600))

	select {
	case got := <-changes:
		require.Equal(t, "t9", got)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for file change notification")
	}
}

func TestEncryptedRoundTrip(t *testing.T) {
	inner := storage.NewMemory()
	key := sha256.Sum256([]byte("passphrase"))
	store, err := storage.NewEncrypted(inner, key[:])
	require.NoError(t, err)

	require.NoError(t, store.Set(storage.TokenKey, "tok-secret"))

	value, err := store.Get(storage.TokenKey)
	require.NoError(t, err)
	require.Equal(t, "tok-secret", value)

	// ciphertext at rest, not the plaintext token
	raw, err := inner.Get(storage.TokenKey)
	require.NoError(t, err)
	require.NotEqual(t, "tok-secret", raw)
	require.NotContains(t, raw, "tok-secret")

	require.NoError(t, store.Delete(storage.TokenKey))
	_, err = store.Get(storage.TokenKey)
	require.ErrorIs(t, err, storage.NotFoundErr)
}

func TestEncryptedRejectsBadKeySize(t *testing.T) {
	_, err := storage.NewEncrypted(storage.NewMemory(), []byte("short"))
	require.Error(t, err)
}

func TestEncryptedWatchDecryptsChanges(t *testing.T) {
	backend := storage.NewBackend()
	key := sha256.Sum256([]byte("passphrase"))

	tabA, err := storage.NewEncrypted(backend.NewTab(), key[:])
	require.NoError(t, err)
	tabB, err := storage.NewEncrypted(backend.NewTab(), key[:])
	require.NoError(t, err)

	var events []string
	cancel := tabB.Watch(storage.TenantKey, func(_ string, value *string) {
		events = append(events, deref(value))
	})
	defer cancel()

	require.NoError(t, tabA.Set(storage.TenantKey, "t1"))
	require.NoError(t, tabA.Delete(storage.TenantKey))
	require.Equal(t, []string{"t1", "<deleted>"}, events)
}

func deref(value *string) string {
	if value == nil {
		return "<deleted>"
	}
	return *value
}
