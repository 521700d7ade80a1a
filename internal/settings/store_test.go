package settings

import (
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *DBStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "settings.db"), hclog.NewNullLogger())
	require.NoError(t, err)
	return store
}

func TestStore_SetAndGet(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set(KeyBackendURL, "http://nas.local:8620"))

	value, ok, err := store.Get(KeyBackendURL)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "http://nas.local:8620", value)
}

func TestStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, ok, err := store.Get("never_set")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_GetDefault(t *testing.T) {
	store := newTestStore(t)

	assert.Equal(t, "Movie", store.GetDefault(KeyLastContentType, "Movie"))

	require.NoError(t, store.Set(KeyLastContentType, "Scene"))
	assert.Equal(t, "Scene", store.GetDefault(KeyLastContentType, "Movie"))
}

func TestStore_Overwrite(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set(KeyLocale, "en"))
	require.NoError(t, store.Set(KeyLocale, "ja"))

	value, ok, err := store.Get(KeyLocale)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ja", value)
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("temp", "x"))
	require.NoError(t, store.Delete("temp"))

	_, ok, err := store.Get("temp")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting an absent key is fine.
	assert.NoError(t, store.Delete("temp"))
}
