package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore returns a store backed by a temp directory.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	store, err := NewStore()
	require.NoError(t, err)
	return store
}

func TestStoreOperations(t *testing.T) {
	store := newTestStore(t)

	// Fresh store has no context
	_, err := store.GetCurrentContext()
	assert.ErrorIs(t, err, ErrNoCurrentContext)

	// SetContext makes the context current
	require.NoError(t, store.SetContext("default", &Context{
		ServerURL: "http://localhost:8080",
		Token:     "admin-token",
	}))

	ctx, err := store.GetCurrentContext()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", ctx.ServerURL)
	assert.Equal(t, "admin-token", ctx.Token)
	assert.Equal(t, "default", store.GetCurrentContextName())

	// Config file is persisted with restricted permissions
	info, err := os.Stat(store.ConfigPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePermissions), info.Mode().Perm())
}

func TestStoreReload(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SetContext("prod", &Context{
		ServerURL: "https://ids.example.com",
		Token:     "tok",
	}))

	// A second store over the same path sees the saved state
	reloaded, err := NewStore()
	require.NoError(t, err)

	ctx, err := reloaded.GetCurrentContext()
	require.NoError(t, err)
	assert.Equal(t, "https://ids.example.com", ctx.ServerURL)
}

func TestStoreContextSwitching(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SetContext("staging", &Context{ServerURL: "http://staging:8080"}))
	require.NoError(t, store.SetContext("prod", &Context{ServerURL: "http://prod:8080"}))

	// SetContext switched current to prod
	assert.Equal(t, "prod", store.GetCurrentContextName())
	assert.Equal(t, []string{"prod", "staging"}, store.ListContexts())

	require.NoError(t, store.UseContext("staging"))
	ctx, err := store.GetCurrentContext()
	require.NoError(t, err)
	assert.Equal(t, "http://staging:8080", ctx.ServerURL)

	assert.ErrorIs(t, store.UseContext("missing"), ErrContextNotFound)
}

func TestStoreDeleteContext(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SetContext("default", &Context{ServerURL: "http://localhost:8080"}))

	require.NoError(t, store.DeleteContext("default"))
	_, err := store.GetCurrentContext()
	assert.ErrorIs(t, err, ErrNoCurrentContext)

	assert.ErrorIs(t, store.DeleteContext("default"), ErrContextNotFound)
}

func TestStoreClearCurrentContext(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SetContext("default", &Context{
		ServerURL: "http://localhost:8080",
		Token:     "tok",
	}))

	require.NoError(t, store.ClearCurrentContext())

	ctx, err := store.GetCurrentContext()
	require.NoError(t, err)
	assert.Empty(t, ctx.Token)
	assert.Equal(t, "http://localhost:8080", ctx.ServerURL)
}

func TestStorePreferences(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SetPreferences(Preferences{DefaultOutput: "json"}))

	reloaded, err := NewStore()
	require.NoError(t, err)
	assert.Equal(t, "json", reloaded.GetPreferences().DefaultOutput)
}

func TestGetConfigPathUsesXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path, err := getConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultConfigDir, ConfigFileName), path)
}
