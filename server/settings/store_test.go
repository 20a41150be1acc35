package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := bolt.Open(filepath.Join(t.TempDir(), "test.db"), 0o600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db)
	require.NoError(t, err)
	return store
}

func TestLoadFreshDatabase(t *testing.T) {
	store := openTestStore(t)

	current := store.Load()

	assert.Equal(t, "best", current.Preset)
	assert.NotEmpty(t, current.DownloadDir)
	assert.GreaterOrEqual(t, current.Concurrency, 1)
	assert.LessOrEqual(t, current.Concurrency, 5)
}

func TestSaveRoundTrip(t *testing.T) {
	store := openTestStore(t)

	saved, err := store.Save(Settings{
		DownloadDir: "/downloads",
		Preset:      "720p",
		Concurrency: 3,
		AutoOpen:    true,
	})
	require.NoError(t, err)

	loaded := store.Load()
	assert.Equal(t, saved, loaded)
	assert.Equal(t, "720p", loaded.Preset)
	assert.True(t, loaded.AutoOpen)
}

func TestSaveClampsOutOfRange(t *testing.T) {
	store := openTestStore(t)

	saved, err := store.Save(Settings{Concurrency: 99})
	require.NoError(t, err)
	assert.Equal(t, 5, saved.Concurrency)

	saved, err = store.Save(Settings{Concurrency: -1})
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Concurrency)

	// empty fields come back as defaults
	assert.NotEmpty(t, saved.DownloadDir)
	assert.Equal(t, "best", saved.Preset)
}
