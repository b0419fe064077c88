package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/staticnest/staticnest/internal/apperr"
	"github.com/staticnest/staticnest/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "metadata.json"), zap.NewNop())
	require.NoError(t, err)
	return store
}

func hostedProject(id, hash string) *models.Project {
	return &models.Project{
		ID:           id,
		Name:         "Test",
		Type:         models.TypeHosted,
		PublicHash:   hash,
		RuntimeState: models.RuntimeStopped,
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)

	created, err := store.Create(hostedProject("a1b2c3d4e5f60718", "aabbccddeeff"))
	require.NoError(t, err)
	require.False(t, created.CreatedAt.IsZero())
	require.Equal(t, created.CreatedAt, created.UpdatedAt)

	got, err := store.Get("a1b2c3d4e5f60718")
	require.NoError(t, err)
	require.Equal(t, "Test", got.Name)
	require.Equal(t, models.TypeHosted, got.Type)
}

func TestStore_GetNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get("missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStore_CreateDuplicateID(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create(hostedProject("a1b2c3d4e5f60718", "aabbccddeeff"))
	require.NoError(t, err)

	_, err = store.Create(hostedProject("a1b2c3d4e5f60718", "001122334455"))
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestStore_GetByPublicHash(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create(hostedProject("a1b2c3d4e5f60718", "aabbccddeeff"))
	require.NoError(t, err)
	_, err = store.Create(&models.Project{
		ID:          "ffeeddccbbaa9988",
		Name:        "External",
		Type:        models.TypeExternal,
		ExternalURL: "https://example.com",
	})
	require.NoError(t, err)

	got, err := store.GetByPublicHash("aabbccddeeff")
	require.NoError(t, err)
	require.Equal(t, "a1b2c3d4e5f60718", got.ID)

	// External projects carry no hash and are never matched.
	_, err = store.GetByPublicHash("")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = store.GetByPublicHash("ffeeddccbbaa9988")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStore_UpdateMergesSuppliedFieldsOnly(t *testing.T) {
	store := newTestStore(t)

	created, err := store.Create(hostedProject("a1b2c3d4e5f60718", "aabbccddeeff"))
	require.NoError(t, err)

	desc := "about this site"
	updated, err := store.Update("a1b2c3d4e5f60718", models.ProjectUpdate{Description: &desc})
	require.NoError(t, err)
	require.Equal(t, "about this site", updated.Description)
	require.Equal(t, "Test", updated.Name, "unsupplied fields stay untouched")
	require.True(t, updated.UpdatedAt.After(created.CreatedAt) || updated.UpdatedAt.Equal(created.CreatedAt))

	_, err = store.Update("missing", models.ProjectUpdate{Description: &desc})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStore_SetRuntimeClearsPortOnStop(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create(hostedProject("a1b2c3d4e5f60718", "aabbccddeeff"))
	require.NoError(t, err)

	running, err := store.SetRuntime("a1b2c3d4e5f60718", models.RuntimeRunning, "32768", "http://localhost:32768")
	require.NoError(t, err)
	require.Equal(t, models.RuntimeRunning, running.RuntimeState)
	require.Equal(t, "32768", running.Port)
	require.Equal(t, "http://localhost:32768", running.AccessURL)

	stopped, err := store.SetRuntime("a1b2c3d4e5f60718", models.RuntimeStopped, "", "")
	require.NoError(t, err)
	require.Equal(t, models.RuntimeStopped, stopped.RuntimeState)
	require.Empty(t, stopped.Port)
	require.Empty(t, stopped.AccessURL)
}

func TestStore_DeleteReturnsRemovedRecord(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create(hostedProject("a1b2c3d4e5f60718", "aabbccddeeff"))
	require.NoError(t, err)

	removed, err := store.Delete("a1b2c3d4e5f60718")
	require.NoError(t, err)
	require.Equal(t, "Test", removed.Name)

	_, err = store.Get("a1b2c3d4e5f60718")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = store.Delete("a1b2c3d4e5f60718")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

// Concurrent creators must never lose each other's writes: every record has
// to survive the interleaved load-mutate-save cycles.
func TestStore_NoLostUpdates(t *testing.T) {
	store := newTestStore(t)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("%016d", i)
			_, err := store.Create(hostedProject(id, fmt.Sprintf("%012d", i)))
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	projects, err := store.List()
	require.NoError(t, err)
	require.Len(t, projects, writers)
}

func TestStore_ConcurrentUpdatesKeepDocumentWellFormed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metadata.json")
	store, err := NewStore(path, zap.NewNop())
	require.NoError(t, err)

	_, err = store.Create(hostedProject("a1b2c3d4e5f60718", "aabbccddeeff"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			desc := fmt.Sprintf("revision %d", i)
			_, err := store.Update("a1b2c3d4e5f60718", models.ProjectUpdate{Description: &desc})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// The document on disk is always a complete, parseable registry.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	got, err := store.Get("a1b2c3d4e5f60718")
	require.NoError(t, err)
	require.Regexp(t, `^revision \d$`, got.Description)
}

func TestStore_MissingDocumentIsEmptyRegistry(t *testing.T) {
	store := newTestStore(t)

	projects, err := store.List()
	require.NoError(t, err)
	require.Empty(t, projects)
}
