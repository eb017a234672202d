package snapshot_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkthebay/checkthebay/internal/conditions"
	"github.com/checkthebay/checkthebay/internal/snapshot"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestStore_LoadColdStart(t *testing.T) {
	store := snapshot.NewStore(snapshot.NewMemoryBackend(), zerolog.Nop())

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := snapshot.NewMemoryBackend()
	store := snapshot.NewStore(backend, zerolog.Nop())

	in := conditions.EmptySnapshot(t0)
	in.Stale = false
	rating := conditions.RatingCaution
	in.Rating = &rating
	in.Errors = []string{"radar: upstream unavailable: unexpected status code: 503"}

	_, err := store.SaveSnapshot(ctx, in)
	require.NoError(t, err)

	// A fresh store over the same backend reads what was written.
	reopened := snapshot.NewStore(backend, zerolog.Nop())
	out, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.Equal(t, in.UpdatedAt, out.UpdatedAt)
	assert.Equal(t, conditions.RatingCaution, *out.Rating)
	assert.Equal(t, in.Errors, out.Errors)
	assert.False(t, out.Stale)
}

func TestStore_MergeKeepsAbsentKeys(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewStore(snapshot.NewMemoryBackend(), zerolog.Nop())

	_, err := store.Save(ctx, snapshot.Patch{
		"updatedAt": raw(t, t0),
		"radar":     raw(t, conditions.Radar{ImageURL: conditions.Ptr("https://example.test/a.gif")}),
	})
	require.NoError(t, err)

	merged, err := store.Save(ctx, snapshot.Patch{
		"updatedAt": raw(t, t0.Add(time.Minute)),
		"moon":      raw(t, conditions.Moon{Phase: conditions.Ptr("Full Moon")}),
	})
	require.NoError(t, err)

	assert.Equal(t, "https://example.test/a.gif", *merged.Radar.ImageURL)
	assert.Equal(t, "Full Moon", *merged.Moon.Phase)
	assert.Equal(t, t0.Add(time.Minute), merged.UpdatedAt)
}

func TestStore_UpdatedAtNeverMovesBackward(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewStore(snapshot.NewMemoryBackend(), zerolog.Nop())

	_, err := store.Save(ctx, snapshot.Patch{"updatedAt": raw(t, t0)})
	require.NoError(t, err)

	merged, err := store.Save(ctx, snapshot.Patch{
		"updatedAt": raw(t, t0.Add(-time.Hour)),
		"stale":     raw(t, true),
	})
	require.NoError(t, err)

	assert.Equal(t, t0, merged.UpdatedAt)
	assert.True(t, merged.Stale)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, t0, loaded.UpdatedAt)
}

func TestStore_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewStore(snapshot.NewMemoryBackend(), zerolog.Nop())
	snap := conditions.EmptySnapshot(t0)

	first, err := store.SaveSnapshot(ctx, snap)
	require.NoError(t, err)
	second, err := store.SaveSnapshot(ctx, snap)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestStore_ConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	backend := snapshot.NewMemoryBackend()
	store := snapshot.NewStore(backend, zerolog.Nop())

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.SaveSnapshot(ctx, conditions.EmptySnapshot(t0.Add(time.Duration(i)*time.Minute)))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(19*time.Minute), loaded.UpdatedAt)
	assert.Equal(t, 20, backend.Writes())
}

func TestStore_LoadedSnapshotsAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewStore(snapshot.NewMemoryBackend(), zerolog.Nop())

	in := conditions.EmptySnapshot(t0)
	in.Errors = []string{"wind: upstream unavailable"}
	in.Stations = []conditions.StationConditions{{StationID: "central_bay"}}
	in.Wind.Stations = map[string]conditions.StationWind{"central_bay": {}}
	saved, err := store.SaveSnapshot(ctx, in)
	require.NoError(t, err)

	first, err := store.Load(ctx)
	require.NoError(t, err)
	first.Errors[0] = "mutated"
	first.Stations[0].StationID = "mutated"
	first.Wind.Stations["mutated"] = conditions.StationWind{}
	saved.Errors = append(saved.Errors, "mutated")

	second, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"wind: upstream unavailable"}, second.Errors)
	assert.Equal(t, "central_bay", second.Stations[0].StationID)
	assert.NotContains(t, second.Wind.Stations, "mutated")
}

func TestStore_CorruptDocumentIsColdStart(t *testing.T) {
	ctx := context.Background()
	backend := snapshot.NewMemoryBackend()
	require.NoError(t, backend.Write(ctx, []byte("{not json")))

	store := snapshot.NewStore(backend, zerolog.Nop())
	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestFileBackend_AtomicWrite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "snapshot.json")
	backend := snapshot.NewFileBackend(path)

	_, err := backend.Read(ctx)
	assert.ErrorIs(t, err, snapshot.ErrNotFound)

	store := snapshot.NewStore(backend, zerolog.Nop())
	for i := range 3 {
		_, err := store.SaveSnapshot(ctx, conditions.EmptySnapshot(t0.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "snapshot.json", entries[0].Name())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc conditions.Snapshot
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, t0.Add(2*time.Minute), doc.UpdatedAt)
}

func TestFileBackend_DefaultPath(t *testing.T) {
	assert.Equal(t, snapshot.DefaultPath, snapshot.NewFileBackend("").Path())
}
