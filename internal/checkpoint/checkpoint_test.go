package checkpoint

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleState struct {
	Phase string   `json:"phase"`
	Done  []string `json:"done"`
}

func newStores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	sqlite, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		"file":   NewFileStore(filepath.Join(t.TempDir(), "checkpoints")),
		"sqlite": sqlite,
	}
}

func TestNewSnapshotRequiresThread(t *testing.T) {
	_, err := NewSnapshot("", 1, "NEW", sampleState{})
	assert.Error(t, err)
}

func TestSnapshotDecodeVerifiesDigest(t *testing.T) {
	snap, err := NewSnapshot("thread-1", 3, "EXECUTING", sampleState{Phase: "EXECUTING", Done: []string{"a"}})
	require.NoError(t, err)

	var got sampleState
	require.NoError(t, snap.Decode(&got))
	assert.Equal(t, []string{"a"}, got.Done)

	snap.State = json.RawMessage(`{"phase":"DONE"}`)
	assert.ErrorIs(t, snap.Decode(&got), ErrCorrupt)
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Load(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			for step := 1; step <= 3; step++ {
				snap, err := NewSnapshot("thread-1", step, "EXECUTING", sampleState{Phase: "EXECUTING"})
				require.NoError(t, err)
				require.NoError(t, store.Save(ctx, snap))
			}

			loaded, err := store.Load(ctx, "thread-1")
			require.NoError(t, err)
			assert.Equal(t, 3, loaded.Step)
			assert.Equal(t, SnapshotVersion, loaded.Version)

			var state sampleState
			require.NoError(t, loaded.Decode(&state))
			assert.Equal(t, "EXECUTING", state.Phase)
		})
	}
}

func TestStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			list, err := store.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)

			for _, id := range []string{"a", "b"} {
				for step := 1; step <= 2; step++ {
					snap, err := NewSnapshot(id, step, "NEW", sampleState{})
					require.NoError(t, err)
					require.NoError(t, store.Save(ctx, snap))
				}
			}

			list, err = store.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			for _, sum := range list {
				assert.Equal(t, 2, sum.Step, sum.ThreadID)
			}

			require.NoError(t, store.Delete(ctx, "a"))
			require.NoError(t, store.Delete(ctx, "a"))
			_, err = store.Load(ctx, "a")
			assert.ErrorIs(t, err, ErrNotFound)

			list, err = store.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, "b", list[0].ThreadID)
		})
	}
}

func TestFileStoreDetectsTampering(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(dir)

	snap, err := NewSnapshot("thread-1", 1, "NEW", sampleState{Phase: "NEW"})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, snap))

	path := filepath.Join(dir, "thread-1.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	raw["state"] = map[string]any{"phase": "DONE"}
	data, err = json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = store.Load(ctx, "thread-1")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestFileStoreRejectsPathThreadID(t *testing.T) {
	store := NewFileStore(t.TempDir())
	snap, err := NewSnapshot("../escape", 1, "NEW", sampleState{})
	require.NoError(t, err)
	assert.ErrorIs(t, store.Save(context.Background(), snap), ErrInvalidThreadID)

	ctx := context.Background()
	for _, id := range []string{"../escape", `..\escape`, ""} {
		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, ErrInvalidThreadID, "load %q", id)
		assert.ErrorIs(t, store.Delete(ctx, id), ErrInvalidThreadID, "delete %q", id)
	}
}

func TestSQLiteStoreLoadStep(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "cp.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	for step, phase := range []string{"RECEIVED", "NEW", "INITIAL"} {
		snap, err := NewSnapshot("t", step+1, phase, sampleState{Phase: phase})
		require.NoError(t, err)
		require.NoError(t, store.Save(ctx, snap))
	}

	snap, err := store.LoadStep(ctx, "t", 2)
	require.NoError(t, err)
	assert.Equal(t, "NEW", snap.Phase)

	_, err = store.LoadStep(ctx, "t", 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, "file", t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	store, err = Open(ctx, "sqlite", t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	require.NoError(t, store.Close())

	_, err = Open(ctx, "redis", t.TempDir())
	assert.Error(t, err)
}
