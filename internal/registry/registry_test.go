package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/genpod/internal/errors"
)

func openTest(t *testing.T) *Registry {
	t.Helper()
	r, err := Open(context.Background(), filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return r
}

func run(n string) Run {
	return Run{
		ProjectID:      "project-" + n,
		MicroserviceID: "ms-" + n,
		ThreadID:       "thread-" + n,
		UserID:         "alice",
		Input:          "build a todo api",
		Status:         "RECEIVED",
		ProjectPath:    "/tmp/out/" + n,
	}
}

func TestRegisterAndGet(t *testing.T) {
	ctx := context.Background()
	r := openTest(t)

	require.NoError(t, r.Register(ctx, run("1")))

	got, err := r.Get(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, "project-1", got.ProjectID)
	assert.Equal(t, "ms-1", got.MicroserviceID)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, "RECEIVED", got.Status)
	assert.Equal(t, "/tmp/out/1", got.ProjectPath)

	_, err = r.Get(ctx, "missing")
	assert.Equal(t, errors.ErrCodeRegistryNotFound, errors.CodeOf(err))
}

func TestRegisterRejectsMissingIDs(t *testing.T) {
	r := openTest(t)
	err := r.Register(context.Background(), Run{ThreadID: "t"})
	assert.Error(t, err)
}

func TestRecordStatus(t *testing.T) {
	ctx := context.Background()
	r := openTest(t)
	require.NoError(t, r.Register(ctx, run("1")))

	require.NoError(t, r.RecordStatus(ctx, "thread-1", "EXECUTING", "todo-api"))
	require.NoError(t, r.RecordStatus(ctx, "thread-1", "REVIEWING", ""))

	got, err := r.Get(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, "REVIEWING", got.Status)
	assert.Equal(t, "todo-api", got.Name)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	err = r.RecordStatus(ctx, "nope", "DONE", "")
	assert.Equal(t, errors.ErrCodeRegistryNotFound, errors.CodeOf(err))
}

func TestLatestIncompleteRun(t *testing.T) {
	ctx := context.Background()
	r := openTest(t)
	for _, n := range []string{"1", "2", "3"} {
		require.NoError(t, r.Register(ctx, run(n)))
	}
	other := run("4")
	other.UserID = "bob"
	require.NoError(t, r.Register(ctx, other))

	require.NoError(t, r.RecordStatus(ctx, "thread-3", DoneStatus, ""))
	require.NoError(t, r.RecordStatus(ctx, "thread-1", "HALTED", ""))

	runs, err := r.Incomplete(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "thread-1", runs[0].ThreadID)
	assert.Equal(t, "thread-2", runs[1].ThreadID)

	latest, err := r.Latest(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "thread-1", latest.ThreadID)

	_, err = r.Latest(ctx, "carol")
	assert.Equal(t, errors.ErrCodeRegistryNotFound, errors.CodeOf(err))
}
