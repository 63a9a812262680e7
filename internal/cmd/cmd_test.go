package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/genpod/internal/checkpoint"
	"github.com/felixgeelhaar/genpod/internal/errors"
	"github.com/felixgeelhaar/genpod/internal/supervisor"
)

// execute runs the root command with args against a config whose stores live
// in a temp dir, and returns what it printed.
func execute(t *testing.T, storeDir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cfg := filepath.Join(t.TempDir(), "genpod.yaml")
	body := "store:\n  backend: file\n  path: " + storeDir + "\nregistry:\n  path: " +
		filepath.Join(t.TempDir(), "registry.db") + "\n"
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o600))

	t.Cleanup(func() {
		checkpointJSON = false
		versionJSON = false
		versionVerbose = false
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--config", cfg))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "genpod ")

	out, err = execute(t, t.TempDir(), "version", "--json")
	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
}

func TestCheckpointListEmpty(t *testing.T) {
	out, err := execute(t, t.TempDir(), "checkpoint", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No checkpoints.")
}

func TestCheckpointShow(t *testing.T) {
	dir := t.TempDir()
	st := supervisor.NewState(supervisor.RunContext{
		ThreadID:       "thread-1",
		ProjectID:      "p",
		MicroserviceID: "m",
	}, supervisor.ProjectRequest{Input: "a todo API"})
	snap, err := checkpoint.NewSnapshot(st.ThreadID, st.Step, st.ProjectStatus.String(), st)
	require.NoError(t, err)
	require.NoError(t, checkpoint.NewFileStore(dir).Save(context.Background(), snap))

	out, err := execute(t, dir, "checkpoint", "show", "thread-1", "--json")
	require.NoError(t, err)

	var got supervisor.State
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "thread-1", got.ThreadID)
	assert.Equal(t, "a todo API", got.OriginalUserInput)

	out, err = execute(t, dir, "checkpoint", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "thread-1")
}

func TestStatusUnknownThread(t *testing.T) {
	_, err := execute(t, t.TempDir(), "status", "missing")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStoreNotFound, errors.CodeOf(err))
}

func TestGenerateRejectsCheckpointedThread(t *testing.T) {
	dir := t.TempDir()
	st := supervisor.NewState(supervisor.RunContext{ThreadID: "thread-1"}, supervisor.ProjectRequest{Input: "a todo API"})
	snap, err := checkpoint.NewSnapshot(st.ThreadID, 7, "EXECUTING", st)
	require.NoError(t, err)
	require.NoError(t, checkpoint.NewFileStore(dir).Save(context.Background(), snap))

	_, err = execute(t, dir, "generate", "--input", "another API", "--thread", "thread-1", "--yes")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStoreThreadTaken, errors.CodeOf(err))

	kept, err := checkpoint.NewFileStore(dir).Load(context.Background(), "thread-1")
	require.NoError(t, err)
	assert.Equal(t, 7, kept.Step)
}

func TestReadRequest(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		return path
	}

	tests := []struct {
		name    string
		path    string
		want    supervisor.ProjectRequest
		errCode errors.ErrorCode
	}{
		{
			name: "yaml",
			path: write("req.yaml", "input: |\n  A todo API\nlicense_url: https://example.com/LICENSE\n"),
			want: supervisor.ProjectRequest{Input: "A todo API", LicenseURL: "https://example.com/LICENSE"},
		},
		{
			name: "json",
			path: write("req.json", `{"input": " A todo API ", "license_text": "MIT"}`),
			want: supervisor.ProjectRequest{Input: "A todo API", LicenseText: "MIT"},
		},
		{
			name: "plain text",
			path: write("req.txt", "A todo API\n"),
			want: supervisor.ProjectRequest{Input: "A todo API"},
		},
		{
			name:    "empty input",
			path:    write("empty.yaml", "license_url: x\n"),
			errCode: errors.ErrCodeAgentBadInput,
		},
		{
			name:    "malformed",
			path:    write("bad.json", `{"input": `),
			errCode: errors.ErrCodeFileUnmarshal,
		},
		{
			name:    "missing",
			path:    filepath.Join(dir, "nope.yaml"),
			errCode: errors.ErrCodeFileNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readRequest(tt.path)
			if tt.errCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.errCode, errors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequestFromArgs(t *testing.T) {
	req, err := requestFromArgs(nil, "  A todo API ")
	require.NoError(t, err)
	assert.Equal(t, "A todo API", req.Input)

	_, err = requestFromArgs(nil, "")
	assert.Error(t, err)

	_, err = requestFromArgs([]string{"req.yaml"}, "inline")
	assert.Error(t, err)
}
