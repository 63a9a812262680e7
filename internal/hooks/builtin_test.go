package hooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptHookExportsEvent(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	dir := t.TempDir()
	out := filepath.Join(dir, "env.txt")
	script := filepath.Join(dir, "hook.sh")
	require.NoError(t, os.WriteFile(script, []byte("env | grep '^GENPOD_' > \"$1\"\n"), 0o755))

	hook, err := NewScriptHook(&Config{
		Name:    "env",
		Events:  []EventType{EventPhaseChange},
		Options: map[string]any{"script": script, "args": []any{out}},
	})
	require.NoError(t, err)

	event := NewEvent(EventPhaseChange, "thread-7", "EXECUTING", 3, map[string]string{"from": "INITIAL"})
	require.NoError(t, hook.Execute(context.Background(), event))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	env := string(data)
	assert.Contains(t, env, "GENPOD_EVENT=on_phase_change")
	assert.Contains(t, env, "GENPOD_THREAD_ID=thread-7")
	assert.Contains(t, env, "GENPOD_PHASE=EXECUTING")
	assert.Contains(t, env, "GENPOD_STEP=3")
	assert.Contains(t, env, "GENPOD_FROM=INITIAL")
}

func TestScriptHookFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	script := filepath.Join(t.TempDir(), "fail.sh")
	require.NoError(t, os.WriteFile(script, []byte("echo nope >&2\nexit 3\n"), 0o755))

	hook, err := NewScriptHook(&Config{Name: "fail", Options: map[string]any{"script": script}})
	require.NoError(t, err)

	err = hook.Execute(context.Background(), NewEvent(EventHalted, "t", "HALTED", 1, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestWebhookHookPostsEvent(t *testing.T) {
	var got Event
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	hook, err := NewWebhookHook(&Config{
		Name:    "hook",
		Events:  []EventType{EventRunComplete},
		Options: map[string]any{"url": srv.URL, "headers": map[string]any{"Authorization": "Bearer x"}},
	})
	require.NoError(t, err)

	require.NoError(t, hook.Execute(context.Background(), NewEvent(EventRunComplete, "thread-9", "DONE", 40, nil)))
	assert.Equal(t, EventRunComplete, got.Type)
	assert.Equal(t, "thread-9", got.ThreadID)
	assert.Equal(t, 40, got.Step)
	assert.Equal(t, "Bearer x", auth)
}

func TestWebhookHookErrors(t *testing.T) {
	_, err := NewWebhookHook(&Config{Name: "hook"})
	assert.ErrorContains(t, err, "url required")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	hook, err := NewWebhookHook(&Config{Name: "hook", Options: map[string]any{"url": srv.URL}})
	require.NoError(t, err)
	err = hook.Execute(context.Background(), NewEvent(EventRunStart, "t", "RECEIVED", 0, nil))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "502"))
}
