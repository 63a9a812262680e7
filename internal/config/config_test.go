package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/genpod/internal/errors"
	"github.com/felixgeelhaar/genpod/internal/hooks"
	"github.com/felixgeelhaar/genpod/internal/supervisor"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genpod.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Empty(t, cfg.File)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, time.Second, cfg.LLM.InitialBackoff)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, supervisor.DefaultRecursionLimit, cfg.Supervisor.RecursionLimit)
	assert.Equal(t, supervisor.DefaultMaxReviewCycles, cfg.Review.MaxCycles)
	assert.NotEmpty(t, cfg.Shell.AllowedCommands)
	assert.Equal(t, 2*time.Minute, cfg.Shell.Timeout)
	assert.Empty(t, cfg.Hooks)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: json
llm:
  provider: openai
  model: gpt-4o-mini
  max_backoff: 10s
store:
  backend: file
  path: /tmp/genpod-checkpoints
review:
  commands: ["go vet ./...", "go test ./..."]
  max_cycles: 1
supervisor:
  recursion_limit: 80
hooks:
  - name: notify
    type: webhook
    events: [on_run_complete, on_halted]
    enabled: true
    timeout: 5s
    config:
      url: http://localhost:8080/hook
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 10*time.Second, cfg.LLM.MaxBackoff)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, []string{"go vet ./...", "go test ./..."}, cfg.Review.Commands)

	sv := cfg.SupervisorSettings()
	assert.Equal(t, 80, sv.RecursionLimit)
	assert.Equal(t, 1, sv.MaxReviewCycles)
	assert.Equal(t, supervisor.DefaultMaxItemAttempts, sv.MaxItemAttempts)

	require.Len(t, cfg.Hooks, 1)
	h := cfg.Hooks[0]
	assert.Equal(t, "notify", h.Name)
	assert.Equal(t, "webhook", h.Type)
	assert.Equal(t, []hooks.EventType{hooks.EventRunComplete, hooks.EventHalted}, h.Events)
	assert.True(t, h.Enabled)
	assert.Equal(t, 5*time.Second, h.Timeout)
	assert.Equal(t, "http://localhost:8080/hook", h.Options["url"])
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "llm:\n  model: from-file\n")
	t.Setenv("GENPOD_LLM_MODEL", "from-env")
	t.Setenv("GENPOD_SUPERVISOR_MAX_ITEM_ATTEMPTS", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.Model)
	assert.Equal(t, 7, cfg.Supervisor.MaxItemAttempts)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		body string
		key  string
	}{
		{"provider", "llm:\n  provider: bard\n", "llm.provider"},
		{"replay without fixture", "llm:\n  provider: replay\n", "llm.replay_file"},
		{"backend", "store:\n  backend: redis\n", "store.backend"},
		{"threshold", "rag:\n  similarity_threshold: 1.5\n", "rag.similarity_threshold"},
		{"recursion limit", "supervisor:\n  recursion_limit: 0\n", "supervisor.recursion_limit"},
		{"hook event", "hooks:\n  - name: x\n    type: script\n    events: [on_everything]\n", "hooks.x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeConfigInvalid, errors.CodeOf(err))
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeFileNotFound, errors.CodeOf(err))
}

func TestLoadMalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "log: [unclosed\n"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigLoad, errors.CodeOf(err))
}
