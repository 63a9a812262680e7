package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/genpod/internal/domain"
	"github.com/felixgeelhaar/genpod/internal/supervisor"
)

func staticLoad(s *supervisor.State, err error) LoadFunc {
	return func(context.Context) (*supervisor.State, error) { return s, err }
}

func TestWatchLoadsState(t *testing.T) {
	st := executingState(t)
	m := NewWatchModel(context.Background(), staticLoad(st, nil), time.Second)

	msg := m.fetch()()
	updated, cmd := m.Update(msg)
	wm := updated.(WatchModel)

	assert.Same(t, st, wm.State())
	assert.False(t, wm.Finished())
	assert.NotNil(t, cmd, "schedules the next reload")
	assert.Contains(t, wm.View(), "thread-42")
}

func TestWatchQuitsWhenDone(t *testing.T) {
	st := executingState(t)
	st.ProjectStatus = domain.PStatusDone
	m := NewWatchModel(context.Background(), staticLoad(st, nil), time.Second)

	updated, cmd := m.Update(m.fetch()())
	wm := updated.(WatchModel)

	assert.True(t, wm.Finished())
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestWatchKeepsLastStateOnError(t *testing.T) {
	st := executingState(t)
	m := NewWatchModel(context.Background(), staticLoad(st, nil), time.Second)
	updated, _ := m.Update(m.fetch()())

	updated, _ = updated.Update(stateMsg{err: errors.New("database is locked"), at: time.Now()})
	wm := updated.(WatchModel)

	assert.Same(t, st, wm.State())
	assert.Contains(t, wm.View(), "database is locked")
}

func TestWatchKeys(t *testing.T) {
	m := NewWatchModel(context.Background(), staticLoad(nil, nil), 0)
	assert.Equal(t, 2*time.Second, m.interval)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	require.NotNil(t, cmd)
	_, ok := cmd().(stateMsg)
	assert.True(t, ok, "refresh reloads the state")

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.True(t, updated.(WatchModel).quitting)
}
