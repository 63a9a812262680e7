package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/genpod/internal/domain"
)

func TestProgress(t *testing.T) {
	s := stateIn(domain.PStatusExecuting, nil)
	assert.Zero(t, s.Progress().Completion)
	assert.Equal(t, "0.00%", s.Progress().CompletionString())

	done := domain.NewTask("a", "", "")
	done.Status = domain.StatusDone
	current := domain.NewTask("b", "", "")
	require.NoError(t, s.Tasks.Extend(done, current))
	s.CurrentTask = current

	pt := domain.NewPlannedTask(current.ID, "b.1", false)
	pt.Status = domain.StatusDone
	abandoned := domain.NewPlannedTask(current.ID, "b.2", false)
	abandoned.Status = domain.StatusAbandoned
	require.NoError(t, s.PlannedTasks.Extend(pt, abandoned))
	s.CurrentPlannedTask = abandoned

	p := s.Progress()
	assert.Equal(t, 2, p.TaskIndex)
	assert.Equal(t, 2, p.TaskTotal)
	assert.Equal(t, 2, p.PlannedTaskIndex)
	assert.Zero(t, p.IssueIndex)
	assert.Zero(t, p.IssueTotal)
	assert.Equal(t, "50.00%", p.CompletionString(), "two of four items are DONE")

	s.ProjectStatus = domain.PStatusDone
	assert.Equal(t, 100.0, s.Progress().Completion)
}
