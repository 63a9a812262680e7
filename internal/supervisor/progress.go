package supervisor

import (
	"fmt"

	"github.com/felixgeelhaar/genpod/internal/domain"
)

// Progress summarizes where a run stands for status output.
type Progress struct {
	Phase        domain.PStatus
	Step         int
	AgentsStatus string

	// Index fields are 1-based positions of the current item, 0 when it is
	// not in its queue.
	TaskIndex, TaskTotal                 int
	PlannedTaskIndex, PlannedTaskTotal   int
	IssueIndex, IssueTotal               int
	PlannedIssueIndex, PlannedIssueTotal int

	// Completion is the share of DONE items across all four queues, in percent.
	Completion float64
}

// Progress computes the run's progress from its queues.
func (s *State) Progress() Progress {
	s.ensureQueues()
	p := Progress{
		Phase:             s.ProjectStatus,
		Step:              s.Step,
		AgentsStatus:      s.AgentsStatus,
		TaskIndex:         s.Tasks.Position(s.CurrentTask.ID),
		TaskTotal:         s.Tasks.Len(),
		PlannedTaskIndex:  s.PlannedTasks.Position(s.CurrentPlannedTask.ID),
		PlannedTaskTotal:  s.PlannedTasks.Len(),
		IssueIndex:        s.Issues.Position(s.CurrentIssue.ID),
		IssueTotal:        s.Issues.Len(),
		PlannedIssueIndex: s.PlannedIssues.Position(s.CurrentPlannedIssue.ID),
		PlannedIssueTotal: s.PlannedIssues.Len(),
	}

	total := p.TaskTotal + p.PlannedTaskTotal + p.IssueTotal + p.PlannedIssueTotal
	switch {
	case s.ProjectStatus == domain.PStatusDone:
		p.Completion = 100
	case total > 0:
		done := s.Tasks.CountDone() + s.PlannedTasks.CountDone() + s.Issues.CountDone() + s.PlannedIssues.CountDone()
		p.Completion = float64(done) * 100 / float64(total)
	}
	return p
}

// CompletionString renders the completion as "12.50%".
func (p Progress) CompletionString() string {
	return fmt.Sprintf("%.2f%%", p.Completion)
}
