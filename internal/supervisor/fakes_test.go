package supervisor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/genpod/internal/agents"
	"github.com/felixgeelhaar/genpod/internal/agents/architect"
	"github.com/felixgeelhaar/genpod/internal/agents/coder"
	"github.com/felixgeelhaar/genpod/internal/agents/planner"
	"github.com/felixgeelhaar/genpod/internal/agents/rag"
	"github.com/felixgeelhaar/genpod/internal/agents/reviewer"
	"github.com/felixgeelhaar/genpod/internal/agents/testgen"
	"github.com/felixgeelhaar/genpod/internal/domain"
)

type agentFunc[In, Out any] struct {
	name  string
	calls *atomic.Int32
	fn    func(ctx context.Context, in In) (Out, error)
}

func fake[In, Out any](name string, fn func(ctx context.Context, in In) (Out, error)) agentFunc[In, Out] {
	return agentFunc[In, Out]{name: name, calls: &atomic.Int32{}, fn: fn}
}

func (a agentFunc[In, Out]) Name() string { return a.name }

func (a agentFunc[In, Out]) Invoke(ctx context.Context, in In) (Out, error) {
	a.calls.Add(1)
	return a.fn(ctx, in)
}

// happyTeam completes every item on the first try. The reviewer reports one
// issue on its first cycle and none afterwards.
func happyTeam() Team {
	reviews := 0
	return Team{
		RAG: fake(agents.NameRAG, func(_ context.Context, in rag.Input) (rag.Output, error) {
			return rag.Output{Generation: "context for " + in.Question, QueryAnswered: true}, nil
		}),
		Architect: fake(agents.NameArchitect, func(_ context.Context, in architect.Input) (architect.Output, error) {
			task := in.Task
			if task.Status == domain.StatusAwaiting {
				task.Status = domain.StatusResponded
				return architect.Output{Task: task, QueryAnswered: true}, nil
			}
			task.Status = domain.StatusDone
			return architect.Output{
				Task:                 task,
				Tasks:                []domain.Task{domain.NewTask("build the api", "", ""), domain.NewTask("add storage", "", "")},
				RequirementsDocument: domain.RequirementsDocument{ProjectSummary: "A todo service."},
				ProjectName:          "todo",
				MicroserviceName:     "todo-api",
			}, nil
		}),
		Planner: fake(agents.NamePlanner, func(_ context.Context, in planner.Input) (planner.Output, error) {
			if in.ProjectStatus == domain.PStatusResolving {
				issue := in.Issue
				issue.Status = domain.StatusInProgress
				return planner.Output{Issue: issue, PlannedIssues: []domain.PlannedIssue{
					domain.NewPlannedIssue(issue, "fix "+issue.Description, false),
				}}, nil
			}
			task := in.Task
			task.Status = domain.StatusInProgress
			return planner.Output{Task: task, PlannedTasks: []domain.PlannedTask{
				domain.NewPlannedTask(task.ID, "functions for "+task.Description, true),
				domain.NewPlannedTask(task.ID, "wire "+task.Description, false),
			}}, nil
		}),
		TestGenerator: fake(agents.NameTestGenerator, func(_ context.Context, in testgen.Input) (testgen.Output, error) {
			pt := in.PlannedTask
			pt.IsTestCodeGenerated = true
			pt.Status = domain.StatusTestsGenerated
			return testgen.Output{PlannedTask: pt, PlannedIssue: in.PlannedIssue}, nil
		}),
		Coder: fake(agents.NameCoder, func(_ context.Context, in coder.Input) (coder.Output, error) {
			out := coder.Output{PlannedTask: in.PlannedTask, PlannedIssue: in.PlannedIssue}
			id := in.PlannedTask.ID
			if in.ProjectStatus == domain.PStatusResolving {
				out.PlannedIssue.Status = domain.StatusDone
				out.PlannedIssue.IsCodeGenerated = true
				id = in.PlannedIssue.ID
			} else {
				out.PlannedTask.Status = domain.StatusDone
				out.PlannedTask.IsCodeGenerated = true
			}
			out.Plan = domain.CodeGenerationPlan{ItemID: id, Summary: "code", Files: []domain.GeneratedFile{{Path: "main.go", Content: "package main"}}}
			return out, nil
		}),
		Reviewer: fake(agents.NameReviewer, func(_ context.Context, in reviewer.Input) (reviewer.Output, error) {
			reviews++
			if reviews == 1 {
				return reviewer.Output{Issues: []domain.Issue{domain.NewIssue("main.go", 3, "missing error check")}}, nil
			}
			return reviewer.Output{}, nil
		}),
		Human: AutoApprove{},
	}
}

// fixedSupervisor hands out sequential ids and a fixed clock.
func fixedSupervisor(cfg Config) *Supervisor {
	sv := New(cfg, nil, nil)
	var n atomic.Int64
	sv.newID = func() domain.ItemID {
		return domain.ItemID(fmt.Sprintf("00000000-0000-7000-8000-%012d", n.Add(1)))
	}
	sv.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return sv
}
