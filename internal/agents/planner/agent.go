// Package planner is the specialist that breaks a task into planned tasks, or
// an issue into planned issues, and decides which of them need new functions.
package planner

import (
	"context"
	"fmt"
	"path"

	"github.com/felixgeelhaar/genpod/internal/agents"
	"github.com/felixgeelhaar/genpod/internal/domain"
	"github.com/felixgeelhaar/genpod/internal/errors"
	"github.com/felixgeelhaar/genpod/internal/llm"
	"github.com/felixgeelhaar/genpod/internal/log"
	"github.com/felixgeelhaar/genpod/internal/metrics"
	"github.com/felixgeelhaar/genpod/internal/workspace"
)

// WorkPackagesDir holds one JSON file per planned task inside the project.
const WorkPackagesDir = "docs/work_packages"

// Input is what the supervisor hands the planner. Task is read in EXECUTING,
// Issue in RESOLVING.
type Input struct {
	ProjectStatus domain.PStatus
	Task          domain.Task
	Issue         domain.Issue
	// Context is the requirements document followed by retrieval material.
	Context     string
	ProjectPath string
}

// Output holds the updated current item and the planned items for it.
//
// On the task track Task ends INPROGRESS with PlannedTasks, AWAITING with a
// question, or ABANDONED. The issue track mirrors this for Issue.
type Output struct {
	Task          domain.Task
	Issue         domain.Issue
	PlannedTasks  []domain.PlannedTask
	PlannedIssues []domain.PlannedIssue
}

// Agent implements agents.Agent[Input, Output].
type Agent struct {
	client  llm.Client
	logger  *log.Logger
	metrics *metrics.Metrics
}

// New creates the planner.
func New(client llm.Client, logger *log.Logger, m *metrics.Metrics) *Agent {
	if logger == nil {
		logger = log.Nop()
	}
	a := &Agent{client: client, metrics: m}
	a.logger = logger.WithAgent(a.Name())
	return a
}

func (a *Agent) Name() string { return agents.NamePlanner }

// Invoke plans the current task or issue depending on the project status.
func (a *Agent) Invoke(ctx context.Context, in Input) (Output, error) {
	switch in.ProjectStatus {
	case domain.PStatusExecuting:
		return a.planTask(ctx, in)
	case domain.PStatusResolving:
		return a.planIssue(ctx, in)
	default:
		return Output{Task: in.Task, Issue: in.Issue}, errors.New(errors.ErrCodeAgentBadInput,
			fmt.Sprintf("planner cannot run in project status %s", in.ProjectStatus))
	}
}

func (a *Agent) planTask(ctx context.Context, in Input) (Output, error) {
	out := Output{Task: in.Task, Issue: in.Issue}
	task := &out.Task
	logger := a.logger.With("task_id", task.ID.String())

	background := in.Context
	if task.AdditionalInfo != "" {
		background += "\n" + task.AdditionalInfo
	}

	backlogs, err := llm.Structured[backlogList](ctx, a.client, llm.Request{
		Tag:    "planner.backlogs",
		System: systemPrompt,
		Prompt: backlogPrompt(task.Description, background),
	}, llm.WithMetrics(a.metrics))
	if agents.Exhausted(err) {
		logger.Warn("no valid backlog, abandoning task", "error", err)
		task.Status = domain.StatusAbandoned
		task.Remarks = "planner could not break the task into work packages"
		return out, nil
	}
	if err != nil {
		return out, agents.Failed(a.Name(), err)
	}

	var packages [][]byte
	for _, backlog := range backlogs.Backlogs {
		wp, err := llm.Structured[workPackage](ctx, a.client, llm.Request{
			Tag:    "planner.work_package",
			System: systemPrompt,
			Prompt: workPackagePrompt(backlog, task.Description, background),
		}, llm.WithMetrics(a.metrics))
		if agents.Exhausted(err) {
			logger.Warn("no valid work package, abandoning task", "backlog", backlog)
			task.Status = domain.StatusAbandoned
			task.Remarks = fmt.Sprintf("planner could not detail work package %q", backlog)
			return Output{Task: *task, Issue: in.Issue}, nil
		}
		if err != nil {
			return out, agents.Failed(a.Name(), err)
		}

		if wp.Question != "" {
			logger.Info("awaiting additional information", "backlog", backlog)
			task.Status = domain.StatusAwaiting
			task.Question = wp.Question
			return Output{Task: *task, Issue: in.Issue}, nil
		}

		planned := domain.NewPlannedTask(task.ID, "", false)
		doc, err := wp.document(planned.ID, backlog)
		if err != nil {
			return out, agents.Failed(a.Name(), err)
		}
		planned.Description = string(doc)

		planned.IsFunctionGenerationRequired, err = a.segregate(ctx, "planner.segregation", segregationPrompt(string(doc)))
		if err != nil {
			return out, err
		}

		out.PlannedTasks = append(out.PlannedTasks, planned)
		packages = append(packages, doc)
	}

	if err := a.writeWorkPackages(in.ProjectPath, out.PlannedTasks, packages); err != nil {
		return out, err
	}

	task.Status = domain.StatusInProgress
	task.Question = ""
	logger.Info("planned tasks prepared", "count", len(out.PlannedTasks))
	return out, nil
}

func (a *Agent) planIssue(ctx context.Context, in Input) (Output, error) {
	out := Output{Task: in.Task, Issue: in.Issue}
	issue := &out.Issue
	logger := a.logger.With("issue_id", issue.ID.String())

	var content string
	if in.ProjectPath != "" && issue.FilePath != "" {
		ws, err := workspace.New(in.ProjectPath)
		if err != nil {
			return out, err
		}
		if content, err = ws.ReadFile(issue.FilePath); err != nil {
			logger.Warn("issue file unreadable", "file", issue.FilePath, "error", err)
		}
	}

	seg, err := llm.Structured[segregation](ctx, a.client, llm.Request{
		Tag:    "planner.issue_segregation",
		System: systemPrompt,
		Prompt: issueSegregationPrompt(issue.Details(), content),
	}, llm.WithMetrics(a.metrics))
	if agents.Exhausted(err) {
		logger.Warn("no valid segregation, abandoning issue")
		issue.Status = domain.StatusAbandoned
		issue.Remarks = "planner could not plan the issue"
		return out, nil
	}
	if err != nil {
		return out, agents.Failed(a.Name(), err)
	}

	out.PlannedIssues = []domain.PlannedIssue{
		domain.NewPlannedIssue(*issue, issue.Description, seg.RequiresFunctionCreation),
	}
	issue.Status = domain.StatusInProgress
	logger.Info("planned issue prepared", "needs_functions", seg.RequiresFunctionCreation)
	return out, nil
}

// segregate falls back to false when the model never answers validly.
func (a *Agent) segregate(ctx context.Context, tag, prompt string) (bool, error) {
	s, err := llm.Structured[segregation](ctx, a.client, llm.Request{
		Tag:    tag,
		System: systemPrompt,
		Prompt: prompt,
	}, llm.WithMetrics(a.metrics))
	if agents.Exhausted(err) {
		a.logger.Warn("segregation failed, assuming no functions", "tag", tag)
		return false, nil
	}
	if err != nil {
		return false, agents.Failed(a.Name(), err)
	}
	return s.RequiresFunctionCreation, nil
}

func (a *Agent) writeWorkPackages(root string, planned []domain.PlannedTask, docs [][]byte) error {
	if root == "" {
		return nil
	}
	ws, err := workspace.New(root)
	if err != nil {
		return err
	}
	for i, p := range planned {
		name := path.Join(WorkPackagesDir, p.ID.String()+".json")
		if err := ws.WriteFile(name, string(docs[i])); err != nil {
			return err
		}
	}
	return nil
}
