// Package coder is the specialist that writes code for a planned task or
// planned issue, runs the commands it asks for and keeps the project licensed.
package coder

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/genpod/internal/agents"
	"github.com/felixgeelhaar/genpod/internal/domain"
	"github.com/felixgeelhaar/genpod/internal/errors"
	"github.com/felixgeelhaar/genpod/internal/llm"
	"github.com/felixgeelhaar/genpod/internal/log"
	"github.com/felixgeelhaar/genpod/internal/metrics"
	"github.com/felixgeelhaar/genpod/internal/shell"
	"github.com/felixgeelhaar/genpod/internal/workspace"
)

// DefaultAttempts bounds generate, write and run rounds per planned item.
const DefaultAttempts = 3

// Config tunes the coder.
type Config struct {
	// LicenseHeader is prefixed to generated source files when set.
	LicenseHeader string
	// Attempts bounds rounds after failing commands. Zero uses DefaultAttempts.
	Attempts int
	// Shell configures the command runner confined to the project.
	Shell []shell.Option
}

// Input is what the supervisor hands the coder. PlannedTask is read in
// EXECUTING, PlannedIssue in RESOLVING.
type Input struct {
	ProjectStatus        domain.PStatus
	PlannedTask          domain.PlannedTask
	PlannedIssue         domain.PlannedIssue
	RequirementsDocument domain.RequirementsDocument
	ProjectName          string
	ProjectPath          string
	LicenseText          string
	LicenseURL           string
}

// Output holds the updated planned item, DONE with IsCodeGenerated or
// ABANDONED, and the plan that was applied.
type Output struct {
	PlannedTask    domain.PlannedTask
	PlannedIssue   domain.PlannedIssue
	Plan           domain.CodeGenerationPlan
	LicenseWritten bool
}

// Agent implements agents.Agent[Input, Output].
type Agent struct {
	client  llm.Client
	cfg     Config
	logger  *log.Logger
	metrics *metrics.Metrics
}

// New creates the coder.
func New(client llm.Client, cfg Config, logger *log.Logger, m *metrics.Metrics) *Agent {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if logger == nil {
		logger = log.Nop()
	}
	a := &Agent{client: client, cfg: cfg, metrics: m}
	a.logger = logger.WithAgent(a.Name())
	return a
}

func (a *Agent) Name() string { return agents.NameCoder }

// Invoke writes code for the current planned item.
func (a *Agent) Invoke(ctx context.Context, in Input) (Output, error) {
	out := Output{PlannedTask: in.PlannedTask, PlannedIssue: in.PlannedIssue}

	var id domain.ItemID
	tag := "coder.generate"
	switch in.ProjectStatus {
	case domain.PStatusExecuting:
		id = in.PlannedTask.ID
	case domain.PStatusResolving:
		id = in.PlannedIssue.ID
		tag = "coder.resolve"
	default:
		return out, errors.New(errors.ErrCodeAgentBadInput,
			fmt.Sprintf("coder cannot run in project status %s", in.ProjectStatus))
	}
	if in.ProjectPath == "" {
		return out, errors.New(errors.ErrCodeAgentBadInput, "coder needs a project path")
	}
	logger := a.logger.With("item_id", id.String())

	ws, err := workspace.New(in.ProjectPath)
	if err != nil {
		return out, err
	}
	runner := shell.NewRunner(ws.Root(), a.cfg.Shell...)

	written, err := ws.WriteLicense(ctx, in.LicenseText, in.LicenseURL)
	if err != nil {
		logger.WithError(err).Warn("license not written")
	}
	out.LicenseWritten = written

	w := workFor(in)
	if in.ProjectStatus == domain.PStatusResolving && in.PlannedIssue.FilePath != "" {
		w.fileContent, _ = ws.ReadFile(in.PlannedIssue.FilePath)
	}

	var feedback string
	for attempt := 1; attempt <= a.cfg.Attempts; attempt++ {
		plan, err := llm.Structured[codePlan](ctx, a.client, llm.Request{
			Tag:    tag,
			System: systemPrompt,
			Prompt: generatePrompt(w, in, feedback),
		}, llm.WithMetrics(a.metrics))
		if agents.Exhausted(err) {
			feedback = "no valid code plan was produced"
			logger.Warn("no valid code plan", "attempt", attempt)
			break
		}
		if err != nil {
			return out, agents.Failed(a.Name(), err)
		}

		if err := a.writeFiles(ws, plan.Files); err != nil {
			return out, err
		}

		feedback, err = a.runCommands(ctx, runner, plan.Commands)
		if err != nil {
			return out, err
		}
		if feedback != "" {
			logger.Info("command failed, regenerating", "attempt", attempt)
			continue
		}

		out.Plan = domain.CodeGenerationPlan{ItemID: id, Summary: plan.Summary, Files: plan.Files, Commands: plan.Commands}
		a.finish(&out, in.ProjectStatus, domain.StatusDone, "")
		logger.Info("code generated", "files", len(plan.Files), "commands", len(plan.Commands))
		return out, nil
	}

	a.finish(&out, in.ProjectStatus, domain.StatusAbandoned, feedback)
	logger.Warn("abandoning planned item", "reason", feedback)
	return out, nil
}

func (a *Agent) finish(out *Output, phase domain.PStatus, status domain.Status, remarks string) {
	done := status == domain.StatusDone
	if phase == domain.PStatusResolving {
		out.PlannedIssue.Status = status
		out.PlannedIssue.IsCodeGenerated = done
		out.PlannedIssue.Remarks = remarks
		return
	}
	out.PlannedTask.Status = status
	out.PlannedTask.IsCodeGenerated = done
	out.PlannedTask.Remarks = remarks
}

func (a *Agent) writeFiles(ws *workspace.Workspace, files []domain.GeneratedFile) error {
	for _, f := range files {
		content := workspace.WithHeader(f.Path, a.cfg.LicenseHeader, f.Content)
		if err := ws.WriteFile(f.Path, content); err != nil {
			return err
		}
	}
	return nil
}

// runCommands runs commands in order and returns feedback for the model when
// one is refused or fails. The error return is reserved for cancellation.
func (a *Agent) runCommands(ctx context.Context, runner *shell.Runner, commands []domain.Command) (string, error) {
	for _, c := range commands {
		res, err := runner.Run(ctx, c.Dir, c.Command)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if err != nil {
			return fmt.Sprintf("command %q in %q could not run: %v", c.Command, c.Dir, err), nil
		}
		if !res.OK() {
			return fmt.Sprintf("command %q in %q exited with %d:\n%s", c.Command, c.Dir, res.ExitCode, res.Output()), nil
		}
	}
	return "", nil
}
