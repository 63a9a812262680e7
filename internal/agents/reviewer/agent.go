// Package reviewer is the specialist that inspects the generated project. It
// runs the configured review commands, then asks the model to turn their
// output and the project layout into issues.
package reviewer

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/genpod/internal/agents"
	"github.com/felixgeelhaar/genpod/internal/domain"
	"github.com/felixgeelhaar/genpod/internal/errors"
	"github.com/felixgeelhaar/genpod/internal/llm"
	"github.com/felixgeelhaar/genpod/internal/log"
	"github.com/felixgeelhaar/genpod/internal/metrics"
	"github.com/felixgeelhaar/genpod/internal/shell"
	"github.com/felixgeelhaar/genpod/internal/workspace"
)

const (
	systemPrompt = `You are a code reviewer. You report concrete problems with their file and line, and never report style preferences as issues.`

	maxReportOutput = 4000
)

// Config tunes the reviewer.
type Config struct {
	// Commands run from the project root on every review, e.g. "go vet ./...".
	Commands []string
	Shell    []shell.Option
}

// Input is what the supervisor hands the reviewer.
type Input struct {
	ProjectName          string
	ProjectPath          string
	LicenseText          string
	RequirementsDocument domain.RequirementsDocument
	// Cycle is the 1-based review cycle number.
	Cycle int
}

// Report is the outcome of one review command.
type Report struct {
	Command  string `json:"command"`
	ExitCode int    `json:"exit_code"`
	Output   string `json:"output"`
}

// Failed reports a non-zero exit or a command that could not run.
func (r Report) Failed() bool {
	return r.ExitCode != 0
}

// Output lists the issues found, all NEW. An empty list means the project passed.
type Output struct {
	Issues  []domain.Issue
	Reports []Report
}

type fileIssue struct {
	FilePath    string   `json:"file_path"`
	LineNumber  int      `json:"line_number,omitempty"`
	Description string   `json:"description"`
	Suggestions []string `json:"suggestions,omitempty"`
}

type reviewerOutput struct {
	FileIssues []fileIssue `json:"file_issues" jsonschema:"description=Empty when the project has no problems"`
}

func (r *reviewerOutput) Validate() error {
	for i, fi := range r.FileIssues {
		if strings.TrimSpace(fi.Description) == "" {
			return fmt.Errorf("issue %d has no description", i)
		}
		if strings.TrimSpace(fi.FilePath) == "" {
			return fmt.Errorf("issue %d has no file_path", i)
		}
	}
	return nil
}

// Agent implements agents.Agent[Input, Output].
type Agent struct {
	client  llm.Client
	cfg     Config
	logger  *log.Logger
	metrics *metrics.Metrics
}

// New creates the reviewer.
func New(client llm.Client, cfg Config, logger *log.Logger, m *metrics.Metrics) *Agent {
	if logger == nil {
		logger = log.Nop()
	}
	a := &Agent{client: client, cfg: cfg, metrics: m}
	a.logger = logger.WithAgent(a.Name())
	return a
}

func (a *Agent) Name() string { return agents.NameReviewer }

// Invoke reviews the project.
func (a *Agent) Invoke(ctx context.Context, in Input) (Output, error) {
	var out Output
	if in.ProjectPath == "" {
		return out, errors.New(errors.ErrCodeAgentBadInput, "reviewer needs a project path")
	}
	logger := a.logger.With("cycle", in.Cycle)

	ws, err := workspace.New(in.ProjectPath)
	if err != nil {
		return out, err
	}
	files, err := ws.Files()
	if err != nil {
		return out, err
	}

	out.Reports, err = a.runCommands(ctx, shell.NewRunner(ws.Root(), a.cfg.Shell...))
	if err != nil {
		return out, err
	}

	if strings.TrimSpace(in.LicenseText) != "" && !ws.Exists(workspace.LicenseFile) {
		out.Issues = append(out.Issues, domain.NewIssue(workspace.LicenseFile, 0,
			"The project has no LICENSE file.", "Write the license text to LICENSE at the project root."))
	}

	review, err := llm.Structured[reviewerOutput](ctx, a.client, llm.Request{
		Tag:    "reviewer.review",
		System: systemPrompt,
		Prompt: reviewPrompt(in, files, out.Reports),
	}, llm.WithMetrics(a.metrics))
	switch {
	case agents.Exhausted(err):
		logger.Warn("no valid review, reporting failed commands only", "error", err)
		for _, r := range out.Reports {
			if r.Failed() {
				out.Issues = append(out.Issues, domain.NewIssue(".", 0,
					fmt.Sprintf("Review command %q failed with exit code %d.", r.Command, r.ExitCode), r.Output))
			}
		}
	case err != nil:
		return out, agents.Failed(a.Name(), err)
	default:
		for _, fi := range review.FileIssues {
			out.Issues = append(out.Issues, domain.NewIssue(fi.FilePath, fi.LineNumber, fi.Description, fi.Suggestions...))
		}
	}

	logger.Info("review finished", "issues", len(out.Issues), "commands", len(out.Reports))
	return out, nil
}

func (a *Agent) runCommands(ctx context.Context, runner *shell.Runner) ([]Report, error) {
	var reports []Report
	for _, command := range a.cfg.Commands {
		res, err := runner.Run(ctx, "", command)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			reports = append(reports, Report{Command: command, ExitCode: -1, Output: err.Error()})
			continue
		}
		reports = append(reports, Report{Command: command, ExitCode: res.ExitCode, Output: truncate(res.Output(), maxReportOutput)})
	}
	return reports, nil
}

func reviewPrompt(in Input, files []string, reports []Report) string {
	var tools strings.Builder
	for _, r := range reports {
		fmt.Fprintf(&tools, "$ %s (exit %d)\n%s\n\n", r.Command, r.ExitCode, r.Output)
	}
	return fmt.Sprintf(`Review the generated project %q against its requirements. Report only real problems: failing checks, missing files, unmet requirements or bugs.

%s%s%s`,
		in.ProjectName,
		agents.Section("Requirements", in.RequirementsDocument.Markdown()),
		agents.Section("Project files", strings.Join(files, "\n")),
		agents.Section("Tool results", tools.String()),
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n[truncated]"
}
