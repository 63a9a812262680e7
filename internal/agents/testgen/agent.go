// Package testgen is the specialist that writes unit tests and the function
// signatures they exercise before the coder implements a planned item.
package testgen

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/genpod/internal/agents"
	"github.com/felixgeelhaar/genpod/internal/domain"
	"github.com/felixgeelhaar/genpod/internal/errors"
	"github.com/felixgeelhaar/genpod/internal/llm"
	"github.com/felixgeelhaar/genpod/internal/log"
	"github.com/felixgeelhaar/genpod/internal/metrics"
	"github.com/felixgeelhaar/genpod/internal/workspace"
)

const systemPrompt = `You are a test engineer. You write focused unit tests first and declare the function signatures the implementation must provide.`

// Input is what the supervisor hands the test generator.
type Input struct {
	ProjectStatus        domain.PStatus
	PlannedTask          domain.PlannedTask
	PlannedIssue         domain.PlannedIssue
	RequirementsDocument domain.RequirementsDocument
	ProjectName          string
	ProjectPath          string
}

// Output holds the updated planned item. On success it is TESTS_GENERATED
// with TestCode and FunctionSignatures set; otherwise it is returned unchanged.
type Output struct {
	PlannedTask  domain.PlannedTask
	PlannedIssue domain.PlannedIssue
}

type testPlan struct {
	TestFiles          []domain.GeneratedFile `json:"test_files"`
	FunctionSignatures map[string][]string    `json:"function_signatures" jsonschema:"description=Source file path to the signatures it must declare"`
}

func (p *testPlan) Validate() error {
	if len(p.TestFiles) == 0 {
		return fmt.Errorf("test_files must not be empty")
	}
	for i, f := range p.TestFiles {
		path := strings.TrimSpace(f.Path)
		if path == "" || filepath.IsAbs(path) || strings.HasPrefix(filepath.Clean(path), "..") {
			return fmt.Errorf("test file %d has an invalid path %q", i, f.Path)
		}
		if strings.TrimSpace(f.Content) == "" {
			return fmt.Errorf("test file %s is empty", path)
		}
		p.TestFiles[i].Path = path
	}
	if len(p.FunctionSignatures) == 0 {
		return fmt.Errorf("function_signatures must not be empty")
	}
	return nil
}

// Agent implements agents.Agent[Input, Output].
type Agent struct {
	client  llm.Client
	logger  *log.Logger
	metrics *metrics.Metrics
}

// New creates the test generator.
func New(client llm.Client, logger *log.Logger, m *metrics.Metrics) *Agent {
	if logger == nil {
		logger = log.Nop()
	}
	a := &Agent{client: client, metrics: m}
	a.logger = logger.WithAgent(a.Name())
	return a
}

func (a *Agent) Name() string { return agents.NameTestGenerator }

// Invoke writes tests for the current planned item.
func (a *Agent) Invoke(ctx context.Context, in Input) (Output, error) {
	out := Output{PlannedTask: in.PlannedTask, PlannedIssue: in.PlannedIssue}

	var description string
	switch in.ProjectStatus {
	case domain.PStatusExecuting:
		description = in.PlannedTask.Description
	case domain.PStatusResolving:
		description = in.PlannedIssue.Details()
	default:
		return out, errors.New(errors.ErrCodeAgentBadInput,
			fmt.Sprintf("test generator cannot run in project status %s", in.ProjectStatus))
	}
	if in.ProjectPath == "" {
		return out, errors.New(errors.ErrCodeAgentBadInput, "test generator needs a project path")
	}

	plan, err := llm.Structured[testPlan](ctx, a.client, llm.Request{
		Tag:    "testgen.generate",
		System: systemPrompt,
		Prompt: fmt.Sprintf("Write unit tests for the work below in the project %q.\n\n%s%s%s",
			in.ProjectName,
			agents.Section("Work", description),
			agents.Section("File structure", in.RequirementsDocument.FileStructure),
			agents.Section("Code standards", in.RequirementsDocument.CodeStandards),
		),
	}, llm.WithMetrics(a.metrics))
	if agents.Exhausted(err) {
		a.logger.Warn("no valid tests produced, leaving the item unchanged", "error", err)
		return out, nil
	}
	if err != nil {
		return out, agents.Failed(a.Name(), err)
	}

	ws, err := workspace.New(in.ProjectPath)
	if err != nil {
		return out, err
	}
	code := make(map[string]string, len(plan.TestFiles))
	for _, f := range plan.TestFiles {
		if err := ws.WriteFile(f.Path, f.Content); err != nil {
			return out, err
		}
		code[f.Path] = f.Content
	}

	if in.ProjectStatus == domain.PStatusResolving {
		p := &out.PlannedIssue
		p.TestCode, p.FunctionSignatures = code, plan.FunctionSignatures
		p.IsTestCodeGenerated = true
		p.Status = domain.StatusTestsGenerated
	} else {
		p := &out.PlannedTask
		p.TestCode, p.FunctionSignatures = code, plan.FunctionSignatures
		p.IsTestCodeGenerated = true
		p.Status = domain.StatusTestsGenerated
	}
	a.logger.Info("tests generated", "files", len(code))
	return out, nil
}
