// Package architect is the specialist that turns the user's request into a
// requirements document and a task list, and answers the team's questions
// about it later in the run.
package architect

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

// RequirementsPath is where the document is written inside the project.
var RequirementsPath = filepath.Join("docs", "requirements.md")

const noAnswer = "No additional information available."

// Input is what the supervisor hands the architect.
type Input struct {
	ProjectStatus domain.PStatus
	Task          domain.Task
	UserRequest   string
	ProjectPath   string
	// RequirementsDocument is the current document, read when answering questions.
	RequirementsDocument domain.RequirementsDocument
	// Context is the retrieval agent's background material.
	Context string
}

// Output carries the architect's results. Task always holds the updated
// current task; the other fields are set only when a document was produced.
type Output struct {
	Task                 domain.Task
	Tasks                []domain.Task
	RequirementsDocument domain.RequirementsDocument
	ProjectName          string
	MicroserviceName     string
	// QueryAnswered reports whether a question in Task was answered.
	QueryAnswered bool
}

// Agent implements agents.Agent[Input, Output].
type Agent struct {
	client  llm.Client
	logger  *log.Logger
	metrics *metrics.Metrics
}

// New creates the architect.
func New(client llm.Client, logger *log.Logger, m *metrics.Metrics) *Agent {
	if logger == nil {
		logger = log.Nop()
	}
	a := &Agent{client: client, metrics: m}
	a.logger = logger.WithAgent(a.Name())
	return a
}

func (a *Agent) Name() string { return agents.NameArchitect }

// Invoke answers the task's question when the task is AWAITING, otherwise it
// writes the requirements document.
func (a *Agent) Invoke(ctx context.Context, in Input) (Output, error) {
	if in.Task.Status == domain.StatusAwaiting {
		return a.answer(ctx, in)
	}
	return a.document(ctx, in)
}

func (a *Agent) document(ctx context.Context, in Input) (Output, error) {
	out := Output{Task: in.Task}
	if in.ProjectPath == "" {
		return out, errors.New(errors.ErrCodeAgentBadInput, "architect needs a project path")
	}

	req, err := llm.Structured[requirementsAnswer](ctx, a.client, llm.Request{
		Tag:    "architect.requirements",
		System: systemPrompt,
		Prompt: requirementsPrompt(in),
	}, llm.WithMetrics(a.metrics))
	switch {
	case agents.Exhausted(err):
		a.logger.Warn("no valid requirements document", "error", err)
		return a.await(out, fmt.Sprintf("Which details are needed to write the requirements for: %s", strings.TrimSpace(in.UserRequest))), nil
	case err != nil:
		return out, agents.Failed(a.Name(), err)
	case strings.TrimSpace(req.Question) != "":
		return a.await(out, req.Question), nil
	}

	doc := req.RequirementsDocument
	ws, err := workspace.New(in.ProjectPath)
	if err != nil {
		return out, err
	}
	if err := ws.WriteFile(RequirementsPath, doc.Markdown()); err != nil {
		return out, err
	}
	a.logger.Info("requirements document written", "path", RequirementsPath)

	descriptions, err := a.tasks(ctx, doc)
	if err != nil {
		return out, err
	}
	for _, d := range descriptions {
		out.Tasks = append(out.Tasks, domain.NewTask(strings.TrimSpace(d), "", ""))
	}

	details, err := a.details(ctx, in.UserRequest)
	if err != nil {
		return out, err
	}

	out.RequirementsDocument = doc
	out.ProjectName = details.ProjectName
	out.MicroserviceName = details.MicroserviceName
	out.Task.Status = domain.StatusDone
	out.Task.Question = ""
	a.logger.Info("requirements prepared", "tasks", len(out.Tasks), "project", out.ProjectName)
	return out, nil
}

// tasks splits the document into deliverables, falling back to the tasks
// summary as a single task when the model cannot produce a valid list.
func (a *Agent) tasks(ctx context.Context, doc domain.RequirementsDocument) ([]string, error) {
	list, err := llm.Structured[tasksList](ctx, a.client, llm.Request{
		Tag:    "architect.tasks",
		System: systemPrompt,
		Prompt: tasksPrompt(doc.Markdown()),
	}, llm.WithMetrics(a.metrics))
	if agents.Exhausted(err) {
		a.logger.Warn("task separation failed, using the tasks summary", "error", err)
		return []string{doc.TasksSummary}, nil
	}
	if err != nil {
		return nil, agents.Failed(a.Name(), err)
	}
	return list.Tasks, nil
}

func (a *Agent) details(ctx context.Context, request string) (projectDetails, error) {
	d, err := llm.Structured[projectDetails](ctx, a.client, llm.Request{
		Tag:    "architect.project_details",
		System: systemPrompt,
		Prompt: projectDetailsPrompt(request),
	}, llm.WithMetrics(a.metrics))
	if agents.Exhausted(err) {
		slug := slugify(request)
		a.logger.Warn("no valid project details, deriving names from the request", "name", slug)
		return projectDetails{ProjectName: slug, MicroserviceName: slug}, nil
	}
	if err != nil {
		return projectDetails{}, agents.Failed(a.Name(), err)
	}
	if d.MicroserviceName == "" {
		d.MicroserviceName = d.ProjectName
	}
	return d, nil
}

func (a *Agent) await(out Output, question string) Output {
	out.Task.Status = domain.StatusAwaiting
	out.Task.Question = strings.TrimSpace(question)
	a.logger.Info("requesting additional information", "question", out.Task.Question)
	return out
}

func (a *Agent) answer(ctx context.Context, in Input) (Output, error) {
	out := Output{Task: in.Task}

	res, err := llm.Structured[queryResult](ctx, a.client, llm.Request{
		Tag:    "architect.answer",
		System: systemPrompt,
		Prompt: answerPrompt(in.RequirementsDocument.Markdown(), in.Task.Question),
	}, llm.WithMetrics(a.metrics))
	if err != nil && !agents.Exhausted(err) {
		return out, agents.Failed(a.Name(), err)
	}

	text := noAnswer
	if err == nil && res.IsAnswerFound {
		text = strings.TrimSpace(res.ResponseText)
		out.QueryAnswered = true
		out.Task.Status = domain.StatusResponded
	}
	out.Task.AdditionalInfo += "\nArchitect Response:\n" + text
	a.logger.Info("answered query", "answered", out.QueryAnswered)
	return out, nil
}
