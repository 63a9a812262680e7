package architect

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/genpod/internal/domain"
	"github.com/felixgeelhaar/genpod/internal/errors"
	"github.com/felixgeelhaar/genpod/internal/llm"
)

const requirementsJSON = `{
  "project_summary": "A todo service.",
  "system_architecture": "Single Go binary with an HTTP API.",
  "file_structure": "cmd/todo/main.go\ninternal/todo/store.go",
  "tasks_summary": "Build the store, then the HTTP handlers."
}`

func newAgent(responses map[string][]string) (*Agent, *llm.Replay) {
	client := llm.NewReplay(llm.Fixture{Responses: responses})
	return New(client, nil, nil), client
}

func TestDocumentGeneration(t *testing.T) {
	dir := t.TempDir()
	agent, _ := newAgent(map[string][]string{
		"architect.requirements":    {requirementsJSON},
		"architect.tasks":           {`{"tasks": ["Build the todo store", "Write the HTTP handlers"]}`},
		"architect.project_details": {`{"project_name": "Todo-App", "microservice_name": "todo-api"}`},
	})

	task := domain.NewTask("prepare requirements", "", "")
	out, err := agent.Invoke(context.Background(), Input{
		ProjectStatus: domain.PStatusInitial,
		Task:          task,
		UserRequest:   "Build a todo service",
		ProjectPath:   dir,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDone, out.Task.Status)
	assert.Equal(t, task.ID, out.Task.ID)
	require.Len(t, out.Tasks, 2)
	assert.Equal(t, "Build the todo store", out.Tasks[0].Description)
	assert.Equal(t, domain.StatusNew, out.Tasks[1].Status)
	assert.Equal(t, "todo-app", out.ProjectName)
	assert.Equal(t, "todo-api", out.MicroserviceName)
	assert.Equal(t, "A todo service.", out.RequirementsDocument.ProjectSummary)

	data, err := os.ReadFile(filepath.Join(dir, RequirementsPath))
	require.NoError(t, err)
	assert.Contains(t, string(data), "## Project Summary")
}

func TestDocumentGenerationAsksQuestion(t *testing.T) {
	agent, _ := newAgent(map[string][]string{
		"architect.requirements": {`{"question": "Which database should the service use?"}`},
	})

	out, err := agent.Invoke(context.Background(), Input{
		Task:        domain.NewTask("prepare requirements", "", ""),
		UserRequest: "Build a service",
		ProjectPath: t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaiting, out.Task.Status)
	assert.Equal(t, "Which database should the service use?", out.Task.Question)
	assert.Empty(t, out.Tasks)
}

func TestDocumentGenerationExhaustedAwaits(t *testing.T) {
	agent, _ := newAgent(map[string][]string{
		"architect.requirements": {`{"project_summary": ""}`},
	})

	out, err := agent.Invoke(context.Background(), Input{
		Task:        domain.NewTask("prepare requirements", "", ""),
		UserRequest: "Build a service",
		ProjectPath: t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaiting, out.Task.Status)
	assert.Contains(t, out.Task.Question, "Build a service")
}

func TestDocumentGenerationFallbacks(t *testing.T) {
	agent, _ := newAgent(map[string][]string{
		"architect.requirements":    {requirementsJSON},
		"architect.tasks":           {`{"tasks": []}`},
		"architect.project_details": {`{"project_name": "Not A Slug!"}`},
	})

	out, err := agent.Invoke(context.Background(), Input{
		Task:        domain.NewTask("prepare requirements", "", ""),
		UserRequest: "Build a Todo service, please",
		ProjectPath: t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, out.Task.Status)
	require.Len(t, out.Tasks, 1)
	assert.Equal(t, "Build the store, then the HTTP handlers.", out.Tasks[0].Description)
	assert.Equal(t, "build-a-todo-service", out.ProjectName)
}

func TestDocumentGenerationNeedsProjectPath(t *testing.T) {
	agent, _ := newAgent(nil)
	_, err := agent.Invoke(context.Background(), Input{Task: domain.NewTask("x", "", "")})
	assert.Equal(t, errors.ErrCodeAgentBadInput, errors.CodeOf(err))
}

func TestFeedbackReachesPrompt(t *testing.T) {
	agent, client := newAgent(map[string][]string{
		"architect.requirements":    {requirementsJSON},
		"architect.tasks":           {`{"tasks": ["one"]}`},
		"architect.project_details": {`{"project_name": "todo"}`},
	})

	task := domain.NewTask("prepare requirements", "", "")
	task.Status = domain.StatusInProgress
	task.AdditionalInfo = "\nHuman feedback to incorporate:\nUse PostgreSQL"

	out, err := agent.Invoke(context.Background(), Input{Task: task, UserRequest: "todo", ProjectPath: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "todo", out.MicroserviceName)
	assert.Contains(t, client.Calls()[0].Prompt, "Use PostgreSQL")
}

func TestAnswerQuery(t *testing.T) {
	tests := []struct {
		name     string
		response string
		answered bool
		status   domain.Status
		info     string
	}{
		{"found", `{"is_answer_found": true, "response_text": "Use port 8080."}`, true, domain.StatusResponded, "Use port 8080."},
		{"not found", `{"is_answer_found": false, "response_text": ""}`, false, domain.StatusAwaiting, noAnswer},
		{"invalid", `{"is_answer_found": true}`, false, domain.StatusAwaiting, noAnswer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent, _ := newAgent(map[string][]string{"architect.answer": {tt.response}})

			task := domain.NewTask("plan handlers", "", "Which port?")
			task.Status = domain.StatusAwaiting

			out, err := agent.Invoke(context.Background(), Input{
				ProjectStatus: domain.PStatusMonitoring,
				Task:          task,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.answered, out.QueryAnswered)
			assert.Equal(t, tt.status, out.Task.Status)
			assert.Contains(t, out.Task.AdditionalInfo, "Architect Response:\n"+tt.info)
		})
	}
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "loan-origination-api", slugify("Loan Origination API"))
	assert.Equal(t, "project", slugify("!!!"))
}
