package reviewer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/genpod/internal/errors"
	"github.com/felixgeelhaar/genpod/internal/llm"
	"github.com/felixgeelhaar/genpod/internal/shell"
)

func project(t *testing.T) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))
	return dir
}

func newAgent(commands []string, responses ...string) (*Agent, *llm.Replay) {
	client := llm.NewReplay(llm.Fixture{Responses: map[string][]string{"reviewer.review": responses}})
	cfg := Config{Commands: commands, Shell: []shell.Option{shell.WithAllowed("ls", "cat")}}
	return New(client, cfg, nil, nil), client
}

func TestInvokeReportsIssues(t *testing.T) {
	agent, client := newAgent([]string{"ls"},
		`{"file_issues": [{"file_path": "main.go", "line_number": 1, "description": "no main function", "suggestions": ["add func main"]}]}`)

	out, err := agent.Invoke(context.Background(), Input{ProjectName: "todo", ProjectPath: project(t), Cycle: 1})
	require.NoError(t, err)

	require.Len(t, out.Issues, 1)
	issue := out.Issues[0]
	assert.Equal(t, "main.go", issue.FilePath)
	assert.Equal(t, 1, issue.LineNumber)
	assert.Equal(t, []string{"add func main"}, issue.Suggestions)
	assert.Equal(t, "NEW", issue.Status.String())

	require.Len(t, out.Reports, 1)
	assert.False(t, out.Reports[0].Failed())
	prompt := client.Calls()[0].Prompt
	assert.Contains(t, prompt, "$ ls (exit 0)")
	assert.Contains(t, prompt, "main.go")
}

func TestInvokeCleanProject(t *testing.T) {
	agent, _ := newAgent(nil, `{"file_issues": []}`)

	out, err := agent.Invoke(context.Background(), Input{ProjectPath: project(t)})
	require.NoError(t, err)
	assert.Empty(t, out.Issues)
}

func TestInvokeMissingLicense(t *testing.T) {
	agent, _ := newAgent(nil, `{"file_issues": []}`)

	out, err := agent.Invoke(context.Background(), Input{ProjectPath: project(t), LicenseText: "MIT"})
	require.NoError(t, err)
	require.Len(t, out.Issues, 1)
	assert.Equal(t, "LICENSE", out.Issues[0].FilePath)
}

func TestInvokeFallsBackToFailedCommands(t *testing.T) {
	agent, _ := newAgent([]string{"ls missing-dir", "rm -rf .", "cat main.go"}, "not json")

	out, err := agent.Invoke(context.Background(), Input{ProjectPath: project(t)})
	require.NoError(t, err)

	require.Len(t, out.Reports, 3)
	assert.True(t, out.Reports[0].Failed())
	assert.Equal(t, -1, out.Reports[1].ExitCode)
	assert.False(t, out.Reports[2].Failed())
	assert.Len(t, out.Issues, 2)
}

func TestInvokeNeedsProjectPath(t *testing.T) {
	agent, _ := newAgent(nil)
	_, err := agent.Invoke(context.Background(), Input{})
	assert.Equal(t, errors.ErrCodeAgentBadInput, errors.CodeOf(err))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab\n[truncated]", truncate("abcdef", 2))
}
