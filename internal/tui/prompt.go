package tui

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/felixgeelhaar/genpod/internal/registry"
	"github.com/felixgeelhaar/genpod/internal/supervisor"
)

// Reviewer asks a person at the terminal to approve requirements and answer
// questions the agents could not.
type Reviewer struct{}

var _ supervisor.HumanReviewer = Reviewer{}

// Review implements supervisor.HumanReviewer.
func (Reviewer) Review(ctx context.Context, req supervisor.ReviewRequest) (supervisor.ReviewOutcome, error) {
	if req.Kind == supervisor.ReviewQuery {
		var answer string
		form := huh.NewForm(huh.NewGroup(
			huh.NewNote().
				Title("The agents need your input").
				Description(fmt.Sprintf("Project: %s", req.ProjectName)),
			huh.NewText().
				Title(req.Question).
				Value(&answer),
		))
		if err := form.RunWithContext(ctx); err != nil {
			return supervisor.ReviewOutcome{}, fmt.Errorf("prompt failed: %w", err)
		}
		return supervisor.ReviewOutcome{Answer: strings.TrimSpace(answer)}, nil
	}

	approved := true
	confirm := huh.NewForm(huh.NewGroup(
		huh.NewNote().
			Title("Requirements document").
			Description(fmt.Sprintf("Review %s before generation starts.", req.DocumentPath)),
		huh.NewConfirm().
			Title("Approve the requirements?").
			Affirmative("Approve").
			Negative("Request changes").
			Value(&approved),
	))
	if err := confirm.RunWithContext(ctx); err != nil {
		return supervisor.ReviewOutcome{}, fmt.Errorf("prompt failed: %w", err)
	}
	if approved {
		return supervisor.ReviewOutcome{}, nil
	}

	var feedback string
	text := huh.NewForm(huh.NewGroup(
		huh.NewText().
			Title("What should change?").
			Value(&feedback).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("feedback is required to request changes")
				}
				return nil
			}),
	))
	if err := text.RunWithContext(ctx); err != nil {
		return supervisor.ReviewOutcome{}, fmt.Errorf("prompt failed: %w", err)
	}
	return supervisor.ReviewOutcome{Feedback: strings.TrimSpace(feedback)}, nil
}

// PromptForConfirmation displays a yes/no confirmation prompt
func PromptForConfirmation(message string, defaultValue bool) (bool, error) {
	confirmed := defaultValue

	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(message).
			Value(&confirmed),
	))
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return confirmed, nil
}

// PickRun asks which of several incomplete runs to resume.
func PickRun(ctx context.Context, runs []registry.Run) (registry.Run, error) {
	switch len(runs) {
	case 0:
		return registry.Run{}, fmt.Errorf("no runs to choose from")
	case 1:
		return runs[0], nil
	}

	options := make([]huh.Option[int], len(runs))
	for i, r := range runs {
		options[i] = huh.NewOption(runLabel(r), i)
	}

	var selected int
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[int]().
			Title("Which run should be resumed?").
			Options(options...).
			Value(&selected),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return registry.Run{}, fmt.Errorf("prompt failed: %w", err)
	}
	return runs[selected], nil
}

func runLabel(r registry.Run) string {
	name := r.Name
	if name == "" {
		name = truncate(r.Input, 30)
	}
	return fmt.Sprintf("%s [%s] %s", name, r.Status, r.UpdatedAt.Local().Format(timeLayout))
}

// IsInteractive returns true if stdin is a terminal (not piped)
func IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// ShouldPrompt returns true if prompts should be shown based on environment
// Prompts are disabled in CI environments or when stdin is not a terminal
func ShouldPrompt() bool {
	ciEnvVars := []string{
		"CI",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"TRAVIS",
		"CIRCLECI",
		"BUILDKITE",
	}

	for _, envVar := range ciEnvVars {
		if os.Getenv(envVar) != "" {
			return false
		}
	}

	return IsInteractive()
}
