// Package shell runs allowlisted commands inside a generated project.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	gerrors "github.com/felixgeelhaar/genpod/internal/errors"
)

// DefaultAllowed are the commands permitted when none are configured.
var DefaultAllowed = []string{
	"mkdir", "docker", "python", "python3", "pip", "virtualenv", "mv",
	"pytest", "touch", "cat", "ls", "go", "npm", "node", "dotnet", "git",
}

// joinSymbols would chain or pipe commands in a shell.
var joinSymbols = []string{"&&", "||", "|", ";", "`", "$("}

// DefaultTimeout bounds a single command.
const DefaultTimeout = 2 * time.Minute

// Result represents the outcome of a command
type Result struct {
	Command  string        `json:"command"`
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"duration"`
}

// OK reports a zero exit code.
func (r *Result) OK() bool {
	return r.ExitCode == 0
}

// Output returns stdout followed by stderr.
func (r *Result) Output() string {
	return strings.TrimSpace(r.Stdout + "\n" + r.Stderr)
}

// Runner executes commands without a shell, so arguments are never
// reinterpreted. Commands must start with an allowlisted program.
type Runner struct {
	root    string
	allowed []string
	timeout time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithAllowed replaces the allowlist. Entries ending in "*" match by prefix.
func WithAllowed(commands ...string) Option {
	return func(r *Runner) {
		if len(commands) > 0 {
			r.allowed = commands
		}
	}
}

// WithTimeout sets the per-command timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRunner creates a runner confined to root.
func NewRunner(root string, opts ...Option) *Runner {
	r := &Runner{root: root, allowed: DefaultAllowed, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Check validates command against the allowlist and join symbols.
func (r *Runner) Check(command string) error {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return gerrors.New(gerrors.ErrCodeCommandDenied, "empty command")
	}

	for _, symbol := range joinSymbols {
		if strings.Contains(command, symbol) {
			return gerrors.New(gerrors.ErrCodeCommandDenied,
				fmt.Sprintf("command joining symbol %q is not permitted", symbol))
		}
	}

	for _, allowed := range r.allowed {
		if matchesPattern(parts[0], allowed) {
			return nil
		}
	}
	return gerrors.New(gerrors.ErrCodeCommandDenied, fmt.Sprintf("command %q is not allowed", parts[0])).
		WithSuggestion("Add it to shell.allowed_commands in genpod.yaml")
}

// Run executes command in dir, relative to the runner root. A non-zero exit is
// reported in the Result, not as an error; errors mean the command was refused
// or could not start.
func (r *Runner) Run(ctx context.Context, dir, command string) (*Result, error) {
	if err := r.Check(command); err != nil {
		return nil, err
	}

	workdir, err := r.workdir(dir)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	parts := strings.Fields(command)
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = workdir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	res := &Result{
		Command:  command,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to execute %q: %w", parts[0], err)
		}
		res.ExitCode = exitErr.ExitCode()
		if ctx.Err() == context.DeadlineExceeded {
			res.Stderr += fmt.Sprintf("\ncommand timed out after %s", r.timeout)
		}
	}
	return res, nil
}

func (r *Runner) workdir(dir string) (string, error) {
	root, err := filepath.Abs(r.root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	if dir == "" {
		return root, nil
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	dir = filepath.Clean(dir)
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", gerrors.New(gerrors.ErrCodePathEscape, fmt.Sprintf("directory %s is outside the project", dir))
	}
	return dir, nil
}

// matchesPattern supports exact match and trailing-wildcard patterns
func matchesPattern(name, pattern string) bool {
	if name == pattern {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(name, strings.TrimSuffix(pattern, "*"))
	}
	return false
}
