package cmd

import (
	"context"
	"encoding/json"
	gerrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/genpod/internal/checkpoint"
	"github.com/felixgeelhaar/genpod/internal/errors"
	"github.com/felixgeelhaar/genpod/internal/registry"
	"github.com/felixgeelhaar/genpod/internal/supervisor"
	"github.com/felixgeelhaar/genpod/internal/tui"
)

var (
	generateInput  string
	generateUser   string
	generateThread string
	autoApprove    bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [request-file]",
	Short: "Generate a project from a request",
	Long: `Generate a project from a natural-language request.

The request is read from a JSON or YAML file with an "input" field and optional
"license_url" and "license_text" fields, or given inline with --input.

Generated files are written under workspace.output_dir/<project-id>. The run is
checkpointed after every step; use 'genpod resume' to continue an interrupted
run.`,
	Example: `  genpod generate request.yaml
  genpod generate --input "A REST API for a todo list in Go" --yes`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&generateInput, "input", "", "project request text, instead of a request file")
	generateCmd.Flags().StringVar(&generateUser, "user", defaultUser(), "user the run is registered for")
	generateCmd.Flags().StringVar(&generateThread, "thread", "", "thread id for the run (generated when empty)")
	generateCmd.Flags().BoolVarP(&autoApprove, "yes", "y", false, "approve requirements without prompting")

	rootCmd.AddCommand(generateCmd)
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	req, err := requestFromArgs(args, generateInput)
	if err != nil {
		return err
	}

	if generateThread != "" {
		if err := ensureNewThread(ctx, generateThread); err != nil {
			return err
		}
	}

	s, err := openSession(ctx, settings, humanReviewer(autoApprove))
	if err != nil {
		return err
	}
	defer s.Close()

	rc := supervisor.RunContext{
		ThreadID:       generateThread,
		ProjectID:      uuid.NewString(),
		MicroserviceID: uuid.NewString(),
		UserID:         generateUser,
	}
	if rc.ThreadID == "" {
		rc.ThreadID = uuid.NewString()
	}
	rc.ProjectPath, err = filepath.Abs(filepath.Join(settings.Workspace.OutputDir, rc.ProjectID))
	if err != nil {
		return errors.Wrap(errors.ErrCodeDirectoryFailed, "resolve project path", err)
	}

	if err := s.registry.Register(ctx, registry.Run{
		ProjectID:      rc.ProjectID,
		MicroserviceID: rc.MicroserviceID,
		ThreadID:       rc.ThreadID,
		UserID:         rc.UserID,
		Input:          req.Input,
		LicenseURL:     req.LicenseURL,
		Status:         "RECEIVED",
		ProjectPath:    rc.ProjectPath,
	}); err != nil {
		return err
	}

	logger.Info("starting run", "thread_id", rc.ThreadID, "project_path", rc.ProjectPath)
	st, runErr := s.runner.Start(ctx, rc, req)
	printOutcome(cmd, st)
	return runErr
}

// ensureNewThread refuses a thread id that already has checkpoints. Starting
// over it would mix the new run with the old run's steps.
func ensureNewThread(ctx context.Context, threadID string) error {
	store, err := openStore(ctx, settings)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	_, err = store.Load(ctx, threadID)
	switch {
	case err == nil:
		return errors.NewThreadExistsError(threadID)
	case gerrors.Is(err, checkpoint.ErrNotFound):
		return nil
	default:
		return errors.Wrap(errors.ErrCodeStoreCorrupt, "check thread "+threadID, err)
	}
}

// requestFromArgs reads the request file, or builds a request from inline
// text when no file is given.
func requestFromArgs(args []string, inline string) (supervisor.ProjectRequest, error) {
	switch {
	case len(args) == 1 && inline != "":
		return supervisor.ProjectRequest{}, fmt.Errorf("accepts either a request file or --input, not both")
	case len(args) == 1:
		return readRequest(args[0])
	case strings.TrimSpace(inline) != "":
		return supervisor.ProjectRequest{Input: strings.TrimSpace(inline)}, nil
	default:
		return supervisor.ProjectRequest{}, fmt.Errorf("requires a request file or --input")
	}
}

func readRequest(path string) (supervisor.ProjectRequest, error) {
	var req supervisor.ProjectRequest

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return req, errors.NewFileNotFoundError(path)
		}
		return req, errors.Wrap(errors.ErrCodeFileReadFailed, "read request "+path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &req); err != nil {
			return req, errors.NewFileUnmarshalError(path, "YAML", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &req); err != nil {
			return req, errors.NewFileUnmarshalError(path, "JSON", err)
		}
	default:
		// Plain text files hold the request itself.
		req.Input = string(data)
	}

	req.Input = strings.TrimSpace(req.Input)
	if req.Input == "" {
		return req, errors.New(errors.ErrCodeAgentBadInput, "request "+path+" has no input").
			WithSuggestion(`Add an "input" field describing the project`)
	}
	return req, nil
}

// printOutcome renders the final state, if the run got far enough to have one.
func printOutcome(cmd *cobra.Command, st *supervisor.State) {
	if st == nil {
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), tui.RenderStatus(st, tui.DefaultStyles()))
}
