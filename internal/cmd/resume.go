package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/genpod/internal/errors"
	"github.com/felixgeelhaar/genpod/internal/registry"
	"github.com/felixgeelhaar/genpod/internal/tui"
)

var resumeThread string

var resumeCmd = &cobra.Command{
	Use:   "resume [user-id]",
	Short: "Resume an interrupted run",
	Long: `Resume a run from its latest checkpoint.

With a user id, the user's unfinished runs are looked up in the registry. When
there are several and a terminal is attached you pick one; otherwise the most
recently updated run is resumed. --thread resumes a specific thread directly.`,
	Example: `  genpod resume alice
  genpod resume --thread 2b1f0c9e-...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResume,
}

var runsCmd = &cobra.Command{
	Use:   "runs [user-id]",
	Short: "List a user's unfinished runs",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeThread, "thread", "", "thread id to resume")
	resumeCmd.Flags().BoolVarP(&autoApprove, "yes", "y", false, "approve requirements without prompting")

	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(runsCmd)
}

func userArg(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return defaultUser()
}

func runResume(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := openSession(ctx, settings, humanReviewer(autoApprove))
	if err != nil {
		return err
	}
	defer s.Close()

	threadID := resumeThread
	if threadID == "" {
		run, err := pickIncomplete(cmd, s.registry, userArg(args))
		if err != nil {
			return err
		}
		threadID = run.ThreadID
	}

	st, runErr := s.runner.Resume(ctx, threadID)
	printOutcome(cmd, st)
	return runErr
}

func pickIncomplete(cmd *cobra.Command, reg *registry.Registry, userID string) (registry.Run, error) {
	runs, err := reg.Incomplete(cmd.Context(), userID)
	if err != nil {
		return registry.Run{}, err
	}
	if len(runs) == 0 {
		return registry.Run{}, errors.New(errors.ErrCodeRegistryNotFound, "no unfinished runs for "+userID).
			WithSuggestion("Start a new run with 'genpod generate'")
	}
	if len(runs) > 1 && tui.ShouldPrompt() {
		return tui.PickRun(cmd.Context(), runs)
	}
	return runs[0], nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	reg, err := registry.Open(ctx, settings.Registry.Path)
	if err != nil {
		return err
	}
	defer func() { _ = reg.Close() }()

	runs, err := reg.Incomplete(ctx, userArg(args))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tui.RenderRuns(runs, tui.DefaultStyles()))
	return nil
}
