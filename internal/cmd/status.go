package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/genpod/internal/supervisor"
	"github.com/felixgeelhaar/genpod/internal/tui"
)

var (
	statusWatch    bool
	statusInterval time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status <thread-id>",
	Short: "Show the progress of a run",
	Long: `Show the phase, queue positions and completion of a run from its latest
checkpoint. With --watch the view refreshes until the run is DONE.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "refresh until the run finishes")
	statusCmd.Flags().DurationVar(&statusInterval, "interval", 2*time.Second, "refresh interval for --watch")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	threadID := args[0]

	store, err := openStore(ctx, settings)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	load := func(ctx context.Context) (*supervisor.State, error) {
		return supervisor.Load(ctx, store, threadID)
	}

	if statusWatch && tui.IsInteractive() {
		_, err := tui.RunWatch(ctx, load, statusInterval)
		return err
	}

	st, err := load(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tui.RenderStatus(st, tui.DefaultStyles()))
	return nil
}

