package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/genpod/internal/supervisor"
	"github.com/felixgeelhaar/genpod/internal/tui"
)

var checkpointJSON bool

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect and remove run checkpoints",
}

var checkpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the latest checkpoint of every thread",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx, settings)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		sums, err := store.List(ctx)
		if err != nil {
			return err
		}
		if checkpointJSON {
			return writeJSON(cmd, sums)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tui.RenderCheckpoints(sums, tui.DefaultStyles()))
		return nil
	},
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show <thread-id>",
	Short: "Show the state saved in a thread's latest checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx, settings)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		st, err := supervisor.Load(ctx, store, args[0])
		if err != nil {
			return err
		}
		if checkpointJSON {
			return writeJSON(cmd, st)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tui.RenderStatus(st, tui.DefaultStyles()))
		return nil
	},
}

var checkpointDeleteCmd = &cobra.Command{
	Use:   "delete <thread-id>",
	Short: "Delete a thread's checkpoints",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if tui.ShouldPrompt() {
			ok, err := tui.PromptForConfirmation(fmt.Sprintf("Delete checkpoints of %s?", args[0]), false)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}

		store, err := openStore(ctx, settings)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if err := store.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted checkpoints of %s\n", args[0])
		return nil
	},
}

func init() {
	checkpointCmd.PersistentFlags().BoolVar(&checkpointJSON, "json", false, "print JSON instead of a table")

	checkpointCmd.AddCommand(checkpointListCmd, checkpointShowCmd, checkpointDeleteCmd)
	rootCmd.AddCommand(checkpointCmd)
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
