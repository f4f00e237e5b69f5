package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benvon/tagtube/internal/cleanup"
)

func newSweepCmd(opts *globalOptions) *cobra.Command {
	var videoIDs []string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete the records of the given videos if no user references them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(videoIDs) == 0 {
				return fmt.Errorf("--video is required")
			}
			return withRuntime(cmd, opts, func(rt *runtime) error {
				result, err := rt.sweeper.Sweep(cmd.Context(), videoIDs)
				if err != nil {
					return fmt.Errorf("sweep: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringSliceVar(&videoIDs, "video", nil, "Video id, repeatable or comma-separated (required)")
	return cmd
}

func newGCCmd(opts *globalOptions) *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Delete every video record no user references",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, opts, func(rt *runtime) error {
				size := batchSize
				if size <= 0 {
					size = rt.cfg.GCBatchSize
				}
				gc := cleanup.NewGarbageCollector(rt.videos, rt.sweeper, rt.cfg.GCInterval, size, rt.logger)
				deleted, err := gc.Collect(cmd.Context())
				if err != nil {
					return fmt.Errorf("gc: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), map[string]int64{"deleted": deleted})
			})
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Records checked per batch (default $GC_BATCH_SIZE)")
	return cmd
}

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, opts, func(rt *runtime) error {
				if err := rt.db.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), map[string]string{"status": "migrated", "dialect": string(rt.db.Dialect())})
			})
		},
	}
}
