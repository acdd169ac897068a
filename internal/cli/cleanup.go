package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/softkave/fimidx-sub001/internal/objstore"
)

// CleanupOptions holds flags for the cleanup command.
type CleanupOptions struct {
	*RootOptions
	BatchSize int
}

// CleanupOutput is the JSON payload of the cleanup command.
type CleanupOutput struct {
	Removed int `json:"removed"`
}

// NewCleanupCommand creates the cleanup command.
func NewCleanupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CleanupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove soft-deleted records of every tenant",
		Long: `Physically remove every soft-deleted record across all tenants and tags,
one batch at a time. Progress is reported after each batch with --verbose.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.BatchSize, "batch", 0, "records per batch (default from config)")

	return cmd
}

func runCleanup(opts *CleanupOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)

	sess, err := opts.openSession(ctx, cmd, formatter)
	if err != nil {
		return err
	}
	defer sess.close(ctx)

	batch := opts.BatchSize
	if batch <= 0 {
		batch = sess.cfg.Batch.Cleanup
	}

	n, err := sess.store.CleanupDeletedObjs(ctx, objstore.CleanupParams{
		BatchSize: batch,
		OnProgress: func(processed, _ int) {
			formatter.VerboseLog("removed %d record(s) so far", processed)
		},
	})
	if err != nil {
		return formatter.Fail(err)
	}

	if formatter.Format == "json" {
		return formatter.Success(CleanupOutput{Removed: n})
	}
	fmt.Fprintf(formatter.Writer, "%d soft-deleted record(s) removed\n", n)
	return nil
}
