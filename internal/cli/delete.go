package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/softkave/fimidx-sub001/internal/objstore"
	"github.com/softkave/fimidx-sub001/internal/queryir"
)

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	AppID     string
	Tag       string
	QueryPath string
	Many      bool
	Hard      bool
	By        string
	ByType    string
	BatchSize int
}

// DeleteOutput is the JSON payload of the delete command.
type DeleteOutput struct {
	Deleted int  `json:"deleted"`
	Hard    bool `json:"hard"`
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete records matching a query",
		Long: `Delete records matching a query. Without --many only the most recently
created match is deleted. Without --hard records are soft-deleted and stay
readable with read --include-deleted until the next cleanup.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.AppID, "app", "", "tenant id (required)")
	cmd.Flags().StringVar(&opts.Tag, "tag", "", "record type tag")
	cmd.Flags().StringVarP(&opts.QueryPath, "query", "q", "", "query JSON file (required)")
	cmd.Flags().BoolVar(&opts.Many, "many", false, "delete every match instead of the most recent one")
	cmd.Flags().BoolVar(&opts.Hard, "hard", false, "remove records physically")
	cmd.Flags().StringVar(&opts.By, "by", "objstore-cli", "actor id recorded on soft-deleted records")
	cmd.Flags().StringVar(&opts.ByType, "by-type", "system", "actor type recorded on soft-deleted records")
	cmd.Flags().IntVar(&opts.BatchSize, "batch", 0, "records per batch (default from config)")
	_ = cmd.MarkFlagRequired("app")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}

func runDelete(opts *DeleteOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)

	q, err := loadQuery(opts.QueryPath, opts.AppID)
	if err != nil {
		return formatter.InvalidInput(err)
	}

	sess, err := opts.openSession(ctx, cmd, formatter)
	if err != nil {
		return err
	}
	defer sess.close(ctx)

	batch := opts.BatchSize
	if batch <= 0 {
		batch = sess.cfg.Batch.Delete
	}

	var fieldSet queryir.FieldSet
	if opts.Tag != "" {
		fieldSet, err = sess.registry.FieldSet(ctx, opts.AppID, opts.Tag)
		if err != nil {
			return formatter.Fail(err)
		}
	}

	n, err := sess.store.BulkDelete(ctx, objstore.BulkDeleteParams{
		Query:         q,
		Tag:           opts.Tag,
		Fields:        fieldSet,
		DeletedBy:     opts.By,
		DeletedByType: opts.ByType,
		DeleteMany:    opts.Many,
		BatchSize:     batch,
		HardDelete:    opts.Hard,
	})
	if err != nil {
		return formatter.Fail(err)
	}

	out := DeleteOutput{Deleted: n, Hard: opts.Hard}
	if formatter.Format == "json" {
		return formatter.Success(out)
	}
	kind := "soft-deleted"
	if opts.Hard {
		kind = "removed"
	}
	fmt.Fprintf(formatter.Writer, "%d record(s) %s\n", n, kind)
	return nil
}
