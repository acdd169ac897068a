package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/softkave/fimidx-sub001/internal/objstore"
)

// UpsertOptions holds flags for the upsert command.
type UpsertOptions struct {
	*RootOptions
	AppID         string
	GroupID       string
	Tag           string
	ItemsPath     string
	ConflictOn    []string
	OnConflict    string
	By            string
	ByType        string
	BatchSize     int
	ShouldIndex   bool
	FieldsToIndex []string
}

// UpsertOutput is the JSON payload of the upsert command.
type UpsertOutput struct {
	New            []string `json:"new"`
	Updated        []string `json:"updated"`
	Ignored        int      `json:"ignored"`
	Failed         int      `json:"failed"`
	TotalProcessed int      `json:"totalProcessed"`
	FieldsIndexed  int      `json:"fieldsIndexed"`
}

// NewUpsertCommand creates the upsert command.
func NewUpsertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpsertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Insert or merge records from a JSON file",
		Long: `Insert each payload in a JSON array as a new record, or resolve it
against an existing record that shares the --conflict-on paths.

--on-conflict is ignore, fail, or a merge strategy (replace, merge,
mergeButReplaceArrays, mergeButConcatArrays, mergeButKeepArrays).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpsert(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.AppID, "app", "", "tenant id (required)")
	cmd.Flags().StringVar(&opts.GroupID, "group", "", "group id")
	cmd.Flags().StringVar(&opts.Tag, "tag", "", "record type tag (required)")
	cmd.Flags().StringVarP(&opts.ItemsPath, "items", "i", "", "JSON array of payloads (required)")
	cmd.Flags().StringSliceVar(&opts.ConflictOn, "conflict-on", nil, "payload paths identifying an existing record")
	cmd.Flags().StringVar(&opts.OnConflict, "on-conflict", string(objstore.OnConflictIgnore), "conflict policy")
	cmd.Flags().StringVar(&opts.By, "by", "objstore-cli", "actor id recorded on each record")
	cmd.Flags().StringVar(&opts.ByType, "by-type", "system", "actor type recorded on each record")
	cmd.Flags().IntVar(&opts.BatchSize, "batch", 0, "items per batch (default from config)")
	cmd.Flags().BoolVar(&opts.ShouldIndex, "index", true, "extract field metadata from the payloads")
	cmd.Flags().StringSliceVar(&opts.FieldsToIndex, "fields-to-index", nil, "restrict field metadata to these paths")
	_ = cmd.MarkFlagRequired("app")
	_ = cmd.MarkFlagRequired("tag")
	_ = cmd.MarkFlagRequired("items")

	return cmd
}

func runUpsert(opts *UpsertOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)

	items, err := loadItems(opts.ItemsPath)
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
		batch = sess.cfg.Batch.Upsert
	}
	formatter.VerboseLog("upserting %d item(s) in batches of %d", len(items), batch)

	res, err := sess.store.BulkUpsert(ctx, objstore.BulkUpsertParams{
		Items:          items,
		ConflictOnKeys: opts.ConflictOn,
		OnConflict:     objstore.ConflictPolicy(opts.OnConflict),
		Tag:            opts.Tag,
		AppID:          opts.AppID,
		GroupID:        opts.GroupID,
		CreatedBy:      opts.By,
		CreatedByType:  opts.ByType,
		ShouldIndex:    opts.ShouldIndex,
		FieldsToIndex:  opts.FieldsToIndex,
		BatchSize:      batch,
	})
	if err != nil {
		return formatter.Fail(err)
	}

	indexed, err := sess.registry.Ingest(ctx, append(slices.Clone(res.NewObjs), res.UpdatedObjs...))
	if err != nil {
		return formatter.Fail(fmt.Errorf("indexing fields: %w", err))
	}

	out := UpsertOutput{
		New:            objstore.IDs(res.NewObjs),
		Updated:        objstore.IDs(res.UpdatedObjs),
		Ignored:        len(res.IgnoredItems),
		Failed:         len(res.FailedItems),
		TotalProcessed: res.TotalProcessed,
		FieldsIndexed:  indexed,
	}

	if formatter.Format == "json" {
		if err := formatter.Success(out); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "Processed %d item(s): %d new, %d updated, %d ignored, %d failed\n",
			out.TotalProcessed, len(out.New), len(out.Updated), out.Ignored, out.Failed)
		if out.FieldsIndexed > 0 {
			fmt.Fprintf(formatter.Writer, "Indexed %d field(s)\n", out.FieldsIndexed)
		}
		for _, item := range res.FailedItems {
			fmt.Fprintf(formatter.Writer, "  conflict with %s\n", item.ExistingID)
		}
	}

	if out.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d item(s) conflicted with existing records", ErrCodeFailedItems, out.Failed))
	}
	return nil
}
