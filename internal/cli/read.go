package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/softkave/fimidx-sub001/internal/ir"
	"github.com/softkave/fimidx-sub001/internal/objstore"
	"github.com/softkave/fimidx-sub001/internal/queryir"
)

// ReadOptions holds flags for the read command.
type ReadOptions struct {
	*RootOptions
	AppID          string
	Tag            string
	QueryPath      string
	SortPath       string
	Page           int // one-based
	Limit          int
	IncludeDeleted bool
}

// ReadOutput is the JSON payload of the read command.
type ReadOutput struct {
	Objs    []ir.Obj `json:"objs"`
	Page    int      `json:"page"`
	HasMore bool     `json:"hasMore"`
}

// NewReadCommand creates the read command.
func NewReadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "read",
		Short:         "Read one page of records",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.AppID, "app", "", "tenant id (required)")
	cmd.Flags().StringVar(&opts.Tag, "tag", "", "record type tag")
	cmd.Flags().StringVarP(&opts.QueryPath, "query", "q", "", "query JSON file")
	cmd.Flags().StringVar(&opts.SortPath, "sort", "", "sort JSON file")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "page size, 0 for every match")
	cmd.Flags().BoolVar(&opts.IncludeDeleted, "include-deleted", false, "include soft-deleted records")
	_ = cmd.MarkFlagRequired("app")

	return cmd
}

func runRead(opts *ReadOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)

	q, err := loadQuery(opts.QueryPath, opts.AppID)
	if err != nil {
		return formatter.InvalidInput(err)
	}
	sortItems, err := loadSort(opts.SortPath)
	if err != nil {
		return formatter.InvalidInput(err)
	}

	sess, err := opts.openSession(ctx, cmd, formatter)
	if err != nil {
		return err
	}
	defer sess.close(ctx)

	var fieldSet queryir.FieldSet
	if opts.Tag != "" {
		fieldSet, err = sess.registry.FieldSet(ctx, opts.AppID, opts.Tag)
		if err != nil {
			return formatter.Fail(err)
		}
	}

	res, err := sess.store.Read(ctx, objstore.ReadParams{
		Query:          q,
		Tag:            opts.Tag,
		Fields:         fieldSet,
		Sort:           sortItems,
		Page:           queryir.PageFromOneBased(opts.Page),
		Limit:          opts.Limit,
		IncludeDeleted: opts.IncludeDeleted,
	})
	if err != nil {
		return formatter.Fail(err)
	}

	out := ReadOutput{Objs: res.Objs, Page: max(opts.Page, 1), HasMore: res.HasMore}
	if out.Objs == nil {
		out.Objs = []ir.Obj{}
	}
	if formatter.Format == "json" {
		return formatter.Success(out)
	}

	for _, obj := range out.Objs {
		record, err := json.Marshal(obj.ObjRecord)
		if err != nil {
			return formatter.Fail(err)
		}
		state := ""
		if obj.IsDeleted() {
			state = " (deleted)"
		}
		fmt.Fprintf(formatter.Writer, "%s  %s%s  %s\n", obj.ID, obj.Tag, state, record)
	}
	more := ""
	if out.HasMore {
		more = ", more available"
	}
	fmt.Fprintf(formatter.Writer, "%d record(s) on page %d%s\n", len(out.Objs), out.Page, more)
	return nil
}
