package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/softkave/fimidx-sub001/internal/queryir"
	"github.com/softkave/fimidx-sub001/internal/querymongo"
	"github.com/softkave/fimidx-sub001/internal/querysql"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	QueryPath  string
	SortPath   string
	FieldsPath string
	AppID      string
	Page       int // one-based
	Limit      int
	Ref        string
}

// SQLOutput is the relational rendering of one query.
type SQLOutput struct {
	Where          string `json:"where"`
	WhereArgs      []any  `json:"whereArgs"`
	OrderBy        string `json:"orderBy"`
	OrderArgs      []any  `json:"orderArgs,omitempty"`
	Pagination     string `json:"pagination,omitempty"`
	PaginationArgs []any  `json:"paginationArgs,omitempty"`
}

// MongoOutput is the document-store rendering of one query, as relaxed
// extended JSON.
type MongoOutput struct {
	Filter json.RawMessage `json:"filter"`
	Sort   json.RawMessage `json:"sort"`
	Skip   int64           `json:"skip,omitempty"`
	Limit  int64           `json:"limit,omitempty"`
}

// CompileResult holds both renderings.
type CompileResult struct {
	SQL   SQLOutput   `json:"sql"`
	Mongo MongoOutput `json:"mongo"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a query for both backends",
		Long: `Compile a query document to a SQLite WHERE/ORDER BY/LIMIT clause and to
a MongoDB filter, sort, and skip/limit, without touching any store.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.QueryPath, "query", "q", "", "query JSON file")
	cmd.Flags().StringVar(&opts.SortPath, "sort", "", "sort JSON file (list of {field, direction})")
	cmd.Flags().StringVar(&opts.FieldsPath, "fields", "", "field metadata JSON file")
	cmd.Flags().StringVar(&opts.AppID, "app", "", "tenant id, replaces the query's appId")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "page size, 0 for unpaginated")
	cmd.Flags().StringVar(&opts.Ref, "ref", "", "reference date for relative durations (RFC 3339, default now)")

	return cmd
}

func runCompile(opts *CompileOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	q, err := loadQuery(opts.QueryPath, opts.AppID)
	if err != nil {
		return formatter.InvalidInput(err)
	}
	sortItems, err := loadSort(opts.SortPath)
	if err != nil {
		return formatter.InvalidInput(err)
	}
	fieldSet, err := loadFields(opts.FieldsPath)
	if err != nil {
		return formatter.InvalidInput(err)
	}
	ref := time.Now().UTC()
	if opts.Ref != "" {
		ref, err = time.Parse(time.RFC3339Nano, opts.Ref)
		if err != nil {
			return formatter.InvalidInput(fmt.Errorf("parsing --ref: %w", err))
		}
	}
	page := queryir.PageFromOneBased(opts.Page)

	result, err := compileBoth(q, sortItems, fieldSet, ref, page, opts.Limit)
	if err != nil {
		return formatter.Fail(err)
	}
	formatter.VerboseLog("compiled query with reference date %s", ref.Format(time.RFC3339))

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	printCompileResult(formatter, result)
	return nil
}

func compileBoth(q queryir.Query, sortItems []queryir.SortItem, fieldSet queryir.FieldSet, ref time.Time, page, limit int) (*CompileResult, error) {
	sqlc := querysql.NewCompiler()
	where, err := sqlc.CompileFilter(q, ref, fieldSet)
	if err != nil {
		return nil, err
	}
	order, err := sqlc.CompileSort(sortItems, fieldSet)
	if err != nil {
		return nil, err
	}
	pagination := sqlc.CompilePagination(page, limit)

	mc := querymongo.NewCompiler()
	filter, err := mc.CompileFilter(q, ref, fieldSet)
	if err != nil {
		return nil, err
	}
	sortDoc, err := mc.CompileSort(sortItems, fieldSet)
	if err != nil {
		return nil, err
	}
	mp := mc.CompilePagination(page, limit)

	filterJSON, err := bson.MarshalExtJSON(filter, false, false)
	if err != nil {
		return nil, fmt.Errorf("rendering filter: %w", err)
	}
	sortJSON, err := bson.MarshalExtJSON(sortDoc, false, false)
	if err != nil {
		return nil, fmt.Errorf("rendering sort: %w", err)
	}

	return &CompileResult{
		SQL: SQLOutput{
			Where:          where.SQL,
			WhereArgs:      nonNilArgs(where.Args),
			OrderBy:        order.SQL,
			OrderArgs:      order.Args,
			Pagination:     pagination.SQL,
			PaginationArgs: pagination.Args,
		},
		Mongo: MongoOutput{
			Filter: filterJSON,
			Sort:   sortJSON,
			Skip:   mp.Skip,
			Limit:  mp.Limit,
		},
	}, nil
}

func nonNilArgs(args []any) []any {
	if args == nil {
		return []any{}
	}
	return args
}

func printCompileResult(f *OutputFormatter, r *CompileResult) {
	w := f.Writer
	fmt.Fprintln(w, "SQLite:")
	fmt.Fprintf(w, "  WHERE %s\n", r.SQL.Where)
	fmt.Fprintf(w, "    args: %v\n", r.SQL.WhereArgs)
	fmt.Fprintf(w, "  ORDER BY %s\n", r.SQL.OrderBy)
	if len(r.SQL.OrderArgs) > 0 {
		fmt.Fprintf(w, "    args: %v\n", r.SQL.OrderArgs)
	}
	if r.SQL.Pagination != "" {
		fmt.Fprintf(w, "  %s\n", r.SQL.Pagination)
		fmt.Fprintf(w, "    args: %v\n", r.SQL.PaginationArgs)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "MongoDB:")
	fmt.Fprintf(w, "  filter: %s\n", r.Mongo.Filter)
	fmt.Fprintf(w, "  sort:   %s\n", r.Mongo.Sort)
	if r.Mongo.Limit > 0 {
		fmt.Fprintf(w, "  skip: %d  limit: %d\n", r.Mongo.Skip, r.Mongo.Limit)
	}
}
