package objstore

import (
	"context"
	"time"

	"github.com/softkave/fimidx-sub001/internal/ir"
	"github.com/softkave/fimidx-sub001/internal/merge"
	"github.com/softkave/fimidx-sub001/internal/queryir"
)

// Store is the Object Store contract. Both backends satisfy it through
// Engine, and every method is usable inside WithTransaction.
type Store interface {
	// Create inserts pre-built records verbatim and returns them.
	Create(ctx context.Context, objs []ir.Obj) ([]ir.Obj, error)

	// Read returns one page of matching records.
	Read(ctx context.Context, p ReadParams) (ReadResult, error)

	// Update merges p.Update into every live match.
	Update(ctx context.Context, p UpdateParams) (UpdateResult, error)

	// Delete soft-deletes every live match and returns the count.
	Delete(ctx context.Context, p DeleteParams) (int, error)

	BulkUpsert(ctx context.Context, p BulkUpsertParams) (BulkUpsertResult, error)
	BulkUpdate(ctx context.Context, p BulkUpdateParams) (int, error)
	BulkDelete(ctx context.Context, p BulkDeleteParams) (int, error)

	// CleanupDeletedObjs physically removes every soft-deleted record
	// across all tenants and tags.
	CleanupDeletedObjs(ctx context.Context, p CleanupParams) (int, error)

	// WithTransaction runs fn against a Store bound to one unit of work.
	// A non-nil error from fn rolls back every write issued through tx.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// UpsertFields stores field metadata keyed by (appId, tag, path).
	UpsertFields(ctx context.Context, fields []ir.ObjField) error

	// ReadFields returns the field metadata of one (appId, tag).
	ReadFields(ctx context.Context, appID, tag string) ([]ir.ObjField, error)
}

// ProgressFunc receives the running total and the target. A zero target
// means the total is not known in advance.
type ProgressFunc func(processed, target int)

// ReadParams selects one page of records.
type ReadParams struct {
	Query queryir.Query
	Tag   string

	// Fields is optional payload field metadata, used for array
	// classification and relational sort casts.
	Fields queryir.FieldSet

	Sort []queryir.SortItem

	// Page is zero-based. Limit <= 0 returns every match.
	Page  int `validate:"gte=0"`
	Limit int `validate:"gte=0"`

	IncludeDeleted bool

	// ReferenceDate anchors relative durations. Zero means now.
	ReferenceDate time.Time
}

// ReadResult is one page of records. HasMore is true when the page came
// back full, which does not prove another page exists.
type ReadResult struct {
	Objs    []ir.Obj
	HasMore bool
}

// UpdateParams describes an update of every live match.
type UpdateParams struct {
	Query  queryir.Query
	Tag    string
	Update ir.IRObject

	// Fields is optional payload field metadata. Pass the same set as to
	// Read so both classify array paths alike.
	Fields queryir.FieldSet

	By     string `validate:"required"`
	ByType string `validate:"required"`

	// MergeStrategy defaults to the backend's default strategy.
	MergeStrategy merge.Strategy `validate:"omitempty,merge_strategy"`

	// ShouldIndex and FieldsToIndex are left unchanged when nil.
	ShouldIndex   *bool
	FieldsToIndex []string

	ReferenceDate time.Time
}

// UpdateResult reports the updated records.
type UpdateResult struct {
	Count int
	Objs  []ir.Obj
}

// DeleteParams describes a soft delete of every live match.
type DeleteParams struct {
	Query         queryir.Query
	Tag           string
	ReferenceDate time.Time

	// Fields is optional payload field metadata. Pass the same set as to
	// Read so both classify array paths alike.
	Fields queryir.FieldSet

	DeletedBy     string `validate:"required"`
	DeletedByType string `validate:"required"`
}

// ConflictPolicy routes a bulkUpsert item that matches an existing record.
// Besides Ignore and Fail, any merge strategy name is a valid policy.
type ConflictPolicy string

const (
	OnConflictIgnore ConflictPolicy = "ignore"
	OnConflictFail   ConflictPolicy = "fail"
)

// Strategy returns the merge strategy named by the policy, if any.
func (c ConflictPolicy) Strategy() (merge.Strategy, bool) {
	s := merge.Strategy(c)
	return s, s.Valid()
}

// DefaultUpsertBatchSize is the bulkUpsert batch size when none is given.
const DefaultUpsertBatchSize = 20

// BulkUpsertParams describes a batched insert-or-merge.
type BulkUpsertParams struct {
	Items []ir.IRObject

	// ConflictOnKeys are payload paths identifying an existing record. An
	// empty list makes every item new.
	ConflictOnKeys []string
	OnConflict     ConflictPolicy `validate:"required,on_conflict"`

	Tag           string `validate:"required"`
	AppID         string `validate:"required"`
	GroupID       string
	CreatedBy     string `validate:"required"`
	CreatedByType string `validate:"required"`
	ShouldIndex   bool
	FieldsToIndex []string

	BatchSize int `validate:"gte=0"`
}

// SkippedItem is an upsert item that matched an existing record and was
// left untouched.
type SkippedItem struct {
	Item       ir.IRObject
	ExistingID string
}

// BulkUpsertResult aggregates every batch of a bulkUpsert.
type BulkUpsertResult struct {
	NewObjs        []ir.Obj
	UpdatedObjs    []ir.Obj
	IgnoredItems   []SkippedItem
	FailedItems    []SkippedItem
	TotalProcessed int
}

// DefaultBulkBatchSize is the bulkUpdate, bulkDelete, and cleanup batch
// size when none is given.
const DefaultBulkBatchSize = 1000

// BulkUpdateParams describes a batched update.
type BulkUpdateParams struct {
	Query  queryir.Query
	Tag    string
	Update ir.IRObject

	// Fields is optional payload field metadata. Pass the same set as to
	// Read so both classify array paths alike.
	Fields queryir.FieldSet

	By     string `validate:"required"`
	ByType string `validate:"required"`

	MergeStrategy merge.Strategy `validate:"omitempty,merge_strategy"`

	// Count caps the number of records updated. Zero means all.
	Count int `validate:"gte=0"`

	ShouldIndex   *bool
	FieldsToIndex []string

	BatchSize  int `validate:"gte=0"`
	OnProgress ProgressFunc

	ReferenceDate time.Time
}

// BulkDeleteParams describes a batched delete.
type BulkDeleteParams struct {
	Query         queryir.Query
	Tag           string
	ReferenceDate time.Time

	// Fields is optional payload field metadata. Pass the same set as to
	// Read so both classify array paths alike.
	Fields queryir.FieldSet

	DeletedBy     string `validate:"required_if=HardDelete false"`
	DeletedByType string `validate:"required_if=HardDelete false"`

	// DeleteMany false deletes exactly one match, the most recent.
	DeleteMany bool
	BatchSize  int `validate:"gte=0"`
	HardDelete bool
}

// CleanupParams describes the global sweep of soft-deleted records.
type CleanupParams struct {
	BatchSize  int `validate:"gte=0"`
	OnProgress ProgressFunc
}
