package objstore

import (
	"context"
	"time"

	"github.com/softkave/fimidx-sub001/internal/ir"
	"github.com/softkave/fimidx-sub001/internal/merge"
	"github.com/softkave/fimidx-sub001/internal/queryir"
)

// Scope selects records by soft-delete state.
type Scope int

const (
	// ScopeLive selects records whose deletedAt is null.
	ScopeLive Scope = iota

	// ScopeAll adds no delete-state clause.
	ScopeAll

	// ScopeDeleted selects soft-deleted records only.
	ScopeDeleted
)

// String returns the scope name used in logs.
func (s Scope) String() string {
	switch s {
	case ScopeLive:
		return "live"
	case ScopeAll:
		return "all"
	case ScopeDeleted:
		return "deleted"
	}
	return "unknown"
}

// FindSpec is a fully specified lookup. Backends compile Query, add the
// Tag, Scope, and ExcludeIDs clauses, and apply Sort, Page, and Limit.
type FindSpec struct {
	Query         queryir.Query
	Tag           string
	Fields        queryir.FieldSet
	Sort          []queryir.SortItem
	Page          int
	Limit         int // <= 0 means unpaginated
	Scope         Scope
	ExcludeIDs    []string
	ReferenceDate time.Time
}

// Deletion carries the audit fields of a soft delete.
type Deletion struct {
	At     time.Time
	By     string
	ByType string
}

// Backend is the narrow per-engine surface Engine is built on.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// DefaultMergeStrategy is used when an update names no strategy.
	DefaultMergeStrategy() merge.Strategy

	Find(ctx context.Context, spec FindSpec) ([]ir.Obj, error)
	Insert(ctx context.Context, objs []ir.Obj) error

	// UpdateObj persists the payload, update audit fields, and index
	// settings of obj, matched by id.
	UpdateObj(ctx context.Context, obj ir.Obj) error

	// SoftDelete marks the live records among ids as deleted.
	SoftDelete(ctx context.Context, ids []string, d Deletion) (int, error)

	// HardDelete physically removes the records with the given ids.
	HardDelete(ctx context.Context, ids []string) (int, error)

	// InTx runs fn against a Backend bound to one unit of work. Calling
	// InTx on a bound Backend joins the existing unit.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Backend) error) error

	UpsertFields(ctx context.Context, fields []ir.ObjField) error
	ReadFields(ctx context.Context, appID, tag string) ([]ir.ObjField, error)
}

// IDs returns the ids of objs in order.
func IDs(objs []ir.Obj) []string {
	ids := make([]string, len(objs))
	for i, o := range objs {
		ids[i] = o.ID
	}
	return ids
}
