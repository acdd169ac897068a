package objstore

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/softkave/fimidx-sub001/internal/ir"
	"github.com/softkave/fimidx-sub001/internal/merge"
)

// Engine implements Store over a Backend.
//
// Thread-safety: Engine holds no mutable state of its own and is safe for
// concurrent use when its Backend is.
type Engine struct {
	backend  Backend
	clock    Clock
	ids      IDGenerator
	logger   *slog.Logger
	observer Observer
}

var _ Store = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for audit timestamps and as the default
// reference date.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator sets the id generator for bulkUpsert inserts.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithLogger sets the logger. Nil means slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithObserver sets the operation observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// New creates an Engine over b.
func New(b Backend, opts ...Option) *Engine {
	e := &Engine{
		backend:  b,
		clock:    SystemClock{},
		ids:      UUIDv7Generator{},
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("backend", b.Name())
	return e
}

// Backend returns the backend the engine runs on.
func (e *Engine) Backend() Backend {
	return e.backend
}

// bind returns a copy of e running on b.
func (e *Engine) bind(b Backend) *Engine {
	c := *e
	c.backend = b
	return &c
}

// observe reports one operation. Use as: defer e.observe(op, time.Now(), &err).
func (e *Engine) observe(op string, start time.Time, errp *error) {
	err := *errp
	e.observer.ObserveOperation(e.backend.Name(), op, err, time.Since(start))
	if err != nil {
		e.logger.Error("store operation failed", "op", op, "error", err)
	}
}

func (e *Engine) refDate(t time.Time) time.Time {
	if t.IsZero() {
		return e.clock.Now()
	}
	return t
}

func (e *Engine) strategyOrDefault(s merge.Strategy) merge.Strategy {
	if s == "" {
		return e.backend.DefaultMergeStrategy()
	}
	return s
}

// Create inserts objs as given, except that FieldsToIndex is deduplicated
// and an empty list is stored as null. The caller's slice is not modified.
func (e *Engine) Create(ctx context.Context, objs []ir.Obj) (out []ir.Obj, err error) {
	defer e.observe(OpCreate, time.Now(), &err)

	if len(objs) == 0 {
		return []ir.Obj{}, nil
	}
	for i, o := range objs {
		if o.ID == "" || o.AppID == "" || o.Tag == "" {
			return nil, &ParamError{
				Code:    ErrCodeInvalidParams,
				Op:      OpCreate,
				Field:   fmt.Sprintf("objs[%d]", i),
				Message: "id, appId, and tag are required",
			}
		}
	}
	objs = slices.Clone(objs)
	for i := range objs {
		objs[i].FieldsToIndex = ir.NormalizeFieldsToIndex(objs[i].FieldsToIndex)
	}
	if err := e.backend.Insert(ctx, objs); err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	e.observer.AddItems(e.backend.Name(), OpCreate, OutcomeNew, len(objs))
	return objs, nil
}

// Read returns one page of matches. Soft-deleted records are excluded
// unless p.IncludeDeleted is set or the query's topLevelFields constrains
// deletedAt itself.
func (e *Engine) Read(ctx context.Context, p ReadParams) (res ReadResult, err error) {
	defer e.observe(OpRead, time.Now(), &err)

	if err := checkParams(OpRead, p); err != nil {
		return ReadResult{}, err
	}

	scope := ScopeLive
	if p.IncludeDeleted || p.Query.NamesDeletedAt() {
		scope = ScopeAll
	}
	objs, err := e.backend.Find(ctx, FindSpec{
		Query:         p.Query,
		Tag:           p.Tag,
		Fields:        p.Fields,
		Sort:          p.Sort,
		Page:          p.Page,
		Limit:         p.Limit,
		Scope:         scope,
		ReferenceDate: e.refDate(p.ReferenceDate),
	})
	if err != nil {
		return ReadResult{}, fmt.Errorf("read: %w", err)
	}
	return ReadResult{
		Objs:    objs,
		HasMore: p.Limit > 0 && len(objs) == p.Limit,
	}, nil
}

// Update merges p.Update into every live match and persists each record.
func (e *Engine) Update(ctx context.Context, p UpdateParams) (res UpdateResult, err error) {
	defer e.observe(OpUpdate, time.Now(), &err)

	if err := checkParams(OpUpdate, p); err != nil {
		return UpdateResult{}, err
	}

	objs, err := e.backend.Find(ctx, FindSpec{
		Query:         p.Query,
		Tag:           p.Tag,
		Fields:        p.Fields,
		Scope:         ScopeLive,
		ReferenceDate: e.refDate(p.ReferenceDate),
	})
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update: %w", err)
	}

	ch := change{
		update:        p.Update,
		strategy:      e.strategyOrDefault(p.MergeStrategy),
		by:            p.By,
		byType:        p.ByType,
		shouldIndex:   p.ShouldIndex,
		fieldsToIndex: p.FieldsToIndex,
	}
	updated, err := e.applyChange(ctx, objs, ch)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update: %w", err)
	}
	e.observer.AddItems(e.backend.Name(), OpUpdate, OutcomeUpdated, len(updated))
	return UpdateResult{Count: len(updated), Objs: updated}, nil
}

// Delete soft-deletes every live match.
func (e *Engine) Delete(ctx context.Context, p DeleteParams) (n int, err error) {
	defer e.observe(OpDelete, time.Now(), &err)

	if err := checkParams(OpDelete, p); err != nil {
		return 0, err
	}

	objs, err := e.backend.Find(ctx, FindSpec{
		Query:         p.Query,
		Tag:           p.Tag,
		Fields:        p.Fields,
		Scope:         ScopeLive,
		ReferenceDate: e.refDate(p.ReferenceDate),
	})
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	if len(objs) == 0 {
		return 0, nil
	}

	n, err = e.backend.SoftDelete(ctx, IDs(objs), Deletion{
		At:     e.clock.Now(),
		By:     p.DeletedBy,
		ByType: p.DeletedByType,
	})
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	e.observer.AddItems(e.backend.Name(), OpDelete, OutcomeDeleted, n)
	return n, nil
}

// WithTransaction runs fn against an Engine bound to one unit of work.
func (e *Engine) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return e.backend.InTx(ctx, func(ctx context.Context, tb Backend) error {
		return fn(ctx, e.bind(tb))
	})
}

// UpsertFields stores field metadata.
func (e *Engine) UpsertFields(ctx context.Context, fields []ir.ObjField) (err error) {
	defer e.observe(OpUpsertFlds, time.Now(), &err)

	if len(fields) == 0 {
		return nil
	}
	if err := e.backend.UpsertFields(ctx, fields); err != nil {
		return fmt.Errorf("upsert fields: %w", err)
	}
	return nil
}

// ReadFields returns the field metadata of one (appId, tag).
func (e *Engine) ReadFields(ctx context.Context, appID, tag string) (fields []ir.ObjField, err error) {
	defer e.observe(OpReadFields, time.Now(), &err)

	fields, err = e.backend.ReadFields(ctx, appID, tag)
	if err != nil {
		return nil, fmt.Errorf("read fields: %w", err)
	}
	return fields, nil
}

// change is a merge to apply to existing records.
type change struct {
	update        ir.IRObject
	strategy      merge.Strategy
	by            string
	byType        string
	shouldIndex   *bool
	fieldsToIndex []string
}

// applyChange merges ch into each record, refreshes the update audit
// fields, and persists the result. It stops at the first backend error;
// records already persisted stay persisted.
func (e *Engine) applyChange(ctx context.Context, objs []ir.Obj, ch change) ([]ir.Obj, error) {
	now := e.clock.Now()
	out := make([]ir.Obj, 0, len(objs))
	for _, o := range objs {
		merged, err := merge.Apply(o.ObjRecord, ch.update, ch.strategy)
		if err != nil {
			return out, err
		}
		o.ObjRecord = merged
		o.UpdatedAt = now
		o.UpdatedBy = ch.by
		o.UpdatedByType = ch.byType
		if ch.shouldIndex != nil {
			o.ShouldIndex = *ch.shouldIndex
		}
		if ch.fieldsToIndex != nil {
			o.FieldsToIndex = ir.NormalizeFieldsToIndex(ch.fieldsToIndex)
		}
		if err := e.backend.UpdateObj(ctx, o); err != nil {
			return out, err
		}
		out = append(out, o)
	}
	return out, nil
}
