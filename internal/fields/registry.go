package fields

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/softkave/fimidx-sub001/internal/ir"
	"github.com/softkave/fimidx-sub001/internal/queryir"
)

// DefaultCacheSize is the number of (appId, tag) entries cached when none
// is configured.
const DefaultCacheSize = 256

// Store persists field metadata. objstore.Store satisfies it.
type Store interface {
	UpsertFields(ctx context.Context, fields []ir.ObjField) error
	ReadFields(ctx context.Context, appID, tag string) ([]ir.ObjField, error)
}

// Registry serves field metadata from an ARC cache in front of a Store.
//
// Thread-safety: Registry is safe for concurrent use. Two concurrent
// Ingest calls for the same (appId, tag) may each miss the other's new
// types until the next Ingest.
type Registry struct {
	store  Store
	cache  *lru.ARCCache
	now    func() time.Time
	logger *slog.Logger
}

// NewRegistry creates a Registry caching up to size entries.
func NewRegistry(store Store, size int, logger *slog.Logger) (*Registry, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.NewARC(size)
	if err != nil {
		return nil, fmt.Errorf("create field cache: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:  store,
		cache:  cache,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		logger: logger,
	}, nil
}

func cacheKey(appID, tag string) string {
	return appID + "\x00" + tag
}

// Fields returns the stored metadata of (appID, tag), sorted by path.
func (r *Registry) Fields(ctx context.Context, appID, tag string) ([]ir.ObjField, error) {
	key := cacheKey(appID, tag)
	if v, ok := r.cache.Get(key); ok {
		return v.([]ir.ObjField), nil
	}

	fields, err := r.store.ReadFields(ctx, appID, tag)
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, fields)
	return fields, nil
}

// FieldSet returns the metadata of (appID, tag) in the form the query
// compilers take.
func (r *Registry) FieldSet(ctx context.Context, appID, tag string) (queryir.FieldSet, error) {
	fields, err := r.Fields(ctx, appID, tag)
	if err != nil {
		return nil, err
	}
	return queryir.NewFieldSet(fields), nil
}

// Ingest extracts field metadata from objs, merges it with what is stored,
// and persists the entries that changed. Records with ShouldIndex unset
// are skipped; a non-empty FieldsToIndex limits extraction to those
// paths. It returns the number of entries written.
func (r *Registry) Ingest(ctx context.Context, objs []ir.Obj) (int, error) {
	type group struct {
		appID, groupID, tag string
		found               map[string]ir.ObjField
	}
	groups := make(map[string]*group)
	var order []string

	now := r.now()
	for _, o := range objs {
		if !o.ShouldIndex {
			continue
		}
		key := cacheKey(o.AppID, o.Tag)
		g, ok := groups[key]
		if !ok {
			g = &group{appID: o.AppID, groupID: o.GroupID, tag: o.Tag, found: make(map[string]ir.ObjField)}
			groups[key] = g
			order = append(order, key)
		}
		allowed := allowSet(o.FieldsToIndex)
		for _, f := range Extract(o.AppID, o.GroupID, o.Tag, o.ObjRecord, now) {
			if allowed != nil && !allowed[f.Path] {
				continue
			}
			if prev, ok := g.found[f.Path]; ok {
				mergeField(&prev, f)
				g.found[f.Path] = prev
				continue
			}
			g.found[f.Path] = f
		}
	}

	written := 0
	for _, key := range order {
		g := groups[key]
		stored, err := r.Fields(ctx, g.appID, g.tag)
		if err != nil {
			return written, fmt.Errorf("ingest fields: %w", err)
		}
		byPath := make(map[string]ir.ObjField, len(stored))
		for _, f := range stored {
			byPath[f.Path] = f
		}

		var changed []ir.ObjField
		for _, f := range sortedFields(g.found) {
			prev, ok := byPath[f.Path]
			if !ok {
				changed = append(changed, f)
				continue
			}
			prev.ValueTypes = append([]string(nil), prev.ValueTypes...)
			if mergeField(&prev, f) {
				prev.UpdatedAt = now
				changed = append(changed, prev)
			}
		}
		if len(changed) == 0 {
			continue
		}

		if err := r.store.UpsertFields(ctx, changed); err != nil {
			return written, fmt.Errorf("ingest fields: %w", err)
		}
		r.cache.Remove(key)
		written += len(changed)
		r.logger.Debug("fields ingested", "app", g.appID, "tag", g.tag, "changed", len(changed))
	}
	return written, nil
}

// Invalidate drops the cached entry of (appID, tag).
func (r *Registry) Invalidate(appID, tag string) {
	r.cache.Remove(cacheKey(appID, tag))
}

func allowSet(paths []string) map[string]bool {
	if len(paths) == 0 {
		return nil
	}
	m := make(map[string]bool, len(paths))
	for _, p := range paths {
		m[ir.ParsePath(p).String()] = true
	}
	return m
}

func sortedFields(m map[string]ir.ObjField) []ir.ObjField {
	out := make([]ir.ObjField, 0, len(m))
	for _, f := range m {
		out = append(out, f)
	}
	sortByPath(out)
	return out
}
