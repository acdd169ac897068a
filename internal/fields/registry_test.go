package fields

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softkave/fimidx-sub001/internal/ir"
)

// memStore keeps fields in memory and counts calls.
type memStore struct {
	fields  map[string]ir.ObjField
	reads   int
	upserts int
	readErr error
}

func newMemStore() *memStore {
	return &memStore{fields: make(map[string]ir.ObjField)}
}

func (m *memStore) UpsertFields(_ context.Context, fields []ir.ObjField) error {
	m.upserts++
	for _, f := range fields {
		key := f.AppID + "/" + f.Tag + "/" + f.Path
		if prev, ok := m.fields[key]; ok {
			f.ID, f.CreatedAt = prev.ID, prev.CreatedAt
		}
		if f.ID == "" {
			f.ID = key
		}
		m.fields[key] = f
	}
	return nil
}

func (m *memStore) ReadFields(_ context.Context, appID, tag string) ([]ir.ObjField, error) {
	m.reads++
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := []ir.ObjField{}
	for _, f := range m.fields {
		if f.AppID == appID && f.Tag == tag {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func newTestRegistry(t *testing.T, store Store) *Registry {
	t.Helper()
	r, err := NewRegistry(store, 8, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	at := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return at }
	return r
}

func obj(app, tag string, rec ir.IRObject) ir.Obj {
	return ir.Obj{AppID: app, Tag: tag, ObjRecord: rec, ShouldIndex: true}
}

func TestRegistry_FieldsCached(t *testing.T) {
	store := newMemStore()
	r := newTestRegistry(t, store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := r.Fields(ctx, "app-1", "item")
		require.NoError(t, err)
		assert.Empty(t, got)
	}
	assert.Equal(t, 1, store.reads)

	r.Invalidate("app-1", "item")
	_, err := r.Fields(ctx, "app-1", "item")
	require.NoError(t, err)
	assert.Equal(t, 2, store.reads)
}

func TestRegistry_Ingest(t *testing.T) {
	store := newMemStore()
	r := newTestRegistry(t, store)
	ctx := context.Background()

	n, err := r.Ingest(ctx, []ir.Obj{
		obj("app-1", "item", ir.IRObject{"name": ir.IRString("a"), "tags": ir.IRArray{ir.IRString("x")}}),
		obj("app-1", "item", ir.IRObject{"name": ir.IRNumber(1)}),
		obj("app-2", "item", ir.IRObject{"other": ir.IRBool(true)}),
		{AppID: "app-1", Tag: "item", ObjRecord: ir.IRObject{"hidden": ir.IRString("h")}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	fs, err := r.FieldSet(ctx, "app-1", "item")
	require.NoError(t, err)
	require.Len(t, fs, 2)
	name, ok := fs.Lookup("name")
	require.True(t, ok)
	assert.Equal(t, []string{ir.KindNumber, ir.KindString}, name.ValueTypes)
	tags, ok := fs.Lookup("tags")
	require.True(t, ok)
	assert.True(t, tags.IsArrayCompressed)

	// Nothing new: no write.
	upserts := store.upserts
	n, err = r.Ingest(ctx, []ir.Obj{obj("app-1", "item", ir.IRObject{"name": ir.IRString("b")})})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, upserts, store.upserts)

	// A new type widens the stored entry and refreshes the cache.
	n, err = r.Ingest(ctx, []ir.Obj{obj("app-1", "item", ir.IRObject{"name": ir.IRBool(false)})})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, err := r.Fields(ctx, "app-1", "item")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{ir.KindBoolean, ir.KindNumber, ir.KindString}, got[0].ValueTypes)
}

func TestRegistry_IngestFieldsToIndex(t *testing.T) {
	store := newMemStore()
	r := newTestRegistry(t, store)
	ctx := context.Background()

	o := obj("app-1", "item", ir.IRObject{"a": ir.IRString("x"), "b": ir.IRObject{"c": ir.IRNumber(1)}})
	o.FieldsToIndex = []string{"b.c"}
	n, err := r.Ingest(ctx, []ir.Obj{o})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := r.Fields(ctx, "app-1", "item")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b.c", got[0].Path)
}

func TestRegistry_ReadError(t *testing.T) {
	store := newMemStore()
	store.readErr = errors.New("boom")
	r := newTestRegistry(t, store)

	_, err := r.Fields(context.Background(), "app-1", "item")
	assert.ErrorIs(t, err, store.readErr)

	_, err = r.Ingest(context.Background(), []ir.Obj{obj("app-1", "item", ir.IRObject{"a": ir.IRNumber(1)})})
	assert.ErrorIs(t, err, store.readErr)
}
