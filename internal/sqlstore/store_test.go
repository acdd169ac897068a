package sqlstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softkave/fimidx-sub001/internal/ir"
	"github.com/softkave/fimidx-sub001/internal/merge"
	"github.com/softkave/fimidx-sub001/internal/objstore"
	"github.com/softkave/fimidx-sub001/internal/queryir"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	for _, table := range []string{"objs", "obj_fields"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found after idempotent opens", table)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	assert.Error(t, err)
}

func TestOpen_Pragmas(t *testing.T) {
	s := openTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
}

func TestOpen_Migrations(t *testing.T) {
	s := openTestStore(t)

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)

	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_objs_deleted'",
	).Scan(&name)
	assert.NoError(t, err)
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	assert.NoError(t, s.Close())
}

func TestStore_Identity(t *testing.T) {
	s := openTestStore(t)
	assert.Equal(t, "sqlite", s.Name())
	assert.Equal(t, merge.Replace, s.DefaultMergeStrategy())
}

func testObj(id string, at time.Time) ir.Obj {
	return ir.Obj{
		ID:            id,
		AppID:         "app-1",
		GroupID:       "grp",
		Tag:           "item",
		ObjRecord:     ir.IRObject{"name": ir.IRString(id), "nested": ir.IRObject{"list": ir.IRArray{ir.IRNumber(1), ir.IRBool(false)}}},
		CreatedAt:     at,
		CreatedBy:     "u1",
		CreatedByType: "user",
		UpdatedAt:     at,
		UpdatedBy:     "u1",
		UpdatedByType: "user",
		ShouldIndex:   true,
		FieldsToIndex: []string{"name"},
	}
}

func TestInsertFind_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 6, 15, 12, 0, 0, 123000000, time.UTC)

	deleted := testObj("b", at.Add(time.Second))
	when, by, byType := at.Add(time.Minute), "u2", "system"
	deleted.DeletedAt, deleted.DeletedBy, deleted.DeletedByType = &when, &by, &byType
	deleted.FieldsToIndex = nil

	require.NoError(t, s.Insert(ctx, []ir.Obj{testObj("a", at), deleted}))

	all, err := s.Find(ctx, objstore.FindSpec{Scope: objstore.ScopeAll})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, deleted, all[0])
	assert.Equal(t, testObj("a", at), all[1])

	live, err := s.Find(ctx, objstore.FindSpec{Scope: objstore.ScopeLive})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, objstore.IDs(live))

	gone, err := s.Find(ctx, objstore.FindSpec{Scope: objstore.ScopeDeleted, Tag: "item"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, objstore.IDs(gone))

	none, err := s.Find(ctx, objstore.FindSpec{Tag: "missing"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestInsert_DuplicateRollsBackBatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Insert(ctx, []ir.Obj{testObj("a", at)}))
	err := s.Insert(ctx, []ir.Obj{testObj("b", at), testObj("a", at)})
	require.Error(t, err)

	all, err := s.Find(ctx, objstore.FindSpec{Scope: objstore.ScopeAll})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, objstore.IDs(all))
}

func TestFind_ExcludeIDsAndPaging(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	var objs []ir.Obj
	for i, id := range []string{"a", "b", "c", "d"} {
		objs = append(objs, testObj(id, at.Add(time.Duration(i)*time.Millisecond)))
	}
	require.NoError(t, s.Insert(ctx, objs))

	got, err := s.Find(ctx, objstore.FindSpec{ExcludeIDs: []string{"d", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, objstore.IDs(got))

	got, err = s.Find(ctx, objstore.FindSpec{Page: 1, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, objstore.IDs(got))

	got, err = s.Find(ctx, objstore.FindSpec{
		Sort: []queryir.SortItem{{Field: queryir.FieldCreatedAt, Direction: queryir.Asc}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, objstore.IDs(got))
}

func TestFind_QueryError(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Find(context.Background(), objstore.FindSpec{
		Query: queryir.Query{MetaQuery: queryir.MetaQuery{"color": {queryir.OpEq: ir.IRString("red")}}},
	})
	var qe *queryir.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, queryir.ErrCodeUnknownField, qe.Code)
}

func TestUpdateObj(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Insert(ctx, []ir.Obj{testObj("a", at)}))

	o := testObj("a", at)
	o.ObjRecord = ir.IRObject{"name": ir.IRString("renamed")}
	o.UpdatedAt = at.Add(time.Hour)
	o.UpdatedBy = "u9"
	o.ShouldIndex = false
	o.FieldsToIndex = nil
	// Creation fields are immutable.
	o.CreatedBy = "ignored"
	require.NoError(t, s.UpdateObj(ctx, o))

	got, err := s.Find(ctx, objstore.FindSpec{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ir.IRObject{"name": ir.IRString("renamed")}, got[0].ObjRecord)
	assert.Equal(t, at.Add(time.Hour), got[0].UpdatedAt)
	assert.Equal(t, "u9", got[0].UpdatedBy)
	assert.Equal(t, "u1", got[0].CreatedBy)
	assert.False(t, got[0].ShouldIndex)
	assert.Nil(t, got[0].FieldsToIndex)
}

func TestSoftDeleteHardDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Insert(ctx, []ir.Obj{testObj("a", at), testObj("b", at)}))

	d := objstore.Deletion{At: at.Add(time.Hour), By: "u2", ByType: "user"}
	n, err := s.SoftDelete(ctx, []string{"a", "missing"}, d)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Already deleted records are not deleted again.
	n, err = s.SoftDelete(ctx, []string{"a"}, d)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.SoftDelete(ctx, nil, d)
	require.NoError(t, err)
	assert.Zero(t, n)

	gone, err := s.Find(ctx, objstore.FindSpec{Scope: objstore.ScopeDeleted})
	require.NoError(t, err)
	require.Len(t, gone, 1)
	require.NotNil(t, gone[0].DeletedAt)
	assert.Equal(t, d.At, *gone[0].DeletedAt)
	assert.Equal(t, "u2", *gone[0].DeletedBy)

	n, err = s.HardDelete(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := s.Find(ctx, objstore.FindSpec{Scope: objstore.ScopeAll})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestInTx(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	errAbort := errors.New("abort")

	err := s.InTx(ctx, func(ctx context.Context, tx objstore.Backend) error {
		require.NoError(t, tx.Insert(ctx, []ir.Obj{testObj("a", at)}))
		// Nested calls join the outer transaction.
		return tx.InTx(ctx, func(ctx context.Context, inner objstore.Backend) error {
			assert.Same(t, tx, inner)
			got, err := inner.Find(ctx, objstore.FindSpec{})
			require.NoError(t, err)
			assert.Len(t, got, 1)
			return errAbort
		})
	})
	require.ErrorIs(t, err, errAbort)

	got, err := s.Find(ctx, objstore.FindSpec{})
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx objstore.Backend) error {
		return tx.Insert(ctx, []ir.Obj{testObj("a", at)})
	}))
	got, err = s.Find(ctx, objstore.FindSpec{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestInTx_PanicRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	assert.Panics(t, func() {
		_ = s.InTx(ctx, func(ctx context.Context, tx objstore.Backend) error {
			_ = tx.Insert(ctx, []ir.Obj{testObj("a", at)})
			panic("boom")
		})
	})

	got, err := s.Find(ctx, objstore.FindSpec{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertFields(ctx, []ir.ObjField{
		{AppID: "app-1", Tag: "item", Path: "b", ValueTypes: []string{ir.KindString}, CreatedAt: at, UpdatedAt: at},
		{AppID: "app-1", Tag: "item", Path: "a", IsArrayCompressed: true, CreatedAt: at, UpdatedAt: at},
	}))
	require.NoError(t, s.UpsertFields(ctx, []ir.ObjField{
		{AppID: "app-1", Tag: "item", Path: "b", ValueTypes: []string{ir.KindNumber}, CreatedAt: at.Add(time.Hour), UpdatedAt: at.Add(time.Hour)},
	}))

	got, err := s.ReadFields(ctx, "app-1", "item")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Path)
	assert.True(t, got[0].IsArrayCompressed)
	assert.Empty(t, got[0].ValueTypes)
	assert.Equal(t, "b", got[1].Path)
	assert.Equal(t, []string{ir.KindNumber}, got[1].ValueTypes)
	assert.Equal(t, at, got[1].CreatedAt)
	assert.Equal(t, at.Add(time.Hour), got[1].UpdatedAt)
}

func TestInsertFind_KeepsDecomposedText(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	decomposed := "cafe\u0301"

	o := testObj("a", time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC))
	o.ObjRecord = ir.IRObject{"name": ir.IRString(decomposed)}
	require.NoError(t, s.Insert(ctx, []ir.Obj{o}))

	got, err := s.Find(ctx, objstore.FindSpec{Query: queryir.Query{PartQuery: &queryir.LogicalQuery{
		And: []queryir.QueryItem{{Field: "name", Op: queryir.OpEq, Value: ir.IRString(decomposed)}},
	}}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ir.IRString(decomposed), got[0].ObjRecord["name"])
}

func TestFind_PayloadDatesCompareAsInstants(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	objs := []ir.Obj{testObj("a", at), testObj("b", at.Add(time.Second)), testObj("c", at.Add(2*time.Second))}
	objs[0].ObjRecord = ir.IRObject{"when": ir.IRString("2024-01-01T00:00:00Z")}
	objs[1].ObjRecord = ir.IRObject{"when": ir.IRString("2024-01-01T00:00:00.500Z")}
	objs[2].ObjRecord = ir.IRObject{"when": ir.IRString("now")}
	require.NoError(t, s.Insert(ctx, objs))

	find := func(op queryir.Op, value ir.IRValue) []string {
		t.Helper()
		got, err := s.Find(ctx, objstore.FindSpec{
			Query: queryir.Query{PartQuery: &queryir.LogicalQuery{
				And: []queryir.QueryItem{{Field: "when", Op: op, Value: value}},
			}},
			ReferenceDate: at,
		})
		require.NoError(t, err)
		return objstore.IDs(got)
	}

	same := ir.IRString("2024-01-01T00:00:00Z")
	assert.Equal(t, []string{"a"}, find(queryir.OpLte, same))
	assert.Equal(t, []string{"b", "a"}, find(queryir.OpGte, same))
	assert.Equal(t, []string{"a"}, find(queryir.OpBetween, ir.IRArray{same, same}))
	assert.Empty(t, find(queryir.OpGt, ir.IRString("2024-01-01T00:00:00.500Z")))
}

func TestFind_LikeFoldsUnicodeCase(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	o := testObj("a", time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC))
	o.ObjRecord = ir.IRObject{"name": ir.IRString("ÖL UND ÉCOLE")}
	require.NoError(t, s.Insert(ctx, []ir.Obj{o}))

	like := func(value string, caseSensitive bool) int {
		t.Helper()
		got, err := s.Find(ctx, objstore.FindSpec{Query: queryir.Query{PartQuery: &queryir.LogicalQuery{
			And: []queryir.QueryItem{{Field: "name", Op: queryir.OpLike, Value: ir.IRString(value), CaseSensitive: &caseSensitive}},
		}}})
		require.NoError(t, err)
		return len(got)
	}

	assert.Equal(t, 1, like("öl und école", false))
	assert.Equal(t, 0, like("%", false))
	assert.Equal(t, 0, like("öl", true))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "école", fold("ÉCOLE"))
	assert.Nil(t, fold(int64(5)))
	assert.Nil(t, fold([]byte(nil)))
}
