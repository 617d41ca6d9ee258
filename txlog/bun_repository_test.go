package txlog

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func seedEntries(t *testing.T, db *bun.DB, recorder *Recorder, changes ...types.Change) []*Entry {
	t.Helper()
	out := make([]*Entry, 0, len(changes))
	for _, change := range changes {
		entries, err := recorder.Record(context.Background(), db, []types.Change{change})
		require.NoError(t, err)
		out = append(out, entries...)
	}
	return out
}

func insertOf(obj *fakeObject) types.Change {
	return types.Change{Object: obj, Command: types.CommandInsert}
}

func TestRepository_ReadAfterPagesForward(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	recorder := NewRecorder(RecorderConfig{})
	repo, err := NewRepository(RepositoryConfig{DB: db})
	require.NoError(t, err)

	ns := uuid.New()
	other := uuid.New()
	for i := 0; i < 4; i++ {
		seedEntries(t, db, recorder, insertOf(newFakeObject(other, types.ObjectTypeContact, "noise")))
	}
	seeded := seedEntries(t, db, recorder,
		insertOf(newFakeObject(ns, types.ObjectTypeThread, "one")),
		insertOf(newFakeObject(ns, types.ObjectTypeMessage, "two")),
		insertOf(newFakeObject(ns, types.ObjectTypeTag, "three")),
	)
	require.Equal(t, int64(5), seeded[0].ID)
	require.Equal(t, int64(7), seeded[2].ID)

	page, err := repo.ReadAfter(ctx, types.DeltaFilter{Cursor: 0, Limit: 2, NamespaceID: ns})
	require.NoError(t, err)
	require.Equal(t, int64(0), page.PointerStart)
	require.Len(t, page.Deltas, 2)
	require.Equal(t, int64(5), page.Deltas[0].Cursor)
	require.Equal(t, int64(6), page.Deltas[1].Cursor)
	require.Equal(t, int64(6), page.PointerEnd)

	page, err = repo.ReadAfter(ctx, types.DeltaFilter{Cursor: page.PointerEnd, Limit: 2, NamespaceID: ns})
	require.NoError(t, err)
	require.Len(t, page.Deltas, 1)
	require.Equal(t, int64(7), page.Deltas[0].Cursor)
	require.Equal(t, int64(7), page.PointerEnd)

	page, err = repo.ReadAfter(ctx, types.DeltaFilter{Cursor: 7, Limit: 2, NamespaceID: ns})
	require.NoError(t, err)
	require.Empty(t, page.Deltas)
	require.NotNil(t, page.Deltas)
	require.Equal(t, int64(7), page.PointerEnd)
}

func TestRepository_ReadAfterIsLosslessForAnyLimit(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	recorder := NewRecorder(RecorderConfig{})
	repo, err := NewRepository(RepositoryConfig{DB: db})
	require.NoError(t, err)

	ns := uuid.New()
	var want []int64
	for i := 0; i < 23; i++ {
		owner := ns
		if i%3 == 0 {
			owner = uuid.New()
		}
		entries := seedEntries(t, db, recorder, insertOf(newFakeObject(owner, types.ObjectTypeMessage, "m")))
		if owner == ns {
			want = append(want, entries[0].ID)
		}
	}

	for _, limit := range []int{1, 2, 5, 100} {
		var got []int64
		cursor := int64(0)
		for {
			page, err := repo.ReadAfter(ctx, types.DeltaFilter{Cursor: cursor, Limit: limit, NamespaceID: ns})
			require.NoError(t, err)
			if len(page.Deltas) == 0 {
				require.Equal(t, cursor, page.PointerEnd)
				break
			}
			for _, delta := range page.Deltas {
				got = append(got, delta.Cursor)
			}
			require.Greater(t, page.PointerEnd, cursor)
			cursor = page.PointerEnd
		}
		require.Equal(t, want, got, "limit %d", limit)
	}
}

func TestRepository_ReadAfterEdgeCases(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	recorder := NewRecorder(RecorderConfig{})
	repo, err := NewRepository(RepositoryConfig{DB: db})
	require.NoError(t, err)

	ns := uuid.New()
	seedEntries(t, db, recorder, insertOf(newFakeObject(ns, types.ObjectTypeThread, "t")))

	page, err := repo.ReadAfter(ctx, types.DeltaFilter{Cursor: 0, Limit: 0})
	require.NoError(t, err)
	require.Empty(t, page.Deltas)
	require.Equal(t, int64(0), page.PointerEnd)

	page, err = repo.ReadAfter(ctx, types.DeltaFilter{Cursor: 999, Limit: 10})
	require.NoError(t, err)
	require.Empty(t, page.Deltas)
	require.Equal(t, int64(999), page.PointerEnd)

	_, err = repo.ReadAfter(ctx, types.DeltaFilter{Cursor: -1, Limit: 10})
	require.Error(t, err)
	require.Equal(t, http.StatusBadRequest, types.HTTPStatus(err))

	_, err = repo.ReadAfter(ctx, types.DeltaFilter{Cursor: 0, Limit: -5})
	require.Error(t, err)
}

func TestRepository_ReadAfterGlobalFeedAndDeletes(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	recorder := NewRecorder(RecorderConfig{})
	repo, err := NewRepository(RepositoryConfig{DB: db})
	require.NoError(t, err)

	first := newFakeObject(uuid.New(), types.ObjectTypeThread, "a")
	second := newFakeObject(uuid.New(), types.ObjectTypeEvent, "b")
	seedEntries(t, db, recorder,
		insertOf(first),
		insertOf(second),
		types.Change{Object: first, Command: types.CommandDelete},
	)

	page, err := repo.ReadAfter(ctx, types.DeltaFilter{Cursor: 0, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Deltas, 3)
	require.Equal(t, types.DeltaEventCreate, page.Deltas[0].Event)
	require.NotEmpty(t, page.Deltas[0].Attributes)
	require.Equal(t, second.namespace, page.Deltas[1].NamespaceID)
	require.Equal(t, types.DeltaEventDelete, page.Deltas[2].Event)
	require.Equal(t, first.publicID, page.Deltas[2].ID)
	require.Empty(t, page.Deltas[2].Attributes)
}

func TestRepository_ReadAfterExcludeTypesAndCollapse(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	recorder := NewRecorder(RecorderConfig{})
	repo, err := NewRepository(RepositoryConfig{DB: db})
	require.NoError(t, err)

	ns := uuid.New()
	thread := newFakeObject(ns, types.ObjectTypeThread, "v1")
	seedEntries(t, db, recorder,
		insertOf(thread),
		insertOf(newFakeObject(ns, types.ObjectTypeContact, "c")),
	)
	thread.subject = "v2"
	seedEntries(t, db, recorder, types.Change{Object: thread, Command: types.CommandUpdate, VersionedChange: true})

	page, err := repo.ReadAfter(ctx, types.DeltaFilter{
		Limit:        10,
		NamespaceID:  ns,
		ExcludeTypes: []types.ObjectType{types.ObjectTypeContact},
	})
	require.NoError(t, err)
	require.Len(t, page.Deltas, 2)
	for _, delta := range page.Deltas {
		require.Equal(t, types.ObjectTypeThread, delta.Object)
	}

	page, err = repo.ReadAfter(ctx, types.DeltaFilter{Limit: 10, NamespaceID: ns, Collapse: true})
	require.NoError(t, err)
	require.Len(t, page.Deltas, 2)
	require.Equal(t, types.ObjectTypeContact, page.Deltas[0].Object)
	require.Equal(t, types.DeltaEventModify, page.Deltas[1].Event)
	require.Contains(t, string(page.Deltas[1].Attributes), "v2")
	require.Equal(t, int64(3), page.PointerEnd)
}

func TestRepository_CursorNearAndLatest(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := &stepClock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	recorder := NewRecorder(RecorderConfig{Clock: clock})
	repo, err := NewRepository(RepositoryConfig{DB: db, Clock: clock})
	require.NoError(t, err)

	ns := uuid.New()
	start := clock.now
	seedEntries(t, db, recorder,
		insertOf(newFakeObject(ns, types.ObjectTypeMessage, "a")),
		insertOf(newFakeObject(ns, types.ObjectTypeMessage, "b")),
	)
	clock.Advance(time.Hour)
	late := seedEntries(t, db, recorder, insertOf(newFakeObject(ns, types.ObjectTypeMessage, "c")))

	cursor, err := repo.CursorNear(ctx, ns, start)
	require.NoError(t, err)
	require.Equal(t, int64(0), cursor)

	cursor, err = repo.CursorNear(ctx, ns, start.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(2), cursor)

	cursor, err = repo.CursorNear(ctx, ns, start.Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, late[0].ID, cursor)

	_, err = repo.CursorNear(ctx, ns, time.Time{})
	require.Error(t, err)

	latest, err := repo.LatestCursor(ctx, ns)
	require.NoError(t, err)
	require.Equal(t, late[0].ID, latest)

	latest, err = repo.LatestCursor(ctx, uuid.New())
	require.NoError(t, err)
	require.Zero(t, latest)
}

func TestRepository_Prune(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := &stepClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	recorder := NewRecorder(RecorderConfig{Clock: clock})
	repo, err := NewRepository(RepositoryConfig{DB: db, Clock: clock})
	require.NoError(t, err)

	ns := uuid.New()
	seedEntries(t, db, recorder,
		insertOf(newFakeObject(ns, types.ObjectTypeMessage, "old-1")),
		insertOf(newFakeObject(ns, types.ObjectTypeMessage, "old-2")),
	)
	clock.Advance(30 * 24 * time.Hour)
	seedEntries(t, db, recorder, insertOf(newFakeObject(ns, types.ObjectTypeMessage, "fresh")))
	cutoff := clock.now.Add(-24 * time.Hour)

	count, err := repo.Prune(ctx, types.PruneInput{Before: cutoff, DryRun: true})
	require.NoError(t, err)
	require.Equal(t, 2, count)

	page, err := repo.ReadAfter(ctx, types.DeltaFilter{Limit: 10, NamespaceID: ns})
	require.NoError(t, err)
	require.Len(t, page.Deltas, 3)

	count, err = repo.Prune(ctx, types.PruneInput{Before: cutoff})
	require.NoError(t, err)
	require.Equal(t, 2, count)

	page, err = repo.ReadAfter(ctx, types.DeltaFilter{Limit: 10, NamespaceID: ns})
	require.NoError(t, err)
	require.Len(t, page.Deltas, 1)
	require.Equal(t, int64(3), page.Deltas[0].Cursor)

	count, err = repo.Prune(ctx, types.PruneInput{Before: cutoff, Hard: true})
	require.NoError(t, err)
	require.Equal(t, 2, count)

	remaining, err := db.NewSelect().Model((*Entry)(nil)).Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, remaining)

	_, err = repo.Prune(ctx, types.PruneInput{})
	require.Error(t, err)
}
