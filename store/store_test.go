package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/goliatone/go-mailsync/txlog"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func newTestStore(t *testing.T) (*Store, *bun.DB) {
	t.Helper()
	db := newTestDB(t)
	s, err := New(Config{DB: db})
	require.NoError(t, err)
	return s, db
}

func loadEntries(t *testing.T, db bun.IDB) []*txlog.Entry {
	t.Helper()
	var entries []*txlog.Entry
	require.NoError(t, db.NewSelect().Model(&entries).OrderExpr("id ASC").Scan(context.Background()))
	return entries
}

func seedThread(t *testing.T, s *Store, ns uuid.UUID) (*Thread, *Message) {
	t.Helper()
	thread := &Thread{Record: Record{NamespaceID: ns}, Subject: "Quarterly report", Tags: []string{"inbox"}}
	message := &Message{Record: Record{NamespaceID: ns}, Subject: "Quarterly report", Unread: true}
	err := s.RunInTx(context.Background(), func(ctx context.Context, uow *UnitOfWork) error {
		if err := uow.Insert(ctx, thread); err != nil {
			return err
		}
		message.ThreadID = &thread.ID
		return uow.Insert(ctx, message)
	})
	require.NoError(t, err)
	return thread, message
}

func TestStore_InsertRecordsEntriesWithoutBump(t *testing.T) {
	s, db := newTestStore(t)
	ns := uuid.New()

	thread, message := seedThread(t, s, ns)
	require.NotEqual(t, uuid.Nil, thread.ID)
	require.NotEmpty(t, thread.PublicID)

	entries := loadEntries(t, db)
	require.Len(t, entries, 2)
	require.Equal(t, types.ObjectTypeThread, entries[0].ObjectType)
	require.Equal(t, types.CommandInsert, entries[0].Command)
	require.Equal(t, message.PublicID, entries[1].ObjectPublicID)

	var stored Thread
	require.NoError(t, s.Find(context.Background(), &stored, ns, thread.PublicID))
	require.Equal(t, int64(0), stored.Version)
}

func TestStore_ChildUpdateBumpsThreadVersion(t *testing.T) {
	ctx := context.Background()
	s, db := newTestStore(t)
	ns := uuid.New()
	thread, message := seedThread(t, s, ns)

	err := s.RunInTx(ctx, func(ctx context.Context, uow *UnitOfWork) error {
		loaded := new(Message)
		if err := uow.Find(ctx, loaded, ns, message.PublicID); err != nil {
			return err
		}
		loaded.Unread = false
		return uow.Update(ctx, loaded)
	})
	require.NoError(t, err)

	entries := loadEntries(t, db)
	require.Len(t, entries, 4)
	require.Equal(t, types.ObjectTypeMessage, entries[2].ObjectType)
	require.Equal(t, types.CommandUpdate, entries[2].Command)
	require.Equal(t, types.ObjectTypeThread, entries[3].ObjectType)
	require.Equal(t, thread.PublicID, entries[3].ObjectPublicID)

	var snapshot ThreadSnapshot
	require.NoError(t, json.Unmarshal(entries[3].Snapshot, &snapshot))
	require.Equal(t, int64(1), snapshot.Version)
}

func TestStore_UpdateWithoutVersionedChangeRecordsNothing(t *testing.T) {
	ctx := context.Background()
	s, db := newTestStore(t)
	ns := uuid.New()
	thread, _ := seedThread(t, s, ns)

	err := s.RunInTx(ctx, func(ctx context.Context, uow *UnitOfWork) error {
		loaded := new(Thread)
		if err := uow.Find(ctx, loaded, ns, thread.PublicID); err != nil {
			return err
		}
		return uow.Update(ctx, loaded)
	})
	require.NoError(t, err)
	require.Len(t, loadEntries(t, db), 2)

	var stored Thread
	require.NoError(t, s.Find(ctx, &stored, ns, thread.PublicID))
	require.Equal(t, int64(0), stored.Version)
}

func TestStore_ThreadUpdateCollapsesToOneEntry(t *testing.T) {
	ctx := context.Background()
	s, db := newTestStore(t)
	ns := uuid.New()
	thread, _ := seedThread(t, s, ns)

	var loaded *Thread
	err := s.RunInTx(ctx, func(ctx context.Context, uow *UnitOfWork) error {
		loaded = new(Thread)
		if err := uow.Find(ctx, loaded, ns, thread.PublicID); err != nil {
			return err
		}
		loaded.AddTag("starred")
		if err := uow.Update(ctx, loaded); err != nil {
			return err
		}
		loaded.RemoveTag("inbox")
		return uow.Update(ctx, loaded)
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), loaded.Version)

	entries := loadEntries(t, db)
	require.Len(t, entries, 3)
	var snapshot ThreadSnapshot
	require.NoError(t, json.Unmarshal(entries[2].Snapshot, &snapshot))
	require.Equal(t, []string{"starred"}, snapshot.Tags)
	require.Equal(t, int64(1), snapshot.Version)
}

func TestStore_StaleThreadUpdateKeepsConcurrentBump(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	ns := uuid.New()
	thread, _ := seedThread(t, s, ns)

	stale := new(Thread)
	require.NoError(t, s.Find(ctx, stale, ns, thread.PublicID))
	require.Equal(t, int64(0), stale.Version)

	err := s.RunInTx(ctx, func(ctx context.Context, uow *UnitOfWork) error {
		fresh := new(Thread)
		if err := uow.Find(ctx, fresh, ns, thread.PublicID); err != nil {
			return err
		}
		fresh.Subject = "Quarterly report (final)"
		return uow.Update(ctx, fresh)
	})
	require.NoError(t, err)

	err = s.RunInTx(ctx, func(ctx context.Context, uow *UnitOfWork) error {
		stale.AddTag("starred")
		return uow.Update(ctx, stale)
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), stale.Version)

	var stored Thread
	require.NoError(t, s.Find(ctx, &stored, ns, thread.PublicID))
	require.Equal(t, int64(2), stored.Version)
}

func TestStore_AbortRollsBackEverything(t *testing.T) {
	ctx := context.Background()
	s, db := newTestStore(t)
	ns := uuid.New()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(ctx context.Context, uow *UnitOfWork) error {
		if err := uow.Insert(ctx, &Contact{Record: Record{NamespaceID: ns}, Name: "Ada"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Empty(t, loadEntries(t, db))

	count, err := db.NewSelect().Model((*Contact)(nil)).Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	err = s.RunInTx(ctx, func(ctx context.Context, uow *UnitOfWork) error {
		if err := uow.Insert(ctx, &Contact{Record: Record{NamespaceID: ns}, Name: "Grace"}); err != nil {
			return err
		}
		uow.BeforeCommit(func(ctx context.Context, uow *UnitOfWork) error {
			return boom
		})
		return nil
	})
	require.ErrorIs(t, err, boom)
	require.Empty(t, loadEntries(t, db))
}

func TestStore_HooksAndListeners(t *testing.T) {
	ctx := context.Background()
	s, db := newTestStore(t)
	ns := uuid.New()

	var notified []*txlog.Entry
	s.OnCommit(func(ctx context.Context, entries []*txlog.Entry) {
		notified = append(notified, entries...)
	})

	hookRan := false
	err := s.RunInTx(ctx, func(ctx context.Context, uow *UnitOfWork) error {
		uow.BeforeCommit(func(ctx context.Context, uow *UnitOfWork) error {
			hookRan = true
			require.ErrorIs(t, uow.Insert(ctx, &Tag{Record: Record{NamespaceID: ns}}), ErrUnitSealed)
			return nil
		})
		return uow.Insert(ctx, &Tag{Record: Record{NamespaceID: ns, PublicID: "inbox"}, Name: "inbox"})
	})
	require.NoError(t, err)
	require.True(t, hookRan)
	require.Len(t, notified, 1)
	require.Equal(t, loadEntries(t, db)[0].ID, notified[0].ID)
}

func TestStore_DeleteAndBackfill(t *testing.T) {
	ctx := context.Background()
	s, db := newTestStore(t)
	ns := uuid.New()
	thread, message := seedThread(t, s, ns)

	err := s.RunInTx(ctx, func(ctx context.Context, uow *UnitOfWork) error {
		return uow.Insert(ctx, &Message{
			Record:   Record{NamespaceID: ns},
			ThreadID: &thread.ID,
			Subject:  "imported",
			Backfill: true,
		})
	})
	require.NoError(t, err)
	entries := loadEntries(t, db)
	require.Len(t, entries, 3)
	require.Equal(t, types.ObjectTypeThread, entries[2].ObjectType)

	err = s.RunInTx(ctx, func(ctx context.Context, uow *UnitOfWork) error {
		return uow.Delete(ctx, message)
	})
	require.NoError(t, err)
	entries = loadEntries(t, db)
	deleted := entries[len(entries)-2]
	require.Equal(t, types.CommandDelete, deleted.Command)
	require.Nil(t, deleted.Snapshot)
	require.Equal(t, types.ObjectTypeThread, entries[len(entries)-1].ObjectType)

	err = s.RunInTx(ctx, func(ctx context.Context, uow *UnitOfWork) error {
		return uow.Delete(ctx, message)
	})
	require.Equal(t, http.StatusNotFound, types.HTTPStatus(err))
}

func TestStore_ExpectThreadVersion(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	ns := uuid.New()
	thread, _ := seedThread(t, s, ns)

	err := s.RunInTx(ctx, func(ctx context.Context, uow *UnitOfWork) error {
		return uow.ExpectThreadVersion(ctx, thread.ID, 3)
	})
	require.Equal(t, http.StatusConflict, types.HTTPStatus(err))

	err = s.RunInTx(ctx, func(ctx context.Context, uow *UnitOfWork) error {
		return uow.ExpectThreadVersion(ctx, thread.ID, 0)
	})
	require.NoError(t, err)

	err = s.Find(ctx, &Thread{}, ns, "missing")
	require.Equal(t, http.StatusNotFound, types.HTTPStatus(err))

	err = s.Find(ctx, &Thread{}, ns, "bad-id!")
	require.Equal(t, http.StatusBadRequest, types.HTTPStatus(err))
}

func TestStore_ConcurrentChildWritesNeverLoseBumps(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	ns := uuid.New()
	thread, _ := seedThread(t, s, ns)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.RunInTx(ctx, func(ctx context.Context, uow *UnitOfWork) error {
				return uow.Insert(ctx, &Message{
					Record:   Record{NamespaceID: ns},
					ThreadID: &thread.ID,
					Subject:  "reply",
				})
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var stored Thread
	require.NoError(t, s.Find(ctx, &stored, ns, thread.PublicID))
	require.Equal(t, int64(writers), stored.Version)
}
