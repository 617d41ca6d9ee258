package actions

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func scheduleEntries(t *testing.T, repo *Repository, ns uuid.UUID, count int) []*Entry {
	t.Helper()
	scheduler, err := NewScheduler(SchedulerConfig{Accounts: stubAccountStates{}})
	require.NoError(t, err)
	out := make([]*Entry, 0, count)
	for i := 0; i < count; i++ {
		entry, err := scheduler.Schedule(context.Background(), repo.db, ScheduleInput{
			Action:      "archive",
			TableName:   "threads",
			RecordID:    uuid.New(),
			NamespaceID: ns,
			ExtraArgs:   map[string]any{"attempt": i},
		})
		require.NoError(t, err)
		out = append(out, entry)
	}
	return out
}

func TestRepository_ListPendingAndSettle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo, err := NewRepository(RepositoryConfig{DB: db})
	require.NoError(t, err)

	ns := uuid.New()
	entries := scheduleEntries(t, repo, ns, 3)

	pending, err := repo.ListPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, repo.MarkSuccessful(ctx, entries[0].ID))
	settled, err := repo.GetByID(ctx, entries[0].ID.String())
	require.NoError(t, err)
	require.Equal(t, types.ActionStatusSuccessful, settled.Status)

	require.Error(t, repo.MarkSuccessful(ctx, entries[0].ID), "successful is terminal")

	pending, err = repo.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
}

func TestRepository_RecordFailureUntilFailed(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo, err := NewRepository(RepositoryConfig{DB: db})
	require.NoError(t, err)

	ns := uuid.New()
	entry := scheduleEntries(t, repo, ns, 1)[0]
	cause := errors.New("remote 503")

	for i := 1; i < 3; i++ {
		failed, err := repo.RecordFailure(ctx, entry.ID, cause, 3)
		require.NoError(t, err)
		require.False(t, failed)
	}
	failed, err := repo.RecordFailure(ctx, entry.ID, cause, 3)
	require.NoError(t, err)
	require.True(t, failed)

	stored, err := repo.FindInNamespace(ctx, ns, entry.ID)
	require.NoError(t, err)
	require.Equal(t, types.ActionStatusFailed, stored.Status)
	require.Equal(t, 3, stored.Retries)
	require.Equal(t, "remote 503", stored.LastError)

	_, err = repo.RecordFailure(ctx, entry.ID, cause, 3)
	require.Error(t, err)
}

func TestRepository_RecordFailureTrimsOnRuneBoundary(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo, err := NewRepository(RepositoryConfig{DB: db})
	require.NoError(t, err)

	ns := uuid.New()
	entry := scheduleEntries(t, repo, ns, 1)[0]
	// 1023 ASCII bytes followed by a two byte rune straddling the limit.
	cause := errors.New(strings.Repeat("x", 1023) + "é and more")

	_, err = repo.RecordFailure(ctx, entry.ID, cause, 3)
	require.NoError(t, err)

	stored, err := repo.FindInNamespace(ctx, ns, entry.ID)
	require.NoError(t, err)
	require.True(t, utf8.ValidString(stored.LastError))
	require.Len(t, stored.LastError, 1023)
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", truncate("  abc  ", 10))
	require.Equal(t, "ab", truncate("abcdef", 2))
	require.Equal(t, "日", truncate("日本語", 4))
	require.Equal(t, "", truncate("日本語", 2))
}

func TestRepository_Requeue(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo, err := NewRepository(RepositoryConfig{DB: db})
	require.NoError(t, err)

	ns := uuid.New()
	entries := scheduleEntries(t, repo, ns, 2)

	_, err = repo.Requeue(ctx, ns, entries[0].ID)
	require.Equal(t, http.StatusConflict, types.HTTPStatus(err))

	_, err = repo.RecordFailure(ctx, entries[0].ID, errors.New("down"), 1)
	require.NoError(t, err)

	requeued, err := repo.Requeue(ctx, ns, entries[0].ID)
	require.NoError(t, err)
	require.Equal(t, types.ActionStatusPending, requeued.Status)
	require.Equal(t, 1, requeued.Retries)

	_, err = repo.Requeue(ctx, uuid.New(), entries[1].ID)
	require.Equal(t, http.StatusNotFound, types.HTTPStatus(err))

	listed, err := repo.ListByNamespace(ctx, ns, types.ActionStatusPending, 0)
	require.NoError(t, err)
	require.Len(t, listed, 2)
}
