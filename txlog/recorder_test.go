package txlog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRecorderBuildSkipsUntrackedChanges(t *testing.T) {
	ns := uuid.New()
	recorder := NewRecorder(RecorderConfig{})

	suppressed := newFakeObject(ns, types.ObjectTypeMessage, "backfill")
	suppressed.suppress = true
	unchanged := newFakeObject(ns, types.ObjectTypeThread, "same")

	entries, err := recorder.Build([]types.Change{
		{Object: struct{ Name string }{"plain"}, Command: types.CommandInsert},
		{Object: suppressed, Command: types.CommandInsert},
		{Object: unchanged, Command: types.CommandUpdate, VersionedChange: false},
	})
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRecorderBuildCollapsesChangesPerObject(t *testing.T) {
	ns := uuid.New()
	recorder := NewRecorder(RecorderConfig{})

	created := newFakeObject(ns, types.ObjectTypeThread, "draft")
	transient := newFakeObject(ns, types.ObjectTypeTag, "tmp")
	removed := newFakeObject(ns, types.ObjectTypeContact, "old")

	changes := []types.Change{
		{Object: created, Command: types.CommandInsert},
		{Object: transient, Command: types.CommandInsert},
		{Object: removed, Command: types.CommandUpdate, VersionedChange: true},
	}
	created.subject = "final"
	changes = append(changes,
		types.Change{Object: created, Command: types.CommandUpdate, VersionedChange: true},
		types.Change{Object: transient, Command: types.CommandDelete},
		types.Change{Object: removed, Command: types.CommandDelete},
	)

	entries, err := recorder.Build(changes)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.Equal(t, types.CommandInsert, entries[0].Command)
	require.Equal(t, created.publicID, entries[0].ObjectPublicID)
	var snapshot map[string]any
	require.NoError(t, json.Unmarshal(entries[0].Snapshot, &snapshot))
	require.Equal(t, "final", snapshot["subject"])

	require.Equal(t, types.CommandDelete, entries[1].Command)
	require.Nil(t, entries[1].Snapshot)
}

func TestRecorderBuildValidatesIdentity(t *testing.T) {
	recorder := NewRecorder(RecorderConfig{})

	orphan := newFakeObject(uuid.Nil, types.ObjectTypeMessage, "x")
	_, err := recorder.Build([]types.Change{{Object: orphan, Command: types.CommandInsert}})
	require.ErrorIs(t, err, types.ErrNamespaceRequired)

	unsaved := newFakeObject(uuid.New(), types.ObjectTypeMessage, "x")
	unsaved.id = uuid.Nil
	_, err = recorder.Build([]types.Change{{Object: unsaved, Command: types.CommandInsert}})
	require.ErrorIs(t, err, types.ErrRecordIDRequired)

	_, err = recorder.Build([]types.Change{{Object: newFakeObject(uuid.New(), types.ObjectTypeMessage, "x"), Command: "upsert"}})
	require.Error(t, err)
}

func TestRecorderRecordAssignsIncreasingIDs(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := &stepClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	recorder := NewRecorder(RecorderConfig{Clock: clock})
	ns := uuid.New()

	first, err := recorder.Record(ctx, db, []types.Change{
		{Object: newFakeObject(ns, types.ObjectTypeThread, "a"), Command: types.CommandInsert},
		{Object: newFakeObject(ns, types.ObjectTypeMessage, "b"), Command: types.CommandInsert},
	})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Greater(t, first[0].ID, int64(0))
	require.Greater(t, first[1].ID, first[0].ID)

	second, err := recorder.Record(ctx, db, []types.Change{
		{Object: newFakeObject(ns, types.ObjectTypeTag, "c"), Command: types.CommandInsert},
	})
	require.NoError(t, err)
	require.Greater(t, second[0].ID, first[1].ID)
	require.True(t, second[0].CreatedAt.Equal(clock.now))

	none, err := recorder.Record(ctx, db, nil)
	require.NoError(t, err)
	require.Nil(t, none)
}
