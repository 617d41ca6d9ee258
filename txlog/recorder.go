package txlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RecorderConfig wires the revision recorder.
type RecorderConfig struct {
	Clock  types.Clock
	Logger types.Logger
}

// Recorder converts the mutations of a unit of work into log entries.
type Recorder struct {
	clock  types.Clock
	logger types.Logger
}

// NewRecorder constructs a Recorder.
func NewRecorder(cfg RecorderConfig) *Recorder {
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Recorder{clock: clock, logger: logger}
}

type pendingRevision struct {
	key     types.RevisionKey
	command types.Command
	object  types.Revisable
}

// Build decides which changes produce entries and constructs them. Objects
// that do not implement types.Revisable, objects that suppress revisions and
// updates without versioned changes are skipped. Several changes to one
// object collapse into a single entry reflecting its final state.
func (r *Recorder) Build(changes []types.Change) ([]*Entry, error) {
	if len(changes) == 0 {
		return nil, nil
	}
	order := make([]objectKey, 0, len(changes))
	pending := make(map[objectKey]*pendingRevision, len(changes))
	for _, change := range changes {
		if !change.Command.Valid() {
			return nil, fmt.Errorf("txlog: invalid command %q", change.Command)
		}
		rev, ok := change.Revisable()
		if !ok {
			continue
		}
		if change.Command == types.CommandUpdate && !change.VersionedChange {
			continue
		}
		key := rev.RevisionKey()
		if err := validateKey(key); err != nil {
			return nil, err
		}
		k := objectKey{objectType: key.ObjectType, recordID: key.RecordID}
		existing, seen := pending[k]
		if !seen {
			pending[k] = &pendingRevision{key: key, command: change.Command, object: rev}
			order = append(order, k)
			continue
		}
		existing.command = mergeCommands(existing.command, change.Command)
		existing.object = rev
		existing.key = key
	}

	now := r.clock.Now()
	entries := make([]*Entry, 0, len(order))
	for _, k := range order {
		rev := pending[k]
		if rev.command == "" {
			continue
		}
		entry := &Entry{
			NamespaceID:    rev.key.NamespaceID,
			ObjectType:     rev.key.ObjectType,
			RecordID:       rev.key.RecordID,
			ObjectPublicID: rev.key.PublicID,
			Command:        rev.command,
			CreatedAt:      now,
		}
		if rev.command != types.CommandDelete {
			snapshot, err := json.Marshal(rev.object.Snapshot())
			if err != nil {
				return nil, fmt.Errorf("txlog: encode %s snapshot: %w", rev.key.ObjectType, err)
			}
			entry.Snapshot = snapshot
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Record builds the entries and inserts them through the caller's
// transaction. Entry IDs are populated by the database once the insert
// returns; they become visible to readers only after the caller commits.
func (r *Recorder) Record(ctx context.Context, db bun.IDB, changes []types.Change) ([]*Entry, error) {
	entries, err := r.Build(changes)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	if _, err := db.NewInsert().Model(&entries).Exec(ctx); err != nil {
		return nil, fmt.Errorf("txlog: insert entries: %w", err)
	}
	r.logger.Debug("txlog entries recorded", "count", len(entries))
	return entries, nil
}

// mergeCommands folds a later command for the same object into the pending
// one. An empty result drops the object from the log.
func mergeCommands(current, next types.Command) types.Command {
	switch current {
	case types.CommandInsert:
		if next == types.CommandDelete {
			return ""
		}
		return types.CommandInsert
	case types.CommandUpdate:
		if next == types.CommandDelete {
			return types.CommandDelete
		}
		return types.CommandUpdate
	case types.CommandDelete:
		if next == types.CommandInsert {
			return types.CommandUpdate
		}
		return types.CommandDelete
	default:
		return next
	}
}

func validateKey(key types.RevisionKey) error {
	if !key.ObjectType.Valid() {
		return types.NewInputError(types.TextCodeInvalidObjectType, "invalid object type: "+string(key.ObjectType))
	}
	if key.RecordID == uuid.Nil {
		return types.ErrRecordIDRequired
	}
	if key.NamespaceID == uuid.Nil {
		return types.ErrNamespaceRequired
	}
	return nil
}
