package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/goliatone/go-mailsync/txlog"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ErrUnitSealed is returned when a mutation is attempted after the unit of
// work started committing.
var ErrUnitSealed = errors.New("store: unit of work already sealed")

// Hook runs inside the transaction after log entries were recorded.
type Hook func(ctx context.Context, uow *UnitOfWork) error

type objectKey struct {
	objectType types.ObjectType
	recordID   uuid.UUID
}

// UnitOfWork collects the mutations of one transaction. Writes are issued
// immediately through the transaction; log entries are derived on commit.
type UnitOfWork struct {
	store     *Store
	tx        bun.Tx
	changes   []types.Change
	baselines map[objectKey][]byte
	hooks     []Hook
	sealed    bool
}

func newUnitOfWork(s *Store, tx bun.Tx) *UnitOfWork {
	return &UnitOfWork{
		store:     s,
		tx:        tx,
		baselines: make(map[objectKey][]byte),
	}
}

// Tx exposes the transaction so collaborators can write rows that commit
// atomically with the unit of work.
func (u *UnitOfWork) Tx() bun.Tx {
	return u.tx
}

// Changes returns a copy of the mutations collected so far.
func (u *UnitOfWork) Changes() []types.Change {
	out := make([]types.Change, len(u.changes))
	copy(out, u.changes)
	return out
}

// BeforeCommit registers a hook that runs after log entries were recorded.
func (u *UnitOfWork) BeforeCommit(hook Hook) {
	if hook != nil {
		u.hooks = append(u.hooks, hook)
	}
}

// Track captures the versioned state of a loaded object so a later Update
// can tell whether any externally visible field changed.
func (u *UnitOfWork) Track(model Model) {
	if model == nil {
		return
	}
	key := keyOf(model)
	if _, ok := u.baselines[key]; ok {
		return
	}
	if encoded, err := json.Marshal(model.VersionedFields()); err == nil {
		u.baselines[key] = encoded
	}
}

// Find loads an object by public id within the namespace and tracks it.
func (u *UnitOfWork) Find(ctx context.Context, model Model, namespaceID uuid.UUID, publicID string) error {
	if err := find(ctx, u.tx, model, namespaceID, publicID); err != nil {
		return err
	}
	u.Track(model)
	return nil
}

// Insert assigns identity fields and writes the object.
func (u *UnitOfWork) Insert(ctx context.Context, model Model) error {
	if err := u.writable(model); err != nil {
		return err
	}
	rec := model.record()
	if rec.NamespaceID == uuid.Nil {
		return types.ErrNamespaceRequired
	}
	if rec.ID == uuid.Nil {
		rec.ID = u.store.idGen.UUID()
	}
	if rec.PublicID == "" {
		rec.PublicID = u.store.publicIDs.PublicID()
	}
	now := u.store.clock.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if _, err := u.tx.NewInsert().Model(model).Exec(ctx); err != nil {
		return fmt.Errorf("store: insert %s: %w", model.TableName(), err)
	}
	u.changes = append(u.changes, types.Change{
		Object:          model,
		Command:         types.CommandInsert,
		VersionedChange: true,
	})
	return nil
}

// Update writes the object. The change counts as versioned when the object
// was not tracked or its versioned fields differ from the tracked baseline.
func (u *UnitOfWork) Update(ctx context.Context, model Model) error {
	if err := u.writable(model); err != nil {
		return err
	}
	rec := model.record()
	if rec.ID == uuid.Nil {
		return types.ErrRecordIDRequired
	}
	rec.UpdatedAt = u.store.clock.Now()
	query := u.tx.NewUpdate().Model(model).WherePK()
	if _, ok := model.(*Thread); ok {
		// version only moves through bumpThreadVersions.
		query = query.ExcludeColumn("version")
	}
	res, err := query.Exec(ctx)
	if err != nil {
		return fmt.Errorf("store: update %s: %w", model.TableName(), err)
	}
	if err := expectRow(res, model); err != nil {
		return err
	}
	u.changes = append(u.changes, types.Change{
		Object:          model,
		Command:         types.CommandUpdate,
		VersionedChange: u.versionedChange(model),
	})
	return nil
}

// Delete removes the object.
func (u *UnitOfWork) Delete(ctx context.Context, model Model) error {
	if err := u.writable(model); err != nil {
		return err
	}
	if model.record().ID == uuid.Nil {
		return types.ErrRecordIDRequired
	}
	res, err := u.tx.NewDelete().Model(model).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", model.TableName(), err)
	}
	if err := expectRow(res, model); err != nil {
		return err
	}
	u.changes = append(u.changes, types.Change{
		Object:  model,
		Command: types.CommandDelete,
	})
	return nil
}

// ExpectThreadVersion fails with a conflict when the stored thread version
// no longer matches the version the caller read.
func (u *UnitOfWork) ExpectThreadVersion(ctx context.Context, threadID uuid.UUID, expected int64) error {
	var current int64
	err := u.tx.NewSelect().
		Model((*Thread)(nil)).
		Column("version").
		Where("id = ?", threadID).
		Scan(ctx, &current)
	if errors.Is(err, sql.ErrNoRows) {
		return types.NewNotFoundError("thread not found", map[string]any{"thread_id": threadID.String()})
	}
	if err != nil {
		return err
	}
	if current != expected {
		return types.NewConflictError("thread was modified concurrently", map[string]any{
			"thread_id":        threadID.String(),
			"expected_version": expected,
			"current_version":  current,
		})
	}
	return nil
}

func (u *UnitOfWork) writable(model Model) error {
	if u.sealed {
		return ErrUnitSealed
	}
	if model == nil {
		return errors.New("store: model required")
	}
	return nil
}

func (u *UnitOfWork) versionedChange(model Model) bool {
	baseline, ok := u.baselines[keyOf(model)]
	if !ok {
		return true
	}
	current, err := json.Marshal(model.VersionedFields())
	if err != nil {
		return true
	}
	return string(current) != string(baseline)
}

func (u *UnitOfWork) flush(ctx context.Context) ([]*txlog.Entry, error) {
	u.sealed = true
	if err := u.bumpThreadVersions(ctx); err != nil {
		return nil, err
	}
	entries, err := u.store.recorder.Record(ctx, u.tx, u.changes)
	if err != nil {
		return nil, err
	}
	for _, hook := range u.hooks {
		if err := hook(ctx, u); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// bumpThreadVersions increments the stored version of every thread that
// changed, or whose versioned children changed, exactly once. The increment
// is computed by the database so concurrent writers never lose a bump.
func (u *UnitOfWork) bumpThreadVersions(ctx context.Context) error {
	created := make(map[uuid.UUID]struct{})
	removed := make(map[uuid.UUID]struct{})
	seen := make(map[uuid.UUID]struct{})
	var order []uuid.UUID
	mark := func(id uuid.UUID) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		order = append(order, id)
	}

	for _, change := range u.changes {
		if change.Command == types.CommandUpdate && !change.VersionedChange {
			continue
		}
		if thread, ok := change.Object.(*Thread); ok {
			switch change.Command {
			case types.CommandInsert:
				created[thread.ID] = struct{}{}
			case types.CommandDelete:
				removed[thread.ID] = struct{}{}
			default:
				mark(thread.ID)
			}
			continue
		}
		if child, ok := change.Object.(types.VersionedChild); ok {
			if parentID, ok := child.VersionedParentID(); ok {
				mark(parentID)
			}
		}
	}

	now := u.store.clock.Now()
	for _, id := range order {
		if _, ok := created[id]; ok {
			continue
		}
		if _, ok := removed[id]; ok {
			continue
		}
		res, err := u.tx.NewUpdate().
			Model((*Thread)(nil)).
			Set("version = version + 1").
			Set("updated_at = ?", now).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("store: bump thread version: %w", err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			u.store.logger.Debug("thread version bump skipped, thread missing", "thread_id", id)
			continue
		}
		reloaded := new(Thread)
		if err := u.tx.NewSelect().Model(reloaded).Where("id = ?", id).Scan(ctx); err != nil {
			return fmt.Errorf("store: reload thread: %w", err)
		}
		u.syncThread(reloaded)
	}
	return nil
}

// syncThread propagates the bumped version to the thread instances held by
// callers, or records an update for threads touched only through children.
func (u *UnitOfWork) syncThread(reloaded *Thread) {
	found := false
	for i, change := range u.changes {
		thread, ok := change.Object.(*Thread)
		if !ok || thread.ID != reloaded.ID {
			continue
		}
		thread.Version = reloaded.Version
		thread.UpdatedAt = reloaded.UpdatedAt
		u.changes[i].VersionedChange = true
		found = true
	}
	if !found {
		u.changes = append(u.changes, types.Change{
			Object:          reloaded,
			Command:         types.CommandUpdate,
			VersionedChange: true,
		})
	}
}

func find(ctx context.Context, db bun.IDB, model Model, namespaceID uuid.UUID, publicID string) error {
	if model == nil {
		return errors.New("store: model required")
	}
	if namespaceID == uuid.Nil {
		return types.ErrNamespaceRequired
	}
	if err := types.ValidPublicID(publicID); err != nil {
		return err
	}
	err := db.NewSelect().
		Model(model).
		Where("namespace_id = ?", namespaceID).
		Where("public_id = ?", publicID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return types.NewNotFoundError(fmt.Sprintf("%s not found", model.RevisionKey().ObjectType), map[string]any{
			"namespace_id": namespaceID.String(),
			"public_id":    publicID,
		})
	}
	return err
}

func expectRow(res sql.Result, model Model) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		key := model.RevisionKey()
		return types.NewNotFoundError(fmt.Sprintf("%s not found", key.ObjectType), map[string]any{
			"record_id": key.RecordID.String(),
		})
	}
	return nil
}

func keyOf(model Model) objectKey {
	key := model.RevisionKey()
	return objectKey{objectType: key.ObjectType, recordID: key.RecordID}
}
