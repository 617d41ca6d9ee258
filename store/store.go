package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/goliatone/go-mailsync/txlog"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Config wires the object store.
type Config struct {
	DB        *bun.DB
	Recorder  *txlog.Recorder
	Clock     types.Clock
	IDGen     types.IDGenerator
	PublicIDs types.PublicIDGenerator
	Logger    types.Logger
}

// CommitListener receives the entries recorded by a committed unit of work.
type CommitListener func(ctx context.Context, entries []*txlog.Entry)

// Store runs units of work against the database.
type Store struct {
	db        *bun.DB
	recorder  *txlog.Recorder
	clock     types.Clock
	idGen     types.IDGenerator
	publicIDs types.PublicIDGenerator
	logger    types.Logger

	mu        sync.RWMutex
	listeners []CommitListener
}

// New constructs a Store.
func New(cfg Config) (*Store, error) {
	if cfg.DB == nil {
		return nil, errors.New("store: db required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = txlog.NewRecorder(txlog.RecorderConfig{Clock: clock, Logger: logger})
	}
	idGen := cfg.IDGen
	if idGen == nil {
		idGen = types.UUIDGenerator{}
	}
	publicIDs := cfg.PublicIDs
	if publicIDs == nil {
		publicIDs = types.ShortPublicIDs{}
	}
	return &Store{
		db:        cfg.DB,
		recorder:  recorder,
		clock:     clock,
		idGen:     idGen,
		publicIDs: publicIDs,
		logger:    logger,
	}, nil
}

// DB exposes the underlying database handle.
func (s *Store) DB() *bun.DB {
	return s.db
}

// OnCommit registers a listener invoked after every committed unit of work
// that recorded at least one entry.
func (s *Store) OnCommit(listener CommitListener) {
	if listener == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, listener)
	s.mu.Unlock()
}

// RunInTx executes fn inside a database transaction. When fn returns nil the
// unit of work bumps thread versions, records log entries and runs its
// pre-commit hooks before committing. Any error rolls everything back.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, uow *UnitOfWork) error) error {
	if fn == nil {
		return errors.New("store: unit of work func required")
	}
	var entries []*txlog.Entry
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		uow := newUnitOfWork(s, tx)
		if err := fn(ctx, uow); err != nil {
			return err
		}
		recorded, err := uow.flush(ctx)
		if err != nil {
			return err
		}
		entries = recorded
		return nil
	})
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		s.notify(ctx, entries)
	}
	return nil
}

// Find loads an object by public id outside of a unit of work.
func (s *Store) Find(ctx context.Context, model Model, namespaceID uuid.UUID, publicID string) error {
	return find(ctx, s.db, model, namespaceID, publicID)
}

// FindByID loads an object by internal id within the namespace.
func (s *Store) FindByID(ctx context.Context, model Model, namespaceID, id uuid.UUID) error {
	if model == nil {
		return errors.New("store: model required")
	}
	if namespaceID == uuid.Nil {
		return types.ErrNamespaceRequired
	}
	if id == uuid.Nil {
		return types.ErrRecordIDRequired
	}
	err := s.db.NewSelect().
		Model(model).
		Where("namespace_id = ?", namespaceID).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return types.NewNotFoundError(fmt.Sprintf("%s not found", model.RevisionKey().ObjectType), map[string]any{
			"namespace_id": namespaceID.String(),
			"record_id":    id.String(),
		})
	}
	return err
}

func (s *Store) notify(ctx context.Context, entries []*txlog.Entry) {
	s.mu.RLock()
	listeners := append([]CommitListener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, listener := range listeners {
		listener(ctx, entries)
	}
}
