package actions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Target identifies the object an action applies to.
type Target interface {
	TableName() string
	RevisionKey() types.RevisionKey
}

// ScheduleInput describes a single action to enqueue.
type ScheduleInput struct {
	Action      string
	TableName   string
	RecordID    uuid.UUID
	NamespaceID uuid.UUID
	ExtraArgs   map[string]any
}

// AccountStates resolves the sync state of the account that owns a
// namespace. Reads go through db so they join the caller's transaction.
type AccountStates interface {
	NamespaceSyncState(ctx context.Context, db bun.IDB, namespaceID uuid.UUID) (types.SyncState, error)
}

// SchedulerConfig wires the scheduler.
type SchedulerConfig struct {
	Accounts AccountStates
	Clock    types.Clock
	IDGen    types.IDGenerator
	Logger   types.Logger
}

// Scheduler enqueues action log entries inside the caller's transaction.
type Scheduler struct {
	accounts AccountStates
	clock    types.Clock
	idGen    types.IDGenerator
	logger   types.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Accounts == nil {
		return nil, types.ErrMissingAccountRepository
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	idGen := cfg.IDGen
	if idGen == nil {
		idGen = types.UUIDGenerator{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Scheduler{
		accounts: cfg.Accounts,
		clock:    clock,
		idGen:    idGen,
		logger:   logger,
	}, nil
}

// Schedule writes a pending entry through db. Scheduling against an account
// whose sync state is invalid fails with a 403 ActionError and writes
// nothing.
func (s *Scheduler) Schedule(ctx context.Context, db bun.IDB, input ScheduleInput) (*Entry, error) {
	if db == nil {
		return nil, errors.New("actions: db required")
	}
	input.Action = strings.TrimSpace(input.Action)
	if input.Action == "" {
		return nil, types.NewInputError(types.TextCodeInvalidPayload, "action name required")
	}
	if input.TableName == "" {
		return nil, types.NewInputError(types.TextCodeInvalidPayload, "table name required")
	}
	if input.RecordID == uuid.Nil {
		return nil, types.ErrRecordIDRequired
	}
	if input.NamespaceID == uuid.Nil {
		return nil, types.ErrNamespaceRequired
	}

	state, err := s.accounts.NamespaceSyncState(ctx, db, input.NamespaceID)
	if err != nil {
		return nil, err
	}
	if state == types.SyncStateInvalid {
		s.logger.Info("action blocked for invalid account", "namespace_id", input.NamespaceID, "action", input.Action)
		return nil, types.NewActionError(http.StatusForbidden, input.NamespaceID)
	}

	now := s.clock.Now()
	entry := &Entry{
		ID:          s.idGen.UUID(),
		NamespaceID: input.NamespaceID,
		Action:      input.Action,
		TableName:   input.TableName,
		RecordID:    input.RecordID,
		Status:      types.ActionStatusPending,
		ExtraArgs:   cloneArgs(input.ExtraArgs),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := db.NewInsert().Model(entry).Exec(ctx); err != nil {
		return nil, fmt.Errorf("actions: insert entry: %w", err)
	}
	s.logger.Debug("action scheduled", "action", entry.Action, "record_id", entry.RecordID)
	return entry, nil
}

// ScheduleFor enqueues an action against a persisted object. The object must
// already carry its id, which the unit of work assigns on insert.
func (s *Scheduler) ScheduleFor(ctx context.Context, db bun.IDB, action string, target Target, extra map[string]any) (*Entry, error) {
	if target == nil {
		return nil, errors.New("actions: target required")
	}
	key := target.RevisionKey()
	return s.Schedule(ctx, db, ScheduleInput{
		Action:      action,
		TableName:   target.TableName(),
		RecordID:    key.RecordID,
		NamespaceID: key.NamespaceID,
		ExtraArgs:   extra,
	})
}

// ScheduleForTag enqueues the action mapped to a tag mutation. Unknown tags
// return nil without error.
func (s *Scheduler) ScheduleForTag(ctx context.Context, db bun.IDB, tag string, added bool, target Target) (*Entry, error) {
	action, ok := ActionForTag(tag, added)
	if !ok {
		return nil, nil
	}
	return s.ScheduleFor(ctx, db, action, target, nil)
}

func cloneArgs(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
