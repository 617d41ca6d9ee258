package actions

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/goliatone/go-mailsync/pkg/types"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryConfig wires the Bun-backed action log repository.
type RepositoryConfig struct {
	DB         *bun.DB
	Repository repository.Repository[*Entry]
	Policy     types.TransitionPolicy[types.ActionStatus]
	Clock      types.Clock
}

type actionStore interface {
	repository.Repository[*Entry]
}

// Repository persists action log entries and settles them.
type Repository struct {
	actionStore
	db     *bun.DB
	policy types.TransitionPolicy[types.ActionStatus]
	clock  types.Clock
}

// NewRepository constructs the action log repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if cfg.DB == nil {
		return nil, errors.New("actions: db required")
	}
	repo := cfg.Repository
	if repo == nil {
		repo = NewBaseRepository(cfg.DB)
	}
	policy := cfg.Policy
	if policy == nil {
		policy = types.DefaultActionPolicy()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	return &Repository{
		actionStore: repo,
		db:          cfg.DB,
		policy:      policy,
		clock:       clock,
	}, nil
}

// NewBaseRepository builds the go-repository-bun repository for entries.
func NewBaseRepository(db *bun.DB) repository.Repository[*Entry] {
	return repository.NewRepository(db, repository.ModelHandlers[*Entry]{
		NewRecord: func() *Entry { return &Entry{} },
		GetID: func(entry *Entry) uuid.UUID {
			if entry == nil {
				return uuid.Nil
			}
			return entry.ID
		},
		SetID: func(entry *Entry, id uuid.UUID) {
			if entry != nil {
				entry.ID = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	})
}

var _ repository.Repository[*Entry] = (*Repository)(nil)

// ListPending returns the oldest pending entries, up to limit.
func (r *Repository) ListPending(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, _, err := r.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("status = ?", types.ActionStatusPending).
			OrderExpr("created_at ASC, id ASC").
			Limit(limit)
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByNamespace returns the newest entries for a namespace.
func (r *Repository) ListByNamespace(ctx context.Context, namespaceID uuid.UUID, status types.ActionStatus, limit int) ([]*Entry, error) {
	if namespaceID == uuid.Nil {
		return nil, types.ErrNamespaceRequired
	}
	rows, _, err := r.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		q = q.Where("namespace_id = ?", namespaceID).OrderExpr("created_at DESC")
		if status != "" {
			q = q.Where("status = ?", status)
		}
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q
	})
	return rows, err
}

// FindInNamespace loads an entry scoped to its namespace.
func (r *Repository) FindInNamespace(ctx context.Context, namespaceID, id uuid.UUID) (*Entry, error) {
	entry, err := r.Get(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("id = ?", id).Where("namespace_id = ?", namespaceID)
	})
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, types.NewNotFoundError("action not found", map[string]any{"action_id": id.String()})
		}
		return nil, err
	}
	return entry, nil
}

// MarkSuccessful settles a pending entry as successful.
func (r *Repository) MarkSuccessful(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx, id, types.ActionStatusPending, types.ActionStatusSuccessful, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("last_error = NULL")
	})
}

// RecordFailure increments the retry counter of a pending entry and marks it
// failed once maxRetries attempts were used. It reports whether the entry
// reached the failed state.
func (r *Repository) RecordFailure(ctx context.Context, id uuid.UUID, cause error, maxRetries int) (bool, error) {
	if maxRetries <= 0 {
		maxRetries = types.DefaultActionMaxRetries
	}
	message := ""
	if cause != nil {
		message = truncate(cause.Error(), 1024)
	}
	res, err := r.db.NewUpdate().
		Model((*Entry)(nil)).
		Set("retries = retries + 1").
		Set("last_error = ?", message).
		Set("updated_at = ?", r.clock.Now()).
		Where("id = ?", id).
		Where("status = ?", types.ActionStatusPending).
		Exec(ctx)
	if err != nil {
		return false, repository.MapDatabaseError(err, repository.DetectDriver(r.db))
	}
	if err := repository.SQLExpectedCount(res, 1); err != nil {
		return false, err
	}

	entry, err := r.GetByID(ctx, id.String())
	if err != nil {
		return false, err
	}
	if entry.Retries < maxRetries {
		return false, nil
	}
	if err := r.transition(ctx, id, types.ActionStatusPending, types.ActionStatusFailed, nil); err != nil {
		return false, err
	}
	return true, nil
}

// Requeue moves a failed entry back to pending so the worker attempts it
// again. The retry counter is never reset.
func (r *Repository) Requeue(ctx context.Context, namespaceID, id uuid.UUID) (*Entry, error) {
	entry, err := r.FindInNamespace(ctx, namespaceID, id)
	if err != nil {
		return nil, err
	}
	if err := r.policy.Validate(entry.Status, types.ActionStatusPending); err != nil {
		return nil, types.NewConflictError("action cannot be requeued from status "+string(entry.Status), map[string]any{
			"action_id": id.String(),
			"status":    string(entry.Status),
		})
	}
	if err := r.transition(ctx, id, types.ActionStatusFailed, types.ActionStatusPending, nil); err != nil {
		return nil, err
	}
	return r.FindInNamespace(ctx, namespaceID, id)
}

// transition applies a compare-and-set status change so two workers can
// never settle the same entry twice.
func (r *Repository) transition(ctx context.Context, id uuid.UUID, from, to types.ActionStatus, extra func(*bun.UpdateQuery) *bun.UpdateQuery) error {
	if err := r.policy.Validate(from, to); err != nil {
		return err
	}
	q := r.db.NewUpdate().
		Model((*Entry)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", r.clock.Now()).
		Where("id = ?", id).
		Where("status = ?", from)
	if extra != nil {
		q = extra(q)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return repository.MapDatabaseError(err, repository.DetectDriver(r.db))
	}
	return repository.SQLExpectedCount(res, 1)
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
