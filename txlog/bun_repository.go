package txlog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryConfig wires the Bun-backed transaction log.
type RepositoryConfig struct {
	DB     bun.IDB
	Clock  types.Clock
	Logger types.Logger
}

// Repository reads and maintains committed log entries.
type Repository struct {
	db     bun.IDB
	clock  types.Clock
	logger types.Logger
}

// NewRepository constructs the transaction log repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if cfg.DB == nil {
		return nil, errors.New("txlog: db required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Repository{
		db:     cfg.DB,
		clock:  clock,
		logger: logger,
	}, nil
}

var _ types.TransactionLog = (*Repository)(nil)

// ReadAfter returns up to filter.Limit live entries whose id is greater than
// filter.Cursor, in ascending id order. The returned PointerEnd is the id of
// the last scanned entry, or the input cursor when nothing matched, so a
// client can poll with an unchanged pointer indefinitely.
func (r *Repository) ReadAfter(ctx context.Context, filter types.DeltaFilter) (types.DeltaPage, error) {
	if err := filter.Validate(); err != nil {
		return types.DeltaPage{}, err
	}
	page := types.DeltaPage{
		PointerStart: filter.Cursor,
		PointerEnd:   filter.Cursor,
		Deltas:       []types.Delta{},
	}
	if filter.Limit == 0 {
		return page, nil
	}

	var entries []*Entry
	query := r.db.NewSelect().
		Model(&entries).
		Where("id > ?", filter.Cursor).
		Where("deleted_at IS NULL").
		OrderExpr("id ASC").
		Limit(filter.Limit)
	query = applyEntryFilter(query, filter.NamespaceID, filter.ExcludeTypes)
	if err := query.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return types.DeltaPage{}, wrapStoreError(err, "read entries")
	}
	if len(entries) == 0 {
		return page, nil
	}
	page.PointerEnd = entries[len(entries)-1].ID
	if filter.Collapse {
		entries = collapseEntries(entries)
	}
	page.Deltas = make([]types.Delta, 0, len(entries))
	for _, entry := range entries {
		page.Deltas = append(page.Deltas, entry.Delta())
	}
	return page, nil
}

// CursorNear returns the id of the newest entry created strictly before at,
// or 0 when the log holds nothing older.
func (r *Repository) CursorNear(ctx context.Context, namespaceID uuid.UUID, at time.Time) (int64, error) {
	if at.IsZero() {
		return 0, types.NewInputError(types.TextCodeInvalidTimestamp, "timestamp required")
	}
	var id int64
	query := r.db.NewSelect().
		Model((*Entry)(nil)).
		Column("id").
		Where("created_at < ?", at.UTC()).
		OrderExpr("created_at DESC, id DESC").
		Limit(1)
	query = applyEntryFilter(query, namespaceID, nil)
	if err := query.Scan(ctx, &id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, wrapStoreError(err, "resolve cursor")
	}
	return id, nil
}

// LatestCursor returns the highest entry id, optionally scoped to a
// namespace, or 0 for an empty log.
func (r *Repository) LatestCursor(ctx context.Context, namespaceID uuid.UUID) (int64, error) {
	var latest sql.NullInt64
	query := r.db.NewSelect().
		Model((*Entry)(nil)).
		ColumnExpr("MAX(id)")
	query = applyEntryFilter(query, namespaceID, nil)
	if err := query.Scan(ctx, &latest); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, wrapStoreError(err, "latest cursor")
	}
	if !latest.Valid {
		return 0, nil
	}
	return latest.Int64, nil
}

// Prune removes entries created before input.Before. Entries are tombstoned
// unless input.Hard is set; DryRun only counts. The number of affected (or
// eligible) entries is returned.
func (r *Repository) Prune(ctx context.Context, input types.PruneInput) (int, error) {
	if input.Before.IsZero() {
		return 0, types.NewInputError(types.TextCodeInvalidTimestamp, "prune cutoff required")
	}
	cutoff := input.Before.UTC()

	if input.DryRun {
		query := r.db.NewSelect().
			Model((*Entry)(nil)).
			Where("created_at < ?", cutoff)
		if !input.Hard {
			query = query.Where("deleted_at IS NULL")
		}
		query = applyEntryFilter(query, input.NamespaceID, nil)
		count, err := query.Count(ctx)
		if err != nil {
			return 0, wrapStoreError(err, "count prunable entries")
		}
		r.logger.Info("txlog prune dry run", "eligible", count, "before", cutoff, "hard", input.Hard)
		return count, nil
	}

	var (
		res sql.Result
		err error
	)
	if input.Hard {
		query := r.db.NewDelete().
			Model((*Entry)(nil)).
			Where("created_at < ?", cutoff)
		if input.NamespaceID != uuid.Nil {
			query = query.Where("namespace_id = ?", input.NamespaceID)
		}
		res, err = query.Exec(ctx)
	} else {
		query := r.db.NewUpdate().
			Model((*Entry)(nil)).
			Set("deleted_at = ?", r.clock.Now()).
			Where("created_at < ?", cutoff).
			Where("deleted_at IS NULL")
		if input.NamespaceID != uuid.Nil {
			query = query.Where("namespace_id = ?", input.NamespaceID)
		}
		res, err = query.Exec(ctx)
	}
	if err != nil {
		return 0, wrapStoreError(err, "prune entries")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, wrapStoreError(err, "prune entries")
	}
	r.logger.Info("txlog pruned", "affected", affected, "before", cutoff, "hard", input.Hard)
	return int(affected), nil
}

func applyEntryFilter(q *bun.SelectQuery, namespaceID uuid.UUID, exclude []types.ObjectType) *bun.SelectQuery {
	if namespaceID != uuid.Nil {
		q = q.Where("namespace_id = ?", namespaceID)
	}
	if len(exclude) > 0 {
		q = q.Where("object_type NOT IN (?)", bun.In(exclude))
	}
	return q
}

func wrapStoreError(err error, op string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, "go-mailsync: transaction log "+op).
		WithCode(goerrors.CodeInternal)
}
