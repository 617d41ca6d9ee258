package account

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/goliatone/go-mailsync/pkg/types"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryConfig wires dependencies for the Bun-backed account store.
type RepositoryConfig struct {
	DB         *bun.DB
	Accounts   repository.Repository[*Account]
	Namespaces repository.Repository[*Namespace]
	Lifecycle  *Lifecycle
	Clock      types.Clock
	IDGen      types.IDGenerator
	PublicIDs  types.PublicIDGenerator
	Logger     types.Logger
}

type accountStore interface {
	repository.Repository[*Account]
}

type namespaceStore interface {
	repository.Repository[*Namespace]
}

// Repository persists accounts together with their namespace and resolves
// the sync state consulted before actions are scheduled.
type Repository struct {
	accountStore
	db         *bun.DB
	namespaces namespaceStore
	lifecycle  *Lifecycle
	clock      types.Clock
	idGen      types.IDGenerator
	publicIDs  types.PublicIDGenerator
	logger     types.Logger
}

// NewRepository constructs the account repository. WithCache decorates both
// the account and namespace stores with go-repository-cache.
func NewRepository(cfg RepositoryConfig, opts ...RepositoryOption) (*Repository, error) {
	if cfg.DB == nil && (cfg.Accounts == nil || cfg.Namespaces == nil) {
		return nil, errors.New("account: db or repositories required")
	}
	options := applyRepositoryOptions(opts)

	accounts := cfg.Accounts
	if accounts == nil {
		accounts = NewBaseAccountRepository(cfg.DB)
	}
	namespaces := cfg.Namespaces
	if namespaces == nil {
		namespaces = NewBaseNamespaceRepository(cfg.DB)
	}
	accounts, err := wrapCache(accounts, options)
	if err != nil {
		return nil, err
	}
	namespaces, err = wrapCache(namespaces, options)
	if err != nil {
		return nil, err
	}

	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	lifecycle := cfg.Lifecycle
	if lifecycle == nil {
		lifecycle = NewLifecycle(nil, clock)
	}
	idGen := cfg.IDGen
	if idGen == nil {
		idGen = types.UUIDGenerator{}
	}
	publicIDs := cfg.PublicIDs
	if publicIDs == nil {
		publicIDs = types.ShortPublicIDs{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Repository{
		accountStore: accounts,
		db:           cfg.DB,
		namespaces:   namespaces,
		lifecycle:    lifecycle,
		clock:        clock,
		idGen:        idGen,
		publicIDs:    publicIDs,
		logger:       logger,
	}, nil
}

// NewBaseAccountRepository builds the go-repository-bun store for accounts.
func NewBaseAccountRepository(db *bun.DB) repository.Repository[*Account] {
	return repository.NewRepository(db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(rec *Account) uuid.UUID {
			if rec == nil {
				return uuid.Nil
			}
			return rec.ID
		},
		SetID: func(rec *Account, id uuid.UUID) {
			if rec != nil {
				rec.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email_address"
		},
	})
}

// NewBaseNamespaceRepository builds the go-repository-bun store for
// namespaces.
func NewBaseNamespaceRepository(db *bun.DB) repository.Repository[*Namespace] {
	return repository.NewRepository(db, repository.ModelHandlers[*Namespace]{
		NewRecord: func() *Namespace { return &Namespace{} },
		GetID: func(rec *Namespace) uuid.UUID {
			if rec == nil {
				return uuid.Nil
			}
			return rec.ID
		},
		SetID: func(rec *Namespace, id uuid.UUID) {
			if rec != nil {
				rec.ID = id
			}
		},
		GetIdentifier: func() string {
			return "public_id"
		},
	})
}

var _ repository.Repository[*Account] = (*Repository)(nil)

// Lifecycle exposes the transition rules the repository applies.
func (r *Repository) Lifecycle() *Lifecycle {
	return r.lifecycle
}

// CreateAccount inserts a new account and its namespace.
func (r *Repository) CreateAccount(ctx context.Context, acct *Account) (*Account, *Namespace, error) {
	if acct == nil {
		return nil, nil, ErrAccountRequired
	}
	acct.EmailAddress = normalizeEmail(acct.EmailAddress)
	if acct.EmailAddress == "" {
		return nil, nil, types.NewInputError(types.TextCodeInvalidPayload, "email address required")
	}
	now := r.clock.Now()
	if acct.ID == uuid.Nil {
		acct.ID = r.idGen.UUID()
	}
	if acct.PublicID == "" {
		acct.PublicID = r.publicIDs.PublicID()
	}
	acct.CreatedAt = now
	acct.UpdatedAt = now
	created, err := r.Create(ctx, acct)
	if err != nil {
		return nil, nil, err
	}

	ns := &Namespace{
		ID:        r.idGen.UUID(),
		PublicID:  r.publicIDs.PublicID(),
		AccountID: created.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	createdNS, err := r.namespaces.Create(ctx, ns)
	if err != nil {
		if delErr := r.Delete(ctx, created); delErr != nil {
			r.logger.Error("account rollback failed", delErr, "account_id", created.ID)
		}
		return nil, nil, err
	}
	r.logger.Info("account created", "account_id", created.ID, "namespace_id", createdNS.ID, "provider", created.Provider)
	return created, createdNS, nil
}

// UpsertAccount creates the account or, when one exists for the e-mail address,
// replaces its credentials and endpoints. Re-authenticating an invalid
// account returns it to the new state.
func (r *Repository) UpsertAccount(ctx context.Context, acct *Account) (*Account, *Namespace, error) {
	if acct == nil {
		return nil, nil, ErrAccountRequired
	}
	existing, err := r.GetByEmail(ctx, acct.EmailAddress)
	switch {
	case err == nil:
	case repository.IsRecordNotFound(err):
		return r.CreateAccount(ctx, acct)
	default:
		return nil, nil, err
	}

	existing.Provider = acct.Provider
	existing.Credentials = acct.Credentials
	existing.CredentialsKey = acct.CredentialsKey
	if acct.IMAPEndpoint != "" {
		existing.IMAPEndpoint = acct.IMAPEndpoint
	}
	if acct.SMTPEndpoint != "" {
		existing.SMTPEndpoint = acct.SMTPEndpoint
	}
	if err := r.lifecycle.Reauthenticated(existing); err != nil {
		return nil, nil, err
	}
	updated, err := r.SaveState(ctx, existing)
	if err != nil {
		return nil, nil, err
	}
	ns, err := r.NamespaceForAccount(ctx, updated.ID)
	if err != nil {
		return nil, nil, err
	}
	return updated, ns, nil
}

// GetByEmail finds an account by its normalised e-mail address.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, types.NewInputError(types.TextCodeInvalidPayload, "email address required")
	}
	rows, _, err := r.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("email_address = ?", email).Where("deleted_at IS NULL").Limit(1)
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, repository.NewRecordNotFound()
	}
	return rows[0], nil
}

// GetByNamespace returns the account that owns the namespace.
func (r *Repository) GetByNamespace(ctx context.Context, namespaceID uuid.UUID) (*Account, *Namespace, error) {
	if namespaceID == uuid.Nil {
		return nil, nil, types.ErrNamespaceRequired
	}
	ns, err := r.namespaces.GetByID(ctx, namespaceID.String())
	if err != nil {
		return nil, nil, notFound(err, "namespace not found", namespaceID)
	}
	acct, err := r.GetByID(ctx, ns.AccountID.String())
	if err != nil {
		return nil, nil, notFound(err, "account not found", namespaceID)
	}
	return acct, ns, nil
}

// ResolveNamespace accepts a namespace uuid or public id.
func (r *Repository) ResolveNamespace(ctx context.Context, raw string) (*Namespace, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, types.ErrNamespaceRequired
	}
	if id, err := uuid.Parse(raw); err == nil {
		ns, err := r.namespaces.GetByID(ctx, id.String())
		if err != nil {
			return nil, notFound(err, "namespace not found", id)
		}
		return ns, nil
	}
	if err := types.ValidPublicID(raw); err != nil {
		return nil, err
	}
	rows, _, err := r.namespaces.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("public_id = ?", raw).Limit(1)
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, types.NewNotFoundError("namespace not found", map[string]any{"namespace_id": raw})
	}
	return rows[0], nil
}

// NamespaceForAccount returns the namespace owned by the account.
func (r *Repository) NamespaceForAccount(ctx context.Context, accountID uuid.UUID) (*Namespace, error) {
	rows, _, err := r.namespaces.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("account_id = ?", accountID).Limit(1)
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, repository.NewRecordNotFound()
	}
	return rows[0], nil
}

// SyncState returns the sync state of the account owning the namespace.
func (r *Repository) SyncState(ctx context.Context, namespaceID uuid.UUID) (types.SyncState, error) {
	acct, _, err := r.GetByNamespace(ctx, namespaceID)
	if err != nil {
		return "", err
	}
	return acct.SyncState, nil
}

// NamespaceSyncState reads the sync state through db, joining namespaces to
// accounts in one statement. A nil db falls back to the repository stores.
func (r *Repository) NamespaceSyncState(ctx context.Context, db bun.IDB, namespaceID uuid.UUID) (types.SyncState, error) {
	if namespaceID == uuid.Nil {
		return "", types.ErrNamespaceRequired
	}
	if db == nil {
		if r.db == nil {
			return r.SyncState(ctx, namespaceID)
		}
		db = r.db
	}
	var state string
	err := db.NewSelect().
		TableExpr("accounts AS a").
		ColumnExpr("a.sync_state").
		Join("JOIN namespaces AS n ON n.account_id = a.id").
		Where("n.id = ?", namespaceID).
		Where("a.deleted_at IS NULL").
		Limit(1).
		Scan(ctx, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return "", types.NewNotFoundError("namespace not found", map[string]any{"namespace_id": namespaceID.String()})
	}
	if err != nil {
		return "", err
	}
	return types.SyncState(state), nil
}

// SaveState persists the account after a lifecycle transition.
func (r *Repository) SaveState(ctx context.Context, acct *Account) (*Account, error) {
	if acct == nil || acct.ID == uuid.Nil {
		return nil, ErrAccountRequired
	}
	if !acct.SyncState.Valid() {
		return nil, types.NewInputError(types.TextCodeInvalidPayload, "invalid sync state: "+string(acct.SyncState))
	}
	acct.UpdatedAt = r.clock.Now()
	updated, err := r.Update(ctx, acct)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("account state saved", "account_id", updated.ID, "sync_state", string(updated.SyncState))
	return updated, nil
}

// Transition loads the account behind a namespace, applies fn and saves the
// result.
func (r *Repository) Transition(ctx context.Context, namespaceID uuid.UUID, fn func(*Lifecycle, *Account) error) (*Account, error) {
	if fn == nil {
		return nil, errors.New("account: transition required")
	}
	acct, _, err := r.GetByNamespace(ctx, namespaceID)
	if err != nil {
		return nil, err
	}
	if err := fn(r.lifecycle, acct); err != nil {
		if errors.Is(err, types.ErrTransitionNotAllowed) {
			return nil, types.NewConflictError(err.Error(), map[string]any{
				"namespace_id": namespaceID.String(),
				"sync_state":   stateLabel(acct.SyncState),
			})
		}
		return nil, err
	}
	return r.SaveState(ctx, acct)
}

func notFound(err error, message string, namespaceID uuid.UUID) error {
	if repository.IsRecordNotFound(err) {
		return types.NewNotFoundError(message, map[string]any{"namespace_id": namespaceID.String()})
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
