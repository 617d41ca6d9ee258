package command

import (
	"context"

	"github.com/goliatone/go-mailsync/account"
	"github.com/goliatone/go-mailsync/actions"
	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/goliatone/go-mailsync/provider"
	"github.com/goliatone/go-mailsync/store"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ObjectStore runs units of work. *store.Store satisfies it.
type ObjectStore interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, uow *store.UnitOfWork) error) error
}

// ActionScheduler enqueues actions inside a transaction. *actions.Scheduler
// satisfies it.
type ActionScheduler interface {
	ScheduleFor(ctx context.Context, db bun.IDB, action string, target actions.Target, extra map[string]any) (*actions.Entry, error)
	ScheduleForTag(ctx context.Context, db bun.IDB, tag string, added bool, target actions.Target) (*actions.Entry, error)
}

// ActionRequeuer moves failed actions back to pending.
type ActionRequeuer interface {
	Requeue(ctx context.Context, namespaceID, id uuid.UUID) (*actions.Entry, error)
}

// TransactionPruner removes old log entries.
type TransactionPruner interface {
	Prune(ctx context.Context, input types.PruneInput) (int, error)
}

// AccountWriter persists provisioned accounts.
type AccountWriter interface {
	UpsertAccount(ctx context.Context, acct *account.Account) (*account.Account, *account.Namespace, error)
}

// AccountTransitioner applies lifecycle transitions to the account behind a
// namespace.
type AccountTransitioner interface {
	Transition(ctx context.Context, namespaceID uuid.UUID, fn func(*account.Lifecycle, *account.Account) error) (*account.Account, error)
}

// ProviderResolver returns the handler for a provider name.
type ProviderResolver interface {
	Resolve(name string) (provider.Handler, error)
}
