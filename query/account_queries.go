package query

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-mailsync/account"
	"github.com/goliatone/go-mailsync/actions"
	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/google/uuid"
)

// AccountReader loads the account behind a namespace.
type AccountReader interface {
	GetByNamespace(ctx context.Context, namespaceID uuid.UUID) (*account.Account, *account.Namespace, error)
}

// ActionReader lists action log entries.
type ActionReader interface {
	ListByNamespace(ctx context.Context, namespaceID uuid.UUID, status types.ActionStatus, limit int) ([]*actions.Entry, error)
}

// AccountStatusInput selects the namespace whose account is reported.
type AccountStatusInput struct {
	NamespaceID uuid.UUID
}

// Type implements gocommand.Message.
func (AccountStatusInput) Type() string {
	return "query.account.status"
}

// Validate implements gocommand.Message.
func (input AccountStatusInput) Validate() error {
	if input.NamespaceID == uuid.Nil {
		return types.ErrNamespaceRequired
	}
	return nil
}

// AccountStatusQuery reports the sync state of an account.
type AccountStatusQuery struct {
	accounts AccountReader
}

// NewAccountStatusQuery builds the query.
func NewAccountStatusQuery(accounts AccountReader) *AccountStatusQuery {
	return &AccountStatusQuery{accounts: accounts}
}

var _ gocommand.Querier[AccountStatusInput, account.StatusView] = (*AccountStatusQuery)(nil)

// Query loads the account status.
func (q *AccountStatusQuery) Query(ctx context.Context, input AccountStatusInput) (account.StatusView, error) {
	if q.accounts == nil {
		return account.StatusView{}, types.ErrMissingAccountRepository
	}
	if err := input.Validate(); err != nil {
		return account.StatusView{}, err
	}
	acct, _, err := q.accounts.GetByNamespace(ctx, input.NamespaceID)
	if err != nil {
		return account.StatusView{}, err
	}
	return acct.Status(), nil
}

const (
	defaultActionListLimit = 50
	maxActionListLimit     = 500
)

// ActionListInput filters the action log of a namespace. An empty status
// lists every entry.
type ActionListInput struct {
	NamespaceID uuid.UUID
	Status      types.ActionStatus
	Limit       int
}

// Type implements gocommand.Message.
func (ActionListInput) Type() string {
	return "query.action.list"
}

// Validate implements gocommand.Message.
func (input ActionListInput) Validate() error {
	if input.NamespaceID == uuid.Nil {
		return types.ErrNamespaceRequired
	}
	switch input.Status {
	case "", types.ActionStatusPending, types.ActionStatusSuccessful, types.ActionStatusFailed:
		return nil
	default:
		return types.NewInputError(types.TextCodeInvalidPayload, "invalid action status: "+string(input.Status))
	}
}

// ActionListQuery lists the newest action log entries of a namespace.
type ActionListQuery struct {
	actions ActionReader
}

// NewActionListQuery builds the query.
func NewActionListQuery(actions ActionReader) *ActionListQuery {
	return &ActionListQuery{actions: actions}
}

var _ gocommand.Querier[ActionListInput, []*actions.Entry] = (*ActionListQuery)(nil)

// Query lists entries, clamping the limit.
func (q *ActionListQuery) Query(ctx context.Context, input ActionListInput) ([]*actions.Entry, error) {
	if q.actions == nil {
		return nil, types.ErrMissingActionRepository
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	limit := input.Limit
	switch {
	case limit <= 0:
		limit = defaultActionListLimit
	case limit > maxActionListLimit:
		limit = maxActionListLimit
	}
	return q.actions.ListByNamespace(ctx, input.NamespaceID, input.Status, limit)
}
