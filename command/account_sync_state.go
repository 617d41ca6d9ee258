package command

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-mailsync/account"
	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/google/uuid"
)

// SyncTransition names an account lifecycle operation.
type SyncTransition string

const (
	SyncTransitionStarted SyncTransition = "sync_started"
	SyncTransitionStopped SyncTransition = "sync_stopped"
	SyncTransitionInvalid SyncTransition = "mark_invalid"
	SyncTransitionKilled  SyncTransition = "kill_sync"
	SyncTransitionEnable  SyncTransition = "enable_sync"
	SyncTransitionDisable SyncTransition = "disable_sync"
)

// AccountSyncStateInput applies a lifecycle transition to the account that
// owns the namespace. Host applies to sync_started and enable_sync; Reason
// to mark_invalid, kill_sync and disable_sync.
type AccountSyncStateInput struct {
	NamespaceID uuid.UUID
	Transition  SyncTransition
	Host        string
	Reason      string
	Result      *account.Account
}

// Type implements gocommand.Message.
func (AccountSyncStateInput) Type() string {
	return "command.account.sync_state"
}

// Validate implements gocommand.Message.
func (input AccountSyncStateInput) Validate() error {
	if input.NamespaceID == uuid.Nil {
		return ErrNamespaceRequired
	}
	switch input.Transition {
	case "":
		return ErrTransitionRequired
	case SyncTransitionStarted, SyncTransitionStopped, SyncTransitionInvalid,
		SyncTransitionKilled, SyncTransitionEnable, SyncTransitionDisable:
		return nil
	default:
		return types.NewInputError(types.TextCodeInvalidPayload, ErrUnknownTransition.Error()+": "+string(input.Transition))
	}
}

// AccountSyncStateCommand drives the account sync-state machine. Moving an
// account to invalid blocks further action scheduling for its namespace.
type AccountSyncStateCommand struct {
	accounts AccountTransitioner
	logger   types.Logger
}

// NewAccountSyncStateCommand constructs the handler.
func NewAccountSyncStateCommand(accounts AccountTransitioner, logger types.Logger) *AccountSyncStateCommand {
	return &AccountSyncStateCommand{accounts: accounts, logger: safeLogger(logger)}
}

var _ gocommand.Commander[AccountSyncStateInput] = (*AccountSyncStateCommand)(nil)

// Execute applies the transition and persists the account.
func (c *AccountSyncStateCommand) Execute(ctx context.Context, input AccountSyncStateInput) error {
	if c.accounts == nil {
		return types.ErrMissingAccountRepository
	}
	if err := input.Validate(); err != nil {
		return err
	}
	updated, err := c.accounts.Transition(ctx, input.NamespaceID, func(l *account.Lifecycle, acct *account.Account) error {
		switch input.Transition {
		case SyncTransitionStarted:
			return l.SyncStarted(acct, input.Host)
		case SyncTransitionStopped:
			return l.SyncStopped(acct)
		case SyncTransitionInvalid:
			return l.MarkInvalid(acct, input.Reason)
		case SyncTransitionKilled:
			var cause error
			if input.Reason != "" {
				cause = errors.New(input.Reason)
			}
			return l.KillSync(acct, cause)
		case SyncTransitionEnable:
			return l.EnableSync(acct, input.Host)
		default:
			return l.DisableSync(acct, input.Reason)
		}
	})
	if err != nil {
		return err
	}
	c.logger.Info("account sync state changed",
		"namespace_id", input.NamespaceID,
		"account_id", updated.ID,
		"transition", string(input.Transition),
		"sync_state", string(updated.SyncState),
	)
	if input.Result != nil {
		*input.Result = *updated
	}
	return nil
}
