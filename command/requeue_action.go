package command

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-mailsync/actions"
	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/google/uuid"
)

// RequeueActionInput moves a failed action back to pending.
type RequeueActionInput struct {
	NamespaceID uuid.UUID
	ActionID    uuid.UUID
	Result      *actions.Entry
}

// Type implements gocommand.Message.
func (RequeueActionInput) Type() string {
	return "command.action.requeue"
}

// Validate implements gocommand.Message.
func (input RequeueActionInput) Validate() error {
	switch {
	case input.NamespaceID == uuid.Nil:
		return ErrNamespaceRequired
	case input.ActionID == uuid.Nil:
		return ErrActionIDRequired
	default:
		return nil
	}
}

// RequeueActionCommand requeues failed actions. The retry counter is kept,
// so a requeued action gets one more attempt per requeue once it reached the
// retry limit.
type RequeueActionCommand struct {
	repo   ActionRequeuer
	logger types.Logger
}

// NewRequeueActionCommand constructs the handler.
func NewRequeueActionCommand(repo ActionRequeuer, logger types.Logger) *RequeueActionCommand {
	return &RequeueActionCommand{repo: repo, logger: safeLogger(logger)}
}

var _ gocommand.Commander[RequeueActionInput] = (*RequeueActionCommand)(nil)

// Execute requeues the action.
func (c *RequeueActionCommand) Execute(ctx context.Context, input RequeueActionInput) error {
	if c.repo == nil {
		return types.ErrMissingActionRepository
	}
	if err := input.Validate(); err != nil {
		return err
	}
	entry, err := c.repo.Requeue(ctx, input.NamespaceID, input.ActionID)
	if err != nil {
		return err
	}
	c.logger.Info("action requeued", "namespace_id", input.NamespaceID, "action_id", input.ActionID, "action", entry.Action)
	if input.Result != nil {
		*input.Result = *entry
	}
	return nil
}
