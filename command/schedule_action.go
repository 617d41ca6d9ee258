package command

import (
	"context"
	"strings"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-mailsync/actions"
	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/goliatone/go-mailsync/store"
	"github.com/google/uuid"
)

// ScheduleActionInput enqueues an explicit action (e.g. save_draft,
// send_directly) against an existing object.
type ScheduleActionInput struct {
	NamespaceID uuid.UUID
	Action      string
	ObjectType  types.ObjectType
	PublicID    string
	ExtraArgs   map[string]any
	Result      *actions.Entry
}

// Type implements gocommand.Message.
func (ScheduleActionInput) Type() string {
	return "command.action.schedule"
}

// Validate implements gocommand.Message.
func (input ScheduleActionInput) Validate() error {
	switch {
	case input.NamespaceID == uuid.Nil:
		return ErrNamespaceRequired
	case strings.TrimSpace(input.Action) == "":
		return ErrActionNameRequired
	case !input.ObjectType.Valid():
		return types.NewInputError(types.TextCodeInvalidObjectType, "invalid object type: "+string(input.ObjectType))
	default:
		return types.ValidPublicID(input.PublicID)
	}
}

// ScheduleActionCommand resolves the target object and enqueues the action
// in one transaction.
type ScheduleActionCommand struct {
	store     ObjectStore
	scheduler ActionScheduler
}

// NewScheduleActionCommand constructs the handler.
func NewScheduleActionCommand(objects ObjectStore, scheduler ActionScheduler) *ScheduleActionCommand {
	return &ScheduleActionCommand{store: objects, scheduler: scheduler}
}

var _ gocommand.Commander[ScheduleActionInput] = (*ScheduleActionCommand)(nil)

// Execute schedules the action.
func (c *ScheduleActionCommand) Execute(ctx context.Context, input ScheduleActionInput) error {
	if c.store == nil {
		return types.ErrMissingStore
	}
	if c.scheduler == nil {
		return types.ErrMissingScheduler
	}
	if err := input.Validate(); err != nil {
		return err
	}
	model, ok := store.NewModel(input.ObjectType)
	if !ok {
		return types.NewInputError(types.TextCodeInvalidObjectType, "invalid object type: "+string(input.ObjectType))
	}

	var entry *actions.Entry
	err := c.store.RunInTx(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		if err := uow.Find(ctx, model, input.NamespaceID, input.PublicID); err != nil {
			return err
		}
		scheduled, err := c.scheduler.ScheduleFor(ctx, uow.Tx(), strings.TrimSpace(input.Action), model, input.ExtraArgs)
		if err != nil {
			return err
		}
		entry = scheduled
		return nil
	})
	if err != nil {
		return err
	}
	if input.Result != nil && entry != nil {
		*input.Result = *entry
	}
	return nil
}
