package command

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/goliatone/go-mailsync/store"
	"github.com/google/uuid"
)

// ObjectMutationInput inserts, updates or deletes one mail object.
//
// Inserts take Object as given. Updates and deletes load the object by
// ObjectType and PublicID; updates then run Mutate on the loaded value.
type ObjectMutationInput struct {
	NamespaceID uuid.UUID
	Command     types.Command
	Object      store.Model
	ObjectType  types.ObjectType
	PublicID    string
	Mutate      func(store.Model) error
	Result      *store.Model
}

// Type implements gocommand.Message.
func (ObjectMutationInput) Type() string {
	return "command.object.mutate"
}

// Validate implements gocommand.Message.
func (input ObjectMutationInput) Validate() error {
	if input.NamespaceID == uuid.Nil {
		return ErrNamespaceRequired
	}
	switch input.Command {
	case types.CommandInsert:
		if input.Object == nil {
			return ErrObjectRequired
		}
		if input.Object.RevisionKey().NamespaceID != input.NamespaceID {
			return ErrObjectNamespaceMismatch
		}
		return nil
	case types.CommandUpdate, types.CommandDelete:
		if !input.ObjectType.Valid() {
			return types.NewInputError(types.TextCodeInvalidObjectType, "invalid object type: "+string(input.ObjectType))
		}
		if err := types.ValidPublicID(input.PublicID); err != nil {
			return err
		}
		if input.Command == types.CommandUpdate && input.Mutate == nil {
			return ErrMutationRequired
		}
		return nil
	default:
		return types.NewInputError(types.TextCodeInvalidPayload, "invalid command: "+string(input.Command))
	}
}

// ObjectMutationCommand applies a single mutation in its own unit of work so
// the transaction log records it atomically.
type ObjectMutationCommand struct {
	store  ObjectStore
	logger types.Logger
}

// NewObjectMutationCommand constructs the handler.
func NewObjectMutationCommand(objects ObjectStore, logger types.Logger) *ObjectMutationCommand {
	return &ObjectMutationCommand{
		store:  objects,
		logger: safeLogger(logger),
	}
}

var _ gocommand.Commander[ObjectMutationInput] = (*ObjectMutationCommand)(nil)

// Execute runs the mutation.
func (c *ObjectMutationCommand) Execute(ctx context.Context, input ObjectMutationInput) error {
	if c.store == nil {
		return types.ErrMissingStore
	}
	if err := input.Validate(); err != nil {
		return err
	}

	var result store.Model
	err := c.store.RunInTx(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		if input.Command == types.CommandInsert {
			result = input.Object
			return uow.Insert(ctx, input.Object)
		}
		model, ok := store.NewModel(input.ObjectType)
		if !ok {
			return types.NewInputError(types.TextCodeInvalidObjectType, "invalid object type: "+string(input.ObjectType))
		}
		if err := uow.Find(ctx, model, input.NamespaceID, input.PublicID); err != nil {
			return err
		}
		result = model
		if input.Command == types.CommandDelete {
			return uow.Delete(ctx, model)
		}
		if err := input.Mutate(model); err != nil {
			return err
		}
		return uow.Update(ctx, model)
	})
	if err != nil {
		return err
	}

	key := result.RevisionKey()
	c.logger.Debug("object mutated",
		"namespace_id", key.NamespaceID,
		"object", string(key.ObjectType),
		"public_id", key.PublicID,
		"command", string(input.Command),
	)
	if input.Result != nil {
		*input.Result = result
	}
	return nil
}
