package command

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-mailsync/actions"
	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/goliatone/go-mailsync/store"
	"github.com/google/uuid"
)

// ThreadTagsInput adds and removes tags on a thread. ExpectedVersion, when
// set, must match the stored thread version.
type ThreadTagsInput struct {
	NamespaceID     uuid.UUID
	ThreadID        string
	Add             []string
	Remove          []string
	ExpectedVersion *int64
	Result          *ThreadTagsResult
}

// ThreadTagsResult reports the updated thread and the actions scheduled for
// the provider.
type ThreadTagsResult struct {
	Thread  *store.Thread
	Actions []*actions.Entry
}

// Type implements gocommand.Message.
func (ThreadTagsInput) Type() string {
	return "command.thread.tags"
}

// Validate implements gocommand.Message.
func (input ThreadTagsInput) Validate() error {
	if input.NamespaceID == uuid.Nil {
		return ErrNamespaceRequired
	}
	if err := types.ValidPublicID(input.ThreadID); err != nil {
		return err
	}
	add := normalizeTags(input.Add)
	remove := normalizeTags(input.Remove)
	if len(add) == 0 && len(remove) == 0 {
		return ErrTagsRequired
	}
	for _, tag := range add {
		for _, other := range remove {
			if tag == other {
				return ErrTagConflict
			}
		}
	}
	return nil
}

// ThreadTagsConfig wires the thread tag command.
type ThreadTagsConfig struct {
	Store     ObjectStore
	Scheduler ActionScheduler
	Logger    types.Logger
}

// ThreadTagsCommand changes thread tags and schedules the matching provider
// actions in the same unit of work.
type ThreadTagsCommand struct {
	store     ObjectStore
	scheduler ActionScheduler
	logger    types.Logger
}

// NewThreadTagsCommand constructs the handler.
func NewThreadTagsCommand(cfg ThreadTagsConfig) *ThreadTagsCommand {
	return &ThreadTagsCommand{
		store:     cfg.Store,
		scheduler: cfg.Scheduler,
		logger:    safeLogger(cfg.Logger),
	}
}

var _ gocommand.Commander[ThreadTagsInput] = (*ThreadTagsCommand)(nil)

type tagChange struct {
	tag   string
	added bool
}

// Execute applies the tag changes. Scheduling runs as a pre-commit hook, so
// an account that cannot accept actions rolls the tag change back too.
func (c *ThreadTagsCommand) Execute(ctx context.Context, input ThreadTagsInput) error {
	if c.store == nil {
		return types.ErrMissingStore
	}
	if c.scheduler == nil {
		return types.ErrMissingScheduler
	}
	if err := input.Validate(); err != nil {
		return err
	}

	var scheduled []*actions.Entry
	thread := new(store.Thread)
	err := c.store.RunInTx(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		if err := uow.Find(ctx, thread, input.NamespaceID, input.ThreadID); err != nil {
			return err
		}
		if input.ExpectedVersion != nil {
			if err := uow.ExpectThreadVersion(ctx, thread.ID, *input.ExpectedVersion); err != nil {
				return err
			}
		}

		var changes []tagChange
		for _, tag := range normalizeTags(input.Add) {
			if thread.AddTag(tag) {
				changes = append(changes, tagChange{tag: tag, added: true})
			}
		}
		for _, tag := range normalizeTags(input.Remove) {
			if thread.RemoveTag(tag) {
				changes = append(changes, tagChange{tag: tag})
			}
		}
		if len(changes) == 0 {
			return nil
		}
		if err := uow.Update(ctx, thread); err != nil {
			return err
		}
		uow.BeforeCommit(func(ctx context.Context, uow *store.UnitOfWork) error {
			for _, change := range changes {
				entry, err := c.scheduler.ScheduleForTag(ctx, uow.Tx(), change.tag, change.added, thread)
				if err != nil {
					return err
				}
				if entry != nil {
					scheduled = append(scheduled, entry)
				}
			}
			return nil
		})
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.Debug("thread tags updated",
		"namespace_id", input.NamespaceID,
		"thread_id", input.ThreadID,
		"actions", len(scheduled),
	)
	if input.Result != nil {
		*input.Result = ThreadTagsResult{Thread: thread, Actions: scheduled}
	}
	return nil
}
