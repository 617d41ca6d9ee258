package crudsvc

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-crud"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-mailsync/actions"
	"github.com/goliatone/go-mailsync/command"
	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/goliatone/go-mailsync/query"
	"github.com/goliatone/go-mailsync/syncback"
	"github.com/goliatone/go-masker"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// ActionFinder loads a single action log entry within a namespace.
// *actions.Repository satisfies it.
type ActionFinder interface {
	FindInNamespace(ctx context.Context, namespaceID, id uuid.UUID) (*actions.Entry, error)
}

// ActionLogServiceConfig wires dependencies for the CRUD-backed action log.
type ActionLogServiceConfig struct {
	Namespaces NamespaceResolver
	List       gocommand.Querier[query.ActionListInput, []*actions.Entry]
	Finder     ActionFinder
	Requeue    gocommand.Commander[command.RequeueActionInput]
}

// ActionLogService exposes the action log to a go-crud controller. Entries
// are read only, except that a failed entry can be moved back to pending.
type ActionLogService struct {
	namespaces NamespaceResolver
	list       gocommand.Querier[query.ActionListInput, []*actions.Entry]
	finder     ActionFinder
	requeue    gocommand.Commander[command.RequeueActionInput]
	mask       *masker.Masker
	logger     types.Logger
}

// NewActionLogService constructs the adapter.
func NewActionLogService(cfg ActionLogServiceConfig, opts ...ServiceOption) *ActionLogService {
	options := applyOptions(opts)
	return &ActionLogService{
		namespaces: cfg.Namespaces,
		list:       cfg.List,
		finder:     cfg.Finder,
		requeue:    cfg.Requeue,
		mask:       options.mask,
		logger:     options.logger,
	}
}

var _ crud.Service[*actions.Entry] = (*ActionLogService)(nil)

func (s *ActionLogService) Create(crud.Context, *actions.Entry) (*actions.Entry, error) {
	return nil, notSupported(crud.OpCreate)
}

func (s *ActionLogService) CreateBatch(crud.Context, []*actions.Entry) ([]*actions.Entry, error) {
	return nil, notSupported(crud.OpCreateBatch)
}

// Update requeues a failed entry. Pending is the only status a client may
// set.
func (s *ActionLogService) Update(ctx crud.Context, record *actions.Entry) (*actions.Entry, error) {
	if s.requeue == nil {
		return nil, notSupported(crud.OpUpdate)
	}
	if record == nil || record.Status != types.ActionStatusPending {
		return nil, types.NewInputError(types.TextCodeInvalidPayload, "only status pending can be set")
	}
	namespaceID, err := resolveNamespace(ctx, s.namespaces)
	if err != nil {
		return nil, err
	}
	id := record.ID
	if id == uuid.Nil {
		if id, err = parseID(ctx.Params("id")); err != nil {
			return nil, err
		}
	}
	result := &actions.Entry{}
	if err := s.requeue.Execute(ctx.UserContext(), command.RequeueActionInput{
		NamespaceID: namespaceID,
		ActionID:    id,
		Result:      result,
	}); err != nil {
		return nil, err
	}
	return s.sanitize(result), nil
}

func (s *ActionLogService) UpdateBatch(crud.Context, []*actions.Entry) ([]*actions.Entry, error) {
	return nil, notSupported(crud.OpUpdateBatch)
}

func (s *ActionLogService) Delete(crud.Context, *actions.Entry) error {
	return notSupported(crud.OpDelete)
}

func (s *ActionLogService) DeleteBatch(crud.Context, []*actions.Entry) error {
	return notSupported(crud.OpDeleteBatch)
}

func (s *ActionLogService) Index(ctx crud.Context, _ []repository.SelectCriteria) ([]*actions.Entry, int, error) {
	if s.list == nil {
		return nil, 0, goerrors.New("action list query unavailable", goerrors.CategoryInternal).WithCode(goerrors.CodeInternal)
	}
	namespaceID, err := resolveNamespace(ctx, s.namespaces)
	if err != nil {
		return nil, 0, err
	}
	entries, err := s.list.Query(ctx.UserContext(), query.ActionListInput{
		NamespaceID: namespaceID,
		Status:      parseActionStatus(ctx, "status"),
		Limit:       queryInt(ctx, "limit", 0),
	})
	if err != nil {
		return nil, 0, err
	}
	for i, entry := range entries {
		entries[i] = s.sanitize(entry)
	}
	return entries, len(entries), nil
}

func (s *ActionLogService) Show(ctx crud.Context, id string, _ []repository.SelectCriteria) (*actions.Entry, error) {
	if s.finder == nil {
		return nil, notSupported(crud.OpRead)
	}
	namespaceID, err := resolveNamespace(ctx, s.namespaces)
	if err != nil {
		return nil, err
	}
	actionID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	entry, err := s.finder.FindInNamespace(ctx.UserContext(), namespaceID, actionID)
	if err != nil {
		return nil, err
	}
	return s.sanitize(entry), nil
}

// sanitize masks credentials that provider handlers may have placed in the
// action arguments.
func (s *ActionLogService) sanitize(entry *actions.Entry) *actions.Entry {
	if entry == nil || len(entry.ExtraArgs) == 0 {
		return entry
	}
	out := *entry
	out.ExtraArgs = syncback.SanitizeArgs(s.mask, entry.ExtraArgs)
	return &out
}
