package syncback

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/goliatone/go-mailsync/account"
	"github.com/goliatone/go-mailsync/provider"
	"github.com/goliatone/go-mailsync/store"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

// ErrRemoteIDMissing is returned for threads that were never synced from the
// provider.
var ErrRemoteIDMissing = errors.New("go-mailsync: thread has no remote id")

// ThreadSource loads threads by internal id.
type ThreadSource interface {
	FindByID(ctx context.Context, model store.Model, namespaceID, id uuid.UUID) error
}

// ServiceFactory builds an authenticated Gmail client for an account.
type ServiceFactory func(ctx context.Context, acct *account.Account) (*gmail.Service, error)

type labelChange struct {
	add    []string
	remove []string
}

var gmailLabelActions = map[string]labelChange{
	"archive":     {remove: []string{"INBOX"}},
	"unarchive":   {add: []string{"INBOX"}},
	"star":        {add: []string{"STARRED"}},
	"unstar":      {remove: []string{"STARRED"}},
	"mark_unread": {add: []string{"UNREAD"}},
	"mark_read":   {remove: []string{"UNREAD"}},
	"mark_spam":   {add: []string{"SPAM"}, remove: []string{"INBOX"}},
	"unmark_spam": {add: []string{"INBOX"}, remove: []string{"SPAM"}},
}

// GmailExecutor replays thread actions through the Gmail API.
type GmailExecutor struct {
	threads  ThreadSource
	services ServiceFactory
}

// NewGmailExecutor builds an executor that authenticates through the Gmail
// provider handler.
func NewGmailExecutor(threads ThreadSource, handler *provider.GmailHandler) *GmailExecutor {
	return NewGmailExecutorWithFactory(threads, func(ctx context.Context, acct *account.Account) (*gmail.Service, error) {
		source, err := handler.TokenSource(ctx, acct)
		if err != nil {
			return nil, err
		}
		return handler.Service(ctx, oauth2.NewClient(ctx, source))
	})
}

// NewGmailExecutorWithFactory builds an executor with a custom client
// factory.
func NewGmailExecutorWithFactory(threads ThreadSource, services ServiceFactory) *GmailExecutor {
	return &GmailExecutor{threads: threads, services: services}
}

// Register binds every Gmail action on reg.
func (e *GmailExecutor) Register(reg *Registry) {
	for action, change := range gmailLabelActions {
		reg.Register(provider.Gmail, action, e.modify(change))
	}
	reg.Register(provider.Gmail, "mark_trash", e.trash(false))
	reg.Register(provider.Gmail, "unmark_trash", e.trash(true))
}

func (e *GmailExecutor) modify(change labelChange) ExecutorFunc {
	return func(ctx context.Context, task Task) error {
		svc, remoteID, err := e.prepare(ctx, task)
		if err != nil {
			return err
		}
		_, err = svc.Users.Threads.Modify("me", remoteID, &gmail.ModifyThreadRequest{
			AddLabelIds:    change.add,
			RemoveLabelIds: change.remove,
		}).Context(ctx).Do()
		return classifyGmailError(err)
	}
}

func (e *GmailExecutor) trash(restore bool) ExecutorFunc {
	return func(ctx context.Context, task Task) error {
		svc, remoteID, err := e.prepare(ctx, task)
		if err != nil {
			return err
		}
		if restore {
			_, err = svc.Users.Threads.Untrash("me", remoteID).Context(ctx).Do()
		} else {
			_, err = svc.Users.Threads.Trash("me", remoteID).Context(ctx).Do()
		}
		return classifyGmailError(err)
	}
}

func (e *GmailExecutor) prepare(ctx context.Context, task Task) (*gmail.Service, string, error) {
	if task.Action == nil || task.Account == nil {
		return nil, "", Permanent(errors.New("syncback: incomplete task"))
	}
	thread := new(store.Thread)
	if err := e.threads.FindByID(ctx, thread, task.Action.NamespaceID, task.Action.RecordID); err != nil {
		return nil, "", Permanent(err)
	}
	if thread.RemoteID == "" {
		return nil, "", Permanent(fmt.Errorf("%w: %s", ErrRemoteIDMissing, thread.PublicID))
	}
	svc, err := e.services(ctx, task.Account)
	if err != nil {
		return nil, "", err
	}
	return svc, thread.RemoteID, nil
}

// classifyGmailError fails fast on requests Gmail will never accept.
func classifyGmailError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusBadRequest, http.StatusNotFound:
			return Permanent(err)
		}
	}
	return err
}
