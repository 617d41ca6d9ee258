package syncback

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goliatone/go-mailsync/account"
	"github.com/goliatone/go-mailsync/actions"
	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/goliatone/go-mailsync/provider"
	"github.com/goliatone/go-mailsync/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

type fakeThreads struct {
	threads map[uuid.UUID]*store.Thread
}

func (f *fakeThreads) FindByID(_ context.Context, model store.Model, _ uuid.UUID, id uuid.UUID) error {
	thread, ok := f.threads[id]
	if !ok {
		return types.NewNotFoundError("thread not found")
	}
	*(model.(*store.Thread)) = *thread
	return nil
}

type gmailCall struct {
	method string
	path   string
	body   map[string]any
}

type fakeGmail struct {
	mu     sync.Mutex
	calls  []gmailCall
	status int
}

func (f *fakeGmail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	call := gmailCall{method: r.Method, path: r.URL.Path}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&call.body)
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	status := f.status
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":%q}}`, status, http.StatusText(status))
		return
	}
	_, _ = w.Write([]byte(`{"id":"remote-1"}`))
}

func newGmailExecutorForTest(t *testing.T, handler http.Handler) (*GmailExecutor, uuid.UUID, uuid.UUID) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	ns := uuid.New()
	threadID := uuid.New()
	threads := &fakeThreads{threads: map[uuid.UUID]*store.Thread{
		threadID: {Record: store.Record{ID: threadID, PublicID: "thr1", NamespaceID: ns}, RemoteID: "remote-1"},
	}}
	exec := NewGmailExecutorWithFactory(threads, func(ctx context.Context, _ *account.Account) (*gmail.Service, error) {
		return gmail.NewService(ctx, option.WithHTTPClient(srv.Client()), option.WithEndpoint(srv.URL+"/"))
	})
	return exec, ns, threadID
}

func gmailTask(ns, recordID uuid.UUID, action string) Task {
	return Task{
		Action:  &actions.Entry{ID: uuid.New(), NamespaceID: ns, RecordID: recordID, Action: action, TableName: "threads"},
		Account: &account.Account{ID: uuid.New(), Provider: provider.Gmail},
	}
}

func TestGmailExecutorModifiesLabels(t *testing.T) {
	api := &fakeGmail{}
	exec, ns, threadID := newGmailExecutorForTest(t, api)
	reg := NewRegistry()
	exec.Register(reg)

	fn, ok := reg.Lookup(provider.Gmail, "archive")
	require.True(t, ok)
	require.NoError(t, fn(context.Background(), gmailTask(ns, threadID, "archive")))

	fn, ok = reg.Lookup(provider.Gmail, "star")
	require.True(t, ok)
	require.NoError(t, fn(context.Background(), gmailTask(ns, threadID, "star")))

	require.Len(t, api.calls, 2)
	require.Equal(t, http.MethodPost, api.calls[0].method)
	require.True(t, strings.HasSuffix(api.calls[0].path, "/users/me/threads/remote-1/modify"))
	require.Equal(t, []any{"INBOX"}, api.calls[0].body["removeLabelIds"])
	require.Equal(t, []any{"STARRED"}, api.calls[1].body["addLabelIds"])
}

func TestGmailExecutorTrash(t *testing.T) {
	api := &fakeGmail{}
	exec, ns, threadID := newGmailExecutorForTest(t, api)
	reg := NewRegistry()
	exec.Register(reg)

	trash, _ := reg.Lookup(provider.Gmail, "mark_trash")
	untrash, _ := reg.Lookup(provider.Gmail, "unmark_trash")
	require.NoError(t, trash(context.Background(), gmailTask(ns, threadID, "mark_trash")))
	require.NoError(t, untrash(context.Background(), gmailTask(ns, threadID, "unmark_trash")))

	require.Len(t, api.calls, 2)
	require.True(t, strings.HasSuffix(api.calls[0].path, "/threads/remote-1/trash"))
	require.True(t, strings.HasSuffix(api.calls[1].path, "/threads/remote-1/untrash"))
}

func TestGmailExecutorNotFoundIsPermanent(t *testing.T) {
	api := &fakeGmail{status: http.StatusNotFound}
	exec, ns, threadID := newGmailExecutorForTest(t, api)
	reg := NewRegistry()
	exec.Register(reg)

	fn, _ := reg.Lookup(provider.Gmail, "unstar")
	err := fn(context.Background(), gmailTask(ns, threadID, "unstar"))
	require.Error(t, err)
	require.True(t, isPermanent(err))
}

func TestGmailExecutorRequiresRemoteID(t *testing.T) {
	exec, ns, _ := newGmailExecutorForTest(t, &fakeGmail{})
	unknown := uuid.New()
	exec.threads.(*fakeThreads).threads[unknown] = &store.Thread{Record: store.Record{ID: unknown, PublicID: "local", NamespaceID: ns}}

	err := exec.modify(gmailLabelActions["star"])(context.Background(), gmailTask(ns, unknown, "star"))
	require.ErrorIs(t, err, ErrRemoteIDMissing)
	require.True(t, isPermanent(err))
}
