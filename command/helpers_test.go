package command

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-mailsync/account"
	"github.com/goliatone/go-mailsync/actions"
	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/goliatone/go-mailsync/provider"
	"github.com/goliatone/go-mailsync/store"
	"github.com/goliatone/go-mailsync/txlog"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:command_%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})
	applyDDL(t, db)
	return db
}

func applyDDL(t *testing.T, db *bun.DB) {
	t.Helper()
	files, err := filepath.Glob("../data/sql/migrations/sqlite/*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	sort.Strings(files)
	for _, file := range files {
		content, err := os.ReadFile(file)
		require.NoError(t, err)
		for _, stmt := range splitStatements(string(content)) {
			_, err := db.Exec(stmt)
			require.NoError(t, err, file)
		}
	}
}

func splitStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

type env struct {
	t         *testing.T
	db        *bun.DB
	store     *store.Store
	accounts  *account.Repository
	actions   *actions.Repository
	scheduler *actions.Scheduler
	log       *txlog.Repository
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := newTestDB(t)
	objects, err := store.New(store.Config{DB: db})
	require.NoError(t, err)
	accounts, err := account.NewRepository(account.RepositoryConfig{DB: db})
	require.NoError(t, err)
	actionRepo, err := actions.NewRepository(actions.RepositoryConfig{DB: db})
	require.NoError(t, err)
	scheduler, err := actions.NewScheduler(actions.SchedulerConfig{Accounts: accounts})
	require.NoError(t, err)
	log, err := txlog.NewRepository(txlog.RepositoryConfig{DB: db})
	require.NoError(t, err)
	return &env{
		t:         t,
		db:        db,
		store:     objects,
		accounts:  accounts,
		actions:   actionRepo,
		scheduler: scheduler,
		log:       log,
	}
}

// namespace provisions an account that is syncing and returns its namespace.
func (e *env) namespace() uuid.UUID {
	ns := e.account(e.t, uuid.NewString()+"@example.com")
	e.transition(e.t, ns.ID, func(lc *account.Lifecycle, acct *account.Account) error {
		return lc.SyncStarted(acct, "worker-1")
	})
	return ns.ID
}

func (e *env) transition(t *testing.T, ns uuid.UUID, fn func(*account.Lifecycle, *account.Account) error) {
	t.Helper()
	_, err := e.accounts.Transition(context.Background(), ns, fn)
	require.NoError(t, err)
}

func (e *env) account(t *testing.T, email string) *account.Namespace {
	t.Helper()
	_, ns, err := e.accounts.CreateAccount(context.Background(), &account.Account{
		EmailAddress: email,
		Provider:     provider.Gmail,
		SyncEnabled:  true,
	})
	require.NoError(t, err)
	return ns
}

func (e *env) thread(t *testing.T, ns uuid.UUID, tags ...string) *store.Thread {
	t.Helper()
	thread := &store.Thread{Record: store.Record{NamespaceID: ns}, Subject: "Launch plan", Tags: tags}
	err := e.store.RunInTx(context.Background(), func(ctx context.Context, uow *store.UnitOfWork) error {
		return uow.Insert(ctx, thread)
	})
	require.NoError(t, err)
	return thread
}

func (e *env) deltas(t *testing.T, ns uuid.UUID, cursor int64) []types.Delta {
	t.Helper()
	page, err := e.log.ReadAfter(context.Background(), types.DeltaFilter{
		Cursor:      cursor,
		Limit:       types.MaxDeltaLimit,
		NamespaceID: ns,
	})
	require.NoError(t, err)
	return page.Deltas
}

func (e *env) latest(t *testing.T, ns uuid.UUID) int64 {
	t.Helper()
	cursor, err := e.log.LatestCursor(context.Background(), ns)
	require.NoError(t, err)
	return cursor
}

type stubFeatureGate struct {
	enabled bool
	err     error
	keys    []string
}

func (s *stubFeatureGate) Enabled(_ context.Context, key string, _ ...featuregate.ResolveOption) (bool, error) {
	s.keys = append(s.keys, key)
	if s.err != nil {
		return false, s.err
	}
	return s.enabled, nil
}

type recordingPruner struct {
	input types.PruneInput
	count int
}

func (r *recordingPruner) Prune(_ context.Context, input types.PruneInput) (int, error) {
	r.input = input
	return r.count, nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// fakeHandler completes every auth flow with a static refresh token.
type fakeHandler struct {
	name      string
	verifyErr error
	completed []provider.AuthInput
}

func (h *fakeHandler) Name() string { return h.name }

func (h *fakeHandler) InteractiveAuth(_ context.Context, email string) (provider.AuthChallenge, error) {
	return provider.AuthChallenge{Provider: h.name, URL: "https://auth.example.com/" + h.name + "?login_hint=" + email}, nil
}

func (h *fakeHandler) CompleteAuth(_ context.Context, input provider.AuthInput) (provider.AuthResponse, error) {
	h.completed = append(h.completed, input)
	return provider.AuthResponse{Email: input.Email, RefreshToken: "refresh-" + input.Code}, nil
}

func (h *fakeHandler) CreateAccount(_ context.Context, email string, resp provider.AuthResponse) (*account.Account, error) {
	return &account.Account{
		EmailAddress: email,
		Provider:     h.name,
		SyncEnabled:  true,
		Credentials:  "sealed:" + resp.RefreshToken,
	}, nil
}

func (h *fakeHandler) VerifyAccount(context.Context, *account.Account) error {
	return h.verifyErr
}
