package syncback

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-mailsync/account"
	"github.com/goliatone/go-mailsync/actions"
	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/google/uuid"
)

type memoryActions struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*actions.Entry
	listErr error
}

func newMemoryActions(entries ...*actions.Entry) *memoryActions {
	m := &memoryActions{entries: make(map[uuid.UUID]*actions.Entry)}
	for _, entry := range entries {
		m.entries[entry.ID] = entry
	}
	return m
}

func (m *memoryActions) ListPending(_ context.Context, limit int) ([]*actions.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*actions.Entry
	for _, entry := range m.entries {
		if entry.Status == types.ActionStatusPending {
			clone := *entry
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryActions) MarkSuccessful(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok || entry.Status != types.ActionStatusPending {
		return errors.New("not pending")
	}
	entry.Status = types.ActionStatusSuccessful
	return nil
}

func (m *memoryActions) RecordFailure(_ context.Context, id uuid.UUID, cause error, maxRetries int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok || entry.Status != types.ActionStatusPending {
		return false, errors.New("not pending")
	}
	entry.Retries++
	entry.LastError = cause.Error()
	if entry.Retries >= maxRetries {
		entry.Status = types.ActionStatusFailed
		return true, nil
	}
	return false, nil
}

func (m *memoryActions) get(id uuid.UUID) actions.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.entries[id]
}

type memoryAccounts struct {
	byNamespace map[uuid.UUID]*account.Account
}

func (m *memoryAccounts) GetByNamespace(_ context.Context, namespaceID uuid.UUID) (*account.Account, *account.Namespace, error) {
	acct, ok := m.byNamespace[namespaceID]
	if !ok {
		return nil, nil, types.NewNotFoundError("account not found")
	}
	return acct, &account.Namespace{ID: namespaceID, AccountID: acct.ID}, nil
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

type fakeExecutor struct {
	mu       sync.Mutex
	calls    []string
	failures map[string]int
	err      error
}

func (f *fakeExecutor) fn(ctx context.Context, task Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, task.Action.Action)
	if remaining := f.failures[task.Action.Action]; remaining > 0 {
		f.failures[task.Action.Action] = remaining - 1
		if f.err != nil {
			return f.err
		}
		return errors.New("remote unavailable")
	}
	return nil
}

func (f *fakeExecutor) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func pendingEntry(namespaceID uuid.UUID, action string, offset time.Duration) *actions.Entry {
	return &actions.Entry{
		ID:          uuid.New(),
		NamespaceID: namespaceID,
		Action:      action,
		TableName:   "threads",
		RecordID:    uuid.New(),
		Status:      types.ActionStatusPending,
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(offset),
	}
}
