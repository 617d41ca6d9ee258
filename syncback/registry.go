package syncback

import (
	"context"
	"errors"
	"sync"

	"github.com/goliatone/go-mailsync/account"
	"github.com/goliatone/go-mailsync/actions"
)

// ErrNoExecutor is recorded on actions nothing can execute.
var ErrNoExecutor = errors.New("go-mailsync: no executor registered for action")

// Task is one attempt at an action.
type Task struct {
	Action  *actions.Entry
	Account *account.Account
}

// ExecutorFunc performs an action against the remote provider.
type ExecutorFunc func(ctx context.Context, task Task) error

// Registry maps (provider, action) pairs onto executors. Executors
// registered with an empty provider serve every provider.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]map[string]ExecutorFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]map[string]ExecutorFunc)}
}

// Register binds fn to action for provider.
func (r *Registry) Register(provider, action string, fn ExecutorFunc) {
	if fn == nil || action == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	byAction, ok := r.executors[provider]
	if !ok {
		byAction = make(map[string]ExecutorFunc)
		r.executors[provider] = byAction
	}
	byAction[action] = fn
}

// Lookup resolves the executor for an action, preferring provider specific
// registrations.
func (r *Registry) Lookup(provider, action string) (ExecutorFunc, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if fn, ok := r.executors[provider][action]; ok {
		return fn, true
	}
	fn, ok := r.executors[""][action]
	return fn, ok
}

type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the action fails at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func isPermanent(err error) bool {
	var target permanentError
	return errors.As(err, &target)
}
