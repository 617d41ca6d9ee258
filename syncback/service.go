package syncback

import (
	"context"
	"errors"
	"sync"
	"time"

	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-mailsync/account"
	"github.com/goliatone/go-mailsync/actions"
	"github.com/goliatone/go-mailsync/lock"
	"github.com/goliatone/go-mailsync/notify"
	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/goliatone/go-masker"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPollInterval  = time.Second
	DefaultRetryInterval = 30 * time.Second
	DefaultBatchSize     = 500
	DefaultConcurrency   = 8
)

// ActionStore is the slice of the action repository the worker needs.
type ActionStore interface {
	ListPending(ctx context.Context, limit int) ([]*actions.Entry, error)
	MarkSuccessful(ctx context.Context, id uuid.UUID) error
	RecordFailure(ctx context.Context, id uuid.UUID, cause error, maxRetries int) (bool, error)
}

// AccountSource resolves the account owning a namespace.
type AccountSource interface {
	GetByNamespace(ctx context.Context, namespaceID uuid.UUID) (*account.Account, *account.Namespace, error)
}

// Config wires the syncback service.
type Config struct {
	Actions       ActionStore
	Accounts      AccountSource
	Executors     *Registry
	Locks         *lock.Manager
	FeatureGate   featuregate.FeatureGate
	Publisher     notify.Publisher
	Masker        *masker.Masker
	PollInterval  time.Duration
	// RetryInterval is the pause between attempts; zero retries at once.
	RetryInterval time.Duration
	BatchSize     int
	MaxRetries    int
	Concurrency   int
	Clock         types.Clock
	Logger        types.Logger
}

// Service polls pending actions and executes them. Actions of one account
// run in schedule order under the account lock.
type Service struct {
	actions       ActionStore
	accounts      AccountSource
	executors     *Registry
	locks         *lock.Manager
	gate          featuregate.FeatureGate
	publisher     notify.Publisher
	mask          *masker.Masker
	pollInterval  time.Duration
	retryInterval time.Duration
	batchSize     int
	maxRetries    int
	concurrency   int
	clock         types.Clock
	logger        types.Logger

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
	cancel   context.CancelFunc
	done     chan struct{}
}

type job struct {
	entry *actions.Entry
	acct  *account.Account
	fn    ExecutorFunc
}

// New constructs a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Actions == nil {
		return nil, types.ErrMissingActionRepository
	}
	if cfg.Accounts == nil {
		return nil, types.ErrMissingAccountRepository
	}
	s := &Service{
		actions:       cfg.Actions,
		accounts:      cfg.Accounts,
		executors:     cfg.Executors,
		locks:         cfg.Locks,
		gate:          cfg.FeatureGate,
		publisher:     cfg.Publisher,
		mask:          cfg.Masker,
		pollInterval:  cfg.PollInterval,
		retryInterval: cfg.RetryInterval,
		batchSize:     cfg.BatchSize,
		maxRetries:    cfg.MaxRetries,
		concurrency:   cfg.Concurrency,
		clock:         cfg.Clock,
		logger:        cfg.Logger,
		inflight:      make(map[uuid.UUID]struct{}),
	}
	if s.executors == nil {
		s.executors = NewRegistry()
	}
	if s.locks == nil {
		s.locks = lock.NewManager()
	}
	if s.publisher == nil {
		s.publisher = notify.NopPublisher{}
	}
	if s.pollInterval <= 0 {
		s.pollInterval = DefaultPollInterval
	}
	if s.retryInterval < 0 {
		s.retryInterval = DefaultRetryInterval
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	if s.maxRetries <= 0 {
		s.maxRetries = types.DefaultActionMaxRetries
	}
	if s.concurrency <= 0 {
		s.concurrency = DefaultConcurrency
	}
	if s.clock == nil {
		s.clock = types.SystemClock{}
	}
	if s.logger == nil {
		s.logger = types.NopLogger{}
	}
	return s, nil
}

// Start runs the poll loop in the background until Stop or ctx is done.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.logger.Info("starting syncback service", "poll_interval", s.pollInterval, "batch_size", s.batchSize)
	go func() {
		defer close(done)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			s.dispatch(gctx, g, s.poll(gctx))
			select {
			case <-gctx.Done():
				_ = g.Wait()
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop cancels the poll loop and waits for running workers. Interrupted
// actions stay pending.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("syncback service stopped")
}

// ProcessOnce runs a single poll and waits for every dispatched action. It
// returns the number of actions dispatched.
func (s *Service) ProcessOnce(ctx context.Context) (int, error) {
	jobs := s.poll(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	s.dispatch(gctx, g, jobs)
	if err := g.Wait(); err != nil {
		return len(jobs), err
	}
	return len(jobs), ctx.Err()
}

// InFlight reports the number of actions currently being executed.
func (s *Service) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

func (s *Service) poll(ctx context.Context) []job {
	entries, err := s.actions.ListPending(ctx, s.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("syncback poll failed", err)
		}
		return nil
	}

	accounts := make(map[uuid.UUID]*account.Account)
	gated := make(map[uuid.UUID]bool)
	var jobs []job
	for _, entry := range entries {
		if s.isInflight(entry.ID) {
			continue
		}
		acct, ok := accounts[entry.NamespaceID]
		if !ok {
			acct, _, err = s.accounts.GetByNamespace(ctx, entry.NamespaceID)
			if err != nil {
				s.logger.Error("syncback account lookup failed", err, "namespace_id", entry.NamespaceID, "action_id", entry.ID)
				continue
			}
			accounts[entry.NamespaceID] = acct
		}
		if acct.SyncState == types.SyncStateInvalid {
			s.logger.Info("skipping action for invalid account", "account_id", acct.ID, "action_id", entry.ID, "action", entry.Action)
			continue
		}
		enabled, ok := gated[entry.NamespaceID]
		if !ok {
			enabled, err = types.FeatureEnabled(ctx, s.gate, types.FeatureSyncback, entry.NamespaceID)
			if err != nil {
				s.logger.Error("syncback feature gate failed", err, "namespace_id", entry.NamespaceID)
				enabled = false
			}
			gated[entry.NamespaceID] = enabled
		}
		if !enabled {
			continue
		}

		fn, ok := s.executors.Lookup(acct.Provider, entry.Action)
		if !ok {
			fn = func(context.Context, Task) error { return Permanent(ErrNoExecutor) }
		}
		if !s.claim(entry.ID) {
			continue
		}
		s.logger.Info("delegating action",
			"action_id", entry.ID,
			"action", entry.Action,
			"namespace_id", entry.NamespaceID,
			"extra_args", SanitizeArgs(s.mask, entry.ExtraArgs))
		jobs = append(jobs, job{entry: entry, acct: acct, fn: fn})
	}
	return jobs
}

// dispatch groups jobs per account so each account's actions run in
// schedule order on a single goroutine.
func (s *Service) dispatch(ctx context.Context, g *errgroup.Group, jobs []job) {
	var order []uuid.UUID
	grouped := make(map[uuid.UUID][]job)
	for _, j := range jobs {
		if _, ok := grouped[j.acct.ID]; !ok {
			order = append(order, j.acct.ID)
		}
		grouped[j.acct.ID] = append(grouped[j.acct.ID], j)
	}
	for _, accountID := range order {
		batch := grouped[accountID]
		g.Go(func() error {
			s.runAccount(ctx, batch)
			return nil
		})
	}
}

func (s *Service) runAccount(ctx context.Context, jobs []job) {
	defer func() {
		for _, j := range jobs {
			s.release(j.entry.ID)
		}
	}()
	key := jobs[0].acct.ID.String()
	if err := s.locks.Acquire(ctx, key); err != nil {
		return
	}
	defer func() { _ = s.locks.Release(key) }()

	for _, j := range jobs {
		if ctx.Err() != nil {
			return
		}
		s.run(ctx, j)
	}
}

// run executes one action, retrying until it succeeds, fails permanently or
// exhausts its retries. The caller holds the account lock.
func (s *Service) run(ctx context.Context, j job) {
	task := Task{Action: j.entry, Account: j.acct}
	for {
		err := j.fn(ctx, task)
		if err == nil {
			if err := s.actions.MarkSuccessful(ctx, j.entry.ID); err != nil {
				s.logger.Error("syncback mark successful failed", err, "action_id", j.entry.ID)
				return
			}
			s.logger.Info("syncback action completed",
				"action_id", j.entry.ID,
				"latency", s.clock.Now().Sub(j.entry.CreatedAt).Seconds())
			s.publish(ctx, j.entry, types.ActionStatusSuccessful, nil)
			return
		}
		if ctx.Err() != nil {
			return
		}

		maxRetries := s.maxRetries
		if isPermanent(err) {
			maxRetries = 1
		}
		s.logger.Error("syncback action failed", err, "action_id", j.entry.ID, "action", j.entry.Action, "account_id", j.acct.ID)
		failed, recErr := s.actions.RecordFailure(ctx, j.entry.ID, err, maxRetries)
		if recErr != nil {
			s.logger.Error("syncback record failure failed", recErr, "action_id", j.entry.ID)
			return
		}
		j.entry.Retries++
		if failed {
			s.logger.Error("max retries reached, giving up", err, "action_id", j.entry.ID, "retries", j.entry.Retries)
			s.publish(ctx, j.entry, types.ActionStatusFailed, err)
			return
		}
		if !s.wait(ctx) {
			return
		}
	}
}

func (s *Service) wait(ctx context.Context) bool {
	if s.retryInterval == 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(s.retryInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Service) publish(ctx context.Context, entry *actions.Entry, status types.ActionStatus, cause error) {
	outcome := types.ActionOutcome{
		ActionID:    entry.ID,
		NamespaceID: entry.NamespaceID,
		Action:      entry.Action,
		Status:      status,
		Retries:     entry.Retries,
		SettledAt:   s.clock.Now(),
	}
	if cause != nil {
		outcome.Error = cause.Error()
	}
	if err := s.publisher.Publish(ctx, notify.OutcomeNotification(outcome)); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("syncback outcome publish failed", err, "action_id", entry.ID)
	}
}

func (s *Service) isInflight(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[id]
	return ok
}

func (s *Service) claim(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inflight[id]; ok {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Service) release(id uuid.UUID) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}
