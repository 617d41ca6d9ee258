package service

import (
	"context"

	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-mailsync/command"
	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/goliatone/go-mailsync/query"
)

// Service is the entry point for go-mailsync. It wires the object store, the
// transaction log, the action log and the account repositories into the
// command/query facades used by transports and workers.
type Service struct {
	cfg      Config
	commands Commands
	queries  Queries
}

// Commands exposes the service command handlers.
type Commands struct {
	ThreadTags        *command.ThreadTagsCommand
	ObjectMutation    *command.ObjectMutationCommand
	ScheduleAction    *command.ScheduleActionCommand
	RequeueAction     *command.RequeueActionCommand
	PurgeTransactions *command.PurgeTransactionsCommand
	CreateAccount     *command.CreateAccountCommand
	AccountSyncState  *command.AccountSyncStateCommand
}

// Queries exposes read-model helpers.
type Queries struct {
	Delta          *query.DeltaQuery
	GenerateCursor *query.GenerateCursorQuery
	LatestCursor   *query.LatestCursorQuery
	ProviderLookup *query.ProviderLookupQuery
	AuthChallenge  *query.AuthChallengeQuery
	AccountStatus  *query.AccountStatusQuery
	ActionList     *query.ActionListQuery
}

// ActionRepository is the action log surface used by the service.
// *actions.Repository satisfies it.
type ActionRepository interface {
	command.ActionRequeuer
	query.ActionReader
}

// AccountRepository is the account surface used by the service.
// *account.Repository satisfies it.
type AccountRepository interface {
	command.AccountWriter
	command.AccountTransitioner
	query.AccountReader
}

// Config captures all required dependencies so callers can provide their own
// instances (bun-backed repositories, provider registries, feature gates).
type Config struct {
	Store         command.ObjectStore
	Log           types.TransactionLog
	Scheduler     command.ActionScheduler
	Actions       ActionRepository
	Accounts      AccountRepository
	Providers     command.ProviderResolver
	FeatureGate   featuregate.FeatureGate
	Clock         types.Clock
	Logger        types.Logger
	RetentionDays int
	MaxLimit      int
}

// New constructs a Service from the supplied configuration.
func New(cfg Config) *Service {
	s := &Service{cfg: normalizeConfig(cfg)}
	s.commands = s.buildCommands()
	s.queries = s.buildQueries()
	return s
}

func normalizeConfig(cfg Config) Config {
	if cfg.Clock == nil {
		cfg.Clock = types.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = types.NopLogger{}
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = command.DefaultRetentionDays
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = types.MaxDeltaLimit
	}
	return cfg
}

// Commands returns the command facade.
func (s *Service) Commands() Commands {
	return s.commands
}

// Queries returns the query facade.
func (s *Service) Queries() Queries {
	return s.queries
}

// FeatureGate returns the configured gate so transports and workers resolve
// flags the same way the commands do.
func (s *Service) FeatureGate() featuregate.FeatureGate {
	if s == nil {
		return nil
	}
	return s.cfg.FeatureGate
}

// Ready reports whether the service has the required dependencies wired in.
func (s *Service) Ready() bool {
	return s != nil && s.HealthCheck(context.Background()) == nil
}

// HealthCheck surfaces the first missing dependency.
func (s *Service) HealthCheck(_ context.Context) error {
	if s == nil {
		return types.ErrServiceNotReady
	}
	switch {
	case s.cfg.Store == nil:
		return types.ErrMissingStore
	case s.cfg.Log == nil:
		return types.ErrMissingTransactionLog
	case s.cfg.Scheduler == nil:
		return types.ErrMissingScheduler
	case s.cfg.Actions == nil:
		return types.ErrMissingActionRepository
	case s.cfg.Accounts == nil:
		return types.ErrMissingAccountRepository
	case s.cfg.Providers == nil:
		return types.ErrMissingProviderRegistry
	}
	return nil
}

func (s *Service) buildCommands() Commands {
	return Commands{
		ThreadTags: command.NewThreadTagsCommand(command.ThreadTagsConfig{
			Store:     s.cfg.Store,
			Scheduler: s.cfg.Scheduler,
			Logger:    s.cfg.Logger,
		}),
		ObjectMutation: command.NewObjectMutationCommand(s.cfg.Store, s.cfg.Logger),
		ScheduleAction: command.NewScheduleActionCommand(s.cfg.Store, s.cfg.Scheduler),
		RequeueAction:  command.NewRequeueActionCommand(s.cfg.Actions, s.cfg.Logger),
		PurgeTransactions: command.NewPurgeTransactionsCommand(command.PurgeTransactionsConfig{
			Log:           s.cfg.Log,
			FeatureGate:   s.cfg.FeatureGate,
			RetentionDays: s.cfg.RetentionDays,
			Clock:         s.cfg.Clock,
			Logger:        s.cfg.Logger,
		}),
		CreateAccount: command.NewCreateAccountCommand(command.CreateAccountConfig{
			Providers: s.cfg.Providers,
			Accounts:  s.cfg.Accounts,
			Logger:    s.cfg.Logger,
		}),
		AccountSyncState: command.NewAccountSyncStateCommand(s.cfg.Accounts, s.cfg.Logger),
	}
}

func (s *Service) buildQueries() Queries {
	return Queries{
		Delta: query.NewDeltaQuery(query.DeltaQueryConfig{
			Log:         s.cfg.Log,
			FeatureGate: s.cfg.FeatureGate,
			MaxLimit:    s.cfg.MaxLimit,
			Logger:      s.cfg.Logger,
		}),
		GenerateCursor: query.NewGenerateCursorQuery(s.cfg.Log),
		LatestCursor:   query.NewLatestCursorQuery(s.cfg.Log),
		ProviderLookup: query.NewProviderLookupQuery(s.cfg.Providers),
		AuthChallenge:  query.NewAuthChallengeQuery(s.cfg.Providers),
		AccountStatus:  query.NewAccountStatusQuery(s.cfg.Accounts),
		ActionList:     query.NewActionListQuery(s.cfg.Actions),
	}
}
