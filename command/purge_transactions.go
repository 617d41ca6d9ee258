package command

import (
	"context"
	"time"

	gocommand "github.com/goliatone/go-command"
	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/google/uuid"
)

// DefaultRetentionDays is used when a purge omits DaysAgo.
const DefaultRetentionDays = 30

// PurgeTransactionsInput removes log entries older than DaysAgo days. A nil
// NamespaceID purges every namespace. Hard deletes rows instead of
// tombstoning them.
type PurgeTransactionsInput struct {
	DaysAgo     *int
	NamespaceID uuid.UUID
	DryRun      bool
	Hard        bool
	Result      *PurgeTransactionsResult
}

// PurgeTransactionsResult reports what a purge touched.
type PurgeTransactionsResult struct {
	Before time.Time `json:"before"`
	Count  int       `json:"count"`
	DryRun bool      `json:"dry_run"`
}

// Type implements gocommand.Message.
func (PurgeTransactionsInput) Type() string {
	return "command.transactions.purge"
}

// Validate implements gocommand.Message.
func (input PurgeTransactionsInput) Validate() error {
	if input.DaysAgo != nil && *input.DaysAgo < 0 {
		return ErrRetentionInvalid
	}
	return nil
}

// PurgeTransactionsConfig wires the purge command.
type PurgeTransactionsConfig struct {
	Log           TransactionPruner
	FeatureGate   featuregate.FeatureGate
	RetentionDays int
	Clock         types.Clock
	Logger        types.Logger
}

// PurgeTransactionsCommand prunes the transaction log. Clients holding a
// cursor older than the cutoff keep paging forward; pruned entries are
// simply never served again.
type PurgeTransactionsCommand struct {
	log       TransactionPruner
	gate      featuregate.FeatureGate
	retention int
	clock     types.Clock
	logger    types.Logger
}

// NewPurgeTransactionsCommand constructs the handler.
func NewPurgeTransactionsCommand(cfg PurgeTransactionsConfig) *PurgeTransactionsCommand {
	retention := cfg.RetentionDays
	if retention <= 0 {
		retention = DefaultRetentionDays
	}
	return &PurgeTransactionsCommand{
		log:       cfg.Log,
		gate:      cfg.FeatureGate,
		retention: retention,
		clock:     safeClock(cfg.Clock),
		logger:    safeLogger(cfg.Logger),
	}
}

var _ gocommand.Commander[PurgeTransactionsInput] = (*PurgeTransactionsCommand)(nil)

// Execute prunes the log when the purge feature is enabled.
func (c *PurgeTransactionsCommand) Execute(ctx context.Context, input PurgeTransactionsInput) error {
	if c.log == nil {
		return types.ErrMissingTransactionLog
	}
	if err := input.Validate(); err != nil {
		return err
	}
	if err := requireFeature(ctx, c.gate, types.FeatureTransactionsPurge, input.NamespaceID); err != nil {
		return err
	}

	days := c.retention
	if input.DaysAgo != nil {
		days = *input.DaysAgo
	}
	before := now(c.clock).Add(-time.Duration(days) * 24 * time.Hour)
	count, err := c.log.Prune(ctx, types.PruneInput{
		Before:      before,
		NamespaceID: input.NamespaceID,
		DryRun:      input.DryRun,
		Hard:        input.Hard,
	})
	if err != nil {
		return err
	}

	c.logger.Info("transactions purged",
		"before", before,
		"count", count,
		"dry_run", input.DryRun,
		"hard", input.Hard,
		"namespace_id", input.NamespaceID,
	)
	if input.Result != nil {
		*input.Result = PurgeTransactionsResult{Before: before, Count: count, DryRun: input.DryRun}
	}
	return nil
}
