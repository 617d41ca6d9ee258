package query

import (
	"context"
	"strconv"

	gocommand "github.com/goliatone/go-command"
	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-mailsync/pkg/types"
)

// DeltaQueryConfig wires the delta feed query.
type DeltaQueryConfig struct {
	Log         types.TransactionLog
	FeatureGate featuregate.FeatureGate
	MaxLimit    int
	Logger      types.Logger
}

// DeltaQuery pages through the transaction log after a cursor.
type DeltaQuery struct {
	log      types.TransactionLog
	gate     featuregate.FeatureGate
	maxLimit int
	logger   types.Logger
}

// NewDeltaQuery builds the delta query.
func NewDeltaQuery(cfg DeltaQueryConfig) *DeltaQuery {
	maxLimit := cfg.MaxLimit
	if maxLimit <= 0 {
		maxLimit = types.MaxDeltaLimit
	}
	return &DeltaQuery{
		log:      cfg.Log,
		gate:     cfg.FeatureGate,
		maxLimit: maxLimit,
		logger:   safeLogger(cfg.Logger),
	}
}

var _ gocommand.Querier[types.DeltaFilter, types.DeltaPage] = (*DeltaQuery)(nil)

// Query reads one page. A zero limit returns an empty page at the input
// cursor. Collapse is dropped silently when the collapse feature is off for
// the namespace, which still yields a complete feed.
func (q *DeltaQuery) Query(ctx context.Context, filter types.DeltaFilter) (types.DeltaPage, error) {
	if q.log == nil {
		return types.DeltaPage{}, types.ErrMissingTransactionLog
	}
	if err := filter.Validate(); err != nil {
		return types.DeltaPage{}, err
	}
	if filter.Limit > q.maxLimit {
		return types.DeltaPage{}, types.NewInputError(types.TextCodeInvalidLimit, "invalid value for limit: "+strconv.Itoa(filter.Limit))
	}
	if filter.Collapse {
		enabled, err := types.FeatureEnabled(ctx, q.gate, types.FeatureDeltaCollapse, filter.NamespaceID)
		if err != nil {
			return types.DeltaPage{}, err
		}
		if !enabled {
			q.logger.Debug("delta collapse disabled", "namespace_id", filter.NamespaceID)
			filter.Collapse = false
		}
	}

	page, err := q.log.ReadAfter(ctx, filter)
	if err != nil {
		return types.DeltaPage{}, err
	}
	q.logger.Debug("delta read",
		"namespace_id", filter.NamespaceID,
		"cursor", filter.Cursor,
		"limit", filter.Limit,
		"count", len(page.Deltas),
		"pointer_end", page.PointerEnd,
	)
	return page, nil
}
