package query

import (
	"context"
	"time"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/google/uuid"
)

// CursorResult is the body returned by cursor queries.
type CursorResult struct {
	Cursor int64 `json:"cursor"`
}

// GenerateCursorInput resolves the cursor a client should start from to see
// every change made at or after Start.
type GenerateCursorInput struct {
	NamespaceID uuid.UUID
	Start       time.Time
}

// Type implements gocommand.Message.
func (GenerateCursorInput) Type() string {
	return "query.delta.generate_cursor"
}

// Validate implements gocommand.Message.
func (input GenerateCursorInput) Validate() error {
	if input.Start.IsZero() {
		return types.NewInputError(types.TextCodeInvalidTimestamp, "start timestamp required")
	}
	return nil
}

// GenerateCursorQuery maps a timestamp onto a log cursor.
type GenerateCursorQuery struct {
	log types.TransactionLog
}

// NewGenerateCursorQuery builds the query.
func NewGenerateCursorQuery(log types.TransactionLog) *GenerateCursorQuery {
	return &GenerateCursorQuery{log: log}
}

var _ gocommand.Querier[GenerateCursorInput, CursorResult] = (*GenerateCursorQuery)(nil)

// Query returns the newest cursor strictly before Start, or 0.
func (q *GenerateCursorQuery) Query(ctx context.Context, input GenerateCursorInput) (CursorResult, error) {
	if q.log == nil {
		return CursorResult{}, types.ErrMissingTransactionLog
	}
	if err := input.Validate(); err != nil {
		return CursorResult{}, err
	}
	cursor, err := q.log.CursorNear(ctx, input.NamespaceID, input.Start)
	if err != nil {
		return CursorResult{}, err
	}
	return CursorResult{Cursor: cursor}, nil
}

// LatestCursorInput asks for the head of the log. A nil namespace reads the
// global head.
type LatestCursorInput struct {
	NamespaceID uuid.UUID
}

// Type implements gocommand.Message.
func (LatestCursorInput) Type() string {
	return "query.delta.latest_cursor"
}

// Validate implements gocommand.Message.
func (LatestCursorInput) Validate() error {
	return nil
}

// LatestCursorQuery returns the newest cursor so a client can start
// following changes from now on.
type LatestCursorQuery struct {
	log types.TransactionLog
}

// NewLatestCursorQuery builds the query.
func NewLatestCursorQuery(log types.TransactionLog) *LatestCursorQuery {
	return &LatestCursorQuery{log: log}
}

var _ gocommand.Querier[LatestCursorInput, CursorResult] = (*LatestCursorQuery)(nil)

// Query returns the head cursor.
func (q *LatestCursorQuery) Query(ctx context.Context, input LatestCursorInput) (CursorResult, error) {
	if q.log == nil {
		return CursorResult{}, types.ErrMissingTransactionLog
	}
	cursor, err := q.log.LatestCursor(ctx, input.NamespaceID)
	if err != nil {
		return CursorResult{}, err
	}
	return CursorResult{Cursor: cursor}, nil
}
