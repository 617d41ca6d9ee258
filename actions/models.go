package actions

import (
	"time"

	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Entry models a row in action_logs.
type Entry struct {
	bun.BaseModel `bun:"table:action_logs"`

	ID          uuid.UUID          `bun:"id,pk,type:uuid" json:"id"`
	NamespaceID uuid.UUID          `bun:"namespace_id,type:uuid,notnull" json:"namespace_id"`
	Action      string             `bun:"action,notnull" json:"action"`
	TableName   string             `bun:"table_name,notnull" json:"table_name"`
	RecordID    uuid.UUID          `bun:"record_id,type:uuid,notnull" json:"record_id"`
	Status      types.ActionStatus `bun:"status,notnull" json:"status"`
	Retries     int                `bun:"retries,notnull" json:"retries"`
	ExtraArgs   map[string]any     `bun:"extra_args,type:jsonb" json:"extra_args,omitempty"`
	LastError   string             `bun:"last_error,nullzero" json:"last_error,omitempty"`
	CreatedAt   time.Time          `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt   time.Time          `bun:"updated_at,notnull" json:"updated_at"`
}
