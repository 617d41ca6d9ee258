package txlog

import (
	"encoding/json"
	"time"

	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Entry models a row in the transactions table. ID is assigned by the
// database sequence and doubles as the client cursor.
type Entry struct {
	bun.BaseModel `bun:"table:transactions"`

	ID             int64            `bun:"id,pk,autoincrement"`
	NamespaceID    uuid.UUID        `bun:"namespace_id,type:uuid,notnull"`
	ObjectType     types.ObjectType `bun:"object_type,notnull"`
	RecordID       uuid.UUID        `bun:"record_id,type:uuid,notnull"`
	ObjectPublicID string           `bun:"object_public_id,notnull"`
	Command        types.Command    `bun:"command,notnull"`
	Snapshot       json.RawMessage  `bun:"snapshot,type:jsonb,nullzero"`
	CreatedAt      time.Time        `bun:"created_at,notnull"`
	DeletedAt      *time.Time       `bun:"deleted_at"`
}

// Delta converts the entry into its client facing representation.
func (e *Entry) Delta() types.Delta {
	if e == nil {
		return types.Delta{}
	}
	delta := types.Delta{
		Object:      e.ObjectType,
		Event:       e.Command.Event(),
		ID:          e.ObjectPublicID,
		NamespaceID: e.NamespaceID,
		Cursor:      e.ID,
	}
	if e.Command != types.CommandDelete && len(e.Snapshot) > 0 {
		delta.Attributes = append(json.RawMessage(nil), e.Snapshot...)
	}
	return delta
}

type objectKey struct {
	objectType types.ObjectType
	recordID   uuid.UUID
}

func (e *Entry) key() objectKey {
	return objectKey{objectType: e.ObjectType, recordID: e.RecordID}
}
