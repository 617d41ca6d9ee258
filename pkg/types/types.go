package types

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid"
)

// ObjectType enumerates the mail objects tracked by the transaction log.
type ObjectType string

const (
	ObjectTypeContact  ObjectType = "contact"
	ObjectTypeMessage  ObjectType = "message"
	ObjectTypeEvent    ObjectType = "event"
	ObjectTypeFile     ObjectType = "file"
	ObjectTypeTag      ObjectType = "tag"
	ObjectTypeThread   ObjectType = "thread"
	ObjectTypeCalendar ObjectType = "calendar"
)

// ObjectTypes lists every trackable object type in a stable order.
func ObjectTypes() []ObjectType {
	return []ObjectType{
		ObjectTypeContact,
		ObjectTypeMessage,
		ObjectTypeEvent,
		ObjectTypeFile,
		ObjectTypeTag,
		ObjectTypeThread,
		ObjectTypeCalendar,
	}
}

// Valid reports whether the object type is part of the fixed enumeration.
func (t ObjectType) Valid() bool {
	switch t {
	case ObjectTypeContact, ObjectTypeMessage, ObjectTypeEvent, ObjectTypeFile,
		ObjectTypeTag, ObjectTypeThread, ObjectTypeCalendar:
		return true
	default:
		return false
	}
}

// Command is the mutation kind stored on a log entry.
type Command string

const (
	CommandInsert Command = "insert"
	CommandUpdate Command = "update"
	CommandDelete Command = "delete"
)

// Valid reports whether the command is known.
func (c Command) Valid() bool {
	return c == CommandInsert || c == CommandUpdate || c == CommandDelete
}

// Event maps the stored command onto the client facing event name.
func (c Command) Event() DeltaEvent {
	switch c {
	case CommandInsert:
		return DeltaEventCreate
	case CommandDelete:
		return DeltaEventDelete
	default:
		return DeltaEventModify
	}
}

// DeltaEvent is the event name exposed on the delta feed.
type DeltaEvent string

const (
	DeltaEventCreate DeltaEvent = "create"
	DeltaEventModify DeltaEvent = "modify"
	DeltaEventDelete DeltaEvent = "delete"
)

// Delta is one change event served to polling clients. Attributes are absent
// for delete events.
type Delta struct {
	Object      ObjectType      `json:"object"`
	Event       DeltaEvent      `json:"event"`
	ID          string          `json:"id"`
	NamespaceID uuid.UUID       `json:"namespace_id"`
	Cursor      int64           `json:"cursor"`
	Attributes  json.RawMessage `json:"attributes,omitempty"`
}

// DeltaFilter selects log entries after a cursor. A nil NamespaceID reads the
// global feed.
type DeltaFilter struct {
	Cursor       int64
	Limit        int
	NamespaceID  uuid.UUID
	ExcludeTypes []ObjectType
	Collapse     bool
}

// Type implements gocommand.Message.
func (DeltaFilter) Type() string {
	return "query.delta.read"
}

// Validate implements gocommand.Message.
func (f DeltaFilter) Validate() error {
	if f.Cursor < 0 {
		return NewInputError(TextCodeInvalidCursor, "cursor must be a non-negative integer")
	}
	if f.Limit < 0 {
		return NewInputError(TextCodeInvalidLimit, "limit must be a non-negative integer")
	}
	for _, t := range f.ExcludeTypes {
		if !t.Valid() {
			return NewInputError(TextCodeInvalidObjectType, "invalid object type: "+string(t))
		}
	}
	return nil
}

// DeltaPage is the response of a delta read.
type DeltaPage struct {
	PointerStart int64   `json:"pointer_start"`
	Deltas       []Delta `json:"deltas"`
	PointerEnd   int64   `json:"pointer_end"`
}

// PruneInput controls transaction log pruning.
type PruneInput struct {
	Before      time.Time
	NamespaceID uuid.UUID
	DryRun      bool
	Hard        bool
}

// TransactionLog exposes the read and maintenance side of the log.
type TransactionLog interface {
	ReadAfter(ctx context.Context, filter DeltaFilter) (DeltaPage, error)
	CursorNear(ctx context.Context, namespaceID uuid.UUID, at time.Time) (int64, error)
	LatestCursor(ctx context.Context, namespaceID uuid.UUID) (int64, error)
	Prune(ctx context.Context, input PruneInput) (int, error)
}

// CommitNotification summarises a committed unit of work for subscribers.
type CommitNotification struct {
	NamespaceID uuid.UUID    `json:"namespace_id"`
	PointerEnd  int64        `json:"pointer_end"`
	Count       int          `json:"count"`
	Objects     []ObjectType `json:"objects,omitempty"`
	CommittedAt time.Time    `json:"committed_at"`
}

// ActionOutcome is published after the syncback worker settles an action.
type ActionOutcome struct {
	ActionID    uuid.UUID    `json:"action_id"`
	NamespaceID uuid.UUID    `json:"namespace_id"`
	Action      string       `json:"action"`
	Status      ActionStatus `json:"status"`
	Retries     int          `json:"retries"`
	Error       string       `json:"error,omitempty"`
	SettledAt   time.Time    `json:"settled_at"`
}

// Clock abstracts time retrieval for deterministic testing.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts UUID creation.
type IDGenerator interface {
	UUID() uuid.UUID
}

// PublicIDGenerator creates externally stable identifiers.
type PublicIDGenerator interface {
	PublicID() string
}

// Logger captures basic logging hooks used by the service.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Error(msg string, err error, fields ...any)
}

// SystemClock defers to time.Now for production usage.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// UUIDGenerator produces UUIDv4 identifiers.
type UUIDGenerator struct{}

// UUID returns a randomly generated UUID.
func (UUIDGenerator) UUID() uuid.UUID { return uuid.New() }

// ShortPublicIDs produces base57 public identifiers.
type ShortPublicIDs struct{}

// PublicID returns a new short identifier.
func (ShortPublicIDs) PublicID() string { return shortuuid.New() }

// NopLogger discards all log lines.
type NopLogger struct{}

// Debug implements Logger.
func (NopLogger) Debug(string, ...any) {}

// Info implements Logger.
func (NopLogger) Info(string, ...any) {}

// Error implements Logger.
func (NopLogger) Error(string, error, ...any) {}
