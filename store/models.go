package store

import (
	"time"

	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Record carries the identity columns shared by every mail object.
type Record struct {
	ID          uuid.UUID `bun:"id,pk,type:uuid" json:"-"`
	PublicID    string    `bun:"public_id,notnull" json:"id"`
	NamespaceID uuid.UUID `bun:"namespace_id,type:uuid,notnull" json:"namespace_id"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"-"`
	UpdatedAt   time.Time `bun:"updated_at,notnull" json:"-"`
}

func (r *Record) record() *Record { return r }

func (r *Record) key(objectType types.ObjectType) types.RevisionKey {
	return types.RevisionKey{
		ObjectType:  objectType,
		RecordID:    r.ID,
		PublicID:    r.PublicID,
		NamespaceID: r.NamespaceID,
	}
}

// Model is implemented by every object the unit of work can persist.
type Model interface {
	types.Revisable
	TableName() string
	record() *Record
}

// Thread groups messages. Version is bumped whenever the thread or one of its
// messages changes in a committed unit of work.
type Thread struct {
	bun.BaseModel `bun:"table:threads"`
	Record

	RemoteID      string     `bun:"remote_id,nullzero"`
	Subject       string     `bun:"subject"`
	Snippet       string     `bun:"snippet"`
	Participants  []string   `bun:"participants,type:jsonb"`
	Tags          []string   `bun:"tags,type:jsonb"`
	Version       int64      `bun:"version,notnull"`
	LastMessageAt *time.Time `bun:"last_message_at"`
}

// ThreadSnapshot is the API representation of a thread.
type ThreadSnapshot struct {
	ID            string     `json:"id"`
	Object        string     `json:"object"`
	NamespaceID   uuid.UUID  `json:"namespace_id"`
	Subject       string     `json:"subject"`
	Snippet       string     `json:"snippet"`
	Participants  []string   `json:"participants"`
	Tags          []string   `json:"tags"`
	Version       int64      `json:"version"`
	LastMessageAt *time.Time `json:"last_message_timestamp,omitempty"`
}

func (*Thread) TableName() string { return "threads" }

func (t *Thread) RevisionKey() types.RevisionKey { return t.key(types.ObjectTypeThread) }

func (t *Thread) VersionedFields() map[string]any {
	return map[string]any{
		"subject":         t.Subject,
		"snippet":         t.Snippet,
		"participants":    t.Participants,
		"tags":            t.Tags,
		"last_message_at": t.LastMessageAt,
	}
}

func (t *Thread) Snapshot() any {
	return ThreadSnapshot{
		ID:            t.PublicID,
		Object:        string(types.ObjectTypeThread),
		NamespaceID:   t.NamespaceID,
		Subject:       t.Subject,
		Snippet:       t.Snippet,
		Participants:  nonNilStrings(t.Participants),
		Tags:          nonNilStrings(t.Tags),
		Version:       t.Version,
		LastMessageAt: t.LastMessageAt,
	}
}

// HasTag reports whether the thread carries the tag.
func (t *Thread) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}

// AddTag attaches a tag and reports whether the tag set changed.
func (t *Thread) AddTag(tag string) bool {
	if t.HasTag(tag) {
		return false
	}
	t.Tags = append(append([]string(nil), t.Tags...), tag)
	return true
}

// RemoveTag detaches a tag and reports whether the tag set changed.
func (t *Thread) RemoveTag(tag string) bool {
	if !t.HasTag(tag) {
		return false
	}
	out := make([]string, 0, len(t.Tags)-1)
	for _, existing := range t.Tags {
		if existing != tag {
			out = append(out, existing)
		}
	}
	t.Tags = out
	return true
}

// Message is a single mail message. Changes bump the parent thread version.
type Message struct {
	bun.BaseModel `bun:"table:messages"`
	Record

	ThreadID   *uuid.UUID `bun:"thread_id,type:uuid"`
	Subject    string     `bun:"subject"`
	From       []string   `bun:"from_addr,type:jsonb"`
	To         []string   `bun:"to_addr,type:jsonb"`
	Snippet    string     `bun:"snippet"`
	Unread     bool       `bun:"unread,notnull"`
	IsDraft    bool       `bun:"is_draft,notnull"`
	Version    int64      `bun:"version,notnull"`
	ReceivedAt *time.Time `bun:"received_at"`

	// Backfill marks messages written by the initial mailbox import; they do
	// not produce log entries.
	Backfill bool `bun:"-"`
}

// MessageSnapshot is the API representation of a message.
type MessageSnapshot struct {
	ID          string     `json:"id"`
	Object      string     `json:"object"`
	NamespaceID uuid.UUID  `json:"namespace_id"`
	Subject     string     `json:"subject"`
	From        []string   `json:"from"`
	To          []string   `json:"to"`
	Snippet     string     `json:"snippet"`
	Unread      bool       `json:"unread"`
	Draft       bool       `json:"draft"`
	Version     int64      `json:"version"`
	ReceivedAt  *time.Time `json:"date,omitempty"`
}

func (*Message) TableName() string { return "messages" }

func (m *Message) RevisionKey() types.RevisionKey { return m.key(types.ObjectTypeMessage) }

func (m *Message) VersionedFields() map[string]any {
	return map[string]any{
		"subject":     m.Subject,
		"from":        m.From,
		"to":          m.To,
		"snippet":     m.Snippet,
		"unread":      m.Unread,
		"is_draft":    m.IsDraft,
		"received_at": m.ReceivedAt,
		"thread_id":   m.ThreadID,
	}
}

func (m *Message) Snapshot() any {
	return MessageSnapshot{
		ID:          m.PublicID,
		Object:      string(types.ObjectTypeMessage),
		NamespaceID: m.NamespaceID,
		Subject:     m.Subject,
		From:        nonNilStrings(m.From),
		To:          nonNilStrings(m.To),
		Snippet:     m.Snippet,
		Unread:      m.Unread,
		Draft:       m.IsDraft,
		Version:     m.Version,
		ReceivedAt:  m.ReceivedAt,
	}
}

func (m *Message) SuppressRevision() bool { return m.Backfill }

func (m *Message) VersionedParentID() (uuid.UUID, bool) {
	if m.ThreadID == nil || *m.ThreadID == uuid.Nil {
		return uuid.Nil, false
	}
	return *m.ThreadID, true
}

// Tag is a label attached to threads. Canonical tags (inbox, archive, ...)
// use their name as the public id.
type Tag struct {
	bun.BaseModel `bun:"table:tags"`
	Record

	Name string `bun:"name,notnull"`
}

func (*Tag) TableName() string { return "tags" }

func (t *Tag) RevisionKey() types.RevisionKey { return t.key(types.ObjectTypeTag) }

func (t *Tag) VersionedFields() map[string]any {
	return map[string]any{"name": t.Name}
}

func (t *Tag) Snapshot() any {
	return map[string]any{
		"id":           t.PublicID,
		"object":       string(types.ObjectTypeTag),
		"namespace_id": t.NamespaceID,
		"name":         t.Name,
	}
}

// Contact is an address book entry.
type Contact struct {
	bun.BaseModel `bun:"table:contacts"`
	Record

	Name         string `bun:"name"`
	EmailAddress string `bun:"email_address"`
}

func (*Contact) TableName() string { return "contacts" }

func (c *Contact) RevisionKey() types.RevisionKey { return c.key(types.ObjectTypeContact) }

func (c *Contact) VersionedFields() map[string]any {
	return map[string]any{"name": c.Name, "email": c.EmailAddress}
}

func (c *Contact) Snapshot() any {
	return map[string]any{
		"id":           c.PublicID,
		"object":       string(types.ObjectTypeContact),
		"namespace_id": c.NamespaceID,
		"name":         c.Name,
		"email":        c.EmailAddress,
	}
}

// Calendar owns events.
type Calendar struct {
	bun.BaseModel `bun:"table:calendars"`
	Record

	Name        string `bun:"name"`
	Description string `bun:"description"`
	ReadOnly    bool   `bun:"read_only,notnull"`
}

func (*Calendar) TableName() string { return "calendars" }

func (c *Calendar) RevisionKey() types.RevisionKey { return c.key(types.ObjectTypeCalendar) }

func (c *Calendar) VersionedFields() map[string]any {
	return map[string]any{"name": c.Name, "description": c.Description, "read_only": c.ReadOnly}
}

func (c *Calendar) Snapshot() any {
	return map[string]any{
		"id":           c.PublicID,
		"object":       string(types.ObjectTypeCalendar),
		"namespace_id": c.NamespaceID,
		"name":         c.Name,
		"description":  c.Description,
		"read_only":    c.ReadOnly,
	}
}

// Event is a calendar event.
type Event struct {
	bun.BaseModel `bun:"table:events"`
	Record

	CalendarID  *uuid.UUID `bun:"calendar_id,type:uuid"`
	Title       string     `bun:"title"`
	Description string     `bun:"description"`
	Location    string     `bun:"location"`
	Busy        bool       `bun:"busy,notnull"`
	ReadOnly    bool       `bun:"read_only,notnull"`
	StartAt     *time.Time `bun:"start_at"`
	EndAt       *time.Time `bun:"end_at"`
}

func (*Event) TableName() string { return "events" }

func (e *Event) RevisionKey() types.RevisionKey { return e.key(types.ObjectTypeEvent) }

func (e *Event) VersionedFields() map[string]any {
	return map[string]any{
		"calendar_id": e.CalendarID,
		"title":       e.Title,
		"description": e.Description,
		"location":    e.Location,
		"busy":        e.Busy,
		"read_only":   e.ReadOnly,
		"start_at":    e.StartAt,
		"end_at":      e.EndAt,
	}
}

func (e *Event) Snapshot() any {
	snapshot := map[string]any{
		"id":           e.PublicID,
		"object":       string(types.ObjectTypeEvent),
		"namespace_id": e.NamespaceID,
		"title":        e.Title,
		"description":  e.Description,
		"location":     e.Location,
		"busy":         e.Busy,
		"read_only":    e.ReadOnly,
	}
	if e.StartAt != nil && e.EndAt != nil {
		snapshot["when"] = map[string]any{
			"start_time": e.StartAt.Unix(),
			"end_time":   e.EndAt.Unix(),
		}
	}
	return snapshot
}

// File is an attachment or upload.
type File struct {
	bun.BaseModel `bun:"table:files"`
	Record

	MessageID   *uuid.UUID `bun:"message_id,type:uuid"`
	Filename    string     `bun:"filename"`
	ContentType string     `bun:"content_type"`
	Size        int64      `bun:"size,notnull"`
}

func (*File) TableName() string { return "files" }

func (f *File) RevisionKey() types.RevisionKey { return f.key(types.ObjectTypeFile) }

func (f *File) VersionedFields() map[string]any {
	return map[string]any{
		"filename":     f.Filename,
		"content_type": f.ContentType,
		"size":         f.Size,
	}
}

func (f *File) Snapshot() any {
	return map[string]any{
		"id":           f.PublicID,
		"object":       string(types.ObjectTypeFile),
		"namespace_id": f.NamespaceID,
		"filename":     f.Filename,
		"content_type": f.ContentType,
		"size":         f.Size,
	}
}

// NewModel returns an empty model for the object type.
func NewModel(objectType types.ObjectType) (Model, bool) {
	switch objectType {
	case types.ObjectTypeThread:
		return &Thread{}, true
	case types.ObjectTypeMessage:
		return &Message{}, true
	case types.ObjectTypeTag:
		return &Tag{}, true
	case types.ObjectTypeContact:
		return &Contact{}, true
	case types.ObjectTypeCalendar:
		return &Calendar{}, true
	case types.ObjectTypeEvent:
		return &Event{}, true
	case types.ObjectTypeFile:
		return &File{}, true
	default:
		return nil, false
	}
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
