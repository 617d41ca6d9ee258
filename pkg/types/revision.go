package types

import "github.com/google/uuid"

// RevisionKey identifies the object a log entry describes.
type RevisionKey struct {
	ObjectType  ObjectType
	RecordID    uuid.UUID
	PublicID    string
	NamespaceID uuid.UUID
}

// Revisable is implemented by every object that produces log entries.
// VersionedFields returns the subset of state whose change warrants an update
// entry; Snapshot returns the client facing representation.
type Revisable interface {
	RevisionKey() RevisionKey
	VersionedFields() map[string]any
	Snapshot() any
}

// RevisionSuppressor lets an object opt out of the log for a single commit,
// e.g. messages written during initial backfill.
type RevisionSuppressor interface {
	SuppressRevision() bool
}

// VersionedChild marks objects whose change bumps the version of a parent
// thread.
type VersionedChild interface {
	VersionedParentID() (uuid.UUID, bool)
}

// Change is a pending mutation collected by a unit of work.
type Change struct {
	Object          any
	Command         Command
	VersionedChange bool
}

// Revisable returns the object as a Revisable, or false if it does not
// participate in the log or asked to be skipped.
func (c Change) Revisable() (Revisable, bool) {
	rev, ok := c.Object.(Revisable)
	if !ok {
		return nil, false
	}
	if s, ok := c.Object.(RevisionSuppressor); ok && s.SuppressRevision() {
		return nil, false
	}
	return rev, true
}
