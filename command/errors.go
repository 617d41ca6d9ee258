package command

import (
	"errors"

	"github.com/goliatone/go-mailsync/pkg/types"
)

var (
	// ErrNamespaceRequired indicates the namespace identifier was omitted.
	ErrNamespaceRequired = types.ErrNamespaceRequired
	// ErrTagsRequired occurs when a tag mutation names no tags.
	ErrTagsRequired = errors.New("go-mailsync: add or remove tags required")
	// ErrTagConflict occurs when the same tag is both added and removed.
	ErrTagConflict = errors.New("go-mailsync: tag cannot be added and removed at once")
	// ErrObjectRequired indicates an insert without an object payload.
	ErrObjectRequired = errors.New("go-mailsync: object required")
	// ErrObjectNamespaceMismatch occurs when the object belongs to another namespace.
	ErrObjectNamespaceMismatch = errors.New("go-mailsync: object namespace mismatch")
	// ErrMutationRequired indicates an update without a mutation func.
	ErrMutationRequired = errors.New("go-mailsync: update mutation required")
	// ErrActionNameRequired occurs when an action command omits the action.
	ErrActionNameRequired = errors.New("go-mailsync: action name required")
	// ErrActionIDRequired occurs when a requeue omits the action id.
	ErrActionIDRequired = errors.New("go-mailsync: action id required")
	// ErrRetentionInvalid indicates a negative purge window.
	ErrRetentionInvalid = errors.New("go-mailsync: days ago must not be negative")
	// ErrEmailRequired occurs when account provisioning omits the address.
	ErrEmailRequired = errors.New("go-mailsync: email address required")
	// ErrTransitionRequired occurs when a sync-state command names no transition.
	ErrTransitionRequired = errors.New("go-mailsync: sync transition required")
	// ErrUnknownTransition occurs for transitions outside SyncTransition.
	ErrUnknownTransition = errors.New("go-mailsync: unknown sync transition")
)
