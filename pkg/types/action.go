package types

// ActionStatus is the lifecycle state of an action log entry.
type ActionStatus string

const (
	ActionStatusPending    ActionStatus = "pending"
	ActionStatusSuccessful ActionStatus = "successful"
	ActionStatusFailed     ActionStatus = "failed"
)

// DefaultActionMaxRetries is the number of attempts before an action fails.
const DefaultActionMaxRetries = 20

// SyncState is the account level sync state. The empty value marks an account
// that was (re)authenticated and has not started syncing yet.
type SyncState string

const (
	SyncStateNew       SyncState = ""
	SyncStateRunning   SyncState = "running"
	SyncStateStopped   SyncState = "stopped"
	SyncStateKilled    SyncState = "killed"
	SyncStateInvalid   SyncState = "invalid"
	SyncStateConnError SyncState = "connerror"
)

// Valid reports whether the state is part of the enumeration.
func (s SyncState) Valid() bool {
	switch s {
	case SyncStateNew, SyncStateRunning, SyncStateStopped, SyncStateKilled,
		SyncStateInvalid, SyncStateConnError:
		return true
	default:
		return false
	}
}

