package account

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-mailsync/pkg/types"
)

// ErrAccountRequired is returned when a transition receives a nil account.
var ErrAccountRequired = errors.New("go-mailsync: account required")

// DefaultInvalidReason is recorded when credentials stop working.
const DefaultInvalidReason = "invalid credentials"

// Lifecycle applies sync-state transitions to accounts in memory. Callers
// persist the result with Repository.SaveState.
type Lifecycle struct {
	policy types.TransitionPolicy[types.SyncState]
	clock  types.Clock
}

// NewLifecycle builds a Lifecycle. Nil arguments fall back to the default
// sync-state policy and the system clock.
func NewLifecycle(policy types.TransitionPolicy[types.SyncState], clock types.Clock) *Lifecycle {
	if policy == nil {
		policy = types.DefaultSyncStatePolicy()
	}
	if clock == nil {
		clock = types.SystemClock{}
	}
	return &Lifecycle{policy: policy, clock: clock}
}

// SyncStarted records that a sync process picked the account up. The
// original start time is set only for accounts that never synced.
func (l *Lifecycle) SyncStarted(acct *Account, host string) error {
	if err := l.move(acct, types.SyncStateRunning); err != nil {
		return err
	}
	now := l.clock.Now()
	update := SyncStatusUpdate{
		SyncStartTime:    &now,
		SyncError:        strPtr(""),
		ClearSyncEndTime: true,
	}
	if acct.SyncStatus.OriginalStartTime == nil && acct.SyncStatus.SyncEndTime == nil {
		update.OriginalStartTime = &now
	}
	if host != "" {
		update.SyncHost = &host
		acct.SyncHost = host
	}
	acct.SyncStatus = acct.SyncStatus.Merge(update)
	acct.SyncState = types.SyncStateRunning
	return nil
}

// SyncStopped records that the sync process let go of the account. Only a
// running account changes state; the host is always cleared.
func (l *Lifecycle) SyncStopped(acct *Account) error {
	if acct == nil {
		return ErrAccountRequired
	}
	if acct.SyncState == types.SyncStateRunning {
		if err := l.move(acct, types.SyncStateStopped); err != nil {
			return err
		}
		acct.SyncState = types.SyncStateStopped
	}
	now := l.clock.Now()
	acct.SyncHost = ""
	acct.SyncStatus = acct.SyncStatus.Merge(SyncStatusUpdate{
		SyncEndTime: &now,
		SyncHost:    strPtr(""),
	})
	return nil
}

// MarkInvalid disables sync and moves the account to invalid. Actions can no
// longer be scheduled for it.
func (l *Lifecycle) MarkInvalid(acct *Account, reason string) error {
	if reason == "" {
		reason = DefaultInvalidReason
	}
	if err := l.move(acct, types.SyncStateInvalid); err != nil {
		return err
	}
	l.disable(acct, reason)
	acct.SyncState = types.SyncStateInvalid
	return nil
}

// KillSync records an unexpected sync death. Sync stays enabled.
func (l *Lifecycle) KillSync(acct *Account, syncErr error) error {
	if err := l.move(acct, types.SyncStateKilled); err != nil {
		return err
	}
	now := l.clock.Now()
	message := ""
	if syncErr != nil {
		message = syncErr.Error()
	}
	acct.SyncStatus = acct.SyncStatus.Merge(SyncStatusUpdate{
		SyncEndTime: &now,
		SyncError:   &message,
	})
	acct.SyncState = types.SyncStateKilled
	return nil
}

// EnableSync flags the account for syncing, optionally pinning a host.
func (l *Lifecycle) EnableSync(acct *Account, host string) error {
	if acct == nil {
		return ErrAccountRequired
	}
	acct.SyncEnabled = true
	update := SyncStatusUpdate{DisabledReason: strPtr("")}
	if host != "" {
		acct.SyncHost = host
		update.SyncHost = &host
	}
	acct.SyncStatus = acct.SyncStatus.Merge(update)
	return nil
}

// DisableSync flags the account to stop syncing.
func (l *Lifecycle) DisableSync(acct *Account, reason string) error {
	if acct == nil {
		return ErrAccountRequired
	}
	l.disable(acct, reason)
	return nil
}

// Reauthenticated resets an account whose credentials were replaced. Invalid
// accounts return to the new state and sync is enabled again.
func (l *Lifecycle) Reauthenticated(acct *Account) error {
	if acct == nil {
		return ErrAccountRequired
	}
	if acct.SyncState == types.SyncStateInvalid {
		if err := l.move(acct, types.SyncStateNew); err != nil {
			return err
		}
		acct.SyncState = types.SyncStateNew
	}
	return l.EnableSync(acct, "")
}

func (l *Lifecycle) disable(acct *Account, reason string) {
	acct.SyncEnabled = false
	if reason != "" {
		acct.SyncStatus = acct.SyncStatus.Merge(SyncStatusUpdate{DisabledReason: &reason})
	}
}

func (l *Lifecycle) move(acct *Account, target types.SyncState) error {
	if acct == nil {
		return ErrAccountRequired
	}
	if acct.SyncState == target {
		return nil
	}
	if err := l.policy.Validate(acct.SyncState, target); err != nil {
		return fmt.Errorf("%w: %q -> %q", err, stateLabel(acct.SyncState), stateLabel(target))
	}
	return nil
}

func stateLabel(state types.SyncState) string {
	if state == types.SyncStateNew {
		return "new"
	}
	return string(state)
}
