package account

import (
	"time"

	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account models a row in accounts.
type Account struct {
	bun.BaseModel `bun:"table:accounts"`

	ID             uuid.UUID       `bun:"id,pk,type:uuid" json:"id"`
	PublicID       string          `bun:"public_id,notnull" json:"public_id"`
	EmailAddress   string          `bun:"email_address,notnull" json:"email_address"`
	Provider       string          `bun:"provider,notnull" json:"provider"`
	SyncState      types.SyncState `bun:"sync_state,notnull" json:"sync_state"`
	SyncStatus     SyncStatus      `bun:"sync_status,type:jsonb,notnull" json:"sync_status"`
	SyncHost       string          `bun:"sync_host,nullzero" json:"sync_host,omitempty"`
	SyncEnabled    bool            `bun:"sync_enabled,notnull" json:"sync_enabled"`
	Credentials    string          `bun:"credentials,nullzero" json:"-"`
	CredentialsKey string          `bun:"credentials_key,nullzero" json:"-"`
	IMAPEndpoint   string          `bun:"imap_endpoint,nullzero" json:"imap_endpoint,omitempty"`
	SMTPEndpoint   string          `bun:"smtp_endpoint,nullzero" json:"smtp_endpoint,omitempty"`
	CreatedAt      time.Time       `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time       `bun:"updated_at,notnull" json:"updated_at"`
	DeletedAt      *time.Time      `bun:"deleted_at,nullzero" json:"deleted_at,omitempty"`
}

// Namespace models a row in namespaces. Every account owns exactly one.
type Namespace struct {
	bun.BaseModel `bun:"table:namespaces"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	PublicID  string    `bun:"public_id,notnull" json:"public_id"`
	AccountID uuid.UUID `bun:"account_id,type:uuid,notnull" json:"account_id"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// SyncStatus is the versioned sync bookkeeping stored alongside the account.
type SyncStatus struct {
	Version           int        `json:"version"`
	OriginalStartTime *time.Time `json:"original_start_time,omitempty"`
	SyncStartTime     *time.Time `json:"sync_start_time,omitempty"`
	SyncEndTime       *time.Time `json:"sync_end_time,omitempty"`
	SyncError         string     `json:"sync_error,omitempty"`
	SyncHost          string     `json:"sync_host,omitempty"`
	DisabledReason    string     `json:"sync_disabled_reason,omitempty"`
}

// SyncStatusUpdate carries a partial SyncStatus change. Nil fields are left
// untouched; the Clear* flags reset a field.
type SyncStatusUpdate struct {
	OriginalStartTime *time.Time
	SyncStartTime     *time.Time
	SyncEndTime       *time.Time
	SyncError         *string
	SyncHost          *string
	DisabledReason    *string
	ClearSyncEndTime  bool
}

// Merge applies update and bumps the version when something changed.
func (s SyncStatus) Merge(update SyncStatusUpdate) SyncStatus {
	out := s
	changed := false
	if update.OriginalStartTime != nil {
		out.OriginalStartTime = timePtr(*update.OriginalStartTime)
		changed = true
	}
	if update.SyncStartTime != nil {
		out.SyncStartTime = timePtr(*update.SyncStartTime)
		changed = true
	}
	if update.ClearSyncEndTime {
		out.SyncEndTime = nil
		changed = true
	} else if update.SyncEndTime != nil {
		out.SyncEndTime = timePtr(*update.SyncEndTime)
		changed = true
	}
	if update.SyncError != nil {
		out.SyncError = *update.SyncError
		changed = true
	}
	if update.SyncHost != nil {
		out.SyncHost = *update.SyncHost
		changed = true
	}
	if update.DisabledReason != nil {
		out.DisabledReason = *update.DisabledReason
		changed = true
	}
	if changed {
		out.Version = s.Version + 1
	}
	return out
}

// StatusView is the operator facing sync summary for an account.
type StatusView struct {
	ID        uuid.UUID       `json:"id"`
	Email     string          `json:"email"`
	Provider  string          `json:"provider"`
	IsEnabled bool            `json:"is_enabled"`
	State     types.SyncState `json:"state"`
	SyncHost  string          `json:"sync_host,omitempty"`
	Status    SyncStatus      `json:"sync_status"`
}

// Status returns the sync summary of the account.
func (a *Account) Status() StatusView {
	if a == nil {
		return StatusView{}
	}
	return StatusView{
		ID:        a.ID,
		Email:     a.EmailAddress,
		Provider:  a.Provider,
		IsEnabled: a.SyncEnabled,
		State:     a.SyncState,
		SyncHost:  a.SyncHost,
		Status:    a.SyncStatus,
	}
}

func timePtr(t time.Time) *time.Time {
	t = t.UTC()
	return &t
}

func strPtr(s string) *string {
	return &s
}
