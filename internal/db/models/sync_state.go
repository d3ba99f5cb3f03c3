package models

import "time"

// SyncState is the singleton sync-health record per (owning account, provider).
// Read by every route that reports sync health; written at the end of each full sync.
type SyncState struct {
	ID            uint   `gorm:"primaryKey"`
	AccountID     string `gorm:"uniqueIndex:idx_syncstate_scope"`
	Provider      string `gorm:"uniqueIndex:idx_syncstate_scope"`
	LastSyncAt    time.Time
	LastError     string `gorm:"type:text"`
	GrantedScopes string // JSON array
	MissingScopes string // JSON array
	Cursor        string // opaque pagination cursor from the last partial sync
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
