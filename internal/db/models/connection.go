package models

import "time"

// ConnectionStatus tracks whether a stored credential is currently usable.
type ConnectionStatus string

const (
	StatusConnected          ConnectionStatus = "connected"
	StatusExpired            ConnectionStatus = "expired"
	StatusMissingPermissions ConnectionStatus = "missing_permissions"
	StatusNeedsReauth        ConnectionStatus = "needs_reauth"
	StatusNotConnected       ConnectionStatus = "not_connected"
)

// Connection stores the OAuth credential and status for one (owning account, provider) pair.
// A connection in StatusConnected must hold a non-expired token; only the token
// manager moves a connection out of StatusConnected.
type Connection struct {
	ID              string `gorm:"primaryKey"` // UUID
	AccountID       string `gorm:"uniqueIndex:idx_account_provider"`
	Provider        string `gorm:"uniqueIndex:idx_account_provider"` // e.g. "instagram"
	RemoteAccountID string `gorm:"index"`                            // IG business account id
	Username        string
	AccessToken     string
	RefreshToken    string
	ExpiresAt       time.Time
	Scopes          string           // JSON array of granted OAuth scopes
	Status          ConnectionStatus `gorm:"default:'not_connected'"`
	LastUsedAt      time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
