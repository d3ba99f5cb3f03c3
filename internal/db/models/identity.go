package models

import "time"

// IdentityCacheEntry caches the resolved display identity for one remote user id
// within one provider account scope. Entries are refreshed after the TTL elapses
// and are never deleted automatically. The failure counter implements a permanent
// per-ID circuit breaker: IDs the provider will never resolve stop generating
// network calls once the counter reaches the breaker threshold.
type IdentityCacheEntry struct {
	ID            uint   `gorm:"primaryKey"`
	AccountID     string `gorm:"uniqueIndex:idx_identity_scope"`
	RemoteUserID  string `gorm:"uniqueIndex:idx_identity_scope"`
	Username      string
	DisplayName   string
	AvatarURL     string
	FetchedAt     time.Time
	FailureCount  int `gorm:"default:0"`
	LastFailureAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
