// Package token handles the credential lifecycle: expiry checks, serialized
// refresh against the provider's token endpoint, and status transitions on the
// stored connection. The manager is the only writer of status transitions away
// from "connected".
package token

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/bizpulse/socialsync/internal/db/models"
	"github.com/bizpulse/socialsync/internal/graph"
	"gorm.io/gorm"
)

// Provider is the single provider this deployment integrates with.
const Provider = "instagram"

// refreshLeeway is how close to expiry a token is still handed out; anything
// closer triggers a refresh first.
const refreshLeeway = 5 * time.Minute

// Manager validates and refreshes stored connections.
type Manager struct {
	db    *gorm.DB
	graph *graph.Client

	// One mutex per connection id. Concurrent refreshes against the same
	// connection would race on a single-use refresh credential; losers of the
	// lock re-read the now-fresh token instead of re-refreshing.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a token manager backed by the given store and Graph client.
func NewManager(db *gorm.DB, graphClient *graph.Client) *Manager {
	return &Manager{
		db:    db,
		graph: graphClient,
		locks: make(map[string]*sync.Mutex),
	}
}

// Connection loads the stored connection for an owning account, if any.
func (m *Manager) Connection(accountID string) (*models.Connection, error) {
	var conn models.Connection
	err := m.db.Where("account_id = ? AND provider = ?", accountID, Provider).First(&conn).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// ValidToken returns a connection holding a usable access token for the
// requested operation. requiredScope may be empty for read-only basic access.
// The scope check happens before any network call.
func (m *Manager) ValidToken(ctx context.Context, accountID, requiredScope string) (*models.Connection, error) {
	conn, err := m.Connection(accountID)
	if err != nil {
		return nil, &AuthError{Code: CodeNoConnection, Provider: Provider}
	}

	if requiredScope != "" && !HasScope(conn, requiredScope) {
		return nil, &AuthError{Code: CodeMissingScope, Provider: Provider, MissingScope: requiredScope}
	}

	if conn.ExpiresAt.After(time.Now().Add(refreshLeeway)) {
		return conn, nil
	}

	// Expired or expiring soon.
	return m.refresh(ctx, conn)
}

// refresh serializes per-connection refresh attempts. The winner performs the
// provider call and persists the result; losers re-read the fresh row.
func (m *Manager) refresh(ctx context.Context, conn *models.Connection) (*models.Connection, error) {
	lock := m.connLock(conn.ID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: a concurrent request may have refreshed already.
	var current models.Connection
	if err := m.db.First(&current, "id = ?", conn.ID).Error; err != nil {
		return nil, &AuthError{Code: CodeNoConnection, Provider: Provider}
	}
	if current.ExpiresAt.After(time.Now().Add(refreshLeeway)) {
		return &current, nil
	}

	refreshCredential := current.RefreshToken
	if refreshCredential == "" {
		// Long-lived tokens refresh with themselves.
		refreshCredential = current.AccessToken
	}
	if refreshCredential == "" {
		m.MarkNeedsReauth(current.ID)
		return nil, &AuthError{Code: CodeExpired, Provider: Provider}
	}

	refreshed, err := m.graph.RefreshAccessToken(ctx, refreshCredential)
	if err != nil {
		log.Printf("❌ Token refresh failed for connection %s: %v", current.ID, err)
		m.MarkNeedsReauth(current.ID)
		return nil, &AuthError{Code: CodeExpired, Provider: Provider}
	}

	updates := map[string]interface{}{
		"access_token": refreshed.AccessToken,
		"expires_at":   time.Now().Add(time.Duration(refreshed.ExpiresIn) * time.Second),
		"status":       models.StatusConnected,
		"last_used_at": time.Now(),
	}
	if err := m.db.Model(&models.Connection{}).Where("id = ?", current.ID).Updates(updates).Error; err != nil {
		log.Printf("⚠️ Failed to persist refreshed token for connection %s: %v", current.ID, err)
		return nil, &AuthError{Code: CodeExpired, Provider: Provider}
	}

	var fresh models.Connection
	if err := m.db.First(&fresh, "id = ?", current.ID).Error; err != nil {
		return nil, &AuthError{Code: CodeNoConnection, Provider: Provider}
	}
	log.Printf("✅ Refreshed token for connection %s (expires: %s)", fresh.ID, fresh.ExpiresAt.Format(time.RFC3339))
	return &fresh, nil
}

// MarkNeedsReauth records that the stored token is unusable and the user must
// go through consent again.
func (m *Manager) MarkNeedsReauth(connID string) {
	if err := m.db.Model(&models.Connection{}).Where("id = ?", connID).
		Update("status", models.StatusNeedsReauth).Error; err != nil {
		log.Printf("⚠️ Failed to mark connection %s as needs_reauth: %v", connID, err)
	}
}

// MarkMissingPermissions records that the provider rejected an operation on a
// permission the consent no longer grants.
func (m *Manager) MarkMissingPermissions(connID string) {
	if err := m.db.Model(&models.Connection{}).Where("id = ?", connID).
		Update("status", models.StatusMissingPermissions).Error; err != nil {
		log.Printf("⚠️ Failed to mark connection %s as missing_permissions: %v", connID, err)
	}
}

// Disconnect destroys a stored connection.
func (m *Manager) Disconnect(accountID string) error {
	return m.db.Where("account_id = ? AND provider = ?", accountID, Provider).
		Delete(&models.Connection{}).Error
}

func (m *Manager) connLock(connID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[connID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[connID] = lock
	}
	return lock
}

// Scopes decodes the JSON-encoded granted scope list of a connection.
func Scopes(conn *models.Connection) []string {
	if conn == nil || conn.Scopes == "" {
		return nil
	}
	var scopes []string
	if err := json.Unmarshal([]byte(conn.Scopes), &scopes); err != nil {
		return nil
	}
	return scopes
}

// HasScope reports whether the connection's consent grants the named scope.
func HasScope(conn *models.Connection, scope string) bool {
	for _, s := range Scopes(conn) {
		if s == scope {
			return true
		}
	}
	return false
}

// MissingScopes returns which of the required scopes the consent does not grant.
func MissingScopes(conn *models.Connection, required []string) []string {
	granted := make(map[string]struct{})
	for _, s := range Scopes(conn) {
		granted[s] = struct{}{}
	}
	var missing []string
	for _, s := range required {
		if _, ok := granted[s]; !ok {
			missing = append(missing, s)
		}
	}
	return missing
}
