// Package identity resolves opaque remote user ids to display identities
// through a TTL cache with per-ID failure backoff. Resolution never returns an
// error: failures degrade to stale or absent data so callers are never stalled
// by the provider.
package identity

import (
	"context"
	"log"
	"time"

	"github.com/bizpulse/socialsync/internal/db"
	"github.com/bizpulse/socialsync/internal/db/models"
	"github.com/bizpulse/socialsync/internal/graph"
	"gorm.io/gorm"
)

const (
	// cacheTTL is the freshness window after which an entry becomes eligible
	// for re-fetch.
	cacheTTL = 7 * 24 * time.Hour

	// failureThreshold is the permanent per-ID circuit breaker. IDs outside the
	// app's data-access grant will never resolve; retrying them forever would
	// be a retry storm against the provider.
	failureThreshold = 5

	// resolveTimeout caps a single profile fetch so the caller falls back to
	// stale data instead of stalling.
	resolveTimeout = 2 * time.Second
)

// Identity is a resolved participant display identity.
type Identity struct {
	RemoteUserID string
	Username     string
	DisplayName  string
	AvatarURL    string
	Stale        bool // true when served from an entry past its TTL
}

// Cache resolves remote user ids against the store-backed identity cache.
type Cache struct {
	db    *gorm.DB
	graph *graph.Client
}

// NewCache creates an identity cache backed by the given store and Graph client.
func NewCache(database *gorm.DB, graphClient *graph.Client) *Cache {
	return &Cache{db: database, graph: graphClient}
}

// Resolve returns the display identity for a remote user id, or nil when
// nothing is known. The self account's remote id must never be passed here;
// callers exclude it upstream. Every call writes to the cache at most once:
// either a success upsert or a failure upsert, never both.
func (c *Cache) Resolve(ctx context.Context, conn *models.Connection, remoteUserID string) *Identity {
	var entry models.IdentityCacheEntry
	found := c.db.Where("account_id = ? AND remote_user_id = ?", conn.AccountID, remoteUserID).
		First(&entry).Error == nil

	if found {
		if entry.Username != "" && time.Since(entry.FetchedAt) <= cacheTTL {
			return identityFromEntry(&entry, false)
		}
		if entry.FailureCount >= failureThreshold {
			// Permanent breaker: serve last-known data, no network call.
			return identityFromEntry(&entry, true)
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	profile, err := c.graph.GetUserProfile(fetchCtx, conn.AccessToken, remoteUserID)
	if err != nil {
		c.recordFailure(conn.AccountID, remoteUserID, &entry, found)
		if found {
			return identityFromEntry(&entry, true)
		}
		return nil
	}

	fresh := &models.IdentityCacheEntry{
		AccountID:    conn.AccountID,
		RemoteUserID: remoteUserID,
		Username:     profile.Username,
		DisplayName:  profile.Name,
		AvatarURL:    profile.ProfilePic,
		FetchedAt:    time.Now(),
		FailureCount: 0,
	}
	if err := db.UpsertIdentity(c.db, fresh); err != nil {
		log.Printf("⚠️ Failed to cache identity for %s: %v", remoteUserID, err)
	}
	return identityFromEntry(fresh, false)
}

func (c *Cache) recordFailure(accountID, remoteUserID string, entry *models.IdentityCacheEntry, found bool) {
	failed := &models.IdentityCacheEntry{
		AccountID:     accountID,
		RemoteUserID:  remoteUserID,
		FailureCount:  1,
		LastFailureAt: time.Now(),
	}
	if found {
		failed.Username = entry.Username
		failed.DisplayName = entry.DisplayName
		failed.AvatarURL = entry.AvatarURL
		failed.FetchedAt = entry.FetchedAt
		failed.FailureCount = entry.FailureCount + 1
	}
	if err := db.UpsertIdentity(c.db, failed); err != nil {
		log.Printf("⚠️ Failed to record identity failure for %s: %v", remoteUserID, err)
	}
}

// RefreshAll re-resolves every known participant id for an account, excluding
// the self id, and backfills cached display names onto conversations and
// comments. Returns the number of ids attempted.
func (c *Cache) RefreshAll(ctx context.Context, conn *models.Connection) int {
	ids := c.knownParticipantIDs(conn)

	resolved := 0
	for _, id := range ids {
		identity := c.Resolve(ctx, conn, id)
		if identity == nil || identity.Username == "" {
			continue
		}
		resolved++

		c.db.Model(&models.Conversation{}).
			Where("account_id = ? AND participant_id = ?", conn.AccountID, id).
			Update("participant_name", identity.Username)
		c.db.Model(&models.Comment{}).
			Where("account_id = ? AND author_id = ? AND author_username = ''", conn.AccountID, id).
			Update("author_username", identity.Username)
	}

	log.Printf("🔄 Identity refresh for account %s: %d/%d resolved", conn.AccountID, resolved, len(ids))
	return len(ids)
}

// knownParticipantIDs collects distinct remote user ids seen in conversations
// and comments, excluding the connection's own remote account id.
func (c *Cache) knownParticipantIDs(conn *models.Connection) []string {
	seen := make(map[string]struct{})

	var convIDs []string
	c.db.Model(&models.Conversation{}).
		Where("account_id = ? AND participant_id <> ''", conn.AccountID).
		Distinct().Pluck("participant_id", &convIDs)
	var authorIDs []string
	c.db.Model(&models.Comment{}).
		Where("account_id = ? AND author_id <> ''", conn.AccountID).
		Distinct().Pluck("author_id", &authorIDs)

	var ids []string
	for _, id := range append(convIDs, authorIDs...) {
		if id == conn.RemoteAccountID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func identityFromEntry(entry *models.IdentityCacheEntry, stale bool) *Identity {
	return &Identity{
		RemoteUserID: entry.RemoteUserID,
		Username:     entry.Username,
		DisplayName:  entry.DisplayName,
		AvatarURL:    entry.AvatarURL,
		Stale:        stale,
	}
}
