package db

import (
	"time"

	"github.com/bizpulse/socialsync/internal/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// All write paths below use the store's native upsert-on-conflict primitives.
// Remote ids are the idempotency keys: replaying the same webhook delivery or
// re-syncing an overlapping page must never create duplicate rows.

// UpsertConversation creates or refreshes a conversation row keyed by
// (account, provider, remote conversation id) and returns the stored row.
func UpsertConversation(db *gorm.DB, conv *models.Conversation) (*models.Conversation, error) {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}, {Name: "provider"}, {Name: "remote_conversation_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"participant_id":  conv.ParticipantID,
			"last_message_at": conv.LastMessageAt,
			"updated_at":      time.Now(),
		}),
	}).Create(conv).Error
	if err != nil {
		return nil, err
	}

	// Re-read: on conflict the generated UUID above was discarded.
	var stored models.Conversation
	err = db.Where("account_id = ? AND provider = ? AND remote_conversation_id = ?",
		conv.AccountID, conv.Provider, conv.RemoteConversationID).First(&stored).Error
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// InsertMessageIfAbsent inserts a message keyed by (conversation, remote message id).
// Returns true only when a new row was actually inserted, so callers can make
// unread-counter increments conditional on first delivery.
func InsertMessageIfAbsent(db *gorm.DB, msg *models.Message) (bool, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "remote_message_id"}},
		DoNothing: true,
	}).Create(msg)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// IncrementUnread atomically bumps a conversation's unread counter.
func IncrementUnread(db *gorm.DB, conversationID string) error {
	return db.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		UpdateColumn("unread_count", gorm.Expr("unread_count + ?", 1)).Error
}

// ResetUnread clears the unread counter when a conversation is opened.
func ResetUnread(db *gorm.DB, conversationID string) error {
	return db.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		UpdateColumn("unread_count", 0).Error
}

// UpsertComment creates or refreshes a comment row keyed by
// (account, remote media id, remote comment id). Reply bookkeeping fields are
// deliberately not overwritten by sync: a reply posted locally survives
// re-ingesting the same comment from a later page or webhook.
func UpsertComment(db *gorm.DB, comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.New().String()
	}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}, {Name: "remote_media_id"}, {Name: "remote_comment_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"text":            comment.Text,
			"author_id":       comment.AuthorID,
			"author_username": comment.AuthorUsername,
			"updated_at":      time.Now(),
		}),
	}).Create(comment).Error
}

// UpsertIdentity writes a cache entry with last-write-wins semantics. The cache
// is advisory, not authoritative, so a stale overwrite under a race is tolerated.
func UpsertIdentity(db *gorm.DB, entry *models.IdentityCacheEntry) error {
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}, {Name: "remote_user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"username":        entry.Username,
			"display_name":    entry.DisplayName,
			"avatar_url":      entry.AvatarURL,
			"fetched_at":      entry.FetchedAt,
			"failure_count":   entry.FailureCount,
			"last_failure_at": entry.LastFailureAt,
			"updated_at":      time.Now(),
		}),
	}).Create(entry).Error
}

// UpsertSyncState writes the singleton sync-health record for a scope.
func UpsertSyncState(db *gorm.DB, state *models.SyncState) error {
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}, {Name: "provider"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_sync_at":   state.LastSyncAt,
			"last_error":     state.LastError,
			"granted_scopes": state.GrantedScopes,
			"missing_scopes": state.MissingScopes,
			"cursor":         state.Cursor,
			"updated_at":     time.Now(),
		}),
	}).Create(state).Error
}
