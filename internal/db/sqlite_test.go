package db

import (
	"testing"
	"time"

	"github.com/bizpulse/socialsync/internal/db/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Connection{},
		&models.Conversation{},
		&models.Message{},
		&models.Comment{},
		&models.IdentityCacheEntry{},
		&models.SyncState{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestInsertMessageIfAbsent_Idempotent(t *testing.T) {
	db := newTestDB(t)

	conv, err := UpsertConversation(db, &models.Conversation{
		AccountID:            "acct-1",
		Provider:             "instagram",
		RemoteConversationID: "t_100",
		ParticipantID:        "user_9",
		LastMessageAt:        time.Now(),
	})
	if err != nil {
		t.Fatalf("upsert conversation: %v", err)
	}

	msg := &models.Message{
		ConversationID:  conv.ID,
		RemoteMessageID: "mid.1",
		Direction:       models.DirectionInbound,
		SenderID:        "user_9",
		Text:            "hello",
		SentAt:          time.Now(),
	}
	inserted, err := InsertMessageIfAbsent(db, msg)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if !inserted {
		t.Fatal("expected first insert to report inserted=true")
	}

	dup := &models.Message{
		ConversationID:  conv.ID,
		RemoteMessageID: "mid.1",
		Direction:       models.DirectionInbound,
		SenderID:        "user_9",
		Text:            "hello",
		SentAt:          time.Now(),
	}
	inserted, err = InsertMessageIfAbsent(db, dup)
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if inserted {
		t.Fatal("expected duplicate insert to report inserted=false")
	}

	var count int64
	db.Model(&models.Message{}).Where("remote_message_id = ?", "mid.1").Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly 1 message row, got %d", count)
	}
}

func TestUpsertConversation_PreservesUnreadCount(t *testing.T) {
	db := newTestDB(t)

	conv, err := UpsertConversation(db, &models.Conversation{
		AccountID:            "acct-1",
		Provider:             "instagram",
		RemoteConversationID: "t_200",
		ParticipantID:        "user_1",
		LastMessageAt:        time.Now(),
	})
	if err != nil {
		t.Fatalf("upsert conversation: %v", err)
	}

	if err := IncrementUnread(db, conv.ID); err != nil {
		t.Fatalf("increment unread: %v", err)
	}

	again, err := UpsertConversation(db, &models.Conversation{
		AccountID:            "acct-1",
		Provider:             "instagram",
		RemoteConversationID: "t_200",
		ParticipantID:        "user_1",
		LastMessageAt:        time.Now(),
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if again.ID != conv.ID {
		t.Fatalf("expected same conversation row, got %s vs %s", again.ID, conv.ID)
	}
	if again.UnreadCount != 1 {
		t.Fatalf("expected unread count preserved at 1, got %d", again.UnreadCount)
	}

	if err := ResetUnread(db, conv.ID); err != nil {
		t.Fatalf("reset unread: %v", err)
	}
	var reloaded models.Conversation
	if err := db.First(&reloaded, "id = ?", conv.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.UnreadCount != 0 {
		t.Fatalf("expected unread count reset to 0, got %d", reloaded.UnreadCount)
	}
}

func TestUpsertComment_DoesNotClobberReplyState(t *testing.T) {
	db := newTestDB(t)

	comment := &models.Comment{
		AccountID:       "acct-1",
		RemoteMediaID:   "media_1",
		RemoteCommentID: "c_1",
		Text:            "nice shot",
		AuthorID:        "user_2",
		CommentedAt:     time.Now(),
	}
	if err := UpsertComment(db, comment); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	if err := db.Model(&models.Comment{}).
		Where("account_id = ? AND remote_comment_id = ?", "acct-1", "c_1").
		Updates(map[string]interface{}{
			"replied":      true,
			"reply_text":   "thanks!",
			"reply_status": models.ReplyStatusSent,
		}).Error; err != nil {
		t.Fatalf("mark replied: %v", err)
	}

	// Re-sync delivers the same comment again.
	if err := UpsertComment(db, &models.Comment{
		AccountID:       "acct-1",
		RemoteMediaID:   "media_1",
		RemoteCommentID: "c_1",
		Text:            "nice shot",
		AuthorID:        "user_2",
		CommentedAt:     time.Now(),
	}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var stored models.Comment
	if err := db.First(&stored, "account_id = ? AND remote_comment_id = ?", "acct-1", "c_1").Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !stored.Replied || stored.ReplyText != "thanks!" || stored.ReplyStatus != models.ReplyStatusSent {
		t.Fatalf("reply state clobbered by re-sync: %+v", stored)
	}

	var count int64
	db.Model(&models.Comment{}).Where("remote_comment_id = ?", "c_1").Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly 1 comment row, got %d", count)
	}
}
