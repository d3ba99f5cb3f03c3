package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bizpulse/socialsync/internal/config"
	"github.com/bizpulse/socialsync/internal/db/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestWebhookDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := database.AutoMigrate(
		&models.Connection{},
		&models.Conversation{},
		&models.Message{},
		&models.Comment{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

func seedWebhookConnection(t *testing.T, database *gorm.DB) {
	t.Helper()
	if err := database.Create(&models.Connection{
		ID:              "conn-1",
		AccountID:       "acct-1",
		Provider:        "instagram",
		RemoteAccountID: "17841400000000001",
		AccessToken:     "tok",
		ExpiresAt:       time.Now().Add(time.Hour),
		Status:          models.StatusConnected,
	}).Error; err != nil {
		t.Fatalf("seed connection: %v", err)
	}
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

const messagePayload = `{
	"object": "instagram",
	"entry": [{
		"id": "17841400000000001",
		"time": 1700000000000,
		"messaging": [{
			"sender": {"id": "user_42"},
			"recipient": {"id": "17841400000000001"},
			"timestamp": 1700000000000,
			"message": {"mid": "mid.abc", "text": "hi there"}
		}]
	}]
}`

func TestHandleVerify(t *testing.T) {
	database := newTestWebhookDB(t)
	h := NewHandler(database, &config.Config{WebhookVerifyToken: "verify-me"})

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantBody   string
	}{
		{"valid handshake", "hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", http.StatusOK, "12345"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345", http.StatusForbidden, ""},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=verify-me&hub.challenge=12345", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/webhooks/instagram?"+tt.query, nil)
			rec := httptest.NewRecorder()
			h.HandleVerify(rec, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Fatalf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestHandleEvent_BadSignatureRejectedWithoutMutation(t *testing.T) {
	database := newTestWebhookDB(t)
	seedWebhookConnection(t, database)
	h := NewHandler(database, &config.Config{WebhookSecret: "signing-secret"})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewBufferString(messagePayload))
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	rec := httptest.NewRecorder()
	h.HandleEvent(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var count int64
	database.Model(&models.Message{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no store mutation, found %d messages", count)
	}
}

func TestHandleEvent_DuplicateDeliveryIsIdempotent(t *testing.T) {
	database := newTestWebhookDB(t)
	seedWebhookConnection(t, database)
	h := NewHandler(database, &config.Config{WebhookSecret: "signing-secret"})

	deliver := func() int {
		body := []byte(messagePayload)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewBuffer(body))
		req.Header.Set("X-Hub-Signature-256", sign(body, "signing-secret"))
		rec := httptest.NewRecorder()
		h.HandleEvent(rec, req)
		return rec.Code
	}

	for i := 0; i < 3; i++ {
		if code := deliver(); code != http.StatusOK {
			t.Fatalf("delivery %d: status = %d, want 200", i, code)
		}
	}

	var msgCount int64
	database.Model(&models.Message{}).Where("remote_message_id = ?", "mid.abc").Count(&msgCount)
	if msgCount != 1 {
		t.Fatalf("expected exactly 1 message row after replays, got %d", msgCount)
	}

	var conv models.Conversation
	if err := database.First(&conv, "participant_id = ?", "user_42").Error; err != nil {
		t.Fatalf("conversation not created: %v", err)
	}
	if conv.UnreadCount != 1 {
		t.Fatalf("expected unread counter to reflect exactly one increment, got %d", conv.UnreadCount)
	}
}

func TestHandleEvent_EchoMessageIsOutboundAndNotCounted(t *testing.T) {
	database := newTestWebhookDB(t)
	seedWebhookConnection(t, database)
	h := NewHandler(database, &config.Config{})

	body := []byte(`{
		"object": "instagram",
		"entry": [{
			"id": "17841400000000001",
			"messaging": [{
				"sender": {"id": "17841400000000001"},
				"recipient": {"id": "user_42"},
				"timestamp": 1700000001000,
				"message": {"mid": "mid.echo", "text": "our reply", "is_echo": true}
			}]
		}]
	}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	h.HandleEvent(rec, req)

	var msg models.Message
	if err := database.First(&msg, "remote_message_id = ?", "mid.echo").Error; err != nil {
		t.Fatalf("echo message not stored: %v", err)
	}
	if msg.Direction != models.DirectionOutbound {
		t.Fatalf("expected outbound direction, got %q", msg.Direction)
	}

	var conv models.Conversation
	if err := database.First(&conv, "participant_id = ?", "user_42").Error; err != nil {
		t.Fatalf("conversation not created: %v", err)
	}
	if conv.UnreadCount != 0 {
		t.Fatalf("outbound echo must not bump unread, got %d", conv.UnreadCount)
	}
}

func TestHandleEvent_UnknownAccountDroppedWithAck(t *testing.T) {
	database := newTestWebhookDB(t)
	h := NewHandler(database, &config.Config{})

	body := []byte(`{
		"object": "instagram",
		"entry": [{
			"id": "999999",
			"messaging": [{
				"sender": {"id": "user_1"},
				"recipient": {"id": "999999"},
				"timestamp": 1700000000000,
				"message": {"mid": "mid.x", "text": "hello?"}
			}]
		}]
	}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	h.HandleEvent(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unknown accounts must still be acked, got %d", rec.Code)
	}
	var count int64
	database.Model(&models.Message{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no rows for unknown account, got %d", count)
	}
}

func TestHandleEvent_CommentChange(t *testing.T) {
	database := newTestWebhookDB(t)
	seedWebhookConnection(t, database)
	h := NewHandler(database, &config.Config{})

	body := []byte(`{
		"object": "instagram",
		"entry": [{
			"id": "17841400000000001",
			"changes": [{
				"field": "comments",
				"value": {
					"id": "c_77",
					"text": "love this",
					"from": {"id": "user_9", "username": "fan_nine"},
					"media": {"id": "media_5"},
					"timestamp": "2026-08-01T10:00:00+0000"
				}
			}]
		}]
	}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	h.HandleEvent(rec, req)

	var comment models.Comment
	if err := database.First(&comment, "remote_comment_id = ?", "c_77").Error; err != nil {
		t.Fatalf("comment not stored: %v", err)
	}
	if comment.AuthorUsername != "fan_nine" || comment.RemoteMediaID != "media_5" {
		t.Fatalf("comment fields wrong: %+v", comment)
	}
}

func TestNormalizeEntry_IgnoresUnknownChangeFields(t *testing.T) {
	events := normalizeEntry(Entry{
		ID: "x",
		Changes: []ChangeItem{
			{Field: "story_insights", Value: ChangeValue{ID: "s_1"}},
			{Field: "comments", Value: ChangeValue{ID: "c_1", Media: struct {
				ID string `json:"id"`
			}{ID: "m_1"}}},
		},
	})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Kind != KindComment || events[0].Comment.RemoteCommentID != "c_1" {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}
