package relay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bizpulse/socialsync/internal/auth/token"
	"github.com/bizpulse/socialsync/internal/db/models"
	"github.com/bizpulse/socialsync/internal/graph"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestRelayDB(t *testing.T) *gorm.DB {
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

func seedRelayFixtures(t *testing.T, database *gorm.DB, scopes string) {
	t.Helper()
	if err := database.Create(&models.Connection{
		ID:              "conn-1",
		AccountID:       "acct-1",
		Provider:        "instagram",
		RemoteAccountID: "ig_self",
		AccessToken:     "tok",
		ExpiresAt:       time.Now().Add(24 * time.Hour),
		Scopes:          scopes,
		Status:          models.StatusConnected,
	}).Error; err != nil {
		t.Fatalf("seed connection: %v", err)
	}
	if err := database.Create(&models.Comment{
		ID:              "local-comment-1",
		AccountID:       "acct-1",
		RemoteMediaID:   "media_5",
		RemoteCommentID: "c_77",
		Text:            "love this",
		AuthorID:        "user_9",
	}).Error; err != nil {
		t.Fatalf("seed comment: %v", err)
	}
	if err := database.Create(&models.Conversation{
		ID:                   "local-conv-1",
		AccountID:            "acct-1",
		Provider:             "instagram",
		RemoteConversationID: "user_42",
		ParticipantID:        "user_42",
	}).Error; err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
}

const writeScopes = `["instagram_business_basic","instagram_business_manage_messages","instagram_manage_comments"]`

// newWriteServer counts provider write calls and answers with the given status
// and body.
func newWriteServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	return server, &calls
}

func newRelay(database *gorm.DB, serverURL string) *Relay {
	graphClient := graph.NewClientWithBaseURL(serverURL)
	return NewRelay(database, graphClient, token.NewManager(database, graphClient))
}

func TestReplyToComment_MissingScopeFailsWithoutNetworkCall(t *testing.T) {
	database := newTestRelayDB(t)
	seedRelayFixtures(t, database, `["instagram_business_basic"]`)
	server, calls := newWriteServer(t, http.StatusOK, `{"id": "r1"}`)
	defer server.Close()

	_, err := newRelay(database, server.URL).ReplyToComment(context.Background(), "acct-1", "local-comment-1", "thanks!")

	var authErr *token.AuthError
	if !errors.As(err, &authErr) || authErr.Code != token.CodeMissingScope {
		t.Fatalf("expected missing_scope auth error, got %v", err)
	}
	if authErr.MissingScope != graph.ScopeManageComments {
		t.Fatalf("missing scope = %q, want %q", authErr.MissingScope, graph.ScopeManageComments)
	}
	if calls.Load() != 0 {
		t.Fatalf("scope precheck must fail before any network call, saw %d", calls.Load())
	}
}

func TestReplyToComment_SuccessMarksCommentReplied(t *testing.T) {
	database := newTestRelayDB(t)
	seedRelayFixtures(t, database, writeScopes)
	server, _ := newWriteServer(t, http.StatusOK, `{"id": "r1"}`)
	defer server.Close()

	comment, err := newRelay(database, server.URL).ReplyToComment(context.Background(), "acct-1", "local-comment-1", "thanks!")
	if err != nil {
		t.Fatalf("reply failed: %v", err)
	}
	if !comment.Replied || comment.ReplyStatus != models.ReplyStatusSent || comment.ReplyText != "thanks!" {
		t.Fatalf("comment not marked replied: %+v", comment)
	}
	if comment.RepliedAt.IsZero() {
		t.Fatal("replied_at not set")
	}
}

func TestReplyToComment_PermissionRejectionMarksConnection(t *testing.T) {
	database := newTestRelayDB(t)
	seedRelayFixtures(t, database, writeScopes)
	server, _ := newWriteServer(t, http.StatusForbidden,
		`{"error": {"message": "Application does not have permission", "type": "OAuthException", "code": 10}}`)
	defer server.Close()

	_, err := newRelay(database, server.URL).ReplyToComment(context.Background(), "acct-1", "local-comment-1", "thanks!")

	var permErr *PermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("expected *PermissionError, got %T (%v)", err, err)
	}
	if permErr.RequiredScope != graph.ScopeManageComments {
		t.Fatalf("required scope = %q, want %q", permErr.RequiredScope, graph.ScopeManageComments)
	}

	var conn models.Connection
	if err := database.First(&conn, "id = ?", "conn-1").Error; err != nil {
		t.Fatalf("connection gone: %v", err)
	}
	if conn.Status != models.StatusMissingPermissions {
		t.Fatalf("status = %q, want %q", conn.Status, models.StatusMissingPermissions)
	}

	var comment models.Comment
	database.First(&comment, "id = ?", "local-comment-1")
	if comment.Replied {
		t.Fatal("failed reply must not mark the comment replied")
	}
}

func TestReplyToComment_ProviderErrorPassesThrough(t *testing.T) {
	database := newTestRelayDB(t)
	seedRelayFixtures(t, database, writeScopes)
	server, _ := newWriteServer(t, http.StatusInternalServerError,
		`{"error": {"message": "An unknown error occurred", "type": "GraphAPIException", "code": 1}}`)
	defer server.Close()

	_, err := newRelay(database, server.URL).ReplyToComment(context.Background(), "acct-1", "local-comment-1", "thanks!")

	var provErr *graph.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *graph.ProviderError, got %T (%v)", err, err)
	}
	if provErr.Code != 1 {
		t.Fatalf("code = %d, want 1", provErr.Code)
	}
}

func TestSendMessage_MirrorsOutboundWithoutUnreadBump(t *testing.T) {
	database := newTestRelayDB(t)
	seedRelayFixtures(t, database, writeScopes)
	server, _ := newWriteServer(t, http.StatusOK, `{"recipient_id": "user_42", "message_id": "mid.sent.1"}`)
	defer server.Close()

	msg, err := newRelay(database, server.URL).SendMessage(context.Background(), "acct-1", "local-conv-1", "on its way")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if msg.Direction != models.DirectionOutbound || msg.RemoteMessageID != "mid.sent.1" {
		t.Fatalf("unexpected mirrored message: %+v", msg)
	}

	var stored models.Message
	if err := database.First(&stored, "remote_message_id = ?", "mid.sent.1").Error; err != nil {
		t.Fatalf("outbound message not mirrored: %v", err)
	}

	var conv models.Conversation
	database.First(&conv, "id = ?", "local-conv-1")
	if conv.UnreadCount != 0 {
		t.Fatalf("outbound send must not bump unread, got %d", conv.UnreadCount)
	}
	if conv.LastMessageAt.IsZero() {
		t.Fatal("last_message_at not advanced")
	}
}

func TestSendMessage_UnknownConversation(t *testing.T) {
	database := newTestRelayDB(t)
	seedRelayFixtures(t, database, writeScopes)
	server, calls := newWriteServer(t, http.StatusOK, `{"message_id": "x"}`)
	defer server.Close()

	_, err := newRelay(database, server.URL).SendMessage(context.Background(), "acct-1", "no-such-conv", "hello")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("unknown target must not reach the provider, saw %d calls", calls.Load())
	}
}
