// Package relay posts outbound replies (comment replies and direct messages)
// through the provider API. Scope prechecks happen before any network call so a
// consent gap fails fast with a stable error instead of a provider round trip.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bizpulse/socialsync/internal/auth/token"
	"github.com/bizpulse/socialsync/internal/db"
	"github.com/bizpulse/socialsync/internal/db/models"
	"github.com/bizpulse/socialsync/internal/graph"
	"gorm.io/gorm"
)

// PermissionError reports that the provider rejected a write because the
// granted consent no longer covers the required permission. Distinct from the
// precheck failure: this one comes back from the wire.
type PermissionError struct {
	RequiredScope string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("provider rejected the operation: permission %s not granted", e.RequiredScope)
}

// ErrNotFound is returned when the referenced local row does not exist.
var ErrNotFound = errors.New("relay: target not found")

// Relay posts outbound writes and mirrors successful ones into the local store.
type Relay struct {
	db     *gorm.DB
	graph  *graph.Client
	tokens *token.Manager
}

// NewRelay creates a reply relay.
func NewRelay(database *gorm.DB, graphClient *graph.Client, tokens *token.Manager) *Relay {
	return &Relay{db: database, graph: graphClient, tokens: tokens}
}

// ReplyToComment posts a reply under a stored comment and marks the row
// replied. The local mark is best effort: once the provider accepted the
// reply, a store hiccup must not make the caller re-post it.
func (r *Relay) ReplyToComment(ctx context.Context, accountID, commentID, text string) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.Where("id = ? AND account_id = ?", commentID, accountID).First(&comment).Error
	if err != nil {
		return nil, ErrNotFound
	}

	conn, err := r.tokens.ValidToken(ctx, accountID, graph.ScopeManageComments)
	if err != nil {
		return nil, err
	}

	replyID, err := r.graph.ReplyToComment(ctx, conn.AccessToken, comment.RemoteCommentID, text)
	if err != nil {
		return nil, r.classify(conn, graph.ScopeManageComments, err)
	}
	log.Printf("✅ Posted reply %s under comment %s", replyID, comment.RemoteCommentID)

	updates := map[string]interface{}{
		"replied":      true,
		"reply_text":   text,
		"reply_status": models.ReplyStatusSent,
		"replied_at":   time.Now(),
	}
	if err := r.db.Model(&models.Comment{}).Where("id = ?", comment.ID).Updates(updates).Error; err != nil {
		// Next sync pass reconciles the reply from the provider side.
		log.Printf("⚠️ Reply %s posted but local mark failed: %v", replyID, err)
	}

	err = r.db.First(&comment, "id = ?", comment.ID).Error
	if err != nil {
		return nil, ErrNotFound
	}
	return &comment, nil
}

// SendMessage sends a direct message on a stored conversation and mirrors the
// outbound message into the store.
func (r *Relay) SendMessage(ctx context.Context, accountID, conversationID, text string) (*models.Message, error) {
	var conv models.Conversation
	err := r.db.Where("id = ? AND account_id = ?", conversationID, accountID).First(&conv).Error
	if err != nil {
		return nil, ErrNotFound
	}

	conn, err := r.tokens.ValidToken(ctx, accountID, graph.ScopeManageMessages)
	if err != nil {
		return nil, err
	}

	messageID, err := r.graph.SendMessage(ctx, conn.AccessToken, conn.RemoteAccountID, conv.ParticipantID, text)
	if err != nil {
		return nil, r.classify(conn, graph.ScopeManageMessages, err)
	}
	log.Printf("✅ Sent message %s to conversation %s", messageID, conv.ID)

	sentAt := time.Now()
	msg := &models.Message{
		ConversationID:  conv.ID,
		RemoteMessageID: messageID,
		Direction:       models.DirectionOutbound,
		SenderID:        conn.RemoteAccountID,
		Text:            text,
		SentAt:          sentAt,
	}
	// The provider will also echo this message through the webhook; the shared
	// remote-id key makes whichever write lands second a no-op.
	if _, err := db.InsertMessageIfAbsent(r.db, msg); err != nil {
		log.Printf("⚠️ Message %s sent but local mirror failed: %v", messageID, err)
		return msg, nil
	}
	if err := r.db.Model(&models.Conversation{}).Where("id = ?", conv.ID).
		Update("last_message_at", sentAt).Error; err != nil {
		log.Printf("⚠️ Failed to advance last_message_at for conversation %s: %v", conv.ID, err)
	}
	return msg, nil
}

// classify inspects a provider failure and records consent problems on the
// connection before handing the error back.
func (r *Relay) classify(conn *models.Connection, requiredScope string, err error) error {
	var provErr *graph.ProviderError
	if !errors.As(err, &provErr) {
		return err
	}
	if provErr.IsPermissionError() {
		r.tokens.MarkMissingPermissions(conn.ID)
		return &PermissionError{RequiredScope: requiredScope}
	}
	if provErr.IsAuthError() {
		r.tokens.MarkNeedsReauth(conn.ID)
	}
	return provErr
}
