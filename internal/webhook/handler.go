// Package webhook verifies and ingests signed provider webhook deliveries.
// Deliveries are at-least-once and may arrive out of order; every store
// mutation is an idempotent upsert keyed by the provider's remote id, so
// replays never create duplicate rows or double-count unread messages.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/bizpulse/socialsync/internal/config"
	"github.com/bizpulse/socialsync/internal/db"
	"github.com/bizpulse/socialsync/internal/db/models"
	"gorm.io/gorm"
)

// Handler ingests provider webhook traffic.
type Handler struct {
	db  *gorm.DB
	cfg *config.Config
}

// NewHandler creates a webhook handler.
func NewHandler(database *gorm.DB, cfg *config.Config) *Handler {
	return &Handler{db: database, cfg: cfg}
}

// HandleVerify answers the provider's GET verification handshake: echo the
// challenge iff mode is "subscribe" and the verify token matches.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || token != h.cfg.WebhookVerifyToken {
		log.Printf("⚠️ Webhook verification rejected (mode=%q)", mode)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// HandleEvent ingests a POST delivery. Signature failures are rejected before
// any parsing; everything after a valid signature is acknowledged with 200 even
// when processing fails, because a non-2xx answer triggers provider retry storms.
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if h.cfg.WebhookSecret != "" {
		if !verifySignature(body, r.Header.Get("X-Hub-Signature-256"), h.cfg.WebhookSecret) {
			log.Printf("⚠️ Webhook signature mismatch, rejecting delivery")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	var envelope Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		log.Printf("⚠️ Webhook payload unparseable: %v", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	for _, entry := range envelope.Entry {
		h.processEntry(entry)
	}
	w.WriteHeader(http.StatusOK)
}

// verifySignature compares the HMAC-SHA256 of the raw, un-reparsed body against
// the sha256=<hex> header value.
func verifySignature(body []byte, header, secret string) bool {
	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(header, prefix)))
}

// processEntry maps the entry to its owning connection and applies each event.
// Events for unknown accounts are logged and dropped; surfacing an error to
// the provider would only cause redelivery of something we can never ingest.
func (h *Handler) processEntry(entry Entry) {
	var conn models.Connection
	err := h.db.Where("provider = ? AND remote_account_id = ?", "instagram", entry.ID).
		First(&conn).Error
	if err != nil {
		log.Printf("⚠️ Webhook entry for unknown account %s dropped", entry.ID)
		return
	}

	for _, event := range normalizeEntry(entry) {
		switch event.Kind {
		case KindMessage:
			h.applyMessage(&conn, event.Message)
		case KindComment:
			h.applyComment(&conn, event.Comment)
		}
	}
}

// applyMessage upserts the conversation and message. The unread counter is
// incremented only when the message upsert actually inserted a row, so
// duplicate deliveries count once.
func (h *Handler) applyMessage(conn *models.Connection, msg *MessageEvent) {
	direction := models.DirectionInbound
	participantID := msg.SenderID
	if msg.IsEcho || msg.SenderID == conn.RemoteAccountID {
		direction = models.DirectionOutbound
		participantID = msg.RecipientID
	}

	// Messaging webhooks carry no thread id; the counterparty id is the stable
	// conversation key across webhook and bulk-sync sources.
	conv, err := db.UpsertConversation(h.db, &models.Conversation{
		AccountID:            conn.AccountID,
		Provider:             conn.Provider,
		RemoteConversationID: participantID,
		ParticipantID:        participantID,
		LastMessageAt:        msg.SentAt,
	})
	if err != nil {
		log.Printf("⚠️ Failed to upsert conversation for message %s: %v", msg.RemoteMessageID, err)
		return
	}

	inserted, err := db.InsertMessageIfAbsent(h.db, &models.Message{
		ConversationID:  conv.ID,
		RemoteMessageID: msg.RemoteMessageID,
		Direction:       direction,
		SenderID:        msg.SenderID,
		Text:            msg.Text,
		SentAt:          msg.SentAt,
	})
	if err != nil {
		log.Printf("⚠️ Failed to upsert message %s: %v", msg.RemoteMessageID, err)
		return
	}

	if inserted && direction == models.DirectionInbound {
		if err := db.IncrementUnread(h.db, conv.ID); err != nil {
			log.Printf("⚠️ Failed to bump unread counter for %s: %v", conv.ID, err)
		}
	}
}

func (h *Handler) applyComment(conn *models.Connection, comment *CommentEvent) {
	if comment.AuthorID == conn.RemoteAccountID {
		// Our own replies come back as comment events too; sync reconciles them.
		return
	}
	err := db.UpsertComment(h.db, &models.Comment{
		AccountID:       conn.AccountID,
		RemoteMediaID:   comment.RemoteMediaID,
		RemoteCommentID: comment.RemoteCommentID,
		Text:            comment.Text,
		AuthorID:        comment.AuthorID,
		AuthorUsername:  comment.AuthorUsername,
		CommentedAt:     comment.CommentedAt,
	})
	if err != nil {
		log.Printf("⚠️ Failed to upsert comment %s: %v", comment.RemoteCommentID, err)
	}
}
