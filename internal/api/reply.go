package api

import (
	"encoding/json"
	"net/http"

	"github.com/bizpulse/socialsync/internal/relay"
	"gorm.io/gorm"
)

// replyRequest is the POST /api/reply body. Target is a local row id; the kind
// selects between a comment reply and a direct message.
type replyRequest struct {
	Kind     string `json:"kind"` // "comment" or "message"
	TargetID string `json:"target_id"`
	Text     string `json:"text"`
}

// ReplyHandler posts an outbound reply through the relay.
func ReplyHandler(r *relay.Relay, database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		accountID := ResolveAccountID(database, req)
		if accountID == "" {
			writeValidationError(w, "account_id is required")
			return
		}

		var body replyRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeValidationError(w, "invalid JSON body")
			return
		}
		if body.TargetID == "" {
			writeValidationError(w, "target_id is required")
			return
		}
		if body.Text == "" {
			writeValidationError(w, "text is required")
			return
		}

		switch body.Kind {
		case "comment":
			comment, err := r.ReplyToComment(req.Context(), accountID, body.TargetID, body.Text)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"status":  "sent",
				"comment": comment,
			})
		case "message":
			msg, err := r.SendMessage(req.Context(), accountID, body.TargetID, body.Text)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"status":  "sent",
				"message": msg,
			})
		default:
			writeValidationError(w, `kind must be "comment" or "message"`)
		}
	}
}
