package api

import (
	"net/http"
	"time"

	"github.com/bizpulse/socialsync/internal/auth/token"
	"github.com/bizpulse/socialsync/internal/db/models"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// connectionView is the sanitized connection representation. Tokens never
// leave the store through this API.
type connectionView struct {
	ID              string    `json:"id"`
	AccountID       string    `json:"account_id"`
	Provider        string    `json:"provider"`
	RemoteAccountID string    `json:"remote_account_id"`
	Username        string    `json:"username"`
	Status          string    `json:"status"`
	Scopes          []string  `json:"scopes"`
	ExpiresAt       time.Time `json:"expires_at"`
	LastUsedAt      time.Time `json:"last_used_at"`
}

func viewOf(conn *models.Connection) connectionView {
	return connectionView{
		ID:              conn.ID,
		AccountID:       conn.AccountID,
		Provider:        conn.Provider,
		RemoteAccountID: conn.RemoteAccountID,
		Username:        conn.Username,
		Status:          string(conn.Status),
		Scopes:          token.Scopes(conn),
		ExpiresAt:       conn.ExpiresAt,
		LastUsedAt:      conn.LastUsedAt,
	}
}

// ConnectionsHandler lists stored connections without their credentials.
func ConnectionsHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var conns []models.Connection
		if err := database.Order("created_at").Find(&conns).Error; err != nil {
			writeDomainError(w, err)
			return
		}
		views := make([]connectionView, 0, len(conns))
		for i := range conns {
			views = append(views, viewOf(&conns[i]))
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"connections": views})
	}
}

// DisconnectHandler destroys a stored connection by its id.
func DisconnectHandler(tokens *token.Manager, database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connID := chi.URLParam(r, "id")

		var conn models.Connection
		if err := database.First(&conn, "id = ?", connID).Error; err != nil {
			writeError(w, http.StatusNotFound, errorBody{
				Type:    "not_found",
				Message: "connection not found",
			})
			return
		}

		if err := tokens.Disconnect(conn.AccountID); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":     "disconnected",
			"account_id": conn.AccountID,
		})
	}
}
