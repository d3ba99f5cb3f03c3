package api

import (
	"net/http"
	"time"

	"github.com/bizpulse/socialsync/internal/db/models"
	"github.com/bizpulse/socialsync/internal/graph"
	syncpkg "github.com/bizpulse/socialsync/internal/sync"
	"gorm.io/gorm"
)

// syncResponse is the POST /api/sync answer. A failed sync still answers 200
// with the last-known-good sync state attached, so clients can render stale
// data instead of an opaque failure.
type syncResponse struct {
	Status        string        `json:"status"` // ok | partial | failed
	Items         []graph.Media `json:"items"`
	Pages         int           `json:"pages"`
	Conversations int           `json:"conversations"`
	Error         string        `json:"error,omitempty"`
	MissingScopes []string      `json:"missing_scopes,omitempty"`
	LastSyncAt    *time.Time    `json:"last_sync_at,omitempty"`
}

// SyncHandler triggers a full sync for the requesting account.
func SyncHandler(orch *syncpkg.Orchestrator, database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := ResolveAccountID(database, r)
		if accountID == "" {
			writeValidationError(w, "account_id is required")
			return
		}

		result := orch.FullSync(r.Context(), accountID)

		resp := syncResponse{
			Status:        "ok",
			Items:         result.Items,
			Pages:         result.Pages,
			Conversations: result.Conversations,
			Error:         result.ErrMessage,
			MissingScopes: result.MissingScopes,
		}
		if resp.Items == nil {
			resp.Items = []graph.Media{}
		}
		if result.Err != nil {
			resp.Status = "failed"
			if len(result.Items) > 0 {
				resp.Status = "partial"
			}
			// Attach the last successful sync time so callers know how stale
			// their local copy is.
			if state, err := orch.State(accountID); err == nil && !state.LastSyncAt.IsZero() {
				resp.LastSyncAt = &state.LastSyncAt
			}
			writeJSON(w, http.StatusOK, resp)
			return
		}

		if state, err := orch.State(accountID); err == nil {
			resp.LastSyncAt = &state.LastSyncAt
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// SyncStatusHandler reports sync health: last sync time, last error, scope
// delta and a coarse state the dashboard can render directly.
func SyncStatusHandler(orch *syncpkg.Orchestrator, database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := ResolveAccountID(database, r)
		if accountID == "" {
			writeValidationError(w, "account_id is required")
			return
		}

		var conn models.Connection
		connErr := database.Where("account_id = ? AND provider = ?", accountID, "instagram").
			First(&conn).Error

		resp := map[string]interface{}{
			"account_id": accountID,
			"state":      "not_connected",
		}
		if connErr == nil {
			resp["connection_status"] = conn.Status
			resp["state"] = deriveState(&conn, orch, accountID, resp)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// deriveState collapses connection status and sync state into one of:
// needs_reauth, missing_permissions, never_synced, error, stale, ok.
func deriveState(conn *models.Connection, orch *syncpkg.Orchestrator, accountID string, resp map[string]interface{}) string {
	switch conn.Status {
	case models.StatusNeedsReauth, models.StatusExpired:
		return "needs_reauth"
	case models.StatusMissingPermissions:
		return "missing_permissions"
	}

	state, err := orch.State(accountID)
	if err != nil {
		return "never_synced"
	}
	resp["last_sync_at"] = state.LastSyncAt
	resp["last_error"] = state.LastError
	resp["granted_scopes"] = state.GrantedScopes
	resp["missing_scopes"] = state.MissingScopes

	if state.LastSyncAt.IsZero() {
		if state.LastError != "" {
			return "error"
		}
		return "never_synced"
	}
	if state.LastError != "" {
		return "error"
	}
	if time.Since(state.LastSyncAt) > 24*time.Hour {
		return "stale"
	}
	return "ok"
}
