package api

import (
	"net/http"
	"strconv"

	"github.com/bizpulse/socialsync/internal/graph"
	syncpkg "github.com/bizpulse/socialsync/internal/sync"
	"gorm.io/gorm"
)

// feedResponse wraps one live feed page behind a stable envelope so clients
// never touch the provider's paging shape directly.
type feedResponse struct {
	Items  []graph.Media `json:"items"`
	Paging struct {
		After string `json:"after,omitempty"`
	} `json:"paging"`
}

// FeedHandler serves one live page of the media feed with nested comments.
// Query: after (opaque cursor), limit (items per page).
func FeedHandler(orch *syncpkg.Orchestrator, database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := ResolveAccountID(database, r)
		if accountID == "" {
			writeValidationError(w, "account_id is required")
			return
		}

		opts := graph.PageOptions{}
		if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
			limit, err := strconv.Atoi(rawLimit)
			if err != nil || limit < 1 || limit > 100 {
				writeValidationError(w, "limit must be an integer between 1 and 100")
				return
			}
			opts.Limit = limit
		}

		page, err := orch.SyncPage(r.Context(), accountID, r.URL.Query().Get("after"), opts)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := feedResponse{Items: page.Items}
		if resp.Items == nil {
			resp.Items = []graph.Media{}
		}
		resp.Paging.After = page.NextCursor
		writeJSON(w, http.StatusOK, resp)
	}
}
