package api

import (
	"net/http"

	"github.com/bizpulse/socialsync/internal/auth/token"
	"github.com/bizpulse/socialsync/internal/identity"
	"gorm.io/gorm"
)

// IdentitiesRefreshHandler re-resolves display identities for every known
// counterparty of the account. Failures degrade silently per participant; the
// response reports how many identities were actually refreshed.
func IdentitiesRefreshHandler(cache *identity.Cache, tokens *token.Manager, database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := ResolveAccountID(database, r)
		if accountID == "" {
			writeValidationError(w, "account_id is required")
			return
		}

		conn, err := tokens.ValidToken(r.Context(), accountID, "")
		if err != nil {
			writeDomainError(w, err)
			return
		}

		refreshed := cache.RefreshAll(r.Context(), conn)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"refreshed": refreshed,
		})
	}
}
