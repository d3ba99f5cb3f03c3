package api

import (
	"net/http"

	"github.com/bizpulse/socialsync/internal/auth/token"
	"github.com/bizpulse/socialsync/internal/db/models"
	"gorm.io/gorm"
)

// HeaderAccountID selects the owning account for a request. Single-connection
// deployments can omit it and fall back to the only stored connection.
const HeaderAccountID = "X-Account-ID"

// ResolveAccountID picks the owning account from the request: explicit header,
// then query parameter, then the single stored connection.
func ResolveAccountID(database *gorm.DB, r *http.Request) string {
	if id := r.Header.Get(HeaderAccountID); id != "" {
		return id
	}
	if id := r.URL.Query().Get("account_id"); id != "" {
		return id
	}

	var conns []models.Connection
	if err := database.Where("provider = ?", token.Provider).Limit(2).Find(&conns).Error; err != nil {
		return ""
	}
	if len(conns) == 1 {
		return conns[0].AccountID
	}
	return ""
}
