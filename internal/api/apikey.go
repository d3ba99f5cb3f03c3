package api

import (
	"net/http"

	"github.com/bizpulse/socialsync/internal/db"
	"gorm.io/gorm"
)

// GetAPIKeyHandler returns the current API key.
func GetAPIKeyHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"api_key": db.GetAPIKey(database),
		})
	}
}

// RegenerateAPIKeyHandler rotates the API key. The old key stops working
// immediately.
func RegenerateAPIKeyHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"api_key": db.RegenerateAPIKey(database),
		})
	}
}
