package instagram

import (
	"net/http"

	"github.com/bizpulse/socialsync/internal/config"
	"golang.org/x/oauth2"
)

// HandleLogin initiates the provider OAuth flow by redirecting to the consent page.
// The owning account is taken from the account_id query parameter and carried
// through the CSRF state token.
func HandleLogin(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := r.URL.Query().Get("account_id")
		if accountID == "" {
			http.Error(w, "account_id is required", http.StatusBadRequest)
			return
		}

		state := issueState(accountID)
		authURL := OAuthConfig(cfg).AuthCodeURL(state, oauth2.AccessTypeOffline)
		http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
	}
}
