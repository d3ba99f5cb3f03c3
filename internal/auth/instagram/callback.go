package instagram

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/bizpulse/socialsync/internal/config"
	"github.com/bizpulse/socialsync/internal/db/models"
	"github.com/bizpulse/socialsync/internal/graph"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HandleCallback processes the OAuth callback from the provider: verifies the
// state token, exchanges the code, upgrades to a long-lived token, resolves the
// connected business account, and saves the connection.
func HandleCallback(db *gorm.DB, cfg *config.Config, graphClient *graph.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := consumeState(r.URL.Query().Get("state"))
		if !ok {
			http.Error(w, "Invalid state token", http.StatusBadRequest)
			return
		}

		if errParam := r.URL.Query().Get("error"); errParam != "" {
			// User denied consent.
			http.Error(w, fmt.Sprintf("Authorization declined: %s", errParam), http.StatusForbidden)
			return
		}

		code := r.URL.Query().Get("code")
		shortToken, err := OAuthConfig(cfg).Exchange(r.Context(), code)
		if err != nil {
			http.Error(w, fmt.Sprintf("Token exchange failed: %v", err), http.StatusInternalServerError)
			return
		}

		longLived, err := graphClient.ExchangeLongLivedToken(r.Context(), cfg.AppSecret, shortToken.AccessToken)
		if err != nil {
			http.Error(w, fmt.Sprintf("Long-lived token exchange failed: %v", err), http.StatusInternalServerError)
			return
		}

		profile, err := graphClient.GetUserProfile(r.Context(), longLived.AccessToken, "me")
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to resolve connected account: %v", err), http.StatusInternalServerError)
			return
		}

		// Granted scopes may be a subset of the requested consent.
		grantedScopes := RequestedScopes
		if raw := shortToken.Extra("permissions"); raw != nil {
			if s, ok := raw.(string); ok && s != "" {
				var parsed []string
				if err := json.Unmarshal([]byte(s), &parsed); err == nil && len(parsed) > 0 {
					grantedScopes = parsed
				}
			}
		}
		scopesJSON, _ := json.Marshal(grantedScopes)

		// Preserve the connection UUID on re-authorization.
		connID := uuid.New().String()
		var existing models.Connection
		if err := db.Where("account_id = ? AND provider = ?", accountID, "instagram").
			First(&existing).Error; err == nil {
			connID = existing.ID
		}

		conn := models.Connection{
			ID:              connID,
			AccountID:       accountID,
			Provider:        "instagram",
			RemoteAccountID: profile.ID,
			Username:        profile.Username,
			AccessToken:     longLived.AccessToken,
			ExpiresAt:       time.Now().Add(time.Duration(longLived.ExpiresIn) * time.Second),
			Scopes:          string(scopesJSON),
			Status:          models.StatusConnected,
			LastUsedAt:      time.Now(),
		}
		if err := db.Save(&conn).Error; err != nil {
			http.Error(w, fmt.Sprintf("Failed to save connection: %v", err), http.StatusInternalServerError)
			return
		}

		log.Printf("✅ Connected @%s (account %s)", profile.Username, accountID)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<meta http-equiv="refresh" content="3;url=/">
	<title>Connected</title>
</head>
<body>
	<h1>✅ Instagram account @%s connected</h1>
	<p>Redirecting back to the dashboard…</p>
</body>
</html>`, profile.Username)
	}
}
