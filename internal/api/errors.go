package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/bizpulse/socialsync/internal/auth/token"
	"github.com/bizpulse/socialsync/internal/graph"
	"github.com/bizpulse/socialsync/internal/relay"
)

// errorBody is the structured error envelope every /api route answers with.
type errorBody struct {
	Type               string `json:"type"`
	Code               string `json:"code,omitempty"`
	Message            string `json:"message"`
	RequiredPermission string `json:"requiredPermission,omitempty"`
	ProviderCode       int    `json:"providerCode,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, map[string]errorBody{"error": body})
}

func writeValidationError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, errorBody{
		Type:    "validation_error",
		Message: message,
	})
}

// writeDomainError maps the error taxonomy onto HTTP statuses and the
// structured envelope. Callers pass errors from token manager, relay, sync and
// graph layers without pre-sorting them.
func writeDomainError(w http.ResponseWriter, err error) {
	var authErr *token.AuthError
	if errors.As(err, &authErr) {
		switch authErr.Code {
		case token.CodeNoConnection:
			writeError(w, http.StatusNotFound, errorBody{
				Type:    "auth_error",
				Code:    string(authErr.Code),
				Message: "no connection for this account, connect via /auth/instagram/login",
			})
		case token.CodeMissingScope:
			writeError(w, http.StatusForbidden, errorBody{
				Type:               "auth_error",
				Code:               string(authErr.Code),
				Message:            authErr.Error(),
				RequiredPermission: authErr.MissingScope,
			})
		default:
			writeError(w, http.StatusUnauthorized, errorBody{
				Type:    "auth_error",
				Code:    string(authErr.Code),
				Message: "stored credential is no longer usable, reconnect the account",
			})
		}
		return
	}

	var permErr *relay.PermissionError
	if errors.As(err, &permErr) {
		writeError(w, http.StatusForbidden, errorBody{
			Type:               "permission_error",
			Message:            permErr.Error(),
			RequiredPermission: permErr.RequiredScope,
		})
		return
	}

	var provErr *graph.ProviderError
	if errors.As(err, &provErr) {
		status := http.StatusBadGateway
		if provErr.IsRateLimited() {
			status = http.StatusTooManyRequests
		}
		writeError(w, status, errorBody{
			Type:         "provider_error",
			Message:      provErr.Message,
			ProviderCode: provErr.Code,
		})
		return
	}

	if errors.Is(err, relay.ErrNotFound) {
		writeError(w, http.StatusNotFound, errorBody{
			Type:    "not_found",
			Message: "target not found",
		})
		return
	}

	log.Printf("❌ Unclassified handler error: %v", err)
	writeError(w, http.StatusInternalServerError, errorBody{
		Type:    "internal_error",
		Message: "internal error",
	})
}
