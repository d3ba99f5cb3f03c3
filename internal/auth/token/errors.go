package token

import "fmt"

// AuthErrorCode classifies authentication failures so callers can redirect the
// user to re-authorization with the right prompt.
type AuthErrorCode string

const (
	CodeNoConnection AuthErrorCode = "no_connection"
	CodeExpired      AuthErrorCode = "expired"
	CodeMissingScope AuthErrorCode = "missing_scope"
)

// AuthError is a typed authentication failure raised by the token manager.
type AuthError struct {
	Code         AuthErrorCode
	Provider     string
	MissingScope string // set when Code == CodeMissingScope
}

func (e *AuthError) Error() string {
	switch e.Code {
	case CodeMissingScope:
		return fmt.Sprintf("auth error (%s): connection lacks scope %q", e.Code, e.MissingScope)
	case CodeNoConnection:
		return fmt.Sprintf("auth error (%s): no %s connection", e.Code, e.Provider)
	default:
		return fmt.Sprintf("auth error (%s)", e.Code)
	}
}
