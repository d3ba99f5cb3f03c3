package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ProviderError carries the provider's status and message verbatim for diagnostics.
type ProviderError struct {
	Status     int    // HTTP status
	Code       int    // provider error code, e.g. 190 for OAuthException
	Subcode    int
	Type       string // e.g. "OAuthException"
	Message    string
	FBTraceID  string
	RetryAfter string
}

func (e *ProviderError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("provider error %d (%s, code %d): %s", e.Status, e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("provider error %d: %s", e.Status, e.Message)
}

// IsAuthError reports whether the provider rejected the access token itself.
func (e *ProviderError) IsAuthError() bool {
	return e.Code == 190 || strings.EqualFold(e.Type, "OAuthException")
}

// IsPermissionError reports whether the call failed on a missing permission grant.
// Code 10 and the 200-299 range are the provider's permission error codes.
func (e *ProviderError) IsPermissionError() bool {
	return e.Code == 10 || (e.Code >= 200 && e.Code < 300)
}

// IsRateLimited reports whether the caller should back off before retrying.
func (e *ProviderError) IsRateLimited() bool {
	return e.Status == http.StatusTooManyRequests || e.Code == 4 || e.Code == 17 || e.Code == 32
}

// graphErrorEnvelope is the provider's standard error body.
type graphErrorEnvelope struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		Subcode   int    `json:"error_subcode"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

// parseErrorResponse drains a non-2xx response body into a ProviderError.
// Unparseable bodies still yield an error carrying the raw text, so callers
// never lose the provider's diagnostics.
func parseErrorResponse(resp *http.Response) *ProviderError {
	provErr := &ProviderError{
		Status:     resp.StatusCode,
		RetryAfter: resp.Header.Get("Retry-After"),
	}

	if resp.Body == nil {
		provErr.Message = http.StatusText(resp.StatusCode)
		return provErr
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		provErr.Message = http.StatusText(resp.StatusCode)
		return provErr
	}

	var envelope graphErrorEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil || envelope.Error.Message == "" {
		provErr.Message = strings.TrimSpace(string(bodyBytes))
		if provErr.Message == "" {
			provErr.Message = http.StatusText(resp.StatusCode)
		}
		return provErr
	}

	provErr.Message = envelope.Error.Message
	provErr.Type = envelope.Error.Type
	provErr.Code = envelope.Error.Code
	provErr.Subcode = envelope.Error.Subcode
	provErr.FBTraceID = envelope.Error.FBTraceID
	return provErr
}
