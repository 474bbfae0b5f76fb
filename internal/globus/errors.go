// Package globus provides a native-app OAuth2 client for the auth service
// and an HTTP client for the transfer API, with retry, throttling, and
// structured error classification.
package globus

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, globus.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("globus: bad request")
	ErrUnauthorized = errors.New("globus: unauthorized")
	ErrForbidden    = errors.New("globus: forbidden")
	ErrNotFound     = errors.New("globus: not found")
	ErrConflict     = errors.New("globus: conflict")
	ErrThrottled    = errors.New("globus: throttled")
	ErrServerError  = errors.New("globus: server error")
	ErrNotLoggedIn  = errors.New("globus: not logged in")
)

// codeConsentRequired is the API error code for missing consents.
const codeConsentRequired = "ConsentRequired"

// ConsentRequiredInfo is present when the service refused a request because
// the caller's token lacks consent for one or more dependent scopes.
type ConsentRequiredInfo struct {
	RequiredScopes []string
}

// AuthorizationParameterInfo carries the session requirements the service
// attached to an error. Any subset of fields may be set.
type AuthorizationParameterInfo struct {
	SessionMessage              string
	SessionRequiredIdentities   []string
	SessionRequiredSingleDomain []string
	SessionRequiredPolicies     []string
	SessionRequiredMFA          bool
	RequiredScopes              []string
}

// ErrorInfo is the structured detail parsed from an error body.
type ErrorInfo struct {
	ConsentRequired         *ConsentRequiredInfo
	AuthorizationParameters *AuthorizationParameterInfo
}

// TransferAPIError is returned for every non-2xx transfer API response.
// It wraps a status sentinel for errors.Is and exposes the parsed body.
type TransferAPIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
	Info       ErrorInfo
	Raw        string
	Err        error // sentinel, for errors.Is()
}

func (e *TransferAPIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Raw
	}

	code := ""
	if e.Code != "" {
		code = " " + e.Code
	}

	if e.RequestID != "" {
		return fmt.Sprintf("globus: HTTP %d%s (request-id: %s): %s", e.StatusCode, code, e.RequestID, msg)
	}

	return fmt.Sprintf("globus: HTTP %d%s: %s", e.StatusCode, code, msg)
}

func (e *TransferAPIError) Unwrap() error {
	return e.Err
}

// stringList decodes either a JSON array of strings or a single
// comma-separated string, both of which appear in authorization parameters.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}

	var out []string

	for _, part := range strings.Split(single, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	*s = out

	return nil
}

// errorBody is the wire shape of an error response.
type errorBody struct {
	Code                    string          `json:"code"`
	Message                 string          `json:"message"`
	RequestID               string          `json:"request_id"`
	RequiredScopes          stringList      `json:"required_scopes"`
	AuthorizationParameters json.RawMessage `json:"authorization_parameters"`
}

type authParamsBody struct {
	SessionMessage              string     `json:"session_message"`
	SessionRequiredIdentities   stringList `json:"session_required_identities"`
	SessionRequiredSingleDomain stringList `json:"session_required_single_domain"`
	SessionRequiredPolicies     stringList `json:"session_required_policies"`
	SessionRequiredMFA          bool       `json:"session_required_mfa"`
	RequiredScopes              stringList `json:"required_scopes"`
}

// newTransferAPIError builds an error from a failed response. Bodies that
// are not JSON still produce a usable error carrying the raw text.
func newTransferAPIError(status int, requestID string, body []byte) *TransferAPIError {
	apiErr := &TransferAPIError{
		StatusCode: status,
		RequestID:  requestID,
		Raw:        string(body),
		Err:        classifyStatus(status),
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return apiErr
	}

	apiErr.Code = eb.Code
	apiErr.Message = eb.Message

	if eb.RequestID != "" {
		apiErr.RequestID = eb.RequestID
	}

	if eb.Code == codeConsentRequired && len(eb.RequiredScopes) > 0 {
		apiErr.Info.ConsentRequired = &ConsentRequiredInfo{RequiredScopes: eb.RequiredScopes}
	}

	apiErr.Info.AuthorizationParameters = parseAuthorizationParameters(eb.AuthorizationParameters)

	return apiErr
}

// parseAuthorizationParameters returns nil unless raw is a JSON object.
func parseAuthorizationParameters(raw json.RawMessage) *AuthorizationParameterInfo {
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}

	var ap authParamsBody
	if err := json.Unmarshal(raw, &ap); err != nil {
		return nil
	}

	return &AuthorizationParameterInfo{
		SessionMessage:              ap.SessionMessage,
		SessionRequiredIdentities:   ap.SessionRequiredIdentities,
		SessionRequiredSingleDomain: ap.SessionRequiredSingleDomain,
		SessionRequiredPolicies:     ap.SessionRequiredPolicies,
		SessionRequiredMFA:          ap.SessionRequiredMFA,
		RequiredScopes:              ap.RequiredScopes,
	}
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for codes without a sentinel.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// isRetryable reports whether the given HTTP status code should be retried.
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
