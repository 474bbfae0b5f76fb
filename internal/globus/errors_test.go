package globus

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransferAPIError_ConsentRequired(t *testing.T) {
	body := `{
		"code": "ConsentRequired",
		"message": "Missing required data_access consent",
		"request_id": "abc123",
		"required_scopes": [
			"urn:globus:auth:scope:transfer.api.globus.org:all[*https://auth.globus.org/scopes/c1/data_access]"
		]
	}`

	err := newTransferAPIError(http.StatusForbidden, "", []byte(body))

	require.NotNil(t, err.Info.ConsentRequired)
	assert.Equal(t, []string{
		"urn:globus:auth:scope:transfer.api.globus.org:all[*https://auth.globus.org/scopes/c1/data_access]",
	}, err.Info.ConsentRequired.RequiredScopes)
	assert.Nil(t, err.Info.AuthorizationParameters)
	assert.Equal(t, "abc123", err.RequestID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t,
		"globus: HTTP 403 ConsentRequired (request-id: abc123): Missing required data_access consent",
		err.Error())
}

func TestNewTransferAPIError_ConsentCodeWithoutScopes(t *testing.T) {
	err := newTransferAPIError(http.StatusForbidden, "", []byte(`{"code":"ConsentRequired"}`))
	assert.Nil(t, err.Info.ConsentRequired)
}

func TestNewTransferAPIError_AuthorizationParameters(t *testing.T) {
	body := `{
		"code": "AuthenticationFailed",
		"message": "Token is not valid for this collection",
		"authorization_parameters": {
			"session_message": "You must authenticate with an identity from example.edu",
			"session_required_single_domain": ["example.edu"],
			"session_required_identities": ["id-1", "id-2"],
			"session_required_policies": "p1, p2",
			"session_required_mfa": true
		}
	}`

	err := newTransferAPIError(http.StatusUnauthorized, "hdr-id", []byte(body))

	ap := err.Info.AuthorizationParameters
	require.NotNil(t, ap)
	assert.Equal(t, "You must authenticate with an identity from example.edu", ap.SessionMessage)
	assert.Equal(t, []string{"example.edu"}, ap.SessionRequiredSingleDomain)
	assert.Equal(t, []string{"id-1", "id-2"}, ap.SessionRequiredIdentities)
	assert.Equal(t, []string{"p1", "p2"}, ap.SessionRequiredPolicies)
	assert.True(t, ap.SessionRequiredMFA)
	assert.Nil(t, err.Info.ConsentRequired)
	assert.Equal(t, "hdr-id", err.RequestID)
}

func TestNewTransferAPIError_SingleDomainAsString(t *testing.T) {
	body := `{"code":"AuthenticationFailed","authorization_parameters":{"session_required_single_domain":"a.edu,b.edu"}}`

	err := newTransferAPIError(http.StatusUnauthorized, "", []byte(body))
	require.NotNil(t, err.Info.AuthorizationParameters)
	assert.Equal(t, []string{"a.edu", "b.edu"}, err.Info.AuthorizationParameters.SessionRequiredSingleDomain)
}

func TestNewTransferAPIError_NonObjectAuthorizationParameters(t *testing.T) {
	err := newTransferAPIError(http.StatusUnauthorized, "", []byte(`{"authorization_parameters":null}`))
	assert.Nil(t, err.Info.AuthorizationParameters)
}

func TestNewTransferAPIError_NotJSON(t *testing.T) {
	err := newTransferAPIError(http.StatusBadGateway, "", []byte("<html>bad gateway</html>"))

	assert.Empty(t, err.Code)
	assert.ErrorIs(t, err, ErrServerError)
	assert.Equal(t, "globus: HTTP 502: <html>bad gateway</html>", err.Error())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(http.StatusTooManyRequests))
	assert.True(t, isRetryable(http.StatusServiceUnavailable))
	assert.False(t, isRetryable(http.StatusForbidden))
	assert.False(t, isRetryable(http.StatusNotFound))
}

func TestMergeScopes(t *testing.T) {
	got := MergeScopes([]string{TransferAll}, []string{"a", "", TransferAll, "b"}, []string{"a"})
	assert.Equal(t, []string{TransferAll, "a", "b"}, got)
	assert.Nil(t, MergeScopes())
}

func TestCollectionDataAccessScope(t *testing.T) {
	assert.Equal(t,
		"urn:globus:auth:scope:transfer.api.globus.org:all[*https://auth.globus.org/scopes/abc/data_access]",
		CollectionDataAccessScope("abc"))
}
