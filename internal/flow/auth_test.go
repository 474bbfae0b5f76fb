package flow

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/globus-transfer/internal/globus"
	"github.com/tonimelisma/globus-transfer/internal/tokenfile"
)

const testTokenJSON = `{
	"access_token": "transfer-access",
	"token_type": "Bearer",
	"refresh_token": "transfer-refresh",
	"expires_in": 3600,
	"scope": "urn:globus:auth:scope:transfer.api.globus.org:all",
	"resource_server": "transfer.api.globus.org",
	"other_tokens": []
}`

// newTestStoredAuth wires StoredAuth to stub auth and transfer services.
func newTestStoredAuth(t *testing.T, stdin string) (*StoredAuth, *bytes.Buffer) {
	t.Helper()

	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/oauth2/token", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(testTokenJSON))
	}))
	t.Cleanup(authSrv.Close)

	transferSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer transfer-access", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"path":"/","DATA":[]}`))
	}))
	t.Cleanup(transferSrv.Close)

	var out bytes.Buffer

	return &StoredAuth{
		AuthClient:      globus.NewAuthClient(globus.AuthConfig{ClientID: "cid", BaseURL: authSrv.URL}, slog.Default()),
		TokenPath:       filepath.Join(t.TempDir(), "tokens.json"),
		Prompt:          NewPrompt(strings.NewReader(stdin), &out),
		Interactive:     true,
		TransferBaseURL: transferSrv.URL,
	}, &out
}

func TestStoredAuth_LoginThenClient(t *testing.T) {
	s, out := newTestStoredAuth(t, "the-code\n")
	ctx := context.Background()

	assert.False(t, s.HasTokens())

	require.NoError(t, s.Login(ctx, []string{globus.TransferAll}))
	assert.True(t, s.HasTokens())
	assert.Contains(t, out.String(), "Please go to this URL and login:")

	tok, err := tokenfile.Get(s.TokenPath, globus.TransferResourceServer)
	require.NoError(t, err)
	assert.Equal(t, "transfer-refresh", tok.RefreshToken)

	client, err := s.Client(ctx)
	require.NoError(t, err)

	listing, err := client.OperationLs(ctx, "c1", "/")
	require.NoError(t, err)
	assert.Equal(t, "/", listing.Path)
}

func TestStoredAuth_NotInteractive(t *testing.T) {
	s, out := newTestStoredAuth(t, "")
	s.Interactive = false

	err := s.Login(context.Background(), []string{globus.TransferAll})
	require.ErrorIs(t, err, ErrNotInteractive)
	assert.Empty(t, out.String())
	assert.False(t, s.HasTokens())
}

func TestStoredAuth_ClientNotLoggedIn(t *testing.T) {
	s, _ := newTestStoredAuth(t, "")

	_, err := s.TransferClient(context.Background())
	require.ErrorIs(t, err, globus.ErrNotLoggedIn)
}
