package globus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/tonimelisma/globus-transfer/internal/tokenfile"
)

const testClientID = "test-client-id"

// testTokenJSON is a token response carrying a transfer token at the top
// level and an auth token under other_tokens.
const testTokenJSON = `{
	"access_token": "transfer-access",
	"token_type": "Bearer",
	"refresh_token": "transfer-refresh",
	"expires_in": 3600,
	"scope": "urn:globus:auth:scope:transfer.api.globus.org:all",
	"resource_server": "transfer.api.globus.org",
	"other_tokens": [{
		"access_token": "auth-access",
		"token_type": "Bearer",
		"refresh_token": "auth-refresh",
		"expires_in": 172800,
		"scope": "openid",
		"resource_server": "auth.globus.org"
	}]
}`

// newMockAuthServer starts an auth service stub whose token endpoint is
// served by tokenHandler (or a default success response).
func newMockAuthServer(t *testing.T, tokenHandler http.HandlerFunc) *AuthClient {
	t.Helper()

	handler := tokenHandler
	if handler == nil {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(testTokenJSON))
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+tokenPath, handler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return NewAuthClient(AuthConfig{ClientID: testClientID, BaseURL: srv.URL}, slog.Default())
}

func TestNewAuthClient_Defaults(t *testing.T) {
	a := NewAuthClient(AuthConfig{ClientID: "id"}, nil)

	assert.Equal(t, "https://auth.globus.org/v2/oauth2/authorize", a.endpoint.AuthURL)
	assert.Equal(t, "https://auth.globus.org/v2/oauth2/token", a.endpoint.TokenURL)
	assert.Equal(t, oauth2.AuthStyleInParams, a.endpoint.AuthStyle)
	assert.Equal(t, DefaultRedirectURI, a.redirectURI)
}

func TestStartFlow_AuthorizeURL(t *testing.T) {
	a := NewAuthClient(AuthConfig{ClientID: testClientID, BaseURL: "https://auth.example.org/"}, slog.Default())

	flow, err := a.StartFlow([]string{TransferAll, CollectionDataAccessScope("c1")}, FlowOptions{
		SessionRequiredSingleDomain: []string{"a.edu", "b.edu"},
		PromptLogin:                 true,
	})
	require.NoError(t, err)

	u, err := url.Parse(flow.AuthorizeURL())
	require.NoError(t, err)

	assert.Equal(t, "auth.example.org", u.Host)
	assert.Equal(t, authorizePath, u.Path)

	q := u.Query()
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, DefaultRedirectURI, q.Get("redirect_uri"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.Len(t, q.Get("state"), stateTokenBytes*2)
	assert.Equal(t, "a.edu,b.edu", q.Get("session_required_single_domain"))
	assert.Equal(t, "login", q.Get("prompt"))
	assert.Equal(t, TransferAll+" "+CollectionDataAccessScope("c1"), q.Get("scope"))
}

func TestStartFlow_NoScopes(t *testing.T) {
	a := NewAuthClient(AuthConfig{ClientID: testClientID}, slog.Default())

	_, err := a.StartFlow(nil, FlowOptions{})
	require.Error(t, err)
}

func TestStartFlow_UniqueState(t *testing.T) {
	a := NewAuthClient(AuthConfig{ClientID: testClientID}, slog.Default())

	f1, err := a.StartFlow([]string{TransferAll}, FlowOptions{})
	require.NoError(t, err)

	f2, err := a.StartFlow([]string{TransferAll}, FlowOptions{})
	require.NoError(t, err)

	assert.NotEqual(t, f1.state, f2.state)
	assert.NotEqual(t, f1.verifier, f2.verifier)
}

func TestExchange_SendsVerifierAndClientID(t *testing.T) {
	var form url.Values

	a := newMockAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(testTokenJSON))
	})

	flow, err := a.StartFlow([]string{TransferAll}, FlowOptions{})
	require.NoError(t, err)

	resp, err := flow.Exchange(context.Background(), "  the-code\n")
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "the-code", form.Get("code"))
	assert.Equal(t, testClientID, form.Get("client_id"))
	assert.Equal(t, flow.verifier, form.Get("code_verifier"))
	assert.Equal(t, DefaultRedirectURI, form.Get("redirect_uri"))
}

func TestExchange_EmptyCode(t *testing.T) {
	a := newMockAuthServer(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("token endpoint should not be called")
	})

	flow, err := a.StartFlow([]string{TransferAll}, FlowOptions{})
	require.NoError(t, err)

	_, err = flow.Exchange(context.Background(), "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty authorization code")
}

func TestExchange_ServerError(t *testing.T) {
	a := newMockAuthServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	})

	flow, err := a.StartFlow([]string{TransferAll}, FlowOptions{})
	require.NoError(t, err)

	_, err = flow.Exchange(context.Background(), "bad-code")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token exchange failed")
}

func TestTokenResponse_ByResourceServer(t *testing.T) {
	a := newMockAuthServer(t, nil)

	resp, err := a.Login(context.Background(), []string{TransferAll}, FlowOptions{},
		func(_ context.Context, _ string) (string, error) { return "code", nil })
	require.NoError(t, err)

	resp.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	byRS, err := resp.ByResourceServer()
	require.NoError(t, err)
	require.Len(t, byRS, 2)

	transfer := byRS[TransferResourceServer]
	require.NotNil(t, transfer)
	assert.Equal(t, "transfer-access", transfer.AccessToken)
	assert.Equal(t, "transfer-refresh", transfer.RefreshToken)

	auth := byRS[AuthResourceServer]
	require.NotNil(t, auth)
	assert.Equal(t, "auth-access", auth.AccessToken)
	assert.Equal(t, "auth-refresh", auth.RefreshToken)
	assert.Equal(t, "openid", auth.Extra("scope"))
	assert.Equal(t, time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC), auth.Expiry)

	assert.Same(t, transfer, resp.Token(TransferResourceServer))
	assert.Nil(t, resp.Token("unknown.example.org"))
}

func TestTokenResponse_MissingResourceServer(t *testing.T) {
	resp := &TokenResponse{token: &oauth2.Token{AccessToken: "a"}, now: time.Now}

	_, err := resp.ByResourceServer()
	require.Error(t, err)
	assert.Nil(t, resp.Token(TransferResourceServer))
}

func TestTokenResponse_MalformedOtherTokens(t *testing.T) {
	tok := (&oauth2.Token{AccessToken: "a"}).WithExtra(map[string]any{
		"resource_server": TransferResourceServer,
		"other_tokens":    []any{map[string]any{"resource_server": "x"}},
	})
	resp := &TokenResponse{token: tok, now: time.Now}

	_, err := resp.ByResourceServer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "other_tokens[0]")
}

func TestLogin_PromptSeesURL(t *testing.T) {
	a := newMockAuthServer(t, nil)

	var shown string

	_, err := a.Login(context.Background(), []string{TransferAll}, FlowOptions{},
		func(_ context.Context, u string) (string, error) {
			shown = u
			return "code", nil
		})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(shown, a.endpoint.AuthURL+"?"))
}

func TestLogin_PromptError(t *testing.T) {
	a := newMockAuthServer(t, nil)

	_, err := a.Login(context.Background(), []string{TransferAll}, FlowOptions{},
		func(_ context.Context, _ string) (string, error) { return "", io.ErrUnexpectedEOF })
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestSaveTokens(t *testing.T) {
	a := newMockAuthServer(t, nil)
	path := filepath.Join(t.TempDir(), "tokens.json")

	resp, err := a.Login(context.Background(), []string{TransferAll}, FlowOptions{},
		func(_ context.Context, _ string) (string, error) { return "code", nil })
	require.NoError(t, err)
	require.NoError(t, SaveTokens(path, resp))

	tf, err := tokenfile.Load(path)
	require.NoError(t, err)
	require.Contains(t, tf.ByResourceServer, TransferResourceServer)
	require.Contains(t, tf.ByResourceServer, AuthResourceServer)
	assert.Equal(t, TransferAll, tf.ByResourceServer[TransferResourceServer].Scope)
	assert.Equal(t, "auth-refresh", tf.ByResourceServer[AuthResourceServer].RefreshToken)
}

func TestAuthorizerFromFile_NoFile(t *testing.T) {
	a := NewAuthClient(AuthConfig{ClientID: testClientID}, slog.Default())

	_, err := a.AuthorizerFromFile(context.Background(), filepath.Join(t.TempDir(), "none.json"), TransferResourceServer)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestAuthorizerFromFile_MissingResourceServer(t *testing.T) {
	a := NewAuthClient(AuthConfig{ClientID: testClientID}, slog.Default())
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, tokenfile.Update(path, AuthResourceServer, &oauth2.Token{AccessToken: "a"}))

	_, err := a.AuthorizerFromFile(context.Background(), path, TransferResourceServer)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	assert.ErrorIs(t, err, tokenfile.ErrNoToken)
}

func TestAuthorizerFromFile_ValidToken(t *testing.T) {
	a := newMockAuthServer(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("valid token should not be refreshed")
	})
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, tokenfile.Update(path, TransferResourceServer, &oauth2.Token{
		AccessToken:  "still-good",
		RefreshToken: "r",
		Expiry:       time.Now().Add(time.Hour),
	}))

	authz, err := a.AuthorizerFromFile(context.Background(), path, TransferResourceServer)
	require.NoError(t, err)

	tok, err := authz.Token()
	require.NoError(t, err)
	assert.Equal(t, "still-good", tok)
}

func TestAuthorizerFromFile_RefreshPersists(t *testing.T) {
	var form url.Values

	a := newMockAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"refreshed","token_type":"Bearer","expires_in":3600}`))
	})

	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, tokenfile.Update(path, TransferResourceServer, &oauth2.Token{
		AccessToken:  "expired",
		RefreshToken: "the-refresh",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	authz, err := a.AuthorizerFromFile(context.Background(), path, TransferResourceServer)
	require.NoError(t, err)

	tok, err := authz.Token()
	require.NoError(t, err)
	assert.Equal(t, "refreshed", tok)

	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "the-refresh", form.Get("refresh_token"))
	assert.Equal(t, testClientID, form.Get("client_id"))

	stored, err := tokenfile.Get(path, TransferResourceServer)
	require.NoError(t, err)
	assert.Equal(t, "refreshed", stored.AccessToken)
	assert.Equal(t, "the-refresh", stored.RefreshToken)
	assert.True(t, stored.Expiry.After(time.Now()))
}

func TestRefreshTokenAuthorizer_RefreshFails(t *testing.T) {
	a := newMockAuthServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	})

	var refreshed bool

	authz := a.NewRefreshTokenAuthorizer(context.Background(), &oauth2.Token{
		AccessToken:  "expired",
		RefreshToken: "revoked",
		Expiry:       time.Now().Add(-time.Hour),
	}, func(*oauth2.Token) { refreshed = true })

	_, err := authz.Token()
	require.Error(t, err)
	assert.False(t, refreshed)

	var retrieveErr *oauth2.RetrieveError
	assert.True(t, errors.As(err, &retrieveErr))
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestRefreshTokenAuthorizer_OtherRefreshErrorIsNotLogout(t *testing.T) {
	a := newMockAuthServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	})

	authz := a.NewRefreshTokenAuthorizer(context.Background(), &oauth2.Token{
		AccessToken:  "expired",
		RefreshToken: "r",
		Expiry:       time.Now().Add(-time.Hour),
	}, nil)

	_, err := authz.Token()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotLoggedIn)
}

func TestLogout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, tokenfile.Update(path, TransferResourceServer, &oauth2.Token{AccessToken: "a"}))

	require.NoError(t, Logout(path, slog.Default()))
	assert.False(t, tokenfile.Exists(path))

	// Already logged out.
	require.NoError(t, Logout(path, slog.Default()))
}

func TestGenerateState(t *testing.T) {
	s1, err := generateState()
	require.NoError(t, err)
	assert.Len(t, s1, stateTokenBytes*2)

	s2, err := generateState()
	require.NoError(t, err)
	assert.NotEqual(t, s1, s2)
}
