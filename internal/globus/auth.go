package globus

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/tonimelisma/globus-transfer/internal/tokenfile"
)

// Auth service defaults for a native (public) app.
const (
	DefaultAuthBaseURL = "https://auth.globus.org"
	// DefaultRedirectURI shows the authorization code on a page so the user
	// can paste it into the terminal.
	DefaultRedirectURI = "https://auth.globus.org/v2/web/auth-code"

	authorizePath = "/v2/oauth2/authorize"
	tokenPath     = "/v2/oauth2/token"
)

// errCodeInvalidGrant is the OAuth2 error for an unusable refresh token.
const errCodeInvalidGrant = "invalid_grant"

// stateTokenBytes is the number of random bytes for the OAuth2 state parameter.
const stateTokenBytes = 16

// AuthConfig describes the registered native app.
type AuthConfig struct {
	ClientID    string
	BaseURL     string // defaults to DefaultAuthBaseURL
	RedirectURI string // defaults to DefaultRedirectURI
	HTTPClient  *http.Client
}

// AuthClient runs authorization-code logins and builds refresh-token
// authorizers for one native app. It holds no tokens itself.
type AuthClient struct {
	clientID    string
	endpoint    oauth2.Endpoint
	redirectURI string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewAuthClient creates an AuthClient. Public clients authenticate with
// client_id in the request body and no secret.
func NewAuthClient(cfg AuthConfig, logger *slog.Logger) *AuthClient {
	if logger == nil {
		logger = slog.Default()
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultAuthBaseURL
	}

	redirect := cfg.RedirectURI
	if redirect == "" {
		redirect = DefaultRedirectURI
	}

	return &AuthClient{
		clientID: cfg.ClientID,
		endpoint: oauth2.Endpoint{
			AuthURL:   base + authorizePath,
			TokenURL:  base + tokenPath,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		redirectURI: redirect,
		httpClient:  cfg.HTTPClient,
		logger:      logger,
	}
}

// oauthConfig builds the oauth2 config for scopes. onChange, when non-nil,
// is invoked by the token source after every silent refresh.
func (a *AuthClient) oauthConfig(scopes []string, onChange func(*oauth2.Token)) *oauth2.Config {
	return &oauth2.Config{
		ClientID:      a.clientID,
		Endpoint:      a.endpoint,
		RedirectURL:   a.redirectURI,
		Scopes:        scopes,
		OnTokenChange: onChange,
	}
}

// withHTTPClient makes the oauth2 library use the configured HTTP client.
func (a *AuthClient) withHTTPClient(ctx context.Context) context.Context {
	if a.httpClient == nil {
		return ctx
	}

	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

// FlowOptions adjusts the authorization URL of a login flow.
type FlowOptions struct {
	// SessionRequiredSingleDomain asks the auth service to require an
	// identity from one of these domains in the session.
	SessionRequiredSingleDomain []string
	// PromptLogin forces re-authentication even with a live session.
	PromptLogin bool
}

// Flow is one started authorization-code flow with PKCE. The verifier lives
// only in memory: a flow cannot outlive the process that started it.
type Flow struct {
	auth     *AuthClient
	cfg      *oauth2.Config
	verifier string
	state    string
	opts     []oauth2.AuthCodeOption
}

// StartFlow begins a login requesting scopes with refresh tokens.
func (a *AuthClient) StartFlow(scopes []string, fo FlowOptions) (*Flow, error) {
	if len(scopes) == 0 {
		return nil, errors.New("globus: login requires at least one scope")
	}

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("globus: generating state token: %w", err)
	}

	verifier := oauth2.GenerateVerifier()

	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	}

	if len(fo.SessionRequiredSingleDomain) > 0 {
		opts = append(opts, oauth2.SetAuthURLParam(
			"session_required_single_domain", strings.Join(fo.SessionRequiredSingleDomain, ",")))
	}

	if fo.PromptLogin {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", "login"))
	}

	return &Flow{
		auth:     a,
		cfg:      a.oauthConfig(scopes, nil),
		verifier: verifier,
		state:    state,
		opts:     opts,
	}, nil
}

// AuthorizeURL is the URL the user visits to log in and consent.
func (f *Flow) AuthorizeURL() string {
	return f.cfg.AuthCodeURL(f.state, f.opts...)
}

// Exchange trades an authorization code for tokens.
func (f *Flow) Exchange(ctx context.Context, code string) (*TokenResponse, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.New("globus: empty authorization code")
	}

	f.auth.logger.Info("exchanging authorization code for tokens")

	tok, err := f.cfg.Exchange(f.auth.withHTTPClient(ctx), code, oauth2.VerifierOption(f.verifier))
	if err != nil {
		return nil, fmt.Errorf("globus: token exchange failed: %w", err)
	}

	f.auth.logger.Info("token exchange successful", slog.Time("expiry", tok.Expiry))

	return &TokenResponse{token: tok, now: time.Now}, nil
}

// Prompt presents the authorization URL to the user and returns the code
// they paste back.
type Prompt func(ctx context.Context, authorizeURL string) (string, error)

// Login runs a complete interactive flow: start, prompt, exchange.
func (a *AuthClient) Login(ctx context.Context, scopes []string, fo FlowOptions, prompt Prompt) (*TokenResponse, error) {
	flow, err := a.StartFlow(scopes, fo)
	if err != nil {
		return nil, err
	}

	a.logger.Info("starting login flow", slog.Any("scopes", scopes))

	code, err := prompt(ctx, flow.AuthorizeURL())
	if err != nil {
		return nil, fmt.Errorf("globus: reading authorization code: %w", err)
	}

	return flow.Exchange(ctx, code)
}

// TokenResponse is the result of a code exchange. The service returns one
// token at the top level and the rest under "other_tokens", each tagged with
// the resource server it is for.
type TokenResponse struct {
	token *oauth2.Token
	now   func() time.Time
}

// ByResourceServer splits the response into one token per resource server.
func (r *TokenResponse) ByResourceServer() (map[string]*oauth2.Token, error) {
	rs, _ := r.token.Extra("resource_server").(string)
	if rs == "" {
		return nil, errors.New("globus: token response missing resource_server")
	}

	out := map[string]*oauth2.Token{rs: r.token}

	others, _ := r.token.Extra("other_tokens").([]any)
	for i, raw := range others {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("globus: other_tokens[%d] is not an object", i)
		}

		tok, otherRS, err := r.otherToken(m)
		if err != nil {
			return nil, fmt.Errorf("globus: other_tokens[%d]: %w", i, err)
		}

		out[otherRS] = tok
	}

	return out, nil
}

func (r *TokenResponse) otherToken(m map[string]any) (*oauth2.Token, string, error) {
	rs, _ := m["resource_server"].(string)
	access, _ := m["access_token"].(string)

	if rs == "" || access == "" {
		return nil, "", errors.New("missing resource_server or access_token")
	}

	refresh, _ := m["refresh_token"].(string)
	tokenType, _ := m["token_type"].(string)
	scope, _ := m["scope"].(string)

	tok := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenType,
	}

	if secs, ok := m["expires_in"].(float64); ok && secs > 0 {
		tok.Expiry = r.now().Add(time.Duration(secs) * time.Second)
	}

	return tok.WithExtra(map[string]any{"scope": scope, "resource_server": rs}), rs, nil
}

// Token returns the token for resourceServer, or nil.
func (r *TokenResponse) Token(resourceServer string) *oauth2.Token {
	byRS, err := r.ByResourceServer()
	if err != nil {
		return nil
	}

	return byRS[resourceServer]
}

// SaveTokens stores every token in resp into the token file at path.
func SaveTokens(path string, resp *TokenResponse) error {
	byRS, err := resp.ByResourceServer()
	if err != nil {
		return err
	}

	if err := tokenfile.Store(path, byRS); err != nil {
		return fmt.Errorf("globus: saving tokens: %w", err)
	}

	return nil
}

// RefreshTokenAuthorizer hands out access tokens for one resource server,
// refreshing them with the refresh token as they expire.
type RefreshTokenAuthorizer struct {
	src    oauth2.TokenSource
	logger *slog.Logger
}

// NewRefreshTokenAuthorizer wraps tok. onRefresh is called with every token
// minted by a silent refresh so it can be persisted.
//
// The authorizer binds ctx to the underlying token source: ctx must outlive
// it or silent refresh will fail.
func (a *AuthClient) NewRefreshTokenAuthorizer(
	ctx context.Context,
	tok *oauth2.Token,
	onRefresh func(*oauth2.Token),
) *RefreshTokenAuthorizer {
	cfg := a.oauthConfig(nil, onRefresh)

	return &RefreshTokenAuthorizer{
		src:    cfg.TokenSource(a.withHTTPClient(ctx), tok),
		logger: a.logger,
	}
}

// AuthorizerFromFile builds an authorizer from the tokens stored at path for
// resourceServer. Refreshed tokens are written back to the same file.
// Returns an error wrapping ErrNotLoggedIn when no usable token is stored.
func (a *AuthClient) AuthorizerFromFile(ctx context.Context, path, resourceServer string) (*RefreshTokenAuthorizer, error) {
	tok, err := tokenfile.Get(path, resourceServer)
	if errors.Is(err, tokenfile.ErrNoToken) {
		return nil, fmt.Errorf("%w: %w", ErrNotLoggedIn, err)
	}

	if err != nil {
		return nil, err
	}

	if tok == nil {
		return nil, ErrNotLoggedIn
	}

	expired := !tok.Expiry.IsZero() && tok.Expiry.Before(time.Now())
	a.logger.Info("loaded saved token",
		slog.String("path", path),
		slog.String("resource_server", resourceServer),
		slog.Time("expiry", tok.Expiry),
		slog.Bool("expired", expired),
	)

	return a.NewRefreshTokenAuthorizer(ctx, tok, func(fresh *oauth2.Token) {
		a.logger.Info("token refreshed",
			slog.String("resource_server", resourceServer),
			slog.Time("new_expiry", fresh.Expiry),
		)

		if saveErr := tokenfile.Update(path, resourceServer, fresh); saveErr != nil {
			a.logger.Warn("failed to persist refreshed token",
				slog.String("path", path),
				slog.String("error", saveErr.Error()),
			)
		}
	}), nil
}

// Token returns a valid access token, refreshing if needed.
func (r *RefreshTokenAuthorizer) Token() (string, error) {
	t, err := r.src.Token()
	if err != nil {
		r.logger.Warn("token acquisition failed", slog.String("error", err.Error()))

		// A revoked or expired refresh token needs a new login.
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == errCodeInvalidGrant {
			return "", fmt.Errorf("%w: refresh token rejected: %w", ErrNotLoggedIn, err)
		}

		return "", fmt.Errorf("globus: obtaining token: %w", err)
	}

	r.logger.Debug("token acquired",
		slog.Time("expiry", t.Expiry),
		slog.Bool("valid", t.Valid()),
	)

	return t.AccessToken, nil
}

// Logout removes the token file at path. A missing file is not an error.
func Logout(path string, logger *slog.Logger) error {
	if !tokenfile.Exists(path) {
		logger.Info("logout: no token file to remove (already logged out)", slog.String("path", path))
		return nil
	}

	if err := tokenfile.Remove(path); err != nil {
		return err
	}

	logger.Info("logout: removed token file", slog.String("path", path))

	return nil
}

// generateState produces a cryptographically random hex string for the
// OAuth2 state parameter.
func generateState() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
