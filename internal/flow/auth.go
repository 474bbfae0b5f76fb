package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tonimelisma/globus-transfer/internal/globus"
	"github.com/tonimelisma/globus-transfer/internal/tokenfile"
)

// ErrNotInteractive is returned when a login is needed but there is no
// terminal to prompt on.
var ErrNotInteractive = errors.New("flow: login required but stdin is not a terminal")

// StoredAuth is the Authenticator backed by a token file.
type StoredAuth struct {
	AuthClient *globus.AuthClient
	TokenPath  string
	Prompt     globus.Prompt
	// Interactive must be true for Login to prompt.
	Interactive bool
	FlowOptions globus.FlowOptions

	TransferBaseURL string
	ClientOptions   globus.ClientOptions
	Logger          *slog.Logger
}

// HasTokens reports whether the token file exists.
func (s *StoredAuth) HasTokens() bool {
	return tokenfile.Exists(s.TokenPath)
}

// Login runs the interactive login and stores every returned token.
func (s *StoredAuth) Login(ctx context.Context, scopes []string) error {
	if !s.Interactive {
		return ErrNotInteractive
	}

	resp, err := s.AuthClient.Login(ctx, scopes, s.FlowOptions, s.Prompt)
	if err != nil {
		return err
	}

	if err := globus.SaveTokens(s.TokenPath, resp); err != nil {
		return err
	}

	s.logger().Info("login successful", slog.String("token_file", s.TokenPath))

	return nil
}

// Client builds a workflow client from the stored transfer token.
func (s *StoredAuth) Client(ctx context.Context) (TransferAPI, error) {
	return s.TransferClient(ctx)
}

// TransferClient builds a full transfer client from the stored transfer
// token. Refreshed tokens are written back to the token file.
func (s *StoredAuth) TransferClient(ctx context.Context) (*globus.Client, error) {
	authz, err := s.AuthClient.AuthorizerFromFile(ctx, s.TokenPath, globus.TransferResourceServer)
	if err != nil {
		return nil, fmt.Errorf("flow: loading transfer tokens: %w", err)
	}

	opts := s.ClientOptions
	if opts.Logger == nil {
		opts.Logger = s.logger()
	}

	base := s.TransferBaseURL
	if base == "" {
		base = globus.DefaultTransferBaseURL
	}

	return globus.NewClient(base, authz, opts), nil
}

func (s *StoredAuth) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}

	return s.Logger
}
