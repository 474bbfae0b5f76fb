package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/globus-transfer/internal/config"
	"github.com/tonimelisma/globus-transfer/internal/flow"
	"github.com/tonimelisma/globus-transfer/internal/globus"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagTokenFile  string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// CLIFlags is a snapshot of the persistent flags for one invocation.
type CLIFlags struct {
	ConfigPath string
	TokenFile  string
	JSON       bool
	Verbose    bool
	Quiet      bool
}

// CLIContext carries everything a command needs after the root pre-run:
// flags, effective configuration, and the logger built from both.
type CLIContext struct {
	Flags  CLIFlags
	Cfg    *config.Resolved
	Logger *slog.Logger
}

type cliContextKey struct{}

// cliContextFrom returns the CLIContext stored by the root pre-run, or nil.
func cliContextFrom(ctx context.Context) *CLIContext {
	cc, _ := ctx.Value(cliContextKey{}).(*CLIContext)
	return cc
}

// mustCLIContext is cliContextFrom for commands that always run after the
// root pre-run.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext missing from command context")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "globus-transfer",
		Short: "Submit consent-aware transfers between collections",
		Long: "A command-line transfer client: logs in with refresh tokens, checks collections " +
			"for missing consents, and submits transfers.",
		Version: version,
		// Silence Cobra's default error/usage printing; main handles errors.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagTokenFile, "token-file", "", "token file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newSubmitCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newConsentCmd())
	cmd.AddCommand(newTaskCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the override chain
// and stores a CLIContext in the command's context.
func loadConfig(cmd *cobra.Command) error {
	flags := CLIFlags{
		ConfigPath: flagConfigPath,
		TokenFile:  flagTokenFile,
		JSON:       flagJSON,
		Verbose:    flagVerbose,
		Quiet:      flagQuiet,
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), config.CLIOverrides{
		ConfigPath: flags.ConfigPath,
		TokenFile:  flags.TokenFile,
	})
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cc := &CLIContext{
		Flags:  flags,
		Cfg:    resolved,
		Logger: buildLogger(os.Stderr, resolved.LogLevel, flags.Verbose, flags.Quiet),
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

	return nil
}

// buildLogger creates an slog.Logger. The config-file level is the
// baseline; --verbose and --quiet override it because CLI flags always win.
func buildLogger(w io.Writer, cfgLevel string, verbose, quiet bool) *slog.Logger {
	level := slog.LevelInfo

	switch cfgLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if verbose {
		level = slog.LevelDebug
	}

	if quiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// httpClient returns an HTTP client bounded by the configured timeout.
func (cc *CLIContext) httpClient() *http.Client {
	return &http.Client{Timeout: cc.Cfg.RequestTimeout}
}

// storedAuth builds the token-file authenticator for commands that talk to
// the services.
func (cc *CLIContext) storedAuth() (*flow.StoredAuth, error) {
	if err := cc.Cfg.RequireClientID(); err != nil {
		return nil, err
	}

	httpClient := cc.httpClient()

	return &flow.StoredAuth{
		AuthClient: globus.NewAuthClient(globus.AuthConfig{
			ClientID:    cc.Cfg.ClientID,
			BaseURL:     cc.Cfg.AuthBaseURL,
			RedirectURI: cc.Cfg.RedirectURI,
			HTTPClient:  httpClient,
		}, cc.Logger),
		TokenPath:       cc.Cfg.TokenFile,
		Prompt:          flow.NewPrompt(os.Stdin, os.Stdout),
		Interactive:     stdinIsTerminal(),
		TransferBaseURL: cc.Cfg.TransferBaseURL,
		ClientOptions: globus.ClientOptions{
			HTTPClient:        httpClient,
			Logger:            cc.Logger,
			UserAgent:         cc.Cfg.UserAgent,
			RequestsPerSecond: cc.Cfg.RequestsPerSecond,
		},
		Logger: cc.Logger,
	}, nil
}

// transferClient builds a client from stored tokens, translating a missing
// login into an actionable message.
func (cc *CLIContext) transferClient(ctx context.Context) (*globus.Client, error) {
	auth, err := cc.storedAuth()
	if err != nil {
		return nil, err
	}

	return clientFromAuth(ctx, auth)
}

func clientFromAuth(ctx context.Context, auth *flow.StoredAuth) (*globus.Client, error) {
	client, err := auth.TransferClient(ctx)
	if errors.Is(err, globus.ErrNotLoggedIn) {
		return nil, errors.New("not logged in: run 'globus-transfer login' first")
	}

	return client, err
}

// stdinIsTerminal reports whether an interactive login can prompt.
func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// errorHint returns a follow-up line for errors the user can fix by logging
// in, or "".
func errorHint(err error) string {
	switch {
	case errors.Is(err, flow.ErrNotInteractive):
		return "Run 'globus-transfer login' from a terminal first."
	case errors.Is(err, globus.ErrNotLoggedIn):
		return "Run 'globus-transfer login' to log in again."
	default:
		return ""
	}
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	if hint := errorHint(err); hint != "" {
		fmt.Fprintln(os.Stderr, hint)
	}

	os.Exit(1)
}
