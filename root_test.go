package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/globus-transfer/internal/config"
	"github.com/tonimelisma/globus-transfer/internal/flow"
	"github.com/tonimelisma/globus-transfer/internal/globus"
)

// Global flag reset pattern: newRootCmd() binds flags via StringVar/BoolVar,
// which reset the global flag variables to their zero values. Tests set
// globals after newRootCmd() returns.

// resetFlags restores the persistent flag globals after a test.
func resetFlags(t *testing.T) {
	t.Helper()

	oldConfig, oldToken := flagConfigPath, flagTokenFile
	oldJSON, oldVerbose, oldQuiet := flagJSON, flagVerbose, flagQuiet

	t.Cleanup(func() {
		flagConfigPath, flagTokenFile = oldConfig, oldToken
		flagJSON, flagVerbose, flagQuiet = oldJSON, oldVerbose, oldQuiet
	})
}

// writeConfig writes a config file into a temp dir and points the config
// env var at it.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv(config.EnvConfig, path)
	t.Setenv(config.EnvClientID, "")
	t.Setenv(config.EnvTokenFile, "")

	return dir
}

func TestBuildLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		cfgLevel string
		verbose  bool
		quiet    bool
		want     slog.Level
	}{
		{"default info", "", false, false, slog.LevelInfo},
		{"config debug", "debug", false, false, slog.LevelDebug},
		{"config warn", "warn", false, false, slog.LevelWarn},
		{"config error", "error", false, false, slog.LevelError},
		{"verbose overrides config", "error", true, false, slog.LevelDebug},
		{"quiet overrides config", "debug", false, true, slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := buildLogger(&bytes.Buffer{}, tt.cfgLevel, tt.verbose, tt.quiet).Handler()

			assert.True(t, h.Enabled(context.Background(), tt.want))
			assert.False(t, h.Enabled(context.Background(), tt.want-1))
		})
	}
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	resetFlags(t)

	cmd := newRootCmd()

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	for _, want := range []string{"submit", "login", "logout", "ls", "consent", "task", "history", "config"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestLoadConfig_StoresCLIContext(t *testing.T) {
	resetFlags(t)

	dir := writeConfig(t, `
client_id = "abc"
log_level = "warn"
`)

	cmd := newRootCmd()
	flagTokenFile = filepath.Join(dir, "tokens.json")
	flagJSON = true

	sub := &cobra.Command{Use: "probe"}
	sub.SetContext(context.Background())

	require.NoError(t, loadConfig(sub))

	cc := cliContextFrom(sub.Context())
	require.NotNil(t, cc)
	assert.Equal(t, "abc", cc.Cfg.ClientID)
	assert.Equal(t, filepath.Join(dir, "tokens.json"), cc.Cfg.TokenFile)
	assert.Equal(t, "warn", cc.Cfg.LogLevel)
	assert.True(t, cc.Flags.JSON)
	assert.NotNil(t, cc.Logger)
	assert.NotNil(t, cmd)
}

func TestLoadConfig_InvalidConfig(t *testing.T) {
	resetFlags(t)
	writeConfig(t, `bogus_key = 1`)

	newRootCmd()

	sub := &cobra.Command{Use: "probe"}
	sub.SetContext(context.Background())

	err := loadConfig(sub)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}

func TestMustCLIContext_Panics(t *testing.T) {
	assert.Panics(t, func() { mustCLIContext(context.Background()) })
}

func TestStoredAuth_RequiresClientID(t *testing.T) {
	cc := &CLIContext{Cfg: &config.Resolved{}}

	_, err := cc.storedAuth()
	require.ErrorIs(t, err, config.ErrNoClientID)
}

func TestStoredAuth_Wiring(t *testing.T) {
	cc := &CLIContext{
		Cfg: &config.Resolved{
			ClientID:          "abc",
			TokenFile:         "/tmp/tokens.json",
			TransferBaseURL:   "https://transfer.example.org",
			RequestsPerSecond: 3,
			UserAgent:         "ua",
		},
		Logger: buildLogger(&bytes.Buffer{}, "", false, false),
	}

	auth, err := cc.storedAuth()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/tokens.json", auth.TokenPath)
	assert.Equal(t, "https://transfer.example.org", auth.TransferBaseURL)
	assert.Equal(t, "ua", auth.ClientOptions.UserAgent)
	assert.InDelta(t, 3.0, auth.ClientOptions.RequestsPerSecond, 0.001)
	assert.NotNil(t, auth.Prompt)
}

func TestTransferClient_NotLoggedIn(t *testing.T) {
	cc := &CLIContext{
		Cfg: &config.Resolved{
			ClientID:  "abc",
			TokenFile: filepath.Join(t.TempDir(), "none.json"),
		},
		Logger: buildLogger(&bytes.Buffer{}, "", false, false),
	}

	_, err := cc.transferClient(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}

func TestNewRunner_FlagsOverrideConfig(t *testing.T) {
	cmd := newSubmitCmd()
	require.NoError(t, cmd.Flags().Set("source-path", "/flag/src"))
	require.NoError(t, cmd.Flags().Set("label", "flag label"))

	cc := &CLIContext{Cfg: &config.Resolved{
		SourcePath:      "/cfg/src",
		DestinationPath: "/cfg/dst",
		LabelPrefix:     "prefix",
		SyncLevel:       "mtime",
		VerifyChecksum:  true,
	}}

	r, err := newRunner(cmd, cc, &flow.StoredAuth{})
	require.NoError(t, err)

	assert.Equal(t, "/flag/src", r.SourcePath)
	assert.Equal(t, "/cfg/dst", r.DestinationPath)
	assert.Equal(t, "flag label", r.Label)
	assert.Equal(t, "prefix", r.LabelPrefix)
	require.NotNil(t, r.SyncLevel)
	assert.Equal(t, globus.SyncMtime, *r.SyncLevel)
	assert.True(t, r.VerifyChecksum)
}

func TestNewRunner_BadSyncLevel(t *testing.T) {
	cc := &CLIContext{Cfg: &config.Resolved{SyncLevel: "sometimes"}}

	_, err := newRunner(newSubmitCmd(), cc, &flow.StoredAuth{})
	require.Error(t, err)
}

func TestValidateCollectionIDs(t *testing.T) {
	require.NoError(t, validateCollectionIDs(
		"ddb59aef-6d04-11e5-ba46-22000b92c6ec",
		"ddb59af0-6d04-11e5-ba46-22000b92c6ec",
	))

	err := validateCollectionIDs("ddb59aef-6d04-11e5-ba46-22000b92c6ec", "not-a-uuid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-a-uuid")
}

func TestSubmitCmd_Args(t *testing.T) {
	cmd := newSubmitCmd()

	require.Error(t, cmd.Args(cmd, []string{"only-one"}))
	require.NoError(t, cmd.Args(cmd, []string{"a", "b"}))
}

func TestErrorHint(t *testing.T) {
	rejected := fmt.Errorf("flow: submitting transfer: globus: GET /submission_id: obtaining token: %w",
		fmt.Errorf("%w: refresh token rejected", globus.ErrNotLoggedIn))

	assert.Contains(t, errorHint(rejected), "globus-transfer login")
	assert.Contains(t, errorHint(fmt.Errorf("x: %w", flow.ErrNotInteractive)), "from a terminal")
	assert.Empty(t, errorHint(errors.New("boom")))
}
