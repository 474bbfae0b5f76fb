package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal errors with "did you mean?"
// suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	// 1. Config path: CLI > env > default.
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	// 2. Load config file (defaults if no file exists).
	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	// 3. Env overrides.
	if env.ClientID != "" {
		cfg.ClientID = env.ClientID
	}

	if env.TokenFile != "" {
		cfg.TokenFile = env.TokenFile
	}

	// 4. CLI overrides.
	if cli.TokenFile != "" {
		cfg.TokenFile = cli.TokenFile
	}

	resolved := buildResolved(cfg, cfgPath)

	if err := ValidateResolved(resolved); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return resolved, nil
}

// buildResolved fills home-relative defaults, expands tildes, and parses
// durations. Durations were validated by Load or come from defaults, so
// parse errors cannot occur here.
func buildResolved(cfg *Config, cfgPath string) *Resolved {
	tokenFile := cfg.TokenFile
	if tokenFile == "" {
		tokenFile = DefaultTokenFile()
	}

	historyDB := cfg.HistoryDB
	if historyDB == "" {
		historyDB = DefaultHistoryPath()
	}

	pollInterval, _ := time.ParseDuration(cfg.PollInterval)
	requestTimeout, _ := time.ParseDuration(cfg.RequestTimeout)

	return &Resolved{
		ConfigPath:        cfgPath,
		ClientID:          cfg.ClientID,
		TokenFile:         expandTilde(tokenFile),
		AuthBaseURL:       cfg.AuthBaseURL,
		RedirectURI:       cfg.RedirectURI,
		TransferBaseURL:   cfg.TransferBaseURL,
		SourcePath:        cfg.SourcePath,
		DestinationPath:   cfg.DestinationPath,
		LabelPrefix:       cfg.LabelPrefix,
		SyncLevel:         cfg.SyncLevel,
		VerifyChecksum:    cfg.VerifyChecksum,
		PollInterval:      pollInterval,
		HistoryDB:         expandTilde(historyDB),
		LogLevel:          cfg.LogLevel,
		RequestTimeout:    requestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		UserAgent:         cfg.UserAgent,
	}
}

// ErrNoClientID is returned by RequireClientID when no client ID is configured.
var ErrNoClientID = errors.New(
	"client_id is not set: register a native app at https://app.globus.org/settings/developers " +
		"and set client_id in the config file or " + EnvClientID)

// RequireClientID returns ErrNoClientID unless a client ID is configured.
// Commands that never talk to the auth service (config show, history) skip it.
func (r *Resolved) RequireClientID() error {
	if r.ClientID == "" {
		return ErrNoClientID
	}

	return nil
}
