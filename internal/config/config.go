// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for globus-transfer. It supports a
// four-layer override chain (defaults -> config file -> environment -> CLI
// flags). All keys are flat and live at the top level of the file.
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
// The embedded section structs are flattened by the TOML decoder, so
// `client_id` and `log_level` sit side by side in the file.
type Config struct {
	AuthConfig
	TransferConfig
	LoggingConfig
	NetworkConfig
}

// AuthConfig identifies the registered native app and where its tokens live.
// client_id has no default: every deployment registers its own app.
type AuthConfig struct {
	ClientID    string `toml:"client_id"`
	TokenFile   string `toml:"token_file"`
	AuthBaseURL string `toml:"auth_base_url"`
	RedirectURI string `toml:"redirect_uri"`
}

// TransferConfig controls what a submission looks like and where task
// history is recorded.
type TransferConfig struct {
	TransferBaseURL string `toml:"transfer_base_url"`
	SourcePath      string `toml:"source_path"`
	DestinationPath string `toml:"destination_path"`
	LabelPrefix     string `toml:"label_prefix"`
	SyncLevel       string `toml:"sync_level"`
	VerifyChecksum  bool   `toml:"verify_checksum"`
	PollInterval    string `toml:"poll_interval"`
	HistoryDB       string `toml:"history_db"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	LogLevel string `toml:"log_level"`
}

// NetworkConfig controls HTTP client behavior.
type NetworkConfig struct {
	RequestTimeout    string  `toml:"request_timeout"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	UserAgent         string  `toml:"user_agent"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Empty strings mean "not specified".
type CLIOverrides struct {
	ConfigPath string // --config
	TokenFile  string // --token-file
}

// Resolved is the effective configuration after all override layers have
// been applied, with paths expanded and durations parsed.
type Resolved struct {
	ConfigPath string

	ClientID    string
	TokenFile   string
	AuthBaseURL string
	RedirectURI string

	TransferBaseURL string
	SourcePath      string
	DestinationPath string
	LabelPrefix     string
	SyncLevel       string
	VerifyChecksum  bool
	PollInterval    time.Duration
	HistoryDB       string

	LogLevel string

	RequestTimeout    time.Duration
	RequestsPerSecond float64
	UserAgent         string
}
