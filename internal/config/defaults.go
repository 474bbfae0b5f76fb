package config

import (
	"github.com/tonimelisma/globus-transfer/internal/flow"
	"github.com/tonimelisma/globus-transfer/internal/globus"
)

// Default values for configuration options. These are layer 0 of the
// override chain.
const (
	defaultTokenFileName     = ".globus-transfer-tokens.json"
	defaultAuthBaseURL       = globus.DefaultAuthBaseURL
	defaultRedirectURI       = globus.DefaultRedirectURI
	defaultTransferBaseURL   = globus.DefaultTransferBaseURL
	defaultSourcePath        = flow.DefaultSourcePath
	defaultDestinationPath   = flow.DefaultDestinationPath
	defaultLabelPrefix       = flow.DefaultLabelPrefix
	defaultPollInterval      = "15s"
	defaultLogLevel          = "info"
	defaultRequestTimeout    = "30s"
	defaultRequestsPerSecond = 10
	defaultUserAgent         = "globus-transfer/0.1"
)

// DefaultConfig returns a Config populated with all default values.
// This is the starting point for TOML decoding (so unset fields retain
// defaults) and the fallback when no config file exists. Paths that depend
// on the home directory are filled in during Resolve.
func DefaultConfig() *Config {
	return &Config{
		AuthConfig: AuthConfig{
			AuthBaseURL: defaultAuthBaseURL,
			RedirectURI: defaultRedirectURI,
		},
		TransferConfig: TransferConfig{
			TransferBaseURL: defaultTransferBaseURL,
			SourcePath:      defaultSourcePath,
			DestinationPath: defaultDestinationPath,
			LabelPrefix:     defaultLabelPrefix,
			PollInterval:    defaultPollInterval,
		},
		LoggingConfig: LoggingConfig{
			LogLevel: defaultLogLevel,
		},
		NetworkConfig: NetworkConfig{
			RequestTimeout:    defaultRequestTimeout,
			RequestsPerSecond: defaultRequestsPerSecond,
			UserAgent:         defaultUserAgent,
		},
	}
}
