package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig    = "GLOBUS_TRANSFER_CONFIG"
	EnvClientID  = "GLOBUS_TRANSFER_CLIENT_ID"
	EnvTokenFile = "GLOBUS_TRANSFER_TOKEN_FILE"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // GLOBUS_TRANSFER_CONFIG: override config file path
	ClientID   string // GLOBUS_TRANSFER_CLIENT_ID: native app client ID
	TokenFile  string // GLOBUS_TRANSFER_TOKEN_FILE: token file path
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		ClientID:   os.Getenv(EnvClientID),
		TokenFile:  os.Getenv(EnvTokenFile),
	}
}
