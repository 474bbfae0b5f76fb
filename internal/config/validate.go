package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// Validation range constants.
const (
	minRequestTimeout  = 1 * time.Second
	minPollInterval    = 1 * time.Second
	maxLabelLength     = 128
	labelSuffixLength  = len(" - 20060102T150405")
	maxLabelPrefixSize = maxLabelLength - labelSuffixLength
)

// validLogLevels are the accepted log_level values.
var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// validSyncLevels are the accepted sync_level values. Empty means "always
// transfer".
var validSyncLevels = map[string]bool{
	"": true, "exists": true, "size": true, "mtime": true, "checksum": true,
}

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateAuth(&cfg.AuthConfig)...)
	errs = append(errs, validateTransfer(&cfg.TransferConfig)...)
	errs = append(errs, validateLogging(&cfg.LoggingConfig)...)
	errs = append(errs, validateNetwork(&cfg.NetworkConfig)...)

	return errors.Join(errs...)
}

// ValidateResolved checks constraints that only make sense after the
// override chain has been applied.
func ValidateResolved(r *Resolved) error {
	var errs []error

	if r.TokenFile == "" {
		errs = append(errs, errors.New("token_file: cannot determine home directory; set token_file explicitly"))
	} else if !filepath.IsAbs(r.TokenFile) {
		errs = append(errs, fmt.Errorf("token_file: must be absolute after expansion, got %q", r.TokenFile))
	}

	if r.HistoryDB != "" && !filepath.IsAbs(r.HistoryDB) {
		errs = append(errs, fmt.Errorf("history_db: must be absolute after expansion, got %q", r.HistoryDB))
	}

	return errors.Join(errs...)
}

func validateAuth(a *AuthConfig) []error {
	var errs []error

	if err := validateURL("auth_base_url", a.AuthBaseURL); err != nil {
		errs = append(errs, err)
	}

	if err := validateURL("redirect_uri", a.RedirectURI); err != nil {
		errs = append(errs, err)
	}

	if strings.ContainsAny(a.ClientID, " \t\n") {
		errs = append(errs, fmt.Errorf("client_id: must not contain whitespace, got %q", a.ClientID))
	}

	return errs
}

func validateTransfer(t *TransferConfig) []error {
	var errs []error

	if err := validateURL("transfer_base_url", t.TransferBaseURL); err != nil {
		errs = append(errs, err)
	}

	errs = append(errs, validateEndpointPath("source_path", t.SourcePath)...)
	errs = append(errs, validateEndpointPath("destination_path", t.DestinationPath)...)

	if len(t.LabelPrefix) > maxLabelPrefixSize {
		errs = append(errs, fmt.Errorf("label_prefix: must be at most %d characters, got %d",
			maxLabelPrefixSize, len(t.LabelPrefix)))
	}

	if !validSyncLevels[t.SyncLevel] {
		errs = append(errs, fmt.Errorf("sync_level: must be one of exists, size, mtime, checksum; got %q", t.SyncLevel))
	}

	if err := validateDuration("poll_interval", t.PollInterval, minPollInterval); err != nil {
		errs = append(errs, err)
	}

	return errs
}

func validateLogging(l *LoggingConfig) []error {
	if !validLogLevels[l.LogLevel] {
		return []error{fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", l.LogLevel)}
	}

	return nil
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	if err := validateDuration("request_timeout", n.RequestTimeout, minRequestTimeout); err != nil {
		errs = append(errs, err)
	}

	if n.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requests_per_second: must be >= 0 (0 disables throttling), got %g",
			n.RequestsPerSecond))
	}

	if strings.TrimSpace(n.UserAgent) == "" {
		errs = append(errs, errors.New("user_agent: must not be empty"))
	}

	return errs
}

// validateEndpointPath checks a path on a collection. The service expects
// absolute paths; "/~/" addresses the user's home on the collection.
func validateEndpointPath(field, value string) []error {
	if !strings.HasPrefix(value, "/") {
		return []error{fmt.Errorf("%s: must start with \"/\", got %q", field, value)}
	}

	if strings.HasSuffix(value, "/") {
		return []error{fmt.Errorf("%s: must name a file, not a directory, got %q", field, value)}
	}

	return nil
}

func validateURL(field, value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}

	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("%s: must be an http(s) URL, got %q", field, value)
	}

	if u.Host == "" {
		return fmt.Errorf("%s: missing host in %q", field, value)
	}

	return nil
}

func validateDuration(field, value string, minimum time.Duration) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}

	if d < minimum {
		return fmt.Errorf("%s: must be >= %s, got %s", field, minimum, value)
	}

	return nil
}
