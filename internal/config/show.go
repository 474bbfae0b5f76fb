package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as a human-readable
// summary to w. This powers "config show". The client ID is shown because it
// is public; token values are never part of the configuration.
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (config file: %s)\n\n", r.ConfigPath)

	ew.printf("# auth\n")
	ew.printf("  client_id           = %q\n", r.ClientID)
	ew.printf("  token_file          = %q\n", r.TokenFile)
	ew.printf("  auth_base_url       = %q\n", r.AuthBaseURL)
	ew.printf("  redirect_uri        = %q\n", r.RedirectURI)

	ew.printf("\n# transfer\n")
	ew.printf("  transfer_base_url   = %q\n", r.TransferBaseURL)
	ew.printf("  source_path         = %q\n", r.SourcePath)
	ew.printf("  destination_path    = %q\n", r.DestinationPath)
	ew.printf("  label_prefix        = %q\n", r.LabelPrefix)
	ew.printf("  sync_level          = %q\n", r.SyncLevel)
	ew.printf("  verify_checksum     = %t\n", r.VerifyChecksum)
	ew.printf("  poll_interval       = %q\n", r.PollInterval.String())
	ew.printf("  history_db          = %q\n", r.HistoryDB)

	ew.printf("\n# logging\n")
	ew.printf("  log_level           = %q\n", r.LogLevel)

	ew.printf("\n# network\n")
	ew.printf("  request_timeout     = %q\n", r.RequestTimeout.String())
	ew.printf("  requests_per_second = %g\n", r.RequestsPerSecond)
	ew.printf("  user_agent          = %q\n", r.UserAgent)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
