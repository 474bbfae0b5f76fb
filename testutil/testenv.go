// Package testutil provides shared test environment helpers for E2E tests.
// It depends only on stdlib so that E2E tests (which cannot import
// internal/) can use it.
package testutil

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Names of the credential files under .testdata/.
const (
	TokenFileName  = "tokens.json"
	ConfigFileName = "config.toml"
)

// AllowlistEnv names the comma-separated list of collection IDs that E2E
// tests may submit transfers between.
const AllowlistEnv = "GLOBUS_TRANSFER_ALLOWED_TEST_COLLECTIONS"

// LoadDotEnv reads KEY=VALUE pairs from a .env file at the given path.
// Missing file is not an error (CI sets env vars directly).
// Existing env vars take precedence over .env values.
func LoadDotEnv(envPath string) {
	f, err := os.Open(envPath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), "\"'")

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// RequireAllowedCollections crashes the process unless every named env var
// holds a collection ID listed in AllowlistEnv. Returns the IDs in order.
func RequireAllowedCollections(envVars ...string) []string {
	allowlist := os.Getenv(AllowlistEnv)
	if allowlist == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", AllowlistEnv)
		fmt.Fprintln(os.Stderr, "Set it in .env or as an environment variable.")
		os.Exit(1)
	}

	allowed := make(map[string]bool)
	for _, id := range strings.Split(allowlist, ",") {
		allowed[strings.TrimSpace(id)] = true
	}

	ids := make([]string, 0, len(envVars))

	for _, v := range envVars {
		id := os.Getenv(v)
		if id == "" {
			fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", v)
			os.Exit(1)
		}

		if !allowed[id] {
			fmt.Fprintf(os.Stderr, "FATAL: %s=%q is not in %s=%q\n", v, id, AllowlistEnv, allowlist)
			os.Exit(1)
		}

		ids = append(ids, id)
	}

	return ids
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}

// FindTestCredentialDir locates .testdata/ relative to the module root.
// Crashes if the directory does not exist.
func FindTestCredentialDir(moduleRoot string) string {
	dir := filepath.Join(moduleRoot, ".testdata")

	if _, err := os.Stat(dir); err != nil {
		fmt.Fprintln(os.Stderr, "FATAL: .testdata/ directory not found at "+dir)
		fmt.Fprintln(os.Stderr, "Run 'go run ./cmd/integration-bootstrap' to create test credentials.")
		os.Exit(1)
	}

	return dir
}

// CopyFile copies a file from src to dst with the given permissions.
// Crashes on failure because tests cannot proceed without the file.
func CopyFile(src, dst string, perm os.FileMode) {
	data, err := os.ReadFile(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: cannot read %s: %v\n", src, err)
		fmt.Fprintln(os.Stderr, "Run 'go run ./cmd/integration-bootstrap' to create test credentials.")
		os.Exit(1)
	}

	if writeErr := os.WriteFile(dst, data, perm); writeErr != nil {
		fmt.Fprintf(os.Stderr, "FATAL: writing %s: %v\n", dst, writeErr)
		os.Exit(1)
	}
}
