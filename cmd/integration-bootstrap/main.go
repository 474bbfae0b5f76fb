// Creates the .testdata/ credentials used by the E2E tests: runs an
// interactive login that also grants data_access consent for the test
// collections, then writes the token file and a minimal config.
//
// Usage: go run ./cmd/integration-bootstrap --client-id ID --collection SRC --collection DST
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/tonimelisma/globus-transfer/internal/flow"
	"github.com/tonimelisma/globus-transfer/internal/globus"
)

func main() {
	dir := flag.String("dir", ".testdata", "directory for test credentials")
	clientID := flag.String("client-id", os.Getenv("GLOBUS_TRANSFER_CLIENT_ID"), "native app client ID")

	var collections []string

	flag.Func("collection", "collection ID to grant data_access consent for (repeatable)", func(v string) error {
		collections = append(collections, v)
		return nil
	})
	flag.Parse()

	if *clientID == "" {
		fmt.Fprintln(os.Stderr, "--client-id (or GLOBUS_TRANSFER_CLIENT_ID) is required")
		os.Exit(2)
	}

	if err := run(context.Background(), *dir, *clientID, collections); err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Test credentials written to %s\n", *dir)
}

func run(ctx context.Context, dir, clientID string, collections []string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	scopes := []string{globus.TransferAll}
	for _, c := range collections {
		scopes = append(scopes, globus.CollectionDataAccessScope(c))
	}

	auth := &flow.StoredAuth{
		AuthClient:  globus.NewAuthClient(globus.AuthConfig{ClientID: clientID}, slog.Default()),
		TokenPath:   filepath.Join(dir, "tokens.json"),
		Prompt:      flow.NewPrompt(os.Stdin, os.Stdout),
		Interactive: true,
	}

	if err := auth.Login(ctx, scopes); err != nil {
		return err
	}

	f, err := os.OpenFile(filepath.Join(dir, "config.toml"), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(map[string]string{"client_id": clientID})
}
