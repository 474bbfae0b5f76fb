package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/globus-transfer/internal/flow"
	"github.com/tonimelisma/globus-transfer/internal/globus"
)

func newConsentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consent COLLECTION...",
		Short: "Check collections for missing data_access consents",
		Long: `List the root of every collection and report the scopes named by
ConsentRequired errors. With --login, run a login that grants them.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runConsent,
	}

	cmd.Flags().Bool("login", false, "log in to grant any missing consents")

	return cmd
}

// consentOutput is the JSON schema for `consent --json`.
type consentOutput struct {
	RequiredScopes []string `json:"required_scopes"`
	LoggedIn       bool     `json:"logged_in"`
}

func runConsent(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())

	if err := validateCollectionIDs(args...); err != nil {
		return err
	}

	auth, err := cc.storedAuth()
	if err != nil {
		return err
	}

	ctx := shutdownContext(cmd.Context(), cc.Logger)

	client, err := clientFromAuth(ctx, auth)
	if err != nil {
		return err
	}

	scopes, err := flow.CheckConsent(ctx, client, cc.Logger, args...)
	if err != nil {
		return err
	}

	out := consentOutput{RequiredScopes: scopes}
	if out.RequiredScopes == nil {
		out.RequiredScopes = []string{}
	}

	if doLogin, _ := cmd.Flags().GetBool("login"); doLogin && len(scopes) > 0 {
		if err := auth.Login(ctx, globus.MergeScopes([]string{globus.TransferAll}, scopes)); err != nil {
			return fmt.Errorf("consent login: %w", err)
		}

		out.LoggedIn = true
	}

	if cc.Flags.JSON {
		return printJSON(os.Stdout, out)
	}

	if len(scopes) == 0 {
		fmt.Println("No additional consent required.")
		return nil
	}

	fmt.Println("Consent required for:")

	for _, s := range scopes {
		fmt.Printf("  %s\n", s)
	}

	if out.LoggedIn {
		cc.Statusf("Consents granted.\n")
	}

	return nil
}
