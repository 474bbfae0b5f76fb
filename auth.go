package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/globus-transfer/internal/globus"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store refresh tokens",
		Long: `Run the interactive login: open the printed URL, log in, and paste the
code shown at the end. Tokens for every granted resource server are stored
in the token file and refreshed automatically afterwards.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}

	cmd.Flags().StringSlice("scope", nil, "additional scope to request (repeatable)")
	cmd.Flags().StringSlice("collection", nil, "collection ID to grant data_access consent for (repeatable)")
	cmd.Flags().StringSlice("session-domain", nil, "require an identity from this domain (repeatable)")
	cmd.Flags().Bool("force", false, "force re-authentication even with an active session")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored token file",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	extra, _ := cmd.Flags().GetStringSlice("scope")
	collections, _ := cmd.Flags().GetStringSlice("collection")
	domains, _ := cmd.Flags().GetStringSlice("session-domain")
	force, _ := cmd.Flags().GetBool("force")

	if err := validateCollectionIDs(collections...); err != nil {
		return err
	}

	consent := make([]string, 0, len(collections))
	for _, c := range collections {
		consent = append(consent, globus.CollectionDataAccessScope(c))
	}

	scopes := globus.MergeScopes([]string{globus.TransferAll}, extra, consent)

	auth, err := cc.storedAuth()
	if err != nil {
		return err
	}

	auth.FlowOptions = globus.FlowOptions{
		SessionRequiredSingleDomain: domains,
		PromptLogin:                 force,
	}

	ctx := shutdownContext(cmd.Context(), cc.Logger)

	cc.Logger.Info("login started", "token_file", cc.Cfg.TokenFile, "scopes", len(scopes))

	if err := auth.Login(ctx, scopes); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	cc.Statusf("Login successful. Tokens saved to %s\n", cc.Cfg.TokenFile)

	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	cc.Logger.Info("logout started", "token_file", cc.Cfg.TokenFile)

	if err := globus.Logout(cc.Cfg.TokenFile, cc.Logger); err != nil {
		return err
	}

	cc.Statusf("Logged out.\n")

	return nil
}
