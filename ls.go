package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// defaultLsPath is the collection's home directory.
const defaultLsPath = "/~/"

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls COLLECTION [PATH]",
		Short: "List a directory on a collection",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runLs,
	}
}

// lsJSONItem is the JSON schema for one entry in `ls --json`.
type lsJSONItem struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Size         int64  `json:"size"`
	LastModified string `json:"last_modified,omitempty"`
	Permissions  string `json:"permissions,omitempty"`
}

func runLs(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())

	collection := args[0]
	if err := validateCollectionIDs(collection); err != nil {
		return err
	}

	path := defaultLsPath
	if len(args) > 1 {
		path = args[1]
	}

	ctx := shutdownContext(cmd.Context(), cc.Logger)

	client, err := cc.transferClient(ctx)
	if err != nil {
		return err
	}

	listing, err := client.OperationLs(ctx, collection, path)
	if err != nil {
		return fmt.Errorf("listing %s on %s: %w", path, collection, err)
	}

	if cc.Flags.JSON {
		items := make([]lsJSONItem, 0, len(listing.Entries))
		for _, e := range listing.Entries {
			items = append(items, lsJSONItem{
				Name:         e.Name,
				Type:         e.Type,
				Size:         e.Size,
				LastModified: e.LastModified,
				Permissions:  e.Permissions,
			})
		}

		return printJSON(os.Stdout, items)
	}

	rows := make([][]string, 0, len(listing.Entries))
	for _, e := range listing.Entries {
		name := e.Name
		size := formatSize(e.Size)

		if e.IsDir() {
			name += "/"
			size = "-"
		}

		rows = append(rows, []string{e.Permissions, size, formatServiceTime(e.LastModified), name})
	}

	printTable(os.Stdout, []string{"PERMS", "SIZE", "MODIFIED", "NAME"}, rows)

	return nil
}
