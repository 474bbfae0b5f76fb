package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/globus-transfer/internal/history"
)

const defaultHistoryLimit = 20

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List transfers submitted from this machine",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}

	cmd.Flags().Int("limit", defaultHistoryLimit, "maximum number of submissions to show (0 for all)")

	return cmd
}

// historyJSONItem is the JSON schema for one entry in `history --json`.
type historyJSONItem struct {
	TaskID          string    `json:"task_id"`
	SubmissionID    string    `json:"submission_id"`
	Label           string    `json:"label"`
	Source          string    `json:"source"`
	Destination     string    `json:"destination"`
	SourcePath      string    `json:"source_path"`
	DestinationPath string    `json:"destination_path"`
	Status          string    `json:"status"`
	SubmittedAt     time.Time `json:"submitted_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := history.Open(cmd.Context(), cc.Cfg.HistoryDB, cc.Logger)
	if err != nil {
		return err
	}
	defer store.Close()

	subs, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		items := make([]historyJSONItem, 0, len(subs))
		for i := range subs {
			s := &subs[i]
			items = append(items, historyJSONItem{
				TaskID:          s.TaskID,
				SubmissionID:    s.SubmissionID,
				Label:           s.Label,
				Source:          s.Source,
				Destination:     s.Destination,
				SourcePath:      s.SourcePath,
				DestinationPath: s.DestinationPath,
				Status:          s.Status,
				SubmittedAt:     s.SubmittedAt,
				UpdatedAt:       s.UpdatedAt,
			})
		}

		return printJSON(os.Stdout, items)
	}

	if len(subs) == 0 {
		fmt.Println("No submissions recorded.")
		return nil
	}

	rows := make([][]string, 0, len(subs))
	for i := range subs {
		s := &subs[i]
		rows = append(rows, []string{formatTime(s.SubmittedAt.Local()), s.TaskID, s.Status, s.Label})
	}

	printTable(os.Stdout, []string{"SUBMITTED", "TASK", "STATUS", "LABEL"}, rows)

	return nil
}
