package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/globus-transfer/internal/flow"
	"github.com/tonimelisma/globus-transfer/internal/globus"
	"github.com/tonimelisma/globus-transfer/internal/history"
)

// defaultWaitTimeout bounds --wait when --wait-timeout is not given.
const defaultWaitTimeout = time.Hour

func newSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit SRC DST",
		Short: "Submit a transfer between two collections",
		Long: `Submit a single-file transfer from the SRC collection to the DST collection.

Logs in first when no tokens are stored. Both collections are checked for
missing data_access consents; if any are missing, a second login grants them
before the transfer is submitted.`,
		Args: cobra.ExactArgs(2),
		RunE: runSubmit,
	}

	cmd.Flags().String("source-path", "", "path of the file on the source collection")
	cmd.Flags().String("destination-path", "", "path of the file on the destination collection")
	cmd.Flags().String("label", "", "task label (default: generated from label_prefix and time)")
	cmd.Flags().Bool("wait", false, "wait for the task to finish")
	cmd.Flags().Duration("wait-timeout", defaultWaitTimeout, "maximum time to wait with --wait")

	return cmd
}

// submitOutput is the JSON schema for `submit --json`.
type submitOutput struct {
	TaskID        string   `json:"task_id"`
	SubmissionID  string   `json:"submission_id"`
	Label         string   `json:"label"`
	ConsentScopes []string `json:"consent_scopes,omitempty"`
	Status        string   `json:"status,omitempty"`
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	logger := cc.Logger

	source, destination := args[0], args[1]
	if err := validateCollectionIDs(source, destination); err != nil {
		return err
	}

	auth, err := cc.storedAuth()
	if err != nil {
		return err
	}

	runner, err := newRunner(cmd, cc, auth)
	if err != nil {
		return err
	}

	ctx := shutdownContext(cmd.Context(), logger)

	store := openHistory(ctx, cc)
	if store != nil {
		defer store.Close()
		runner.History = store
	}

	logger.Info("submit started",
		slog.String("source", source),
		slog.String("destination", destination),
	)

	res, err := runner.Run(ctx, source, destination)
	if err != nil {
		return err
	}

	out := submitOutput{
		TaskID:        res.TaskID,
		SubmissionID:  res.SubmissionID,
		Label:         res.Label,
		ConsentScopes: res.ConsentScopes,
	}

	if wait, _ := cmd.Flags().GetBool("wait"); wait {
		timeout, _ := cmd.Flags().GetDuration("wait-timeout")

		task, waitErr := waitForTask(ctx, cc, auth, store, res.TaskID, timeout)
		if task != nil {
			out.Status = task.Status
		}

		if waitErr != nil {
			return waitErr
		}
	}

	if cc.Flags.JSON {
		return printJSON(os.Stdout, out)
	}

	if out.Status != "" {
		fmt.Printf("task %s finished with status %s\n", out.TaskID, out.Status)
	}

	return nil
}

// newRunner builds the workflow from config and command flags.
func newRunner(cmd *cobra.Command, cc *CLIContext, auth *flow.StoredAuth) (*flow.Runner, error) {
	syncLevel, err := globus.ParseSyncLevel(cc.Cfg.SyncLevel)
	if err != nil {
		return nil, err
	}

	r := &flow.Runner{
		Auth:            auth,
		Logger:          cc.Logger,
		Out:             os.Stdout,
		Now:             time.Now,
		SourcePath:      cc.Cfg.SourcePath,
		DestinationPath: cc.Cfg.DestinationPath,
		LabelPrefix:     cc.Cfg.LabelPrefix,
		SyncLevel:       syncLevel,
		VerifyChecksum:  cc.Cfg.VerifyChecksum,
	}

	if v, _ := cmd.Flags().GetString("source-path"); v != "" {
		r.SourcePath = v
	}

	if v, _ := cmd.Flags().GetString("destination-path"); v != "" {
		r.DestinationPath = v
	}

	if v, _ := cmd.Flags().GetString("label"); v != "" {
		r.Label = v
	}

	return r, nil
}

// waitForTask polls the task to completion and records its final status.
func waitForTask(
	ctx context.Context, cc *CLIContext, auth *flow.StoredAuth, store *history.Store,
	taskID string, timeout time.Duration,
) (*globus.Task, error) {
	client, err := clientFromAuth(ctx, auth)
	if err != nil {
		return nil, err
	}

	cc.Statusf("Waiting for task %s...\n", taskID)

	task, err := client.TaskWait(ctx, taskID, timeout, cc.Cfg.PollInterval)
	if task != nil && store != nil {
		if updErr := store.UpdateStatus(ctx, taskID, task.Status); updErr != nil {
			cc.Logger.Warn("failed to update task status in history",
				slog.String("task_id", taskID),
				slog.String("error", updErr.Error()),
			)
		}
	}

	if errors.Is(err, globus.ErrTaskWaitTimeout) {
		return task, fmt.Errorf("task %s still %s after %s", taskID, task.Status, timeout)
	}

	return task, err
}

// openHistory opens the submission ledger. The ledger is a convenience: if
// it cannot be opened the command continues without it.
func openHistory(ctx context.Context, cc *CLIContext) *history.Store {
	store, err := history.Open(ctx, cc.Cfg.HistoryDB, cc.Logger)
	if err != nil {
		cc.Logger.Warn("history disabled",
			slog.String("path", cc.Cfg.HistoryDB),
			slog.String("error", err.Error()),
		)

		return nil
	}

	return store
}

// validateCollectionIDs rejects arguments that are not collection UUIDs.
func validateCollectionIDs(ids ...string) error {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("invalid collection ID %q: must be a UUID", id)
		}
	}

	return nil
}
