package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/globus-transfer/internal/globus"
	"github.com/tonimelisma/globus-transfer/internal/history"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task TASK_ID",
		Short: "Show the status of a transfer task",
		Args:  cobra.ExactArgs(1),
		RunE:  runTask,
	}

	cmd.Flags().Bool("wait", false, "wait for the task to finish")
	cmd.Flags().Duration("wait-timeout", defaultWaitTimeout, "maximum time to wait with --wait")

	return cmd
}

// taskOutput is the JSON schema for `task --json`.
type taskOutput struct {
	TaskID           string `json:"task_id"`
	Status           string `json:"status"`
	NiceStatus       string `json:"nice_status,omitempty"`
	Label            string `json:"label"`
	Source           string `json:"source"`
	Destination      string `json:"destination"`
	RequestTime      string `json:"request_time,omitempty"`
	CompletionTime   string `json:"completion_time,omitempty"`
	Files            int    `json:"files"`
	FilesTransferred int    `json:"files_transferred"`
	FilesSkipped     int    `json:"files_skipped"`
	BytesTransferred int64  `json:"bytes_transferred"`
	Faults           int    `json:"faults"`
}

func runTask(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())

	taskID := args[0]
	if _, err := uuid.Parse(taskID); err != nil {
		return fmt.Errorf("invalid task ID %q: must be a UUID", taskID)
	}

	ctx := shutdownContext(cmd.Context(), cc.Logger)

	client, err := cc.transferClient(ctx)
	if err != nil {
		return err
	}

	var task *globus.Task

	if wait, _ := cmd.Flags().GetBool("wait"); wait {
		timeout, _ := cmd.Flags().GetDuration("wait-timeout")
		cc.Statusf("Waiting for task %s...\n", taskID)

		task, err = client.TaskWait(ctx, taskID, timeout, cc.Cfg.PollInterval)
		if err != nil && !errors.Is(err, globus.ErrTaskWaitTimeout) {
			return err
		}
	} else {
		task, err = client.GetTask(ctx, taskID)
		if err != nil {
			return fmt.Errorf("fetching task %s: %w", taskID, err)
		}
	}

	syncHistoryStatus(ctx, cc, task)

	out := taskOutput{
		TaskID:           task.TaskID,
		Status:           task.Status,
		NiceStatus:       task.NiceStatus,
		Label:            task.Label,
		Source:           collectionName(ctx, cc.Logger, client, task.SourceEndpointID),
		Destination:      collectionName(ctx, cc.Logger, client, task.DestinationEndpointID),
		RequestTime:      task.RequestTime,
		CompletionTime:   task.CompletionTime,
		Files:            task.Files,
		FilesTransferred: task.FilesTransferred,
		FilesSkipped:     task.FilesSkipped,
		BytesTransferred: task.BytesTransferred,
		Faults:           task.Faults,
	}

	if cc.Flags.JSON {
		if jsonErr := printJSON(os.Stdout, out); jsonErr != nil {
			return jsonErr
		}
	} else {
		printTaskText(out)
	}

	// Report a --wait timeout after the last known state was shown.
	return err
}

func printTaskText(t taskOutput) {
	fmt.Printf("Task:        %s\n", t.TaskID)
	fmt.Printf("Label:       %s\n", t.Label)
	fmt.Printf("Status:      %s", t.Status)

	if t.NiceStatus != "" && t.NiceStatus != t.Status {
		fmt.Printf(" (%s)", t.NiceStatus)
	}

	fmt.Println()
	fmt.Printf("Source:      %s\n", t.Source)
	fmt.Printf("Destination: %s\n", t.Destination)
	fmt.Printf("Requested:   %s\n", formatServiceTime(t.RequestTime))
	fmt.Printf("Completed:   %s\n", formatServiceTime(t.CompletionTime))
	fmt.Printf("Files:       %d transferred, %d skipped of %d\n", t.FilesTransferred, t.FilesSkipped, t.Files)
	fmt.Printf("Bytes:       %s\n", formatSize(t.BytesTransferred))

	if t.Faults > 0 {
		fmt.Printf("Faults:      %d\n", t.Faults)
	}
}

// collectionName returns "display name (id)", or the bare ID if the
// collection cannot be fetched.
func collectionName(ctx context.Context, logger *slog.Logger, client *globus.Client, id string) string {
	if id == "" {
		return "-"
	}

	ep, err := client.GetEndpoint(ctx, id)
	if err != nil || ep.DisplayName == "" {
		if err != nil {
			logger.Debug("collection lookup failed", slog.String("id", id), slog.String("error", err.Error()))
		}

		return id
	}

	return fmt.Sprintf("%s (%s)", ep.DisplayName, id)
}

// syncHistoryStatus stores the observed status for tasks this client
// submitted. Tasks submitted elsewhere are not in the ledger.
func syncHistoryStatus(ctx context.Context, cc *CLIContext, task *globus.Task) {
	store := openHistory(ctx, cc)
	if store == nil {
		return
	}
	defer store.Close()

	err := store.UpdateStatus(ctx, task.TaskID, task.Status)
	if err != nil && !errors.Is(err, history.ErrNotFound) {
		cc.Logger.Warn("failed to update task status in history",
			slog.String("task_id", task.TaskID),
			slog.String("error", err.Error()),
		)
	}
}
