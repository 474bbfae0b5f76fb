package globus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// ErrTaskWaitTimeout is returned by TaskWait when the task is still running
// at the deadline.
var ErrTaskWaitTimeout = errors.New("globus: timed out waiting for task")

// OperationLs lists path on a collection.
func (c *Client) OperationLs(ctx context.Context, collection, path string) (*DirListing, error) {
	reqPath := "/operation/endpoint/" + url.PathEscape(collection) + "/ls?path=" + url.QueryEscape(path)

	var listing DirListing
	if err := c.getJSON(ctx, reqPath, &listing); err != nil {
		return nil, err
	}

	return &listing, nil
}

// SubmissionID requests a fresh submission ID. Submitting twice with the
// same ID creates at most one task.
func (c *Client) SubmissionID(ctx context.Context) (string, error) {
	var out struct {
		Value string `json:"value"`
	}

	if err := c.getJSON(ctx, "/submission_id", &out); err != nil {
		return "", err
	}

	if out.Value == "" {
		return "", errors.New("globus: empty submission id in response")
	}

	return out.Value, nil
}

// SubmitTransfer submits a transfer document. A submission ID is requested
// first when data has none, and stored on data.
func (c *Client) SubmitTransfer(ctx context.Context, data *TransferData) (*TransferResult, error) {
	if data.SubmissionID == "" {
		id, err := c.SubmissionID(ctx)
		if err != nil {
			return nil, fmt.Errorf("globus: obtaining submission id: %w", err)
		}

		data.SubmissionID = id
	}

	c.logger.Info("submitting transfer",
		slog.String("source", data.SourceEndpoint),
		slog.String("destination", data.DestinationEndpoint),
		slog.String("submission_id", data.SubmissionID),
		slog.Int("items", len(data.Items)),
	)

	var result TransferResult
	if err := c.postJSON(ctx, "/transfer", data, &result); err != nil {
		return nil, err
	}

	if result.SubmissionID == "" {
		result.SubmissionID = data.SubmissionID
	}

	return &result, nil
}

// GetTask fetches a task's status document.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	var task Task
	if err := c.getJSON(ctx, "/task/"+url.PathEscape(taskID), &task); err != nil {
		return nil, err
	}

	return &task, nil
}

// GetEndpoint fetches a collection's metadata.
func (c *Client) GetEndpoint(ctx context.Context, id string) (*Endpoint, error) {
	var ep Endpoint
	if err := c.getJSON(ctx, "/endpoint/"+url.PathEscape(id), &ep); err != nil {
		return nil, err
	}

	return &ep, nil
}

// TaskWait polls a task every pollInterval until it succeeds or fails, or
// until timeout elapses. The last observed task is returned together with
// ErrTaskWaitTimeout on timeout.
func (c *Client) TaskWait(ctx context.Context, taskID string, timeout, pollInterval time.Duration) (*Task, error) {
	if pollInterval <= 0 {
		return nil, fmt.Errorf("globus: poll interval must be positive, got %s", pollInterval)
	}

	var waited time.Duration

	for {
		task, err := c.GetTask(ctx, taskID)
		if err != nil {
			return nil, err
		}

		if task.Done() {
			return task, nil
		}

		if waited >= timeout {
			return task, fmt.Errorf("%w %s after %s (status %s)", ErrTaskWaitTimeout, taskID, timeout, task.Status)
		}

		c.logger.Debug("task still running",
			slog.String("task_id", taskID),
			slog.String("status", task.Status),
			slog.String("nice_status", task.NiceStatus),
		)

		if err := c.sleepFunc(ctx, pollInterval); err != nil {
			return task, fmt.Errorf("globus: waiting for task %s: %w", taskID, err)
		}

		waited += pollInterval
	}
}
