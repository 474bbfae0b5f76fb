// Package flow implements the consent-aware submit workflow: log in (or
// reuse stored tokens), probe both collections for missing consents, log in
// again for those consents if needed, then submit a single-file transfer and
// turn any API error into user guidance.
package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tonimelisma/globus-transfer/internal/globus"
	"github.com/tonimelisma/globus-transfer/internal/history"
)

// DefaultLabelPrefix is prepended to the submission timestamp.
const DefaultLabelPrefix = "SDK transfer w/ collection consent"

// Default item paths, relative to the user's home on each collection.
const (
	DefaultSourcePath      = "/~/src.dat"
	DefaultDestinationPath = "/~/dst.dat"
)

// labelTimeLayout renders timestamps as YYYYMMDDTHHMMSS.
const labelTimeLayout = "20060102T150405"

const consentBanner = "One of your endpoints requires consent in order to be used.\n" +
	"Trying second login to grant consents.\n\n"

// Lister lists a directory on a collection.
type Lister interface {
	OperationLs(ctx context.Context, collection, path string) (*globus.DirListing, error)
}

// Submitter submits transfer documents.
type Submitter interface {
	SubmitTransfer(ctx context.Context, data *globus.TransferData) (*globus.TransferResult, error)
}

// TransferAPI is the subset of the transfer client the workflow needs.
type TransferAPI interface {
	Lister
	Submitter
}

// Authenticator owns the stored tokens and turns them into clients.
type Authenticator interface {
	// HasTokens reports whether a token store exists.
	HasTokens() bool
	// Login runs an interactive login for scopes and stores the result.
	Login(ctx context.Context, scopes []string) error
	// Client builds a transfer client from the currently stored tokens.
	Client(ctx context.Context) (TransferAPI, error)
}

// Recorder persists submitted tasks. *history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, sub *history.Submission) error
}

// Runner carries the settings for one submit.
type Runner struct {
	Auth   Authenticator
	Logger *slog.Logger
	// Out receives the user-facing messages.
	Out io.Writer
	Now func() time.Time

	SourcePath      string
	DestinationPath string
	// Label overrides the generated "<prefix> - <timestamp>" label.
	Label          string
	LabelPrefix    string
	SyncLevel      *int
	VerifyChecksum bool

	// History is optional.
	History Recorder
}

// Result describes a successful submission.
type Result struct {
	TaskID       string
	SubmissionID string
	Label        string
	// ConsentScopes are the scopes granted by a second login, if one ran.
	ConsentScopes []string
}

// SubmitError is returned when the transfer API rejected the submission.
// Its guidance has already been written to Runner.Out.
type SubmitError struct {
	Outcome Outcome
	Err     error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("flow: transfer submission failed (%s): %v", e.Outcome.Kind, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// DefaultLabel is the label used when neither a label nor a prefix is set.
func DefaultLabel(now time.Time) string {
	return Label(DefaultLabelPrefix, now)
}

// Label joins prefix and the timestamp of now.
func Label(prefix string, now time.Time) string {
	return prefix + " - " + now.Format(labelTimeLayout)
}

// Run performs the whole submit sequence for one source and destination
// collection.
func (r *Runner) Run(ctx context.Context, source, destination string) (*Result, error) {
	logger := r.logger()

	if !r.Auth.HasTokens() {
		logger.Info("no stored tokens, starting login")

		if err := r.Auth.Login(ctx, []string{globus.TransferAll}); err != nil {
			return nil, fmt.Errorf("flow: initial login: %w", err)
		}
	}

	client, err := r.Auth.Client(ctx)
	if err != nil {
		return nil, err
	}

	scopes, err := CheckConsent(ctx, client, logger, source, destination)
	if err != nil {
		return nil, err
	}

	if len(scopes) > 0 {
		logger.Info("consent required", slog.Any("scopes", scopes))
		fmt.Fprintln(r.Out, consentBanner)

		if err := r.Auth.Login(ctx, globus.MergeScopes([]string{globus.TransferAll}, scopes)); err != nil {
			return nil, fmt.Errorf("flow: consent login: %w", err)
		}

		// The stored tokens changed: build a client from the new ones.
		client, err = r.Auth.Client(ctx)
		if err != nil {
			return nil, err
		}
	}

	data := r.transferData(source, destination)

	res, err := client.SubmitTransfer(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		outcome := Classify(err)
		if outcome.Kind == OutcomeOther {
			return nil, fmt.Errorf("flow: submitting transfer: %w", err)
		}

		for _, line := range outcome.Lines {
			fmt.Fprintln(r.Out, line)
		}

		return nil, &SubmitError{Outcome: outcome, Err: err}
	}

	fmt.Fprintf(r.Out, "submitted transfer, task_id=%s\n", res.TaskID)

	result := &Result{
		TaskID:        res.TaskID,
		SubmissionID:  res.SubmissionID,
		Label:         data.Label,
		ConsentScopes: scopes,
	}

	r.record(ctx, data, result)

	return result, nil
}

func (r *Runner) transferData(source, destination string) *globus.TransferData {
	label := r.Label
	if label == "" {
		prefix := r.LabelPrefix
		if prefix == "" {
			prefix = DefaultLabelPrefix
		}

		label = Label(prefix, r.now())
	}

	data := globus.NewTransferData(source, destination, label)
	data.SyncLevel = r.SyncLevel
	data.VerifyChecksum = r.VerifyChecksum
	data.AddItem(orDefault(r.SourcePath, DefaultSourcePath), orDefault(r.DestinationPath, DefaultDestinationPath), false)

	return data
}

// record stores the submission. A failure here never fails the submit: the
// task already exists on the service.
func (r *Runner) record(ctx context.Context, data *globus.TransferData, res *Result) {
	if r.History == nil {
		return
	}

	item := data.Items[0]

	err := r.History.Record(ctx, &history.Submission{
		TaskID:          res.TaskID,
		SubmissionID:    res.SubmissionID,
		Label:           res.Label,
		Source:          data.SourceEndpoint,
		Destination:     data.DestinationEndpoint,
		SourcePath:      item.SourcePath,
		DestinationPath: item.DestinationPath,
		Status:          globus.TaskActive,
	})
	if err != nil {
		r.logger().Warn("failed to record submission in history",
			slog.String("task_id", res.TaskID),
			slog.String("error", err.Error()),
		)
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}

	return r.Logger
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}

	return r.Now()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}

	return v
}

// IsSubmitError reports whether err is a rejected submission whose guidance
// was already printed.
func IsSubmitError(err error) bool {
	var se *SubmitError
	return errors.As(err, &se)
}
