// Package history keeps a local SQLite ledger of submitted transfer tasks so
// that past submissions can be listed and their status refreshed later.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

// ErrNotFound is returned when no submission matches a task ID.
var ErrNotFound = errors.New("history: submission not found")

// dirPerms is used when creating the directory holding the database.
const dirPerms = 0o700

// Submission is one submitted transfer task.
type Submission struct {
	ID              string
	TaskID          string
	SubmissionID    string
	Label           string
	Source          string
	Destination     string
	SourcePath      string
	DestinationPath string
	Status          string
	SubmittedAt     time.Time
	UpdatedAt       time.Time
}

// Store is the submission ledger. Safe for concurrent use; writes are
// serialized through a single connection.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time
}

const (
	sqlInsert = `INSERT INTO submissions
		(id, task_id, submission_id, label, source, destination,
		 source_path, destination_path, status, submitted_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlUpdateStatus = `UPDATE submissions SET status = ?, updated_at = ? WHERE task_id = ?`

	sqlSelectColumns = `SELECT id, task_id, submission_id, label, source, destination,
		source_path, destination_path, status, submitted_at, updated_at FROM submissions`

	sqlGet = sqlSelectColumns + ` WHERE task_id = ?`

	sqlList = sqlSelectColumns + ` ORDER BY submitted_at DESC, rowid DESC LIMIT ?`
)

// Open opens (creating if needed) the ledger at dbPath and migrates it.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), dirPerms); err != nil {
		return nil, fmt.Errorf("history: creating directory for %s: %w", dbPath, err)
	}

	db, err := sql.Open("sqlite", dataSourceName(dbPath))
	if err != nil {
		return nil, fmt.Errorf("history: opening database %s: %w", dbPath, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("history store opened", slog.String("db_path", dbPath))

	return &Store{db: db, logger: logger, nowFunc: time.Now}, nil
}

// dataSourceName builds a file: URI for dbPath with the path escaped, so
// '?', '#' and '%' in directory names stay part of the path. The pragmas
// apply to every connection from the pool.
func dataSourceName(dbPath string) string {
	u := url.URL{
		Scheme:   "file",
		OmitHost: true,
		Path:     filepath.ToSlash(dbPath),
		RawQuery: "_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)",
	}

	return u.String()
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a submission. ID, SubmittedAt and Status are filled in when
// empty; the stored values are written back to sub.
func (s *Store) Record(ctx context.Context, sub *Submission) error {
	if sub.TaskID == "" {
		return errors.New("history: task ID is required")
	}

	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}

	now := s.nowFunc().UTC()
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = now
	}

	sub.UpdatedAt = now

	if sub.Status == "" {
		sub.Status = "ACTIVE"
	}

	_, err := s.db.ExecContext(ctx, sqlInsert,
		sub.ID, sub.TaskID, sub.SubmissionID, sub.Label, sub.Source, sub.Destination,
		sub.SourcePath, sub.DestinationPath, sub.Status,
		sub.SubmittedAt.UnixNano(), sub.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("history: recording task %s: %w", sub.TaskID, err)
	}

	s.logger.Debug("recorded submission",
		slog.String("task_id", sub.TaskID),
		slog.String("submission_id", sub.SubmissionID),
	)

	return nil
}

// UpdateStatus sets the last known status of a task.
func (s *Store) UpdateStatus(ctx context.Context, taskID, status string) error {
	res, err := s.db.ExecContext(ctx, sqlUpdateStatus, status, s.nowFunc().UTC().UnixNano(), taskID)
	if err != nil {
		return fmt.Errorf("history: updating task %s: %w", taskID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("history: updating task %s: %w", taskID, err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}

	return nil
}

// Get returns the submission for taskID.
func (s *Store) Get(ctx context.Context, taskID string) (*Submission, error) {
	sub, err := scanSubmission(s.db.QueryRowContext(ctx, sqlGet, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}

	if err != nil {
		return nil, fmt.Errorf("history: reading task %s: %w", taskID, err)
	}

	return sub, nil
}

// List returns up to limit submissions, newest first. A limit <= 0 returns
// all of them.
func (s *Store) List(ctx context.Context, limit int) ([]Submission, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, sqlList, limit)
	if err != nil {
		return nil, fmt.Errorf("history: listing submissions: %w", err)
	}
	defer rows.Close()

	var out []Submission

	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("history: scanning submission: %w", err)
		}

		out = append(out, *sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterating submissions: %w", err)
	}

	return out, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (*Submission, error) {
	var (
		sub                    Submission
		submittedAt, updatedAt int64
	)

	err := row.Scan(&sub.ID, &sub.TaskID, &sub.SubmissionID, &sub.Label,
		&sub.Source, &sub.Destination, &sub.SourcePath, &sub.DestinationPath,
		&sub.Status, &submittedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	sub.SubmittedAt = time.Unix(0, submittedAt).UTC()
	sub.UpdatedAt = time.Unix(0, updatedAt).UTC()

	return &sub, nil
}
