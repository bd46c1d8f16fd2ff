package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one recorded conversion.
type Run struct {
	ID              string         `json:"id"`
	Command         string         `json:"command"`
	Format          string         `json:"format"`
	AnnotationsFile string         `json:"annotations_file"`
	OutputDir       string         `json:"output_dir"`
	Status          Status         `json:"status"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at,omitzero"`
	Tasks           int            `json:"tasks"`
	Videos          int            `json:"videos"`
	Images          int            `json:"images"`
	Annotations     int            `json:"annotations"`
	FramesSkipped   int            `json:"frames_skipped"`
	Issues          map[string]int `json:"issues,omitempty"`
	ErrorCategory   string         `json:"error_category,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	PublishedTo     string         `json:"published_to,omitempty"`
	PublishedAt     time.Time      `json:"published_at,omitzero"`
}

// IssueTotal sums the run's issue counts.
func (r Run) IssueTotal() int {
	total := 0
	for _, n := range r.Issues {
		total += n
	}
	return total
}

// Outcome is what a finished run reports back.
type Outcome struct {
	Tasks         int
	Videos        int
	Images        int
	Annotations   int
	FramesSkipped int
	Issues        map[string]int
	ErrorCategory string
	Err           error
}

// Begin records a new run in the running state.
func (s *Store) Begin(ctx context.Context, id, command, format, annotationsFile, outputDir string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, command, format, annotations_file, output_dir, status, started_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, command, format, annotationsFile, outputDir, StatusRunning, s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Finish stores the outcome of run id. A non-nil Err marks the run failed.
func (s *Store) Finish(ctx context.Context, id string, out Outcome) error {
	status := StatusSucceeded
	var message string
	if out.Err != nil {
		status = StatusFailed
		message = out.Err.Error()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finish tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, tasks = ?, videos = ?, images = ?,
            annotations = ?, frames_skipped = ?, error_category = ?, error_message = ?
        WHERE id = ?`,
		status, s.timestamp(), out.Tasks, out.Videos, out.Images,
		out.Annotations, out.FramesSkipped, nullableString(out.ErrorCategory), nullableString(message),
		id,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM run_issues WHERE run_id = ?", id); err != nil {
		return fmt.Errorf("clear run issues: %w", err)
	}
	for _, kind := range slices.Sorted(maps.Keys(out.Issues)) {
		if out.Issues[kind] <= 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO run_issues (run_id, kind, count) VALUES (?, ?, ?)",
			id, kind, out.Issues[kind],
		); err != nil {
			return fmt.Errorf("insert run issue: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit finish: %w", err)
	}
	return nil
}

// MarkPublished records where the dataset of run id was uploaded.
func (s *Store) MarkPublished(ctx context.Context, id, location string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE runs SET published_to = ?, published_at = ? WHERE id = ?",
		location, s.timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

const runColumns = `id, command, format, annotations_file, output_dir, status, started_at, finished_at,
    tasks, videos, images, annotations, frames_skipped, error_category, error_message,
    published_to, published_at`

// Get fetches one run with its issue counts.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadIssues(ctx, []*Run{run}); err != nil {
		return nil, err
	}
	return run, nil
}

// LatestForOutput returns the most recent successful run that wrote dir.
func (s *Store) LatestForOutput(ctx context.Context, dir string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE output_dir = ? AND status = ? ORDER BY started_at DESC LIMIT 1",
		dir, StatusSucceeded,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no successful run for %s", ErrNotFound, dir)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// List returns the most recent runs, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	if err := s.loadIssues(ctx, runs); err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *Store) loadIssues(ctx context.Context, runs []*Run) error {
	for _, run := range runs {
		rows, err := s.db.QueryContext(ctx, "SELECT kind, count FROM run_issues WHERE run_id = ?", run.ID)
		if err != nil {
			return fmt.Errorf("load run issues: %w", err)
		}
		run.Issues = make(map[string]int)
		for rows.Next() {
			var kind string
			var count int
			if err := rows.Scan(&kind, &count); err != nil {
				rows.Close()
				return fmt.Errorf("scan run issue: %w", err)
			}
			run.Issues[kind] = count
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("iterate run issues: %w", err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run                         Run
		status                      string
		startedAt, finishedAt       sql.NullString
		errorCategory, errorMessage sql.NullString
		publishedTo, publishedAt    sql.NullString
	)
	err := row.Scan(
		&run.ID, &run.Command, &run.Format, &run.AnnotationsFile, &run.OutputDir, &status,
		&startedAt, &finishedAt,
		&run.Tasks, &run.Videos, &run.Images, &run.Annotations, &run.FramesSkipped,
		&errorCategory, &errorMessage, &publishedTo, &publishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.Status = Status(status)
	run.StartedAt = parseTime(startedAt)
	run.FinishedAt = parseTime(finishedAt)
	run.ErrorCategory = errorCategory.String
	run.ErrorMessage = errorMessage.String
	run.PublishedTo = publishedTo.String
	run.PublishedAt = parseTime(publishedAt)
	return &run, nil
}
