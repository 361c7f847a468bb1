package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/photo-sorter/internal/common"
	"github.com/Veraticus/photo-sorter/internal/model"
)

// StartRun records a scan run in the running state.
func (s *SQLiteStorage) StartRun(ctx context.Context, runID string, total int, startedAt time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(runID, "runID"); err != nil {
		return err
	}
	if total < 0 {
		return fmt.Errorf("%w: negative total %d", ErrInvalidRunSummary, total)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_runs (id, state, total, started_at)
		VALUES (?, ?, ?, ?)
	`, runID, model.RunRunning, total, startedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// FinishRun stores the final counters and state of a run. A run that was
// never started is inserted.
func (s *SQLiteStorage) FinishRun(ctx context.Context, summary *model.ScanSummary) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSummary(summary); err != nil {
		return err
	}

	var finished any
	if !summary.FinishedAt.IsZero() {
		finished = summary.FinishedAt.UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_runs (id, state, total, processed, succeeded, failed, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			total = excluded.total,
			processed = excluded.processed,
			succeeded = excluded.succeeded,
			failed = excluded.failed,
			finished_at = excluded.finished_at
	`, summary.RunID, summary.State, summary.Total, summary.Processed, summary.Succeeded,
		summary.Failed, summary.StartedAt.UTC(), finished)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// GetRun loads a run with its failures.
func (s *SQLiteStorage) GetRun(ctx context.Context, runID string) (*model.ScanSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}

	summary, err := s.scanRun(s.db.QueryRowContext(ctx, runColumns+` WHERE id = ?`, runID))
	if err != nil {
		return nil, err
	}
	if err := s.loadFailures(ctx, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// GetLatestRun returns the most recently started run.
func (s *SQLiteStorage) GetLatestRun(ctx context.Context) (*model.ScanSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	summary, err := s.scanRun(s.db.QueryRowContext(ctx, runColumns+` ORDER BY started_at DESC, rowid DESC LIMIT 1`))
	if err != nil {
		return nil, err
	}
	if err := s.loadFailures(ctx, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// GetRecentRuns lists runs newest first, without failures.
func (s *SQLiteStorage) GetRecentRuns(ctx context.Context, limit int) ([]model.ScanSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, runColumns+` ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.ScanSummary
	for rows.Next() {
		summary, err := s.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

const runColumns = `
	SELECT id, state, total, processed, succeeded, failed, started_at, finished_at
	FROM scan_runs`

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStorage) scanRun(row scanner) (*model.ScanSummary, error) {
	var (
		summary  model.ScanSummary
		finished sql.NullTime
	)
	err := row.Scan(
		&summary.RunID,
		&summary.State,
		&summary.Total,
		&summary.Processed,
		&summary.Succeeded,
		&summary.Failed,
		&summary.StartedAt,
		&finished,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	if finished.Valid {
		summary.FinishedAt = finished.Time
	}
	return &summary, nil
}

func (s *SQLiteStorage) loadFailures(ctx context.Context, summary *model.ScanSummary) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, destination, reason, message
		FROM placements
		WHERE run_id = ? AND status != ?
		ORDER BY id
	`, summary.RunID, model.StatusClassified)
	if err != nil {
		return fmt.Errorf("failed to query failures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var f model.FileFailure
		if err := rows.Scan(&f.Path, &f.Destination, &f.Reason, &f.Message); err != nil {
			return fmt.Errorf("failed to scan failure: %w", err)
		}
		summary.Failures = append(summary.Failures, f)
	}
	return rows.Err()
}
