package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/photo-sorter/internal/model"
)

// SaveReviewDecision records a manual review outcome.
func (s *SQLiteStorage) SaveReviewDecision(ctx context.Context, d *model.ReviewDecision) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateDecision(d); err != nil {
		return err
	}
	if d.DecidedAt.IsZero() {
		d.DecidedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_decisions (path, destination, suggested, chosen, confidence, retried, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.Path, d.Destination, d.Suggested, d.Chosen, d.Confidence, d.Retried, d.DecidedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save review decision: %w", err)
	}
	return nil
}

// GetReviewDecisions returns the most recent decisions, newest first.
func (s *SQLiteStorage) GetReviewDecisions(ctx context.Context, limit int) ([]model.ReviewDecision, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT path, destination, suggested, chosen, confidence, retried, decided_at
		FROM review_decisions
		ORDER BY decided_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query review decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var decisions []model.ReviewDecision
	for rows.Next() {
		var d model.ReviewDecision
		if err := rows.Scan(&d.Path, &d.Destination, &d.Suggested, &d.Chosen,
			&d.Confidence, &d.Retried, &d.DecidedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review decision: %w", err)
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate review decisions: %w", err)
	}
	return decisions, nil
}
