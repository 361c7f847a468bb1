package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Veraticus/photo-sorter/internal/model"
	"github.com/Veraticus/photo-sorter/internal/service"
)

// SavePlacement records where one file went. The generated ID is written
// back into p.
func (s *SQLiteStorage) SavePlacement(ctx context.Context, p *model.Placement) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePlacement(p); err != nil {
		return err
	}
	return s.savePlacementTx(ctx, s.db, p)
}

func (s *SQLiteStorage) savePlacementTx(ctx context.Context, q queryable, p *model.Placement) error {
	var runID, placedAt any
	if p.RunID != "" {
		runID = p.RunID
	}
	if !p.PlacedAt.IsZero() {
		placedAt = p.PlacedAt.UTC()
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO placements (run_id, source, destination, category, status, reason, message, confidence, placed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, p.Source, p.Destination, p.Category, p.Status, p.Reason, p.Message, p.Confidence, placedAt)
	if err != nil {
		return fmt.Errorf("failed to save placement: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read placement id: %w", err)
	}
	p.ID = id
	return nil
}

// GetPlacements lists placements in insertion order.
func (s *SQLiteStorage) GetPlacements(ctx context.Context, filter service.PlacementFilter) ([]model.Placement, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if filter.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.Status != "" {
		if err := validateStatus(filter.Status); err != nil {
			return nil, err
		}
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `
		SELECT id, COALESCE(run_id, ''), source, destination, category, status, reason, message, confidence, placed_at
		FROM placements`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query placements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var placements []model.Placement
	for rows.Next() {
		var (
			p        model.Placement
			placedAt sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.RunID, &p.Source, &p.Destination, &p.Category,
			&p.Status, &p.Reason, &p.Message, &p.Confidence, &placedAt); err != nil {
			return nil, fmt.Errorf("failed to scan placement: %w", err)
		}
		if placedAt.Valid {
			p.PlacedAt = placedAt.Time
		}
		placements = append(placements, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate placements: %w", err)
	}
	return placements, nil
}
