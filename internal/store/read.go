package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no conversion exists for a token.
var ErrNotFound = errors.New("conversion not found")

// GetConversion loads one journaled run by token, items included.
func (s *Store) GetConversion(ctx context.Context, token string) (ConversionRecord, error) {
	var (
		rec       ConversionRecord
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT token, source, entity, target,
		       resolved, all_items_handled, submitted, failure_code,
		       item_count, handled_count, created_at
		FROM conversions
		WHERE token = ?
	`, token).Scan(
		&rec.Token, &rec.Source, &rec.Entity, &rec.Target,
		&rec.Resolved, &rec.AllItemsHandled, &rec.Submitted, &rec.FailureCode,
		&rec.ItemCount, &rec.HandledCount, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ConversionRecord{}, fmt.Errorf("conversion %s: %w", token, ErrNotFound)
	}
	if err != nil {
		return ConversionRecord{}, fmt.Errorf("query conversion %s: %w", token, err)
	}

	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return ConversionRecord{}, fmt.Errorf("parse created_at for %s: %w", token, err)
	}

	rec.Items, err = s.itemsFor(ctx, token)
	if err != nil {
		return ConversionRecord{}, err
	}
	return rec, nil
}

// ListConversions returns the most recent runs, newest first, without
// item detail. A limit of 0 or less means no limit.
func (s *Store) ListConversions(ctx context.Context, limit int) ([]ConversionRecord, error) {
	query := `
		SELECT token, source, entity, target,
		       resolved, all_items_handled, submitted, failure_code,
		       item_count, handled_count, created_at
		FROM conversions
		ORDER BY created_at DESC, token DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversions: %w", err)
	}
	defer rows.Close()

	var records []ConversionRecord
	for rows.Next() {
		var (
			rec       ConversionRecord
			createdAt string
		)
		if err := rows.Scan(
			&rec.Token, &rec.Source, &rec.Entity, &rec.Target,
			&rec.Resolved, &rec.AllItemsHandled, &rec.Submitted, &rec.FailureCode,
			&rec.ItemCount, &rec.HandledCount, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan conversion: %w", err)
		}
		rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at for %s: %w", rec.Token, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversions: %w", err)
	}
	return records, nil
}

func (s *Store) itemsFor(ctx context.Context, token string) ([]ItemRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, classification, outcome, final_state
		FROM item_outcomes
		WHERE conversion_token = ?
		ORDER BY position
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query items for %s: %w", token, err)
	}
	defer rows.Close()

	var items []ItemRecord
	for rows.Next() {
		var item ItemRecord
		if err := rows.Scan(&item.Position, &item.Classification, &item.Outcome, &item.FinalState); err != nil {
			return nil, fmt.Errorf("scan item for %s: %w", token, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items for %s: %w", token, err)
	}
	return items, nil
}
