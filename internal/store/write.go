package store

import (
	"context"
	"fmt"
	"time"
)

// RecordConversion journals a completed run. The write is idempotent
// on the request token: recording the same token twice leaves the
// first record untouched and returns inserted=false. The conversion
// row and its item rows commit in one transaction.
func (s *Store) RecordConversion(ctx context.Context, rec ConversionRecord) (inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO conversions (
			token, source, entity, target,
			resolved, all_items_handled, submitted, failure_code,
			item_count, handled_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(token) DO NOTHING
	`, rec.Token, rec.Source, rec.Entity, rec.Target,
		rec.Resolved, rec.AllItemsHandled, rec.Submitted, rec.FailureCode,
		rec.ItemCount, rec.HandledCount, createdAt.Format(time.RFC3339Nano))
	if err != nil {
		return false, fmt.Errorf("insert conversion %s: %w", rec.Token, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		// Token already journaled - nothing to do, including items.
		return false, nil
	}

	for _, item := range rec.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO item_outcomes (
				conversion_token, position, classification, outcome, final_state
			) VALUES (?, ?, ?, ?, ?)
		`, rec.Token, item.Position, item.Classification, item.Outcome, item.FinalState)
		if err != nil {
			return false, fmt.Errorf("insert item %d for %s: %w", item.Position, rec.Token, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit conversion %s: %w", rec.Token, err)
	}

	return true, nil
}
