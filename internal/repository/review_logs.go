package repository

import (
	"context"
	"fmt"

	"github.com/romanzh1/quizzr-srs/internal/models"
)

func (r *DB) AddReviewLog(ctx context.Context, log *models.ReviewLog) error {
	query := r.sb.Insert("review_logs").
		Columns("owner_id", "card_id", "quality", "time_spent_ms", "interval_days", "ease_factor", "reviewed_at").
		Values(log.OwnerID, log.CardID, log.Quality, log.TimeSpentMs, log.IntervalDays, log.EaseFactor, log.ReviewedAt).
		Suffix("RETURNING id")

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (owner_id: %d, card_id: %d): %w", log.OwnerID, log.CardID, err)
	}

	if err = r.queryRow(ctx, sql, args...).Scan(&log.ID); err != nil {
		return fmt.Errorf("add review log (owner_id: %d, card_id: %d): %w", log.OwnerID, log.CardID, classify(err))
	}
	return nil
}

// ListReviewLogs returns the newest reviews of a card first.
func (r *DB) ListReviewLogs(ctx context.Context, ownerID, cardID int64, limit int) ([]*models.ReviewLog, error) {
	query := r.rebind(`
		SELECT id, owner_id, card_id, quality, time_spent_ms, interval_days, ease_factor, reviewed_at
		FROM review_logs
		WHERE owner_id = ? AND card_id = ?
		ORDER BY reviewed_at DESC, id DESC
		LIMIT ?
	`)

	logs := make([]*models.ReviewLog, 0, limit)
	if err := r.sel(ctx, &logs, query, ownerID, cardID, limit); err != nil {
		return nil, fmt.Errorf("list review logs (owner_id: %d, card_id: %d): %w", ownerID, cardID, classify(err))
	}

	return logs, nil
}
