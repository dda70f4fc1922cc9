package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/romanzh1/quizzr-srs/internal/models"
)

const scheduleColumns = "id, owner_id, card_id, ease_factor, interval_days, repetitions, " +
	"last_quality, last_reviewed_at, next_review_at, created_at, updated_at"

// InsertScheduleIfAbsent creates the schedule row unless one already exists
// for the (owner, card) pair. It never overwrites.
func (r *DB) InsertScheduleIfAbsent(ctx context.Context, s *models.Schedule) error {
	query := r.sb.Insert("schedules").
		Columns("owner_id", "card_id", "ease_factor", "interval_days", "repetitions", "next_review_at", "created_at", "updated_at").
		Values(s.OwnerID, s.CardID, s.EaseFactor, s.IntervalDays, s.Repetitions, s.NextReviewAt, s.CreatedAt, s.UpdatedAt).
		Suffix("ON CONFLICT (owner_id, card_id) DO NOTHING")

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (owner_id: %d, card_id: %d): %w", s.OwnerID, s.CardID, err)
	}

	if _, err = r.exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert schedule (owner_id: %d, card_id: %d): %w", s.OwnerID, s.CardID, classify(err))
	}
	return nil
}

func (r *DB) getSchedule(ctx context.Context, ownerID, cardID int64, forUpdate bool) (*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE owner_id = ? AND card_id = ?`
	// SQLite has no row locks; its transactions already hold the database write lock.
	if forUpdate && r.dialect == Postgres {
		query += ` FOR UPDATE`
	}

	var s models.Schedule
	if err := r.get(ctx, &s, r.rebind(query), ownerID, cardID); err != nil {
		return nil, fmt.Errorf("get schedule (owner_id: %d, card_id: %d): %w", ownerID, cardID, classify(err))
	}

	return &s, nil
}

func (r *DB) GetSchedule(ctx context.Context, ownerID, cardID int64) (*models.Schedule, error) {
	return r.getSchedule(ctx, ownerID, cardID, false)
}

// GetScheduleForUpdate reads the schedule and locks its row until the
// surrounding transaction ends.
func (r *DB) GetScheduleForUpdate(ctx context.Context, ownerID, cardID int64) (*models.Schedule, error) {
	return r.getSchedule(ctx, ownerID, cardID, true)
}

func (r *DB) UpdateSchedule(ctx context.Context, s *models.Schedule) error {
	query := r.sb.Update("schedules").
		Set("ease_factor", s.EaseFactor).
		Set("interval_days", s.IntervalDays).
		Set("repetitions", s.Repetitions).
		Set("last_quality", s.LastQuality).
		Set("last_reviewed_at", s.LastReviewedAt).
		Set("next_review_at", s.NextReviewAt).
		Set("updated_at", s.UpdatedAt).
		Where(squirrel.Eq{"id": s.ID})

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (schedule_id: %d): %w", s.ID, err)
	}

	res, err := r.exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update schedule (owner_id: %d, card_id: %d, repetitions: %d): %w", s.OwnerID, s.CardID, s.Repetitions, classify(err))
	}

	if err = rowsAffected(res, "schedule", s.ID); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

// ListDueCards returns unsuspended cards whose schedule is due at now,
// most overdue first.
func (r *DB) ListDueCards(ctx context.Context, ownerID int64, deckID *int64, now time.Time, limit int) ([]*models.Card, error) {
	query := r.sb.Select(cardColumns).
		From("cards c").
		Join("schedules s ON s.card_id = c.id").
		Where(squirrel.Eq{"s.owner_id": ownerID, "c.is_suspended": false}).
		Where(squirrel.LtOrEq{"s.next_review_at": now}).
		OrderBy("s.next_review_at", "c.id").
		Limit(uint64(limit))

	if deckID != nil {
		query = query.Where(squirrel.Eq{"c.deck_id": *deckID})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query (owner_id: %d): %w", ownerID, err)
	}

	cards := make([]*models.Card, 0, limit)
	if err = r.sel(ctx, &cards, sql, args...); err != nil {
		return nil, fmt.Errorf("list due cards (owner_id: %d): %w", ownerID, classify(err))
	}

	return cards, nil
}

// ListNewCards returns unsuspended cards of the deck the owner has never reviewed,
// in creation order.
func (r *DB) ListNewCards(ctx context.Context, ownerID, deckID int64, limit int) ([]*models.Card, error) {
	query := r.rebind(`
		SELECT ` + cardColumns + `
		FROM cards c
		WHERE c.deck_id = ?
		  AND c.is_suspended = ?
		  AND NOT EXISTS (
		      SELECT 1 FROM schedules s WHERE s.card_id = c.id AND s.owner_id = ?
		  )
		ORDER BY c.id
		LIMIT ?
	`)

	cards := make([]*models.Card, 0, limit)
	if err := r.sel(ctx, &cards, query, deckID, false, ownerID, limit); err != nil {
		return nil, fmt.Errorf("list new cards (owner_id: %d, deck_id: %d): %w", ownerID, deckID, classify(err))
	}

	return cards, nil
}

// GetDeckStats counts the deck's unsuspended cards in one pass over the cards
// left-joined with the owner's schedules. Learning is derived by the caller.
func (r *DB) GetDeckStats(ctx context.Context, ownerID, deckID int64, now time.Time) (*models.DeckStats, error) {
	query := r.rebind(`
		SELECT
			COUNT(c.id) AS total,
			COALESCE(SUM(CASE WHEN c.is_mastered THEN 1 ELSE 0 END), 0) AS mastered,
			COALESCE(SUM(CASE WHEN s.id IS NOT NULL AND s.next_review_at <= ? THEN 1 ELSE 0 END), 0) AS due,
			COALESCE(SUM(CASE WHEN s.id IS NULL THEN 1 ELSE 0 END), 0) AS new_count
		FROM cards c
		LEFT JOIN schedules s ON s.card_id = c.id AND s.owner_id = ?
		WHERE c.deck_id = ? AND c.is_suspended = ?
	`)

	var stats models.DeckStats
	if err := r.get(ctx, &stats, query, now, ownerID, deckID, false); err != nil {
		return nil, fmt.Errorf("get deck stats (owner_id: %d, deck_id: %d): %w", ownerID, deckID, classify(err))
	}

	return &stats, nil
}

// ListNextReviewTimes returns the owner's review times in [from, to), ascending.
func (r *DB) ListNextReviewTimes(ctx context.Context, ownerID int64, from, to time.Time) ([]time.Time, error) {
	query := r.rebind(`
		SELECT next_review_at FROM schedules
		WHERE owner_id = ? AND next_review_at >= ? AND next_review_at < ?
		ORDER BY next_review_at
	`)

	times := make([]time.Time, 0)
	if err := r.sel(ctx, &times, query, ownerID, from, to); err != nil {
		return nil, fmt.Errorf("list review times (owner_id: %d): %w", ownerID, classify(err))
	}

	return times, nil
}

// CountSchedulesDue counts the owner's schedules with after < next_review_at <= until.
// A nil after leaves the window open at the bottom.
func (r *DB) CountSchedulesDue(ctx context.Context, ownerID int64, after *time.Time, until time.Time) (int, error) {
	query := r.sb.Select("COUNT(*)").
		From("schedules").
		Where(squirrel.Eq{"owner_id": ownerID}).
		Where(squirrel.LtOrEq{"next_review_at": until})

	if after != nil {
		query = query.Where(squirrel.Gt{"next_review_at": *after})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build SQL query (owner_id: %d): %w", ownerID, err)
	}

	var count int
	if err = r.get(ctx, &count, sql, args...); err != nil {
		return 0, fmt.Errorf("count due schedules (owner_id: %d): %w", ownerID, classify(err))
	}

	return count, nil
}
