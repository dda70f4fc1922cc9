package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/romanzh1/quizzr-srs/internal/models"
)

const cardColumns = "c.id, c.deck_id, c.front, c.back, c.is_suspended, c.is_mastered, " +
	"c.times_studied, c.times_correct, c.times_incorrect, c.last_studied_at, c.created_at"

func (r *DB) CreateCard(ctx context.Context, card *models.Card) error {
	query := r.sb.Insert("cards").
		Columns("deck_id", "front", "back", "is_suspended", "is_mastered", "created_at").
		Values(card.DeckID, card.Front, card.Back, card.IsSuspended, card.IsMastered, card.CreatedAt).
		Suffix("RETURNING id")

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (deck_id: %d): %w", card.DeckID, err)
	}

	if err = r.queryRow(ctx, sql, args...).Scan(&card.ID); err != nil {
		return fmt.Errorf("create card (deck_id: %d): %w", card.DeckID, classify(err))
	}
	return nil
}

func (r *DB) GetCard(ctx context.Context, cardID int64) (*models.Card, error) {
	query := r.rebind(`SELECT ` + cardColumns + ` FROM cards c WHERE c.id = ?`)

	var card models.Card
	if err := r.get(ctx, &card, query, cardID); err != nil {
		return nil, fmt.Errorf("get card (card_id: %d): %w", cardID, classify(err))
	}

	return &card, nil
}

func (r *DB) ListCards(ctx context.Context, deckID int64) ([]*models.Card, error) {
	query := r.rebind(`SELECT ` + cardColumns + ` FROM cards c WHERE c.deck_id = ? ORDER BY c.id`)

	cards := make([]*models.Card, 0)
	if err := r.sel(ctx, &cards, query, deckID); err != nil {
		return nil, fmt.Errorf("list cards (deck_id: %d): %w", deckID, classify(err))
	}

	return cards, nil
}

func (r *DB) updateCard(ctx context.Context, cardID int64, query squirrel.UpdateBuilder) error {
	sql, args, err := query.Where(squirrel.Eq{"id": cardID}).ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (card_id: %d): %w", cardID, err)
	}

	res, err := r.exec(ctx, sql, args...)
	if err != nil {
		return classify(err)
	}

	return rowsAffected(res, "card", cardID)
}

func (r *DB) SetCardSuspended(ctx context.Context, cardID int64, suspended bool) error {
	err := r.updateCard(ctx, cardID, r.sb.Update("cards").Set("is_suspended", suspended))
	if err != nil {
		return fmt.Errorf("set card suspended (card_id: %d, suspended: %t): %w", cardID, suspended, err)
	}
	return nil
}

func (r *DB) SetCardMastered(ctx context.Context, cardID int64, mastered bool) error {
	err := r.updateCard(ctx, cardID, r.sb.Update("cards").Set("is_mastered", mastered))
	if err != nil {
		return fmt.Errorf("set card mastered (card_id: %d, mastered: %t): %w", cardID, mastered, err)
	}
	return nil
}

// RecordCardResult bumps the study counters of a card after a review.
func (r *DB) RecordCardResult(ctx context.Context, cardID int64, passed bool, studiedAt time.Time) error {
	query := r.sb.Update("cards").
		Set("times_studied", squirrel.Expr("times_studied + 1")).
		Set("last_studied_at", studiedAt)

	if passed {
		query = query.Set("times_correct", squirrel.Expr("times_correct + 1"))
	} else {
		query = query.Set("times_incorrect", squirrel.Expr("times_incorrect + 1"))
	}

	if err := r.updateCard(ctx, cardID, query); err != nil {
		return fmt.Errorf("record card result (card_id: %d, passed: %t): %w", cardID, passed, err)
	}
	return nil
}

func (r *DB) DeleteCard(ctx context.Context, cardID int64) error {
	sql, args, err := r.sb.Delete("cards").Where(squirrel.Eq{"id": cardID}).ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (card_id: %d): %w", cardID, err)
	}

	res, err := r.exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete card (card_id: %d): %w", cardID, classify(err))
	}

	if err = rowsAffected(res, "card", cardID); err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	return nil
}
