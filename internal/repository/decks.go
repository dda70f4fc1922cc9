package repository

import (
	"context"
	"fmt"

	"github.com/romanzh1/quizzr-srs/internal/models"
)

const deckColumns = "id, owner_id, name, description, created_at"

func (r *DB) CreateDeck(ctx context.Context, deck *models.Deck) error {
	query := r.sb.Insert("decks").
		Columns("owner_id", "name", "description", "created_at").
		Values(deck.OwnerID, deck.Name, deck.Description, deck.CreatedAt).
		Suffix("RETURNING id")

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (owner_id: %d): %w", deck.OwnerID, err)
	}

	if err = r.queryRow(ctx, sql, args...).Scan(&deck.ID); err != nil {
		return fmt.Errorf("create deck (owner_id: %d, name: %s): %w", deck.OwnerID, deck.Name, classify(err))
	}
	return nil
}

func (r *DB) GetDeck(ctx context.Context, deckID int64) (*models.Deck, error) {
	query := r.rebind(`SELECT ` + deckColumns + ` FROM decks WHERE id = ?`)

	var deck models.Deck
	if err := r.get(ctx, &deck, query, deckID); err != nil {
		return nil, fmt.Errorf("get deck (deck_id: %d): %w", deckID, classify(err))
	}

	return &deck, nil
}

func (r *DB) ListDecks(ctx context.Context, ownerID int64) ([]*models.Deck, error) {
	query := r.rebind(`SELECT ` + deckColumns + ` FROM decks WHERE owner_id = ? ORDER BY id`)

	decks := make([]*models.Deck, 0)
	if err := r.sel(ctx, &decks, query, ownerID); err != nil {
		return nil, fmt.Errorf("list decks (owner_id: %d): %w", ownerID, classify(err))
	}

	return decks, nil
}
