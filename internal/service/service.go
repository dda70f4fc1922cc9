package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/romanzh1/quizzr-srs/internal/models"
	"github.com/romanzh1/quizzr-srs/pkg/keylock"
	"github.com/romanzh1/quizzr-srs/pkg/utils"
)

const DefaultReviewsPerNewCard = 5

type Options struct {
	Clock utils.Clock
	// ReviewsPerNewCard is how many due cards a study session shows before each new card.
	ReviewsPerNewCard int
}

var _ models.Service = (*Service)(nil)

type Service struct {
	repo              models.Repository
	locker            keylock.Locker
	clock             utils.Clock
	reviewsPerNewCard int
}

func NewService(repo models.Repository, locker keylock.Locker, opts Options) *Service {
	if locker == nil {
		locker = keylock.NewLocal()
	}
	if opts.Clock == nil {
		opts.Clock = utils.SystemClock{}
	}
	if opts.ReviewsPerNewCard <= 0 {
		opts.ReviewsPerNewCard = DefaultReviewsPerNewCard
	}

	return &Service{
		repo:              repo,
		locker:            locker,
		clock:             opts.Clock,
		reviewsPerNewCard: opts.ReviewsPerNewCard,
	}
}

func (s *Service) now() time.Time {
	return utils.NowUTC(s.clock)
}

func (s *Service) CreateDeck(ctx context.Context, ownerID int64, name, description string) (*models.Deck, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("create deck: empty name: %w", models.ErrInvalidArgument)
	}

	deck := &models.Deck{
		OwnerID:     ownerID,
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   s.now(),
	}

	if err := s.repo.CreateDeck(ctx, deck); err != nil {
		return nil, err
	}

	return deck, nil
}

// GetDeck hides decks of other owners behind ErrNotFound.
func (s *Service) GetDeck(ctx context.Context, ownerID, deckID int64) (*models.Deck, error) {
	return getOwnedDeck(ctx, s.repo, ownerID, deckID)
}

func getOwnedDeck(ctx context.Context, repo models.Repository, ownerID, deckID int64) (*models.Deck, error) {
	deck, err := repo.GetDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}

	if deck.OwnerID != ownerID {
		return nil, fmt.Errorf("get deck (deck_id: %d, owner_id: %d): %w", deckID, ownerID, models.ErrNotFound)
	}

	return deck, nil
}

func (s *Service) ListDecks(ctx context.Context, ownerID int64) ([]*models.Deck, error) {
	return s.repo.ListDecks(ctx, ownerID)
}

func (s *Service) CreateCard(ctx context.Context, ownerID, deckID int64, front, back string) (*models.Card, error) {
	front, back = strings.TrimSpace(front), strings.TrimSpace(back)
	if front == "" || back == "" {
		return nil, fmt.Errorf("create card (deck_id: %d): front and back are required: %w", deckID, models.ErrInvalidArgument)
	}

	if _, err := getOwnedDeck(ctx, s.repo, ownerID, deckID); err != nil {
		return nil, err
	}

	card := &models.Card{
		DeckID:    deckID,
		Front:     front,
		Back:      back,
		CreatedAt: s.now(),
	}

	if err := s.repo.CreateCard(ctx, card); err != nil {
		return nil, err
	}

	return card, nil
}

// GetCard returns the card only if it belongs to the owner's deck.
func (s *Service) GetCard(ctx context.Context, ownerID, deckID, cardID int64) (*models.Card, error) {
	return getOwnedCard(ctx, s.repo, ownerID, deckID, cardID)
}

func getOwnedCard(ctx context.Context, repo models.Repository, ownerID, deckID, cardID int64) (*models.Card, error) {
	if _, err := getOwnedDeck(ctx, repo, ownerID, deckID); err != nil {
		return nil, err
	}

	card, err := repo.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}

	if card.DeckID != deckID {
		return nil, fmt.Errorf("get card (card_id: %d, deck_id: %d): %w", cardID, deckID, models.ErrNotFound)
	}

	return card, nil
}

func (s *Service) ListCards(ctx context.Context, ownerID, deckID int64) ([]*models.Card, error) {
	if _, err := getOwnedDeck(ctx, s.repo, ownerID, deckID); err != nil {
		return nil, err
	}

	return s.repo.ListCards(ctx, deckID)
}

func (s *Service) SetCardSuspended(ctx context.Context, ownerID, deckID, cardID int64, suspended bool) (*models.Card, error) {
	var card *models.Card

	err := s.repo.RunInTx(ctx, func(tx models.Repository) error {
		c, err := getOwnedCard(ctx, tx, ownerID, deckID, cardID)
		if err != nil {
			return err
		}

		if err = tx.SetCardSuspended(ctx, cardID, suspended); err != nil {
			return err
		}

		c.IsSuspended = suspended
		card = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	return card, nil
}

// DeleteCard removes the card with every owner's schedule and history for it.
func (s *Service) DeleteCard(ctx context.Context, ownerID, deckID, cardID int64) error {
	return s.repo.RunInTx(ctx, func(tx models.Repository) error {
		if _, err := getOwnedCard(ctx, tx, ownerID, deckID, cardID); err != nil {
			return err
		}

		return tx.DeleteCard(ctx, cardID)
	})
}

func (s *Service) SubscribeReminders(ctx context.Context, ownerID, chatID int64) error {
	return s.repo.UpsertReminderSubscription(ctx, &models.ReminderSubscription{
		OwnerID:   ownerID,
		ChatID:    chatID,
		CreatedAt: s.now(),
	})
}

func (s *Service) UnsubscribeReminders(ctx context.Context, ownerID int64) error {
	return s.repo.DeleteReminderSubscription(ctx, ownerID)
}

func (s *Service) ListReminderSubscriptions(ctx context.Context) ([]*models.ReminderSubscription, error) {
	return s.repo.ListReminderSubscriptions(ctx)
}
