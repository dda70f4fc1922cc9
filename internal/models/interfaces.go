package models

import (
	"context"
	"time"
)

// MasteryMarker is the card-store capability the scheduler uses to flag a card
// as mastered or not, without knowing how cards are stored.
type MasteryMarker interface {
	SetCardMastered(ctx context.Context, cardID int64, mastered bool) error
}

type Repository interface {
	MasteryMarker

	RunInTx(ctx context.Context, fn func(Repository) error) error

	CreateDeck(ctx context.Context, deck *Deck) error
	GetDeck(ctx context.Context, deckID int64) (*Deck, error)
	ListDecks(ctx context.Context, ownerID int64) ([]*Deck, error)

	CreateCard(ctx context.Context, card *Card) error
	GetCard(ctx context.Context, cardID int64) (*Card, error)
	ListCards(ctx context.Context, deckID int64) ([]*Card, error)
	SetCardSuspended(ctx context.Context, cardID int64, suspended bool) error
	RecordCardResult(ctx context.Context, cardID int64, passed bool, studiedAt time.Time) error
	DeleteCard(ctx context.Context, cardID int64) error

	InsertScheduleIfAbsent(ctx context.Context, schedule *Schedule) error
	GetSchedule(ctx context.Context, ownerID, cardID int64) (*Schedule, error)
	GetScheduleForUpdate(ctx context.Context, ownerID, cardID int64) (*Schedule, error)
	UpdateSchedule(ctx context.Context, schedule *Schedule) error
	ListDueCards(ctx context.Context, ownerID int64, deckID *int64, now time.Time, limit int) ([]*Card, error)
	ListNewCards(ctx context.Context, ownerID, deckID int64, limit int) ([]*Card, error)
	GetDeckStats(ctx context.Context, ownerID, deckID int64, now time.Time) (*DeckStats, error)
	ListNextReviewTimes(ctx context.Context, ownerID int64, from, to time.Time) ([]time.Time, error)
	CountSchedulesDue(ctx context.Context, ownerID int64, after *time.Time, until time.Time) (int, error)

	AddReviewLog(ctx context.Context, log *ReviewLog) error
	ListReviewLogs(ctx context.Context, ownerID, cardID int64, limit int) ([]*ReviewLog, error)

	UpsertReminderSubscription(ctx context.Context, sub *ReminderSubscription) error
	DeleteReminderSubscription(ctx context.Context, ownerID int64) error
	ListReminderSubscriptions(ctx context.Context) ([]*ReminderSubscription, error)
}

type Service interface {
	CreateDeck(ctx context.Context, ownerID int64, name, description string) (*Deck, error)
	GetDeck(ctx context.Context, ownerID, deckID int64) (*Deck, error)
	ListDecks(ctx context.Context, ownerID int64) ([]*Deck, error)

	CreateCard(ctx context.Context, ownerID, deckID int64, front, back string) (*Card, error)
	GetCard(ctx context.Context, ownerID, deckID, cardID int64) (*Card, error)
	ListCards(ctx context.Context, ownerID, deckID int64) ([]*Card, error)
	SetCardSuspended(ctx context.Context, ownerID, deckID, cardID int64, suspended bool) (*Card, error)
	DeleteCard(ctx context.Context, ownerID, deckID, cardID int64) error

	GetOrCreateSchedule(ctx context.Context, ownerID, cardID int64) (*Schedule, error)
	GetSchedule(ctx context.Context, ownerID, cardID int64) (*Schedule, error)
	RecordReview(ctx context.Context, ownerID, cardID int64, quality int, timeSpentMs *int) (*Schedule, error)
	ListReviewLogs(ctx context.Context, ownerID, cardID int64, limit int) ([]*ReviewLog, error)

	GetDueCards(ctx context.Context, ownerID int64, deckID *int64, limit int) ([]*Card, error)
	GetNewCards(ctx context.Context, ownerID, deckID int64, limit int) ([]*Card, error)
	GetStudySession(ctx context.Context, ownerID, deckID int64, newLimit, reviewLimit int) (*StudySession, error)
	GetDeckStats(ctx context.Context, ownerID, deckID int64) (*DeckStats, error)
	Forecast(ctx context.Context, ownerID int64, days int) ([]ForecastDay, error)
	CountDue(ctx context.Context, ownerID int64) (*DueCounts, error)

	SubscribeReminders(ctx context.Context, ownerID, chatID int64) error
	UnsubscribeReminders(ctx context.Context, ownerID int64) error
	ListReminderSubscriptions(ctx context.Context) ([]*ReminderSubscription, error)
}
