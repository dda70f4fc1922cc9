package models

import "time"

type Deck struct {
	ID          int64     `db:"id" json:"id"`
	OwnerID     int64     `db:"owner_id" json:"owner_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type Card struct {
	ID             int64      `db:"id" json:"id"`
	DeckID         int64      `db:"deck_id" json:"deck_id"`
	Front          string     `db:"front" json:"front"`
	Back           string     `db:"back" json:"back"`
	IsSuspended    bool       `db:"is_suspended" json:"is_suspended"`
	IsMastered     bool       `db:"is_mastered" json:"is_mastered"`
	TimesStudied   int        `db:"times_studied" json:"times_studied"`
	TimesCorrect   int        `db:"times_correct" json:"times_correct"`
	TimesIncorrect int        `db:"times_incorrect" json:"times_incorrect"`
	LastStudiedAt  *time.Time `db:"last_studied_at" json:"last_studied_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// Schedule is the SM-2 state of one card for one learner.
// A card without a schedule row is new for that learner.
type Schedule struct {
	ID             int64      `db:"id" json:"id"`
	OwnerID        int64      `db:"owner_id" json:"owner_id"`
	CardID         int64      `db:"card_id" json:"card_id"`
	EaseFactor     float64    `db:"ease_factor" json:"ease_factor"`
	IntervalDays   int        `db:"interval_days" json:"interval_days"`
	Repetitions    int        `db:"repetitions" json:"repetitions"`
	LastQuality    *int       `db:"last_quality" json:"last_quality,omitempty"`
	LastReviewedAt *time.Time `db:"last_reviewed_at" json:"last_reviewed_at,omitempty"`
	NextReviewAt   time.Time  `db:"next_review_at" json:"next_review_at"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

type ReviewLog struct {
	ID           int64     `db:"id" json:"id"`
	OwnerID      int64     `db:"owner_id" json:"owner_id"`
	CardID       int64     `db:"card_id" json:"card_id"`
	Quality      int       `db:"quality" json:"quality"`
	TimeSpentMs  *int      `db:"time_spent_ms" json:"time_spent_ms,omitempty"`
	IntervalDays int       `db:"interval_days" json:"interval_days"`
	EaseFactor   float64   `db:"ease_factor" json:"ease_factor"`
	ReviewedAt   time.Time `db:"reviewed_at" json:"reviewed_at"`
}

type StudySession struct {
	Cards       []*Card `json:"cards"`
	NewCount    int     `json:"new_count"`
	ReviewCount int     `json:"review_count"`
	TotalCount  int     `json:"total_count"`
}

type DeckStats struct {
	Total    int `db:"total" json:"total"`
	Mastered int `db:"mastered" json:"mastered"`
	Due      int `db:"due" json:"due"`
	New      int `db:"new_count" json:"new"`
	Learning int `db:"-" json:"learning"`
}

type ForecastDay struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type DueCounts struct {
	DueNow      int `json:"due_now"`
	Upcoming24h int `json:"upcoming_24h"`
	DueToday    int `json:"due_today"`
}

// ReminderSubscription links a learner to the chat that receives due-card reminders.
type ReminderSubscription struct {
	OwnerID   int64     `db:"owner_id"`
	ChatID    int64     `db:"chat_id"`
	CreatedAt time.Time `db:"created_at"`
}
