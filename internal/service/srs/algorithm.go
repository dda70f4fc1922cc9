package srs

import (
	"math"
	"time"

	"github.com/romanzh1/quizzr-srs/internal/models"
	"github.com/romanzh1/quizzr-srs/pkg/utils"
)

const (
	DefaultEaseFactor   = 2.5
	MinEaseFactor       = 1.3
	MinQuality          = 0
	MaxQuality          = 5
	PassingQuality      = 3
	FirstInterval       = 1
	SecondInterval      = 6
	MasteryIntervalDays = 21
	// MaxIntervalDays keeps next_review_at inside the range both databases store.
	MaxIntervalDays = 36500
)

type Phase string

const (
	PhaseNew      Phase = "new"
	PhaseLearning Phase = "learning"
	PhaseReview   Phase = "review"
	PhaseMastered Phase = "mastered"
)

// ClampQuality forces quality into [0, 5].
func ClampQuality(quality int) int {
	return min(max(quality, MinQuality), MaxQuality)
}

func IsPassing(quality int) bool {
	return ClampQuality(quality) >= PassingQuality
}

func IsMastered(intervalDays int) bool {
	return intervalDays >= MasteryIntervalDays
}

// CalculateNextReview is one SM-2 step. The ease update is applied on every
// review; repetitions are the consecutive successes before this review.
func CalculateNextReview(quality int, easeFactor float64, interval, repetitions int) (int, float64) {
	q := ClampQuality(quality)
	miss := float64(MaxQuality - q)

	newEase := math.Max(MinEaseFactor, easeFactor+(0.1-miss*(0.08+miss*0.02)))

	if q < PassingQuality {
		return FirstInterval, newEase
	}

	switch {
	case repetitions <= 0:
		return FirstInterval, newEase
	case repetitions == 1:
		return SecondInterval, newEase
	}

	next := math.RoundToEven(float64(max(1, interval)) * newEase)
	return int(min(max(FirstInterval, next), MaxIntervalDays)), newEase
}

// NewSchedule returns the state of a card that has never been reviewed.
func NewSchedule(ownerID, cardID int64, now time.Time) *models.Schedule {
	return &models.Schedule{
		OwnerID:      ownerID,
		CardID:       cardID,
		EaseFactor:   DefaultEaseFactor,
		IntervalDays: FirstInterval,
		Repetitions:  0,
		NextReviewAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Apply records one review on s at now.
func Apply(s *models.Schedule, quality int, now time.Time) {
	q := ClampQuality(quality)
	interval, ease := CalculateNextReview(q, s.EaseFactor, s.IntervalDays, s.Repetitions)

	if q < PassingQuality {
		s.Repetitions = 0
	} else {
		s.Repetitions++
	}

	reviewedAt := now
	s.EaseFactor = ease
	s.IntervalDays = interval
	s.LastQuality = &q
	s.LastReviewedAt = &reviewedAt
	s.NextReviewAt = utils.AddDays(now, interval)
	s.UpdatedAt = now
}

// PhaseOf reports where s sits in new -> learning -> review -> mastered.
// A nil schedule is a new card.
func PhaseOf(s *models.Schedule) Phase {
	switch {
	case s == nil || s.LastReviewedAt == nil:
		return PhaseNew
	case IsMastered(s.IntervalDays):
		return PhaseMastered
	case s.Repetitions < 2:
		return PhaseLearning
	default:
		return PhaseReview
	}
}
