package handler

import (
	"fmt"
	"strings"

	"github.com/romanzh1/quizzr-srs/internal/models"
)

type Rating string

const (
	RatingAgain Rating = "again"
	RatingHard  Rating = "hard"
	RatingGood  Rating = "good"
	RatingEasy  Rating = "easy"
)

// ratingQuality maps the four answer buttons onto the 0-5 recall scale.
var ratingQuality = map[Rating]int{
	RatingAgain: 0,
	RatingHard:  2,
	RatingGood:  4,
	RatingEasy:  5,
}

// Ratings lists the buttons in the order they are shown.
var Ratings = []Rating{RatingAgain, RatingHard, RatingGood, RatingEasy}

func QualityFromRating(rating string) (int, error) {
	q, ok := ratingQuality[Rating(strings.ToLower(strings.TrimSpace(rating)))]
	if !ok {
		return 0, fmt.Errorf("unknown rating %q, want one of again, hard, good, easy: %w", rating, models.ErrInvalidArgument)
	}
	return q, nil
}
