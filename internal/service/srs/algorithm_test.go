package srs

import (
	"math"
	"testing"
	"time"

	"github.com/romanzh1/quizzr-srs/internal/models"
)

var t0 = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCalculateNextReview_Scenarios(t *testing.T) {
	tests := []struct {
		name         string
		quality      int
		ease         float64
		interval     int
		repetitions  int
		wantInterval int
		wantEase     float64
	}{
		{"first success", 4, 2.5, 1, 0, 1, 2.5},
		{"second success", 4, 2.5, 1, 1, 6, 2.5},
		{"mature growth", 4, 2.5, 6, 2, 15, 2.5},
		{"blackout on mature card", 0, 2.5, 30, 10, 1, 1.7},
		{"hard on mature card", 3, 2.5, 6, 2, 14, 2.36},
		{"easy on mature card", 5, 2.5, 6, 2, 16, 2.6},
		{"zero interval treated as one day", 4, 2.5, 0, 3, 2, 2.5},
		{"negative repetitions", 5, 2.5, 10, -1, 1, 2.6},
		{"quality above range clamped", 9, 2.5, 6, 2, 16, 2.6},
		{"quality below range clamped", -3, 2.5, 6, 2, 1, 1.7},
		{"ease floor", 0, 1.3, 6, 2, 1, 1.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interval, ease := CalculateNextReview(tt.quality, tt.ease, tt.interval, tt.repetitions)
			if interval != tt.wantInterval {
				t.Errorf("interval = %d, want %d", interval, tt.wantInterval)
			}
			if !almostEqual(ease, tt.wantEase) {
				t.Errorf("ease = %v, want %v", ease, tt.wantEase)
			}
		})
	}
}

func TestCalculateNextReview_EaseFloor(t *testing.T) {
	for q := 0; q <= 5; q++ {
		for _, ease := range []float64{1.3, 1.5, 2.5, 4} {
			for reps := -1; reps <= 4; reps++ {
				_, got := CalculateNextReview(q, ease, 10, reps)
				if got < MinEaseFactor {
					t.Fatalf("q=%d ease=%v reps=%d: ease %v below floor", q, ease, reps, got)
				}
			}
		}
	}

	ease := DefaultEaseFactor
	for range 50 {
		_, ease = CalculateNextReview(0, ease, 1, 0)
	}
	if ease != MinEaseFactor {
		t.Fatalf("ease after repeated blackouts = %v, want %v", ease, MinEaseFactor)
	}
}

func TestCalculateNextReview_FailureResetsInterval(t *testing.T) {
	for q := 0; q < PassingQuality; q++ {
		for _, interval := range []int{0, 1, 6, 15, 200} {
			for reps := 0; reps <= 10; reps++ {
				got, _ := CalculateNextReview(q, 2.5, interval, reps)
				if got != 1 {
					t.Fatalf("q=%d interval=%d reps=%d: got %d, want 1", q, interval, reps, got)
				}
			}
		}
	}
}

func TestCalculateNextReview_EarlySteps(t *testing.T) {
	for q := PassingQuality; q <= MaxQuality; q++ {
		if got, _ := CalculateNextReview(q, 2.5, 40, 0); got != 1 {
			t.Errorf("q=%d reps=0: got %d, want 1", q, got)
		}
		if got, _ := CalculateNextReview(q, 2.5, 40, -2); got != 1 {
			t.Errorf("q=%d reps=-2: got %d, want 1", q, got)
		}
		if got, _ := CalculateNextReview(q, 2.5, 40, 1); got != SecondInterval {
			t.Errorf("q=%d reps=1: got %d, want %d", q, got, SecondInterval)
		}
	}
}

func TestCalculateNextReview_MatureMonotonic(t *testing.T) {
	for _, q := range []int{4, 5} {
		for _, ease := range []float64{1.3, 2.0, 2.5, 3.1} {
			prev := 0
			for interval := 1; interval <= 365; interval++ {
				got, _ := CalculateNextReview(q, ease, interval, 3)
				if got < prev {
					t.Fatalf("q=%d ease=%v interval=%d: %d decreased from %d", q, ease, interval, got, prev)
				}
				if got < interval {
					t.Fatalf("q=%d ease=%v interval=%d: %d shorter than previous interval", q, ease, interval, got)
				}
				prev = got
			}
		}
	}
}

func TestCalculateNextReview_EasyGoodHardOrder(t *testing.T) {
	for _, interval := range []int{1, 6, 15, 40, 120} {
		for reps := 2; reps <= 6; reps++ {
			easy, _ := CalculateNextReview(5, 2.5, interval, reps)
			good, _ := CalculateNextReview(4, 2.5, interval, reps)
			hard, _ := CalculateNextReview(3, 2.5, interval, reps)
			if easy < good || good < hard {
				t.Fatalf("interval=%d reps=%d: easy=%d good=%d hard=%d", interval, reps, easy, good, hard)
			}
		}
	}
}

func TestCalculateNextReview_Deterministic(t *testing.T) {
	for q := 0; q <= 5; q++ {
		i1, e1 := CalculateNextReview(q, 2.17, 13, 4)
		i2, e2 := CalculateNextReview(q, 2.17, 13, 4)
		if i1 != i2 || e1 != e2 {
			t.Fatalf("q=%d: (%d, %v) != (%d, %v)", q, i1, e1, i2, e2)
		}
	}
}

func TestCalculateNextReview_IntervalCap(t *testing.T) {
	if got, _ := CalculateNextReview(5, 2.6, 20000, 9); got != MaxIntervalDays {
		t.Fatalf("interval = %d, want %d", got, MaxIntervalDays)
	}
	if got, _ := CalculateNextReview(4, 2.5, MaxIntervalDays, 12); got != MaxIntervalDays {
		t.Fatalf("capped interval grew to %d", got)
	}
	if got, _ := CalculateNextReview(4, 2.5, 10000, 5); got != 25000 {
		t.Fatalf("interval below cap = %d, want 25000", got)
	}
}

func TestApply_RepeatedReviewsStayInRange(t *testing.T) {
	s := NewSchedule(7, 42, t0)

	now := t0
	for i := range 40 {
		Apply(s, 5, now)
		if s.IntervalDays > MaxIntervalDays {
			t.Fatalf("review %d: interval = %d above cap", i+1, s.IntervalDays)
		}
		if s.NextReviewAt.Year() > 9999 {
			t.Fatalf("review %d: next review %v beyond four-digit years", i+1, s.NextReviewAt)
		}
		now = now.Add(time.Hour)
	}

	if s.IntervalDays != MaxIntervalDays {
		t.Fatalf("interval = %d, want %d after 40 easy reviews", s.IntervalDays, MaxIntervalDays)
	}
}

func TestApply_FreshScheduleThreeGoodReviews(t *testing.T) {
	s := NewSchedule(7, 42, t0)

	wantIntervals := []int{1, 6, 15}
	now := t0
	for i, want := range wantIntervals {
		Apply(s, 4, now)

		if s.IntervalDays != want {
			t.Fatalf("review %d: interval = %d, want %d", i+1, s.IntervalDays, want)
		}
		if s.Repetitions != i+1 {
			t.Fatalf("review %d: repetitions = %d, want %d", i+1, s.Repetitions, i+1)
		}
		if s.LastReviewedAt == nil || !s.LastReviewedAt.Equal(now) {
			t.Fatalf("review %d: last reviewed = %v, want %v", i+1, s.LastReviewedAt, now)
		}
		if !s.NextReviewAt.Equal(now.AddDate(0, 0, want)) {
			t.Fatalf("review %d: next review = %v, want %v", i+1, s.NextReviewAt, now.AddDate(0, 0, want))
		}
		if s.LastQuality == nil || *s.LastQuality != 4 {
			t.Fatalf("review %d: last quality = %v, want 4", i+1, s.LastQuality)
		}
		now = s.NextReviewAt
	}
}

func TestApply_FailureResetsRepetitions(t *testing.T) {
	reviewed := t0.AddDate(0, 0, -30)
	s := &models.Schedule{
		EaseFactor:     2.5,
		IntervalDays:   30,
		Repetitions:    10,
		LastReviewedAt: &reviewed,
		NextReviewAt:   t0,
	}

	Apply(s, 1, t0)

	if s.Repetitions != 0 {
		t.Errorf("repetitions = %d, want 0", s.Repetitions)
	}
	if s.IntervalDays != 1 {
		t.Errorf("interval = %d, want 1", s.IntervalDays)
	}
	if !s.NextReviewAt.Equal(t0.AddDate(0, 0, 1)) {
		t.Errorf("next review = %v, want %v", s.NextReviewAt, t0.AddDate(0, 0, 1))
	}
	if PhaseOf(s) != PhaseLearning {
		t.Errorf("phase = %s, want %s", PhaseOf(s), PhaseLearning)
	}
}

func TestApply_StoresClampedQuality(t *testing.T) {
	s := NewSchedule(1, 1, t0)
	Apply(s, 11, t0)

	if *s.LastQuality != MaxQuality {
		t.Fatalf("last quality = %d, want %d", *s.LastQuality, MaxQuality)
	}
}

func TestPhaseOf(t *testing.T) {
	reviewed := t0
	tests := []struct {
		name string
		s    *models.Schedule
		want Phase
	}{
		{"nil", nil, PhaseNew},
		{"never reviewed", NewSchedule(1, 1, t0), PhaseNew},
		{"one success", &models.Schedule{Repetitions: 1, IntervalDays: 1, LastReviewedAt: &reviewed}, PhaseLearning},
		{"growing", &models.Schedule{Repetitions: 3, IntervalDays: 15, LastReviewedAt: &reviewed}, PhaseReview},
		{"mastered", &models.Schedule{Repetitions: 4, IntervalDays: 21, LastReviewedAt: &reviewed}, PhaseMastered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PhaseOf(tt.s); got != tt.want {
				t.Errorf("PhaseOf() = %s, want %s", got, tt.want)
			}
		})
	}
}
