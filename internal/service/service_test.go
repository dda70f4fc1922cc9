package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/romanzh1/quizzr-srs/internal/models"
	"github.com/romanzh1/quizzr-srs/internal/repository"
	"github.com/romanzh1/quizzr-srs/internal/service/srs"
)

var t0 = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fixture struct {
	svc   *Service
	repo  *repository.DB
	clock *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo, err := repository.Open(repository.SQLite, filepath.Join(t.TempDir(), "srs.db"), 1, 1)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	if err = repo.Up(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	clock := &testClock{t: t0}
	return &fixture{
		svc:   NewService(repo, nil, Options{Clock: clock}),
		repo:  repo,
		clock: clock,
	}
}

func (f *fixture) deck(t *testing.T, ownerID int64, cards int) (*models.Deck, []*models.Card) {
	t.Helper()
	ctx := context.Background()

	deck, err := f.svc.CreateDeck(ctx, ownerID, "german", "")
	if err != nil {
		t.Fatalf("create deck: %v", err)
	}

	out := make([]*models.Card, 0, cards)
	for range cards {
		card, err := f.svc.CreateCard(ctx, ownerID, deck.ID, "der Hund", "the dog")
		if err != nil {
			t.Fatalf("create card: %v", err)
		}
		out = append(out, card)
	}

	return deck, out
}

func TestGetOrCreateSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, cards := f.deck(t, 7, 1)

	s, err := f.svc.GetOrCreateSchedule(ctx, 7, cards[0].ID)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if s.EaseFactor != 2.5 || s.IntervalDays != 1 || s.Repetitions != 0 {
		t.Fatalf("schedule = %+v, want defaults", s)
	}
	if !s.NextReviewAt.Equal(t0) || s.LastReviewedAt != nil || s.LastQuality != nil {
		t.Fatalf("schedule = %+v, want due now and never reviewed", s)
	}

	f.clock.Advance(time.Hour)
	again, err := f.svc.GetOrCreateSchedule(ctx, 7, cards[0].ID)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if again.ID != s.ID || !again.NextReviewAt.Equal(t0) {
		t.Fatalf("second call = %+v, want the existing row", again)
	}

	if _, err = f.svc.GetOrCreateSchedule(ctx, 7, 9999); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("missing card: err = %v, want ErrNotFound", err)
	}
}

func TestRecordReview_FreshCard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, cards := f.deck(t, 7, 1)

	spent := 1500
	s, err := f.svc.RecordReview(ctx, 7, cards[0].ID, 4, &spent)
	if err != nil {
		t.Fatalf("record review: %v", err)
	}

	if s.IntervalDays != 1 || s.Repetitions != 1 {
		t.Fatalf("interval/repetitions = %d/%d, want 1/1", s.IntervalDays, s.Repetitions)
	}
	if !s.NextReviewAt.Equal(t0.AddDate(0, 0, 1)) {
		t.Fatalf("next review = %v, want %v", s.NextReviewAt, t0.AddDate(0, 0, 1))
	}

	stored, err := f.svc.GetSchedule(ctx, 7, cards[0].ID)
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if stored.LastQuality == nil || *stored.LastQuality != 4 {
		t.Fatalf("stored last quality = %v", stored.LastQuality)
	}
	if stored.LastReviewedAt == nil || !stored.NextReviewAt.Equal(stored.LastReviewedAt.AddDate(0, 0, stored.IntervalDays)) {
		t.Fatalf("stored schedule breaks next = last + interval: %+v", stored)
	}

	logs, err := f.svc.ListReviewLogs(ctx, 7, cards[0].ID, 10)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Quality != 4 || logs[0].TimeSpentMs == nil || *logs[0].TimeSpentMs != 1500 {
		t.Fatalf("logs = %+v", logs)
	}

	card, err := f.svc.GetCard(ctx, 7, cards[0].DeckID, cards[0].ID)
	if err != nil {
		t.Fatalf("get card: %v", err)
	}
	if card.TimesStudied != 1 || card.TimesCorrect != 1 || card.TimesIncorrect != 0 {
		t.Fatalf("card counters = %+v", card)
	}
}

func TestRecordReview_ThreeGoodReviews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, cards := f.deck(t, 7, 1)

	var got []int
	for range 3 {
		s, err := f.svc.RecordReview(ctx, 7, cards[0].ID, 4, nil)
		if err != nil {
			t.Fatalf("record review: %v", err)
		}
		got = append(got, s.IntervalDays)
		f.clock.Set(s.NextReviewAt)
	}

	want := []int{1, 6, 15}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("intervals = %v, want %v", got, want)
		}
	}
}

func TestRecordReview_Mastery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deck, cards := f.deck(t, 7, 1)
	id := cards[0].ID

	mastered := func() bool {
		t.Helper()
		card, err := f.svc.GetCard(ctx, 7, deck.ID, id)
		if err != nil {
			t.Fatalf("get card: %v", err)
		}
		return card.IsMastered
	}

	// easy reviews grow the interval 1, 6, 17, 49
	for i, wantMastered := range []bool{false, false, false, true} {
		s, err := f.svc.RecordReview(ctx, 7, id, 5, nil)
		if err != nil {
			t.Fatalf("record review: %v", err)
		}
		if mastered() != wantMastered {
			t.Fatalf("review %d (interval %d): mastered = %t, want %t", i+1, s.IntervalDays, !wantMastered, wantMastered)
		}
		f.clock.Set(s.NextReviewAt)
	}

	s, err := f.svc.RecordReview(ctx, 7, id, 0, nil)
	if err != nil {
		t.Fatalf("record review: %v", err)
	}
	if s.Repetitions != 0 || s.IntervalDays != 1 {
		t.Fatalf("after failure = %+v", s)
	}
	if mastered() {
		t.Fatal("failed review kept the card mastered")
	}
}

func TestRecordReview_ClampsQuality(t *testing.T) {
	f := newFixture(t)
	_, cards := f.deck(t, 7, 1)

	s, err := f.svc.RecordReview(context.Background(), 7, cards[0].ID, 42, nil)
	if err != nil {
		t.Fatalf("record review: %v", err)
	}
	if *s.LastQuality != 5 {
		t.Fatalf("last quality = %d, want 5", *s.LastQuality)
	}
}

func TestRecordReview_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, cards := f.deck(t, 7, 1)

	if _, err := f.svc.RecordReview(ctx, 7, 9999, 4, nil); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("missing card: err = %v, want ErrNotFound", err)
	}

	negative := -1
	if _, err := f.svc.RecordReview(ctx, 7, cards[0].ID, 4, &negative); !errors.Is(err, models.ErrInvalidArgument) {
		t.Fatalf("negative time: err = %v, want ErrInvalidArgument", err)
	}

	if _, err := f.svc.GetSchedule(ctx, 7, cards[0].ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("schedule after failed reviews: err = %v, want ErrNotFound", err)
	}
}

func TestRecordReview_ConcurrentSameCard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deck, cards := f.deck(t, 7, 1)
	id := cards[0].ID

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.RecordReview(ctx, 7, id, 3, nil); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("record review: %v", err)
	}

	s, err := f.svc.GetSchedule(ctx, 7, id)
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if s.Repetitions != n {
		t.Fatalf("repetitions = %d, want %d (lost update)", s.Repetitions, n)
	}
	// 1, 6, 12, 23, 41, 68, 103, 142, 185, 240
	if s.IntervalDays != 240 {
		t.Fatalf("interval = %d, want 240", s.IntervalDays)
	}

	card, err := f.svc.GetCard(ctx, 7, deck.ID, id)
	if err != nil {
		t.Fatalf("get card: %v", err)
	}
	if card.TimesStudied != n {
		t.Fatalf("times studied = %d, want %d", card.TimesStudied, n)
	}
}

func TestRecordReview_LongStreakStaysReadable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, cards := f.deck(t, 7, 1)
	id := cards[0].ID

	for i := range 25 {
		s, err := f.svc.RecordReview(ctx, 7, id, 4, nil)
		if err != nil {
			t.Fatalf("review %d: %v", i+1, err)
		}
		f.clock.Set(s.NextReviewAt)
	}

	s, err := f.svc.GetSchedule(ctx, 7, id)
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if s.IntervalDays != srs.MaxIntervalDays {
		t.Fatalf("interval = %d, want %d", s.IntervalDays, srs.MaxIntervalDays)
	}
	if !s.NextReviewAt.Equal(f.clock.Now()) {
		t.Fatalf("next review = %v, want %v", s.NextReviewAt, f.clock.Now())
	}
}

func TestRecordReview_OwnersAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, cards := f.deck(t, 7, 1)

	if _, err := f.svc.RecordReview(ctx, 7, cards[0].ID, 4, nil); err != nil {
		t.Fatalf("record review: %v", err)
	}
	if _, err := f.svc.RecordReview(ctx, 7, cards[0].ID, 4, nil); err != nil {
		t.Fatalf("record review: %v", err)
	}
	other, err := f.svc.RecordReview(ctx, 8, cards[0].ID, 4, nil)
	if err != nil {
		t.Fatalf("record review: %v", err)
	}

	if other.Repetitions != 1 || other.IntervalDays != 1 {
		t.Fatalf("second owner schedule = %+v, want a fresh first review", other)
	}
}

func TestDeckOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deck, cards := f.deck(t, 7, 1)
	_, otherCards := f.deck(t, 7, 1)

	if _, err := f.svc.GetDeck(ctx, 8, deck.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("foreign deck: err = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.CreateCard(ctx, 8, deck.ID, "a", "b"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("card in foreign deck: err = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.GetCard(ctx, 7, deck.ID, otherCards[0].ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("card from another deck: err = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.CreateDeck(ctx, 7, "  ", ""); !errors.Is(err, models.ErrInvalidArgument) {
		t.Fatalf("blank deck name: err = %v, want ErrInvalidArgument", err)
	}
	if _, err := f.svc.CreateCard(ctx, 7, deck.ID, "front", ""); !errors.Is(err, models.ErrInvalidArgument) {
		t.Fatalf("blank back: err = %v, want ErrInvalidArgument", err)
	}

	if err := f.svc.DeleteCard(ctx, 7, deck.ID, cards[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, err := f.svc.ListCards(ctx, 7, deck.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("cards after delete = %d", len(list))
	}
}
