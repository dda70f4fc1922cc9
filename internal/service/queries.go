package service

import (
	"context"
	"fmt"
	"time"

	"github.com/romanzh1/quizzr-srs/internal/models"
	"github.com/romanzh1/quizzr-srs/pkg/utils"
	"golang.org/x/sync/errgroup"
)

func (s *Service) GetDueCards(ctx context.Context, ownerID int64, deckID *int64, limit int) ([]*models.Card, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("get due cards: limit %d: %w", limit, models.ErrInvalidArgument)
	}

	return s.repo.ListDueCards(ctx, ownerID, deckID, s.now(), limit)
}

func (s *Service) GetNewCards(ctx context.Context, ownerID, deckID int64, limit int) ([]*models.Card, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("get new cards: limit %d: %w", limit, models.ErrInvalidArgument)
	}

	return s.repo.ListNewCards(ctx, ownerID, deckID, limit)
}

// GetStudySession mixes due and new cards of a deck, showing
// reviewsPerNewCard due cards before each new one.
func (s *Service) GetStudySession(ctx context.Context, ownerID, deckID int64, newLimit, reviewLimit int) (*models.StudySession, error) {
	if newLimit < 0 || reviewLimit < 0 {
		return nil, fmt.Errorf("get study session: limits %d/%d: %w", newLimit, reviewLimit, models.ErrInvalidArgument)
	}

	if _, err := getOwnedDeck(ctx, s.repo, ownerID, deckID); err != nil {
		return nil, err
	}

	now := s.now()
	due := make([]*models.Card, 0)
	fresh := make([]*models.Card, 0)

	g, gctx := errgroup.WithContext(ctx)
	if reviewLimit > 0 {
		g.Go(func() error {
			cards, err := s.repo.ListDueCards(gctx, ownerID, &deckID, now, reviewLimit)
			if err != nil {
				return err
			}
			due = cards
			return nil
		})
	}
	if newLimit > 0 {
		g.Go(func() error {
			cards, err := s.repo.ListNewCards(gctx, ownerID, deckID, newLimit)
			if err != nil {
				return err
			}
			fresh = cards
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("get study session (owner_id: %d, deck_id: %d): %w", ownerID, deckID, err)
	}

	cards := interleave(due, fresh, s.reviewsPerNewCard)

	return &models.StudySession{
		Cards:       cards,
		NewCount:    len(fresh),
		ReviewCount: len(due),
		TotalCount:  len(cards),
	}, nil
}

// interleave emits up to ratio due cards, then one new card, until both are used up.
func interleave(due, fresh []*models.Card, ratio int) []*models.Card {
	out := make([]*models.Card, 0, len(due)+len(fresh))

	var d, n int
	for d < len(due) || n < len(fresh) {
		for range ratio {
			if d == len(due) {
				break
			}
			out = append(out, due[d])
			d++
		}

		if n < len(fresh) {
			out = append(out, fresh[n])
			n++
		}
	}

	return out
}

// GetDeckStats counts the deck's unsuspended cards for the owner.
// Learning is whatever is neither mastered nor new.
func (s *Service) GetDeckStats(ctx context.Context, ownerID, deckID int64) (*models.DeckStats, error) {
	if _, err := getOwnedDeck(ctx, s.repo, ownerID, deckID); err != nil {
		return nil, err
	}

	stats, err := s.repo.GetDeckStats(ctx, ownerID, deckID, s.now())
	if err != nil {
		return nil, err
	}

	stats.Learning = stats.Total - stats.Mastered - stats.New
	return stats, nil
}

// Forecast counts scheduled reviews per 24-hour window for the given number
// of days, the first window starting now. Each window is labelled with its start date.
func (s *Service) Forecast(ctx context.Context, ownerID int64, days int) ([]models.ForecastDay, error) {
	forecast := make([]models.ForecastDay, 0, max(days, 0))
	if days <= 0 {
		return forecast, nil
	}

	now := s.now()
	times, err := s.repo.ListNextReviewTimes(ctx, ownerID, now, utils.AddDays(now, days))
	if err != nil {
		return nil, fmt.Errorf("forecast (owner_id: %d, days: %d): %w", ownerID, days, err)
	}

	i := 0
	for d := range days {
		start, end := utils.AddDays(now, d), utils.AddDays(now, d+1)

		count := 0
		for i < len(times) && times[i].Before(end) {
			if !times[i].Before(start) {
				count++
			}
			i++
		}

		forecast = append(forecast, models.ForecastDay{Date: utils.DateString(start), Count: count})
	}

	return forecast, nil
}

// CountDue reports reviews due now and within the next 24 hours.
func (s *Service) CountDue(ctx context.Context, ownerID int64) (*models.DueCounts, error) {
	now := s.now()
	tomorrow := now.Add(24 * time.Hour)

	var counts models.DueCounts

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repo.CountSchedulesDue(gctx, ownerID, nil, now)
		counts.DueNow = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountSchedulesDue(gctx, ownerID, &now, tomorrow)
		counts.Upcoming24h = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("count due (owner_id: %d): %w", ownerID, err)
	}

	counts.DueToday = counts.DueNow + counts.Upcoming24h
	return &counts, nil
}
