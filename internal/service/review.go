package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/romanzh1/quizzr-srs/internal/models"
	"github.com/romanzh1/quizzr-srs/internal/service/srs"
	"go.uber.org/zap"
)

func reviewLockKey(ownerID, cardID int64) string {
	return fmt.Sprintf("review:%d:%d", ownerID, cardID)
}

// GetOrCreateSchedule returns the owner's schedule for the card, creating a
// fresh one due now on first use.
func (s *Service) GetOrCreateSchedule(ctx context.Context, ownerID, cardID int64) (*models.Schedule, error) {
	var schedule *models.Schedule

	err := s.repo.RunInTx(ctx, func(tx models.Repository) error {
		sch, err := getOrCreateSchedule(ctx, tx, ownerID, cardID, s.now(), false)
		if err != nil {
			return err
		}

		schedule = sch
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get or create schedule (owner_id: %d, card_id: %d): %w", ownerID, cardID, err)
	}

	return schedule, nil
}

func getOrCreateSchedule(ctx context.Context, tx models.Repository, ownerID, cardID int64, now time.Time, forUpdate bool) (*models.Schedule, error) {
	if _, err := tx.GetCard(ctx, cardID); err != nil {
		return nil, err
	}

	if err := tx.InsertScheduleIfAbsent(ctx, srs.NewSchedule(ownerID, cardID, now)); err != nil {
		return nil, err
	}

	if forUpdate {
		return tx.GetScheduleForUpdate(ctx, ownerID, cardID)
	}
	return tx.GetSchedule(ctx, ownerID, cardID)
}

// GetSchedule never creates; a card the owner has not studied yields ErrNotFound.
func (s *Service) GetSchedule(ctx context.Context, ownerID, cardID int64) (*models.Schedule, error) {
	return s.repo.GetSchedule(ctx, ownerID, cardID)
}

// RecordReview applies one review of quality (0-5, clamped) to the owner's
// schedule for the card. Reviews of the same card by the same owner run one at a time.
func (s *Service) RecordReview(ctx context.Context, ownerID, cardID int64, quality int, timeSpentMs *int) (*models.Schedule, error) {
	if timeSpentMs != nil && *timeSpentMs < 0 {
		return nil, fmt.Errorf("record review: negative time spent: %w", models.ErrInvalidArgument)
	}

	unlock, err := s.locker.Lock(ctx, reviewLockKey(ownerID, cardID))
	if err != nil {
		return nil, fmt.Errorf("lock review (owner_id: %d, card_id: %d): %w", ownerID, cardID, err)
	}
	defer unlock()

	now := s.now()
	q := srs.ClampQuality(quality)

	var schedule *models.Schedule
	err = s.repo.RunInTx(ctx, func(tx models.Repository) error {
		sch, err := getOrCreateSchedule(ctx, tx, ownerID, cardID, now, true)
		if err != nil {
			return err
		}

		srs.Apply(sch, q, now)

		if err = tx.UpdateSchedule(ctx, sch); err != nil {
			return err
		}

		if err = updateMastery(ctx, tx, cardID, q, sch.IntervalDays); err != nil {
			return err
		}

		if err = tx.RecordCardResult(ctx, cardID, srs.IsPassing(q), now); err != nil {
			return err
		}

		err = tx.AddReviewLog(ctx, &models.ReviewLog{
			OwnerID:      ownerID,
			CardID:       cardID,
			Quality:      q,
			TimeSpentMs:  timeSpentMs,
			IntervalDays: sch.IntervalDays,
			EaseFactor:   sch.EaseFactor,
			ReviewedAt:   now,
		})
		if err != nil {
			return err
		}

		schedule = sch
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			zap.L().Warn("review conflict", zap.Int64("owner_id", ownerID), zap.Int64("card_id", cardID), zap.Error(err))
		}
		return nil, fmt.Errorf("record review (owner_id: %d, card_id: %d, quality: %d): %w", ownerID, cardID, q, err)
	}

	zap.L().Debug("review recorded",
		zap.Int64("owner_id", ownerID),
		zap.Int64("card_id", cardID),
		zap.Int("quality", q),
		zap.Int("interval_days", schedule.IntervalDays),
		zap.Int("repetitions", schedule.Repetitions),
	)

	return schedule, nil
}

// updateMastery flags the card once its interval reaches the mastery threshold
// and clears the flag on any failed review.
func updateMastery(ctx context.Context, marker models.MasteryMarker, cardID int64, quality, intervalDays int) error {
	switch {
	case !srs.IsPassing(quality):
		return marker.SetCardMastered(ctx, cardID, false)
	case srs.IsMastered(intervalDays):
		return marker.SetCardMastered(ctx, cardID, true)
	}
	return nil
}

func (s *Service) ListReviewLogs(ctx context.Context, ownerID, cardID int64, limit int) ([]*models.ReviewLog, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("list review logs: limit %d: %w", limit, models.ErrInvalidArgument)
	}

	return s.repo.ListReviewLogs(ctx, ownerID, cardID, limit)
}
