package repository

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/romanzh1/quizzr-srs/internal/models"
)

func (r *DB) UpsertReminderSubscription(ctx context.Context, sub *models.ReminderSubscription) error {
	query := r.sb.Insert("reminder_subscriptions").
		Columns("owner_id", "chat_id", "created_at").
		Values(sub.OwnerID, sub.ChatID, sub.CreatedAt).
		Suffix("ON CONFLICT (owner_id) DO UPDATE SET chat_id = excluded.chat_id")

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (owner_id: %d): %w", sub.OwnerID, err)
	}

	if _, err = r.exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("upsert reminder subscription (owner_id: %d, chat_id: %d): %w", sub.OwnerID, sub.ChatID, classify(err))
	}
	return nil
}

func (r *DB) DeleteReminderSubscription(ctx context.Context, ownerID int64) error {
	sql, args, err := r.sb.Delete("reminder_subscriptions").Where(squirrel.Eq{"owner_id": ownerID}).ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (owner_id: %d): %w", ownerID, err)
	}

	if _, err = r.exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete reminder subscription (owner_id: %d): %w", ownerID, classify(err))
	}
	return nil
}

func (r *DB) ListReminderSubscriptions(ctx context.Context) ([]*models.ReminderSubscription, error) {
	query := `SELECT owner_id, chat_id, created_at FROM reminder_subscriptions ORDER BY owner_id`

	subs := make([]*models.ReminderSubscription, 0)
	if err := r.sel(ctx, &subs, query); err != nil {
		return nil, fmt.Errorf("list reminder subscriptions: %w", classify(err))
	}

	return subs, nil
}
