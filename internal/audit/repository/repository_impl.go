package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/suscribo/suscribo/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() auditdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *auditdomain.ChangeEvent) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscription_change_events (
			id, subscription_id, action, old_plan_id, new_plan_id,
			old_status, new_status, metadata, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.SubscriptionID,
		event.Action,
		event.OldPlanID,
		event.NewPlanID,
		event.OldStatus,
		event.NewStatus,
		event.Metadata,
		event.OccurredAt,
	).Error
}

func (r *repo) ListBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, startAt, endAt *time.Time, limit int) ([]auditdomain.ChangeEvent, error) {
	query := `SELECT id, subscription_id, action, old_plan_id, new_plan_id,
		 old_status, new_status, metadata, occurred_at
		 FROM subscription_change_events
		 WHERE subscription_id = ?`
	args := []any{subscriptionID}

	if startAt != nil {
		query += ` AND occurred_at >= ?`
		args = append(args, *startAt)
	}
	if endAt != nil {
		query += ` AND occurred_at <= ?`
		args = append(args, *endAt)
	}
	query += ` ORDER BY occurred_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	var events []auditdomain.ChangeEvent
	err := db.WithContext(ctx).Raw(query, args...).Scan(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
