package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/suscribo/suscribo/internal/subscription/domain"
	"gorm.io/gorm"
)

const subscriptionColumns = `id, account_id, plan_id, status, cycle_start, cycle_end,
	 cancelled_at, created_at, updated_at`

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (
			id, account_id, plan_id, status, cycle_start, cycle_end,
			cancelled_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		subscription.ID,
		subscription.AccountID,
		subscription.PlanID,
		subscription.Status,
		subscription.CycleStart,
		subscription.CycleEnd,
		subscription.CancelledAt,
		subscription.CreatedAt,
		subscription.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`,
		id,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`+lockSuffix(db),
		id,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) FindByAccountID(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE account_id = ?`,
		accountID,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) FindByAccountEmail(ctx context.Context, db *gorm.DB, email string) (*subscriptiondomain.Subscription, error) {
	return r.findByEmail(ctx, db, email, false)
}

func (r *repo) FindByAccountEmailForUpdate(ctx context.Context, db *gorm.DB, email string) (*subscriptiondomain.Subscription, error) {
	return r.findByEmail(ctx, db, email, true)
}

func (r *repo) findByEmail(ctx context.Context, db *gorm.DB, email string, locked bool) (*subscriptiondomain.Subscription, error) {
	query := `SELECT s.id, s.account_id, s.plan_id, s.status, s.cycle_start, s.cycle_end,
		 s.cancelled_at, s.created_at, s.updated_at
		 FROM subscriptions s
		 JOIN accounts a ON a.id = s.account_id
		 WHERE a.email = ?`
	if locked {
		query += lockSuffix(db)
	}

	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(query, email).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) FindDue(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]subscriptiondomain.Subscription, error) {
	var subscriptions []subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE status = ? AND cycle_end < ?
		 ORDER BY cycle_end ASC
		 LIMIT ?`,
		subscriptiondomain.SubscriptionStatusActive,
		cutoff,
		limit,
	).Scan(&subscriptions).Error
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (r *repo) UpdatePlan(ctx context.Context, db *gorm.DB, id, planID snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET plan_id = ?, updated_at = ? WHERE id = ?`,
		planID,
		at,
		id,
	).Error
}

func (r *repo) AdvanceCycle(ctx context.Context, db *gorm.DB, id snowflake.ID, newCycleEnd, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET cycle_end = ?, updated_at = ? WHERE id = ?`,
		newCycleEnd,
		at,
		id,
	).Error
}

func (r *repo) MarkCancelled(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET status = ?, cancelled_at = ?, updated_at = ? WHERE id = ?`,
		subscriptiondomain.SubscriptionStatusCancelled,
		at,
		at,
		id,
	).Error
}

// lockSuffix returns FOR UPDATE on dialects that support row locks. SQLite
// serializes writers at the database level, so the clause is omitted there.
func lockSuffix(db *gorm.DB) string {
	if db.Dialector != nil && db.Dialector.Name() == "sqlite" {
		return ``
	}
	return ` FOR UPDATE`
}
