package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateSubscriptionRequest struct {
	AccountID snowflake.ID
	PlanID    snowflake.ID
}

type ChangePlanRequest struct {
	SubscriptionID snowflake.ID
	NewPlanID      snowflake.ID
}

type Service interface {
	// Create opens an ACTIVE subscription with CycleEnd = now + 30 days.
	// Callers own any accompanying invoice.
	Create(ctx context.Context, tx *gorm.DB, req CreateSubscriptionRequest) (*Subscription, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Subscription, error)
	GetByAccountEmail(ctx context.Context, email string) (*Subscription, error)
	// ChangePlan reassigns the plan, charging a prorated upgrade difference
	// when days remain in the current cycle. Plan reassignment and the
	// adjustment invoice commit as one unit.
	ChangePlan(ctx context.Context, req ChangePlanRequest) error
	// Cancel transitions an ACTIVE subscription to CANCELLED and stamps
	// CancelledAt. Idempotent on already-cancelled rows.
	Cancel(ctx context.Context, id snowflake.ID, at time.Time) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByAccountID(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (*Subscription, error)
	FindByAccountEmail(ctx context.Context, db *gorm.DB, email string) (*Subscription, error)
	FindByAccountEmailForUpdate(ctx context.Context, db *gorm.DB, email string) (*Subscription, error)
	// FindDue returns ACTIVE subscriptions whose CycleEnd is before the
	// cutoff, oldest first.
	FindDue(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]Subscription, error)
	UpdatePlan(ctx context.Context, db *gorm.DB, id, planID snowflake.ID, at time.Time) error
	AdvanceCycle(ctx context.Context, db *gorm.DB, id snowflake.ID, newCycleEnd, at time.Time) error
	MarkCancelled(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}

var (
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrSubscriptionInactive = errors.New("subscription_not_active")
	ErrSamePlan             = errors.New("plan_unchanged")
	ErrAccountHasSub        = errors.New("account_already_subscribed")
)
