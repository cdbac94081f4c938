// Package domain contains the subscription ledger model and state machine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
	// SubscriptionStatusDelinquent is declared in the domain but no engine
	// path currently transitions into it; its trigger is pending a product
	// decision.
	SubscriptionStatusDelinquent SubscriptionStatus = "DELINQUENT"
)

// CycleDays is the fixed billing cycle length.
const CycleDays = 30

// Subscription ties one account to one plan. CycleEnd only ever moves
// forward in whole 30-day steps; CancelledAt is set exactly once. Rows are
// never physically deleted.
type Subscription struct {
	ID          snowflake.ID       `gorm:"primaryKey"`
	AccountID   snowflake.ID       `gorm:"not null;uniqueIndex"`
	PlanID      snowflake.ID       `gorm:"not null;index"`
	Status      SubscriptionStatus `gorm:"type:text;not null"`
	CycleStart  time.Time          `gorm:"not null"`
	CycleEnd    time.Time          `gorm:"not null;index"`
	CancelledAt *time.Time         `gorm:""`
	CreatedAt   time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }
