// Package domain contains the append-only subscription change log.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Actions recorded by the engine. Stable identifiers; do not rename once
// entries exist.
const (
	ActionPlanChanged = "subscription.plan_changed"
	ActionRenewed     = "subscription.renewed"
	ActionCancelled   = "subscription.cancelled"
	ActionCreated     = "subscription.created"
)

// ChangeEvent is one immutable snapshot of a state-mutating operation on a
// subscription. Written by every mutation path, read-only afterwards.
type ChangeEvent struct {
	ID             snowflake.ID      `gorm:"primaryKey"`
	SubscriptionID snowflake.ID      `gorm:"not null;index"`
	Action         string            `gorm:"type:text;not null"`
	OldPlanID      *snowflake.ID     `gorm:""`
	NewPlanID      *snowflake.ID     `gorm:""`
	OldStatus      *string           `gorm:"type:text"`
	NewStatus      *string           `gorm:"type:text"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	OccurredAt     time.Time         `gorm:"not null;index"`
}

// TableName sets the database table name.
func (ChangeEvent) TableName() string { return "subscription_change_events" }
