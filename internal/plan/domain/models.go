// Package domain contains the plan catalog model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Plan is a catalog entry. Immutable after creation except administrative
// price edits; referenced by many subscriptions.
type Plan struct {
	ID           snowflake.ID    `gorm:"primaryKey"`
	Name         string          `gorm:"type:text;not null;uniqueIndex"`
	MonthlyPrice decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Plan) TableName() string { return "plans" }
