// Package domain contains the account directory model consumed by the
// billing engine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Account is the engine's view of a registered account. The engine reads
// the whole row but only ever writes PreferredPaymentMethod.
type Account struct {
	ID                     snowflake.ID `gorm:"primaryKey"`
	Email                  string       `gorm:"type:text;not null;uniqueIndex"`
	Country                string       `gorm:"type:text;not null"`
	PreferredPaymentMethod *string      `gorm:"type:text"`
	AutoPayEnabled         bool         `gorm:"not null;default:false"`
	CreatedAt              time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt              time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }
