// Package domain contains the invoice ledger model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Invoice concepts written by the engine.
const (
	ConceptRenewal      = "monthly renewal"
	ConceptRegistration = "registration"
	ConceptValidation   = "payment method validation"
)

// Invoice is an immutable economic snapshot tied to one subscription.
// TotalAmount = BaseAmount + TaxAmount. Rows are append-only; the only
// sanctioned mutation is the zero-tax backfill maintenance routine.
type Invoice struct {
	ID             snowflake.ID    `gorm:"primaryKey"`
	SubscriptionID snowflake.ID    `gorm:"not null;index"`
	BaseAmount     decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	TaxAmount      decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Concept        string          `gorm:"type:text;not null"`
	IssuedAt       time.Time       `gorm:"not null;index"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }
