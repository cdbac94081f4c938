package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateAccountRequest struct {
	Email          string `json:"email"`
	Country        string `json:"country"`
	AutoPayEnabled bool   `json:"auto_pay_enabled"`
}

type Service interface {
	Create(ctx context.Context, req CreateAccountRequest) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Account, error)
	UpdatePreferredPaymentMethod(ctx context.Context, tx *gorm.DB, id snowflake.ID, method string) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, account *Account) error
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Account, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	UpdatePreferredPaymentMethod(ctx context.Context, db *gorm.DB, id snowflake.ID, method string) error
}

var (
	ErrAccountNotFound = errors.New("account_not_found")
	ErrEmailTaken      = errors.New("email_taken")
	ErrInvalidEmail    = errors.New("invalid_email")
)
