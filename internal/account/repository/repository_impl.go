package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/suscribo/suscribo/internal/account/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() accountdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, account *accountdomain.Account) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO accounts (
			id, email, country, preferred_payment_method, auto_pay_enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.Email,
		account.Country,
		account.PreferredPaymentMethod,
		account.AutoPayEnabled,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*accountdomain.Account, error) {
	var account accountdomain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, country, preferred_payment_method, auto_pay_enabled, created_at, updated_at
		 FROM accounts WHERE email = ?`,
		email,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*accountdomain.Account, error) {
	var account accountdomain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, country, preferred_payment_method, auto_pay_enabled, created_at, updated_at
		 FROM accounts WHERE id = ?`,
		id,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) UpdatePreferredPaymentMethod(ctx context.Context, db *gorm.DB, id snowflake.ID, method string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE accounts SET preferred_payment_method = ?, updated_at = ? WHERE id = ?`,
		method,
		time.Now().UTC(),
		id,
	).Error
}
