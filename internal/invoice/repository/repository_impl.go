package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/suscribo/suscribo/internal/invoice/domain"
	"gorm.io/gorm"
)

const invoiceColumns = `id, subscription_id, base_amount, tax_amount, total_amount,
	 concept, issued_at, created_at`

type repo struct{}

func Provide() invoicedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoices (
			id, subscription_id, base_amount, tax_amount, total_amount,
			concept, issued_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.SubscriptionID,
		invoice.BaseAmount,
		invoice.TaxAmount,
		invoice.TotalAmount,
		invoice.Concept,
		invoice.IssuedAt,
		invoice.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`,
		id,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) ListByEmail(ctx context.Context, db *gorm.DB, email string) ([]invoicedomain.Invoice, error) {
	var invoices []invoicedomain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT i.id, i.subscription_id, i.base_amount, i.tax_amount, i.total_amount,
		 i.concept, i.issued_at, i.created_at
		 FROM invoices i
		 JOIN subscriptions s ON s.id = i.subscription_id
		 JOIN accounts a ON a.id = s.account_id
		 WHERE a.email = ?
		 ORDER BY i.issued_at DESC, i.id DESC`,
		email,
	).Scan(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) ListByEmailFiltered(ctx context.Context, db *gorm.DB, email string, filter invoicedomain.ListFilter) ([]invoicedomain.Invoice, error) {
	query := `SELECT i.id, i.subscription_id, i.base_amount, i.tax_amount, i.total_amount,
		 i.concept, i.issued_at, i.created_at
		 FROM invoices i
		 JOIN subscriptions s ON s.id = i.subscription_id
		 JOIN accounts a ON a.id = s.account_id
		 WHERE a.email = ?`
	args := []any{email}

	if filter.IssuedFrom != nil {
		query += ` AND i.issued_at >= ?`
		args = append(args, *filter.IssuedFrom)
	}
	if filter.IssuedTo != nil {
		query += ` AND i.issued_at <= ?`
		args = append(args, *filter.IssuedTo)
	}
	if filter.TotalMin != nil {
		query += ` AND i.total_amount >= ?`
		args = append(args, *filter.TotalMin)
	}
	if filter.TotalMax != nil {
		query += ` AND i.total_amount <= ?`
		args = append(args, *filter.TotalMax)
	}
	query += ` ORDER BY i.issued_at DESC, i.id DESC`

	var invoices []invoicedomain.Invoice
	err := db.WithContext(ctx).Raw(query, args...).Scan(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) LatestBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+`
		 FROM invoices
		 WHERE subscription_id = ?
		 ORDER BY issued_at DESC, id DESC
		 LIMIT 1`,
		subscriptionID,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) LatestUnpaidByEmail(ctx context.Context, db *gorm.DB, email string) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT i.id, i.subscription_id, i.base_amount, i.tax_amount, i.total_amount,
		 i.concept, i.issued_at, i.created_at
		 FROM invoices i
		 JOIN subscriptions s ON s.id = i.subscription_id
		 JOIN accounts a ON a.id = s.account_id
		 WHERE a.email = ?
		   AND NOT EXISTS (SELECT 1 FROM payments p WHERE p.invoice_id = i.id)
		 ORDER BY i.issued_at DESC, i.id DESC
		 LIMIT 1`,
		email,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) HasUnpaidBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM invoices i
		 WHERE i.subscription_id = ?
		   AND NOT EXISTS (SELECT 1 FROM payments p WHERE p.invoice_id = i.id)`,
		subscriptionID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) CountPayments(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM payments WHERE invoice_id = ?`,
		invoiceID,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) ListZeroTax(ctx context.Context, db *gorm.DB) ([]invoicedomain.Invoice, error) {
	var invoices []invoicedomain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+`
		 FROM invoices
		 WHERE tax_amount = 0 AND base_amount > 0
		 ORDER BY issued_at ASC`,
	).Scan(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) UpdateTax(ctx context.Context, db *gorm.DB, id snowflake.ID, taxAmount, totalAmount decimal.Decimal) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET tax_amount = ?, total_amount = ? WHERE id = ?`,
		taxAmount,
		totalAmount,
		id,
	).Error
}
