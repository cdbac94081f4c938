package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/suscribo/suscribo/internal/payment/domain"
	"gorm.io/gorm"
)

const paymentColumns = `id, invoice_id, method, amount, paid_at,
	 card_last4, card_holder, paypal_email, iban, reference, created_at`

type repo struct{}

func Provide() paymentdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *paymentdomain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (
			id, invoice_id, method, amount, paid_at,
			card_last4, card_holder, paypal_email, iban, reference, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.InvoiceID,
		payment.Method,
		payment.Amount,
		payment.PaidAt,
		payment.CardLast4,
		payment.CardHolder,
		payment.PaypalEmail,
		payment.IBAN,
		payment.Reference,
		payment.CreatedAt,
	).Error
}

func (r *repo) FindByInvoiceID(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (*paymentdomain.Payment, error) {
	var payment paymentdomain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+` FROM payments WHERE invoice_id = ?`,
		invoiceID,
	).Scan(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

func (r *repo) LatestByEmail(ctx context.Context, db *gorm.DB, email string) (*paymentdomain.Payment, error) {
	var payment paymentdomain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT p.id, p.invoice_id, p.method, p.amount, p.paid_at,
		 p.card_last4, p.card_holder, p.paypal_email, p.iban, p.reference, p.created_at
		 FROM payments p
		 JOIN invoices i ON i.id = p.invoice_id
		 JOIN subscriptions s ON s.id = i.subscription_id
		 JOIN accounts a ON a.id = s.account_id
		 WHERE a.email = ?
		 ORDER BY p.paid_at DESC, p.id DESC
		 LIMIT 1`,
		email,
	).Scan(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}
