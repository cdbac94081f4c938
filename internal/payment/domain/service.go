package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/suscribo/suscribo/internal/account/domain"
	invoicedomain "github.com/suscribo/suscribo/internal/invoice/domain"
	"gorm.io/gorm"
)

// RecordRequest carries the instrument fields for a manual payment. Only
// the fields for Method are read.
type RecordRequest struct {
	Email       string
	Method      Method
	CardLast4   string
	CardHolder  string
	PaypalEmail string
	IBAN        string
	Reference   string
}

type Service interface {
	// Record settles the account's latest unpaid invoice with the given
	// instrument. When no unpaid invoice exists a zero-amount validation
	// invoice is created and settled instead.
	Record(ctx context.Context, req RecordRequest) (*Payment, error)

	// AutoCharge settles an invoice inside the caller's transaction using
	// placeholder instrument data for the account's preferred method.
	AutoCharge(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice, account *accountdomain.Account) (*Payment, error)

	// LastMethod reports the method of the account's most recent payment,
	// defaulting to card when the account has never paid.
	LastMethod(ctx context.Context, email string) (Method, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByInvoiceID(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (*Payment, error)
	LatestByEmail(ctx context.Context, db *gorm.DB, email string) (*Payment, error)
}

var (
	ErrInvalidPaymentData = errors.New("invalid_payment_data")
	ErrInvoiceAlreadyPaid = errors.New("invoice_already_paid")
	ErrUnknownMethod      = errors.New("unknown_payment_method")
)
