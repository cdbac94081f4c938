package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Method identifies the payment instrument kind. Each kind uses its own
// subset of the Payment columns; Validate dispatches on it exhaustively.
type Method string

const (
	MethodCard         Method = "card"
	MethodPayPal       Method = "paypal"
	MethodBankTransfer Method = "bank_transfer"
)

func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case MethodCard:
		return MethodCard, nil
	case MethodPayPal:
		return MethodPayPal, nil
	case MethodBankTransfer:
		return MethodBankTransfer, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// Payment records the settlement of exactly one invoice. The instrument
// columns are nullable; only the ones for the row's Method are set.
type Payment struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	InvoiceID   snowflake.ID    `gorm:"uniqueIndex;not null"`
	Method      Method          `gorm:"type:text;not null"`
	Amount      decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	PaidAt      time.Time       `gorm:"not null"`
	CardLast4   *string
	CardHolder  *string
	PaypalEmail *string
	IBAN        *string `gorm:"column:iban"`
	Reference   *string
	CreatedAt   time.Time
}

func (Payment) TableName() string {
	return "payments"
}

func NewCardPayment(invoiceID snowflake.ID, amount decimal.Decimal, at time.Time, last4, holder string) *Payment {
	return &Payment{
		InvoiceID:  invoiceID,
		Method:     MethodCard,
		Amount:     amount,
		PaidAt:     at,
		CardLast4:  &last4,
		CardHolder: &holder,
		CreatedAt:  at,
	}
}

func NewPayPalPayment(invoiceID snowflake.ID, amount decimal.Decimal, at time.Time, email string) *Payment {
	return &Payment{
		InvoiceID:   invoiceID,
		Method:      MethodPayPal,
		Amount:      amount,
		PaidAt:      at,
		PaypalEmail: &email,
		CreatedAt:   at,
	}
}

func NewBankTransferPayment(invoiceID snowflake.ID, amount decimal.Decimal, at time.Time, iban, reference string) *Payment {
	return &Payment{
		InvoiceID: invoiceID,
		Method:    MethodBankTransfer,
		Amount:    amount,
		PaidAt:    at,
		IBAN:      &iban,
		Reference: &reference,
		CreatedAt: at,
	}
}

var cardLast4Pattern = regexp.MustCompile(`^\d{4}$`)

const minIBANLength = 20

// Validate checks the instrument data for the payment's method.
func (p *Payment) Validate() error {
	switch p.Method {
	case MethodCard:
		if p.CardLast4 == nil || !cardLast4Pattern.MatchString(*p.CardLast4) {
			return fmt.Errorf("%w: card number must be exactly 4 digits", ErrInvalidPaymentData)
		}
		if p.CardHolder == nil || len(strings.TrimSpace(*p.CardHolder)) < 3 {
			return fmt.Errorf("%w: card holder must be at least 3 characters", ErrInvalidPaymentData)
		}
		return nil
	case MethodPayPal:
		if p.PaypalEmail == nil || !strings.Contains(*p.PaypalEmail, "@") {
			return fmt.Errorf("%w: paypal email must contain '@'", ErrInvalidPaymentData)
		}
		return nil
	case MethodBankTransfer:
		if p.IBAN == nil || len(strings.ReplaceAll(*p.IBAN, " ", "")) < minIBANLength {
			return fmt.Errorf("%w: iban must be at least %d characters", ErrInvalidPaymentData, minIBANLength)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMethod, p.Method)
	}
}
