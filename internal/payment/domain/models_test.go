package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidate_Card(t *testing.T) {
	amount := decimal.RequireFromString("12.10")
	at := time.Now()

	p := NewCardPayment(1, amount, at, "12a4", "Alicia")
	assert.ErrorIs(t, p.Validate(), ErrInvalidPaymentData)

	p = NewCardPayment(1, amount, at, "1234", "Al")
	assert.ErrorIs(t, p.Validate(), ErrInvalidPaymentData)

	p = NewCardPayment(1, amount, at, "1234", "  A  ")
	assert.ErrorIs(t, p.Validate(), ErrInvalidPaymentData)

	p = NewCardPayment(1, amount, at, "1234", "Al Ex")
	assert.NoError(t, p.Validate())
}

func TestValidate_PayPal(t *testing.T) {
	amount := decimal.RequireFromString("12.10")
	at := time.Now()

	p := NewPayPalPayment(1, amount, at, "not-an-email")
	assert.ErrorIs(t, p.Validate(), ErrInvalidPaymentData)

	p = NewPayPalPayment(1, amount, at, "ana@example.com")
	assert.NoError(t, p.Validate())
}

func TestValidate_BankTransfer(t *testing.T) {
	amount := decimal.RequireFromString("12.10")
	at := time.Now()

	p := NewBankTransferPayment(1, amount, at, "ES12 3456", "REF-1")
	assert.ErrorIs(t, p.Validate(), ErrInvalidPaymentData)

	// Whitespace is stripped before measuring.
	p = NewBankTransferPayment(1, amount, at, "ES12 3456 7890 1234 5678", "REF-1")
	assert.NoError(t, p.Validate())
}

func TestValidate_UnknownMethod(t *testing.T) {
	p := &Payment{Method: Method("crypto")}
	assert.ErrorIs(t, p.Validate(), ErrUnknownMethod)
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("  PayPal ")
	assert.NoError(t, err)
	assert.Equal(t, MethodPayPal, m)

	_, err = ParseMethod("check")
	assert.ErrorIs(t, err, ErrUnknownMethod)
}
