package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	subscriptiondomain "github.com/suscribo/suscribo/internal/subscription/domain"
	"gorm.io/gorm"
)

// RenewalResult reports the outcome of a single-subscription renewal
// check. A not-due or not-found outcome is a valid result, not an error.
type RenewalResult struct {
	Renewed bool   `json:"renewed"`
	Message string `json:"message"`
}

type ListFilter struct {
	IssuedFrom *time.Time
	IssuedTo   *time.Time
	TotalMin   *decimal.Decimal
	TotalMax   *decimal.Decimal
}

type Service interface {
	// Issue appends one invoice for the subscription: tax is derived from
	// the owning account's country, total = base + tax. It does not touch
	// the subscription cycle; callers own any cycle or plan mutation.
	Issue(ctx context.Context, tx *gorm.DB, sub *subscriptiondomain.Subscription, base decimal.Decimal, concept string, at time.Time) (*Invoice, error)

	// RenewSubscription performs one atomic renewal: row lock, due
	// re-check, renewal invoice, cycle advance. Returns ErrRenewalConflict
	// when the locked row is no longer due (another caller already renewed
	// this cycle).
	RenewSubscription(ctx context.Context, tx *gorm.DB, subscriptionID snowflake.ID, now time.Time) (*Invoice, error)

	// RenewIfDue is the on-demand path: resolves the subscription by
	// account email and renews when applicable, otherwise returns a
	// message without side effects.
	RenewIfDue(ctx context.Context, email string) (RenewalResult, error)

	// GenerateDueInvoices runs the renewal pass standalone and returns the
	// number of subscriptions renewed. Per-subscription failures are
	// isolated.
	GenerateDueInvoices(ctx context.Context) (int, error)

	List(ctx context.Context, email string) ([]Invoice, error)
	ListWithFilters(ctx context.Context, email string, filter ListFilter) ([]Invoice, error)
	LatestBySubscription(ctx context.Context, subscriptionID snowflake.ID) (*Invoice, error)
	LatestUnpaid(ctx context.Context, email string) (*Invoice, error)
	IsPaid(ctx context.Context, invoiceID snowflake.ID) (bool, error)

	// BackfillZeroTax recomputes tax and total on historical rows whose
	// tax was stored as zero for a taxable country. Idempotent.
	BackfillZeroTax(ctx context.Context) (int, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	ListByEmail(ctx context.Context, db *gorm.DB, email string) ([]Invoice, error)
	ListByEmailFiltered(ctx context.Context, db *gorm.DB, email string, filter ListFilter) ([]Invoice, error)
	LatestBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (*Invoice, error)
	// LatestUnpaidByEmail is the single pending-invoice query shared by the
	// payment recorder and auto-pay resolution.
	LatestUnpaidByEmail(ctx context.Context, db *gorm.DB, email string) (*Invoice, error)
	HasUnpaidBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (bool, error)
	CountPayments(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int64, error)
	ListZeroTax(ctx context.Context, db *gorm.DB) ([]Invoice, error)
	UpdateTax(ctx context.Context, db *gorm.DB, id snowflake.ID, taxAmount, totalAmount decimal.Decimal) error
}

var (
	ErrInvoiceNotFound = errors.New("invoice_not_found")
	ErrRenewalConflict = errors.New("renewal_conflict")
	ErrInvalidConcept  = errors.New("invalid_concept")
	ErrNegativeAmount  = errors.New("negative_amount")
)
