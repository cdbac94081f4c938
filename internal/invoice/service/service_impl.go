package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/suscribo/suscribo/internal/account/domain"
	auditdomain "github.com/suscribo/suscribo/internal/audit/domain"
	"github.com/suscribo/suscribo/internal/clock"
	invoicedomain "github.com/suscribo/suscribo/internal/invoice/domain"
	plandomain "github.com/suscribo/suscribo/internal/plan/domain"
	subscriptiondomain "github.com/suscribo/suscribo/internal/subscription/domain"
	"github.com/suscribo/suscribo/internal/tax"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dueBatchSize = 200

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        invoicedomain.Repository
	SubRepo     subscriptiondomain.Repository
	PlanRepo    plandomain.Repository
	AccountRepo accountdomain.Repository
	AuditSvc    auditdomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        invoicedomain.Repository
	subRepo     subscriptiondomain.Repository
	planRepo    plandomain.Repository
	accountRepo accountdomain.Repository
	auditSvc    auditdomain.Service
}

func NewService(p Params) invoicedomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("invoice.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		subRepo:     p.SubRepo,
		planRepo:    p.PlanRepo,
		accountRepo: p.AccountRepo,
		auditSvc:    p.AuditSvc,
	}
}

func (s *Service) Issue(ctx context.Context, tx *gorm.DB, sub *subscriptiondomain.Subscription, base decimal.Decimal, concept string, at time.Time) (*invoicedomain.Invoice, error) {
	if tx == nil {
		tx = s.db
	}
	if strings.TrimSpace(concept) == "" {
		return nil, invoicedomain.ErrInvalidConcept
	}
	if base.IsNegative() {
		return nil, invoicedomain.ErrNegativeAmount
	}

	account, err := s.accountRepo.FindByID(ctx, tx, sub.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, accountdomain.ErrAccountNotFound
	}

	base = base.Round(2)
	taxAmount := tax.Compute(account.Country, base)

	invoice := &invoicedomain.Invoice{
		ID:             s.genID.Generate(),
		SubscriptionID: sub.ID,
		BaseAmount:     base,
		TaxAmount:      taxAmount,
		TotalAmount:    base.Add(taxAmount),
		Concept:        concept,
		IssuedAt:       at,
		CreatedAt:      at,
	}
	if err := s.repo.Insert(ctx, tx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *Service) RenewSubscription(ctx context.Context, tx *gorm.DB, subscriptionID snowflake.ID, now time.Time) (*invoicedomain.Invoice, error) {
	sub, err := s.subRepo.FindByIDForUpdate(ctx, tx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	if sub.Status != subscriptiondomain.SubscriptionStatusActive {
		return nil, subscriptiondomain.ErrSubscriptionInactive
	}
	// The locked row may already have been renewed by a concurrent sweep
	// or manual call; the due re-check under the lock is what keeps one
	// renewal invoice per due cycle.
	if !sub.CycleEnd.Before(now) {
		return nil, invoicedomain.ErrRenewalConflict
	}

	return s.renewLocked(ctx, tx, sub, now)
}

// renewLocked issues the renewal invoice and advances the cycle. The caller
// holds the row lock and has verified the subscription is active and due.
func (s *Service) renewLocked(ctx context.Context, tx *gorm.DB, sub *subscriptiondomain.Subscription, now time.Time) (*invoicedomain.Invoice, error) {
	plan, err := s.planRepo.FindByID(ctx, tx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, plandomain.ErrPlanNotFound
	}

	invoice, err := s.Issue(ctx, tx, sub, plan.MonthlyPrice, invoicedomain.ConceptRenewal, now)
	if err != nil {
		return nil, err
	}

	newCycleEnd := sub.CycleEnd.AddDate(0, 0, subscriptiondomain.CycleDays)
	if err := s.subRepo.AdvanceCycle(ctx, tx, sub.ID, newCycleEnd, now); err != nil {
		return nil, err
	}
	sub.CycleEnd = newCycleEnd
	return invoice, nil
}

func (s *Service) RenewIfDue(ctx context.Context, email string) (invoicedomain.RenewalResult, error) {
	now := s.clock.Now()
	var (
		result  invoicedomain.RenewalResult
		invoice *invoicedomain.Invoice
		subID   snowflake.ID
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		sub, err := s.subRepo.FindByAccountEmailForUpdate(ctx, tx, email)
		if err != nil {
			return err
		}
		if sub == nil {
			result = invoicedomain.RenewalResult{Message: "no subscription found for this email"}
			return nil
		}
		if sub.Status != subscriptiondomain.SubscriptionStatusActive {
			result = invoicedomain.RenewalResult{Message: "subscription is not active"}
			return nil
		}
		if !sub.CycleEnd.Before(now) {
			result = invoicedomain.RenewalResult{
				Message: fmt.Sprintf("not due yet; next renewal at %s", sub.CycleEnd.Format(time.RFC3339)),
			}
			return nil
		}

		invoice, err = s.renewLocked(ctx, tx, sub, now)
		if err != nil {
			return err
		}
		subID = sub.ID
		result = invoicedomain.RenewalResult{Renewed: true, Message: "renewal invoice generated; payment pending"}
		return nil
	})
	if err != nil {
		return invoicedomain.RenewalResult{}, err
	}

	if invoice != nil {
		s.recordRenewal(ctx, subID, invoice)
	}
	return result, nil
}

func (s *Service) GenerateDueInvoices(ctx context.Context) (int, error) {
	now := s.clock.Now()
	renewed := 0
	var jobErr error

	for {
		subs, err := s.subRepo.FindDue(ctx, s.db, now, dueBatchSize)
		if err != nil {
			return renewed, errors.Join(jobErr, err)
		}
		if len(subs) == 0 {
			break
		}

		progress := 0
		for _, sub := range subs {
			if ctx.Err() != nil {
				return renewed, errors.Join(jobErr, ctx.Err())
			}

			var invoice *invoicedomain.Invoice
			txErr := s.db.Transaction(func(tx *gorm.DB) error {
				var err error
				invoice, err = s.RenewSubscription(ctx, tx, sub.ID, now)
				return err
			})
			if txErr != nil {
				if errors.Is(txErr, invoicedomain.ErrRenewalConflict) {
					progress++
					continue
				}
				jobErr = errors.Join(jobErr, txErr)
				s.log.Warn("renewal failed",
					zap.String("subscription_id", sub.ID.String()),
					zap.Error(txErr),
				)
				continue
			}

			s.recordRenewal(ctx, sub.ID, invoice)
			renewed++
			progress++
		}

		if progress == 0 {
			break
		}
	}

	return renewed, jobErr
}

func (s *Service) List(ctx context.Context, email string) ([]invoicedomain.Invoice, error) {
	invoices, err := s.repo.ListByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}

	// Zero-total rows exist only to anchor instrument validations; they
	// are hidden from the plain listing.
	visible := make([]invoicedomain.Invoice, 0, len(invoices))
	for _, invoice := range invoices {
		if invoice.TotalAmount.IsPositive() {
			visible = append(visible, invoice)
		}
	}
	return visible, nil
}

func (s *Service) ListWithFilters(ctx context.Context, email string, filter invoicedomain.ListFilter) ([]invoicedomain.Invoice, error) {
	return s.repo.ListByEmailFiltered(ctx, s.db, email, filter)
}

func (s *Service) LatestBySubscription(ctx context.Context, subscriptionID snowflake.ID) (*invoicedomain.Invoice, error) {
	return s.repo.LatestBySubscription(ctx, s.db, subscriptionID)
}

func (s *Service) LatestUnpaid(ctx context.Context, email string) (*invoicedomain.Invoice, error) {
	return s.repo.LatestUnpaidByEmail(ctx, s.db, email)
}

func (s *Service) IsPaid(ctx context.Context, invoiceID snowflake.ID) (bool, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return false, err
	}
	if invoice == nil {
		return false, invoicedomain.ErrInvoiceNotFound
	}

	count, err := s.repo.CountPayments(ctx, s.db, invoiceID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) BackfillZeroTax(ctx context.Context) (int, error) {
	invoices, err := s.repo.ListZeroTax(ctx, s.db)
	if err != nil {
		return 0, err
	}

	corrected := 0
	var jobErr error

	for _, invoice := range invoices {
		sub, err := s.subRepo.FindByID(ctx, s.db, invoice.SubscriptionID)
		if err != nil || sub == nil {
			jobErr = errors.Join(jobErr, err)
			continue
		}
		account, err := s.accountRepo.FindByID(ctx, s.db, sub.AccountID)
		if err != nil || account == nil {
			jobErr = errors.Join(jobErr, err)
			continue
		}

		taxAmount := tax.Compute(account.Country, invoice.BaseAmount)
		if !taxAmount.IsPositive() {
			continue
		}

		total := invoice.BaseAmount.Add(taxAmount)
		if err := s.repo.UpdateTax(ctx, s.db, invoice.ID, taxAmount, total); err != nil {
			jobErr = errors.Join(jobErr, err)
			continue
		}
		corrected++
	}

	if corrected > 0 {
		s.log.Info("backfilled zero-tax invoices", zap.Int("corrected", corrected))
	}
	return corrected, jobErr
}

func (s *Service) recordRenewal(ctx context.Context, subscriptionID snowflake.ID, invoice *invoicedomain.Invoice) {
	_ = s.auditSvc.Record(ctx, auditdomain.RecordRequest{
		SubscriptionID: subscriptionID,
		Action:         auditdomain.ActionRenewed,
		Metadata: map[string]any{
			"invoice_id": invoice.ID.String(),
			"total":      invoice.TotalAmount.String(),
		},
	})
}
