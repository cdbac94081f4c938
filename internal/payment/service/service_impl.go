package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/suscribo/suscribo/internal/account/domain"
	"github.com/suscribo/suscribo/internal/clock"
	invoicedomain "github.com/suscribo/suscribo/internal/invoice/domain"
	paymentdomain "github.com/suscribo/suscribo/internal/payment/domain"
	subscriptiondomain "github.com/suscribo/suscribo/internal/subscription/domain"
	"github.com/suscribo/suscribo/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        paymentdomain.Repository
	InvoiceRepo invoicedomain.Repository
	InvoiceSvc  invoicedomain.Service
	SubRepo     subscriptiondomain.Repository
	AccountRepo accountdomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        paymentdomain.Repository
	invoiceRepo invoicedomain.Repository
	invoiceSvc  invoicedomain.Service
	subRepo     subscriptiondomain.Repository
	accountRepo accountdomain.Repository
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		invoiceRepo: p.InvoiceRepo,
		invoiceSvc:  p.InvoiceSvc,
		subRepo:     p.SubRepo,
		accountRepo: p.AccountRepo,
	}
}

func (s *Service) Record(ctx context.Context, req paymentdomain.RecordRequest) (*paymentdomain.Payment, error) {
	now := s.clock.Now()
	var payment *paymentdomain.Payment

	err := s.db.Transaction(func(tx *gorm.DB) error {
		sub, err := s.subRepo.FindByAccountEmail(ctx, tx, req.Email)
		if err != nil {
			return err
		}
		if sub == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}

		invoice, err := s.invoiceRepo.LatestUnpaidByEmail(ctx, tx, req.Email)
		if err != nil {
			return err
		}
		if invoice == nil {
			// Nothing pending: anchor the instrument to a zero-amount
			// validation invoice so the payment still has a target row.
			invoice, err = s.invoiceSvc.Issue(ctx, tx, sub, decimal.Zero, invoicedomain.ConceptValidation, now)
			if err != nil {
				return err
			}
		}

		payment, err = s.buildPayment(req, invoice)
		if err != nil {
			return err
		}
		if err := payment.Validate(); err != nil {
			return err
		}

		payment.ID = s.genID.Generate()
		if err := s.repo.Insert(ctx, tx, payment); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return paymentdomain.ErrInvoiceAlreadyPaid
			}
			return err
		}

		return s.accountRepo.UpdatePreferredPaymentMethod(ctx, tx, sub.AccountID, string(payment.Method))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment recorded",
		zap.String("invoice_id", payment.InvoiceID.String()),
		zap.String("method", string(payment.Method)),
		zap.String("amount", payment.Amount.String()),
	)
	return payment, nil
}

func (s *Service) buildPayment(req paymentdomain.RecordRequest, invoice *invoicedomain.Invoice) (*paymentdomain.Payment, error) {
	now := s.clock.Now()
	switch req.Method {
	case paymentdomain.MethodCard:
		return paymentdomain.NewCardPayment(invoice.ID, invoice.TotalAmount, now, req.CardLast4, req.CardHolder), nil
	case paymentdomain.MethodPayPal:
		return paymentdomain.NewPayPalPayment(invoice.ID, invoice.TotalAmount, now, req.PaypalEmail), nil
	case paymentdomain.MethodBankTransfer:
		reference := strings.TrimSpace(req.Reference)
		if reference == "" {
			reference = fmt.Sprintf("REF-%d", now.UnixMilli())
		}
		return paymentdomain.NewBankTransferPayment(invoice.ID, invoice.TotalAmount, now, req.IBAN, reference), nil
	default:
		return nil, fmt.Errorf("%w: %q", paymentdomain.ErrUnknownMethod, req.Method)
	}
}

func (s *Service) AutoCharge(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice, account *accountdomain.Account) (*paymentdomain.Payment, error) {
	if tx == nil {
		tx = s.db
	}
	now := s.clock.Now()

	method := paymentdomain.MethodCard
	if account.PreferredPaymentMethod != nil {
		if parsed, err := paymentdomain.ParseMethod(*account.PreferredPaymentMethod); err == nil {
			method = parsed
		}
	}

	// Placeholder instrument data: the real instrument lives with the
	// provider, only the method choice is ours to replay.
	var payment *paymentdomain.Payment
	switch method {
	case paymentdomain.MethodCard:
		payment = paymentdomain.NewCardPayment(invoice.ID, invoice.TotalAmount, now, "AUTO", "Automatic Payment")
	case paymentdomain.MethodPayPal:
		payment = paymentdomain.NewPayPalPayment(invoice.ID, invoice.TotalAmount, now, account.Email)
	case paymentdomain.MethodBankTransfer:
		payment = paymentdomain.NewBankTransferPayment(invoice.ID, invoice.TotalAmount, now, "ES00AUTO", fmt.Sprintf("REF-AUTO-%d", now.UnixMilli()))
	}

	payment.ID = s.genID.Generate()
	if err := s.repo.Insert(ctx, tx, payment); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, paymentdomain.ErrInvoiceAlreadyPaid
		}
		return nil, err
	}
	return payment, nil
}

func (s *Service) LastMethod(ctx context.Context, email string) (paymentdomain.Method, error) {
	payment, err := s.repo.LatestByEmail(ctx, s.db, email)
	if err != nil {
		return "", err
	}
	if payment == nil {
		return paymentdomain.MethodCard, nil
	}
	return payment.Method, nil
}
