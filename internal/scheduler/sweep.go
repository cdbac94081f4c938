package scheduler

import (
	"context"
	"errors"

	accountdomain "github.com/suscribo/suscribo/internal/account/domain"
	auditdomain "github.com/suscribo/suscribo/internal/audit/domain"
	"github.com/suscribo/suscribo/internal/clock"
	invoicedomain "github.com/suscribo/suscribo/internal/invoice/domain"
	obsmetrics "github.com/suscribo/suscribo/internal/observability/metrics"
	paymentdomain "github.com/suscribo/suscribo/internal/payment/domain"
	subscriptiondomain "github.com/suscribo/suscribo/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	InvoiceSvc  invoicedomain.Service
	InvoiceRepo invoicedomain.Repository
	PaymentSvc  paymentdomain.Service
	SubRepo     subscriptiondomain.Repository
	SubSvc      subscriptiondomain.Service
	AccountRepo accountdomain.Repository
	AuditSvc    auditdomain.Service
	Config      Config `optional:"true"`
}

// Sweep runs the nightly billing cycle: renew everything due, auto-charge
// the accounts that opted in, cancel what stayed unpaid past the grace
// window. Each subscription is processed in its own transaction so one
// failure never blocks the rest of the batch.
type Sweep struct {
	db          *gorm.DB
	log         *zap.Logger
	cfg         Config
	clock       clock.Clock
	invoiceSvc  invoicedomain.Service
	invoiceRepo invoicedomain.Repository
	paymentSvc  paymentdomain.Service
	subRepo     subscriptiondomain.Repository
	subSvc      subscriptiondomain.Service
	accountRepo accountdomain.Repository
	auditSvc    auditdomain.Service
}

// Stats counts the successful mutations of one sweep run.
type Stats struct {
	Renewed   int
	AutoPaid  int
	Cancelled int
}

func New(p Params) (*Sweep, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.InvoiceSvc == nil || p.InvoiceRepo == nil || p.PaymentSvc == nil || p.SubRepo == nil || p.SubSvc == nil || p.AccountRepo == nil || p.AuditSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Sweep{
		db:          p.DB,
		log:         p.Log.Named("scheduler").With(zap.String("component", "sweep")),
		cfg:         p.Config.withDefaults(),
		clock:       p.Clock,
		invoiceSvc:  p.InvoiceSvc,
		invoiceRepo: p.InvoiceRepo,
		paymentSvc:  p.PaymentSvc,
		subRepo:     p.SubRepo,
		subSvc:      p.SubSvc,
		accountRepo: p.AccountRepo,
		auditSvc:    p.AuditSvc,
	}, nil
}

func (s *Sweep) RunNightlyCycle(parent context.Context) (Stats, error) {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	sweepMetrics := obsmetrics.Sweep()
	sweepMetrics.IncRun()

	// Cancellation runs first: a renewal would push cycle_end forward and
	// hide the subscriptions that are already past the grace window.
	var stats Stats
	cancelErr := s.cancellationPass(ctx, &stats)
	renewErr := s.renewalPass(ctx, &stats)

	sweepMetrics.ObserveRunDuration(s.clock.Now().Sub(start))
	sweepMetrics.AddRenewed(stats.Renewed)
	sweepMetrics.AddAutoPaid(stats.AutoPaid)
	sweepMetrics.AddCancelled(stats.Cancelled)

	s.log.Info("nightly cycle finished",
		zap.Int("renewed", stats.Renewed),
		zap.Int("auto_paid", stats.AutoPaid),
		zap.Int("cancelled", stats.Cancelled),
	)
	return stats, errors.Join(renewErr, cancelErr)
}

// RunOnce triggers a full cycle outside the cron schedule.
func (s *Sweep) RunOnce(ctx context.Context) (Stats, error) {
	return s.RunNightlyCycle(ctx)
}

func (s *Sweep) renewalPass(ctx context.Context, stats *Stats) error {
	now := s.clock.Now()
	sweepMetrics := obsmetrics.Sweep()
	var passErr error

	for {
		subs, err := s.subRepo.FindDue(ctx, s.db, now, s.cfg.BatchSize)
		if err != nil {
			return errors.Join(passErr, err)
		}
		if len(subs) == 0 {
			break
		}

		progress := 0
		for _, sub := range subs {
			if ctx.Err() != nil {
				return errors.Join(passErr, ctx.Err())
			}

			var (
				invoice *invoicedomain.Invoice
				payment *paymentdomain.Payment
			)
			txErr := s.db.Transaction(func(tx *gorm.DB) error {
				var err error
				invoice, err = s.invoiceSvc.RenewSubscription(ctx, tx, sub.ID, now)
				if err != nil {
					return err
				}

				account, err := s.accountRepo.FindByID(ctx, tx, sub.AccountID)
				if err != nil {
					return err
				}
				if account == nil {
					return accountdomain.ErrAccountNotFound
				}
				if !account.AutoPayEnabled {
					return nil
				}

				payment, err = s.paymentSvc.AutoCharge(ctx, tx, invoice, account)
				return err
			})
			if txErr != nil {
				if errors.Is(txErr, invoicedomain.ErrRenewalConflict) {
					progress++
					continue
				}
				passErr = errors.Join(passErr, txErr)
				sweepMetrics.IncItemError(obsmetrics.SweepPassRenewal)
				s.log.Warn("renewal failed",
					zap.String("subscription_id", sub.ID.String()),
					zap.Error(txErr),
				)
				continue
			}

			progress++
			stats.Renewed++
			metadata := map[string]any{
				"invoice_id": invoice.ID.String(),
				"total":      invoice.TotalAmount.String(),
			}
			if payment != nil {
				stats.AutoPaid++
				metadata["payment_method"] = string(payment.Method)
			}
			_ = s.auditSvc.Record(ctx, auditdomain.RecordRequest{
				SubscriptionID: sub.ID,
				Action:         auditdomain.ActionRenewed,
				Metadata:       metadata,
			})
		}

		if progress == 0 {
			break
		}
	}

	return passErr
}

func (s *Sweep) cancellationPass(ctx context.Context, stats *Stats) error {
	now := s.clock.Now()
	cutoff := now.AddDate(0, 0, -s.cfg.GraceDays)
	sweepMetrics := obsmetrics.Sweep()
	var passErr error

	for {
		subs, err := s.subRepo.FindDue(ctx, s.db, cutoff, s.cfg.BatchSize)
		if err != nil {
			return errors.Join(passErr, err)
		}
		if len(subs) == 0 {
			break
		}

		progress := 0
		for _, sub := range subs {
			if ctx.Err() != nil {
				return errors.Join(passErr, ctx.Err())
			}

			unpaid, err := s.invoiceRepo.HasUnpaidBySubscription(ctx, s.db, sub.ID)
			if err != nil {
				passErr = errors.Join(passErr, err)
				sweepMetrics.IncItemError(obsmetrics.SweepPassCancellation)
				continue
			}
			if !unpaid {
				continue
			}

			if err := s.subSvc.Cancel(ctx, sub.ID, now); err != nil {
				if errors.Is(err, subscriptiondomain.ErrSubscriptionInactive) {
					progress++
					continue
				}
				passErr = errors.Join(passErr, err)
				sweepMetrics.IncItemError(obsmetrics.SweepPassCancellation)
				s.log.Warn("cancellation failed",
					zap.String("subscription_id", sub.ID.String()),
					zap.Error(err),
				)
				continue
			}

			progress++
			stats.Cancelled++
		}

		if progress == 0 {
			break
		}
	}

	return passErr
}
