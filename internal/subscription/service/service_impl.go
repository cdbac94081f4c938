package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/suscribo/suscribo/internal/audit/domain"
	"github.com/suscribo/suscribo/internal/clock"
	invoicedomain "github.com/suscribo/suscribo/internal/invoice/domain"
	plandomain "github.com/suscribo/suscribo/internal/plan/domain"
	subscriptiondomain "github.com/suscribo/suscribo/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       subscriptiondomain.Repository
	PlanRepo   plandomain.Repository
	InvoiceSvc invoicedomain.Service
	AuditSvc   auditdomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       subscriptiondomain.Repository
	planRepo   plandomain.Repository
	invoiceSvc invoicedomain.Service
	auditSvc   auditdomain.Service
}

func NewService(p Params) subscriptiondomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("subscription.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		planRepo:   p.PlanRepo,
		invoiceSvc: p.InvoiceSvc,
		auditSvc:   p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, tx *gorm.DB, req subscriptiondomain.CreateSubscriptionRequest) (*subscriptiondomain.Subscription, error) {
	if tx == nil {
		tx = s.db
	}

	plan, err := s.planRepo.FindByID(ctx, tx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, plandomain.ErrPlanNotFound
	}

	existing, err := s.repo.FindByAccountID(ctx, tx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, subscriptiondomain.ErrAccountHasSub
	}

	now := s.clock.Now()
	sub := &subscriptiondomain.Subscription{
		ID:         s.genID.Generate(),
		AccountID:  req.AccountID,
		PlanID:     req.PlanID,
		Status:     subscriptiondomain.SubscriptionStatusActive,
		CycleStart: now,
		CycleEnd:   now.AddDate(0, 0, subscriptiondomain.CycleDays),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Insert(ctx, tx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *Service) GetByAccountEmail(ctx context.Context, email string) (*subscriptiondomain.Subscription, error) {
	sub, err := s.repo.FindByAccountEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *Service) ChangePlan(ctx context.Context, req subscriptiondomain.ChangePlanRequest) error {
	now := s.clock.Now()
	var (
		oldPlanID snowflake.ID
		prorated  decimal.Decimal
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindByIDForUpdate(ctx, tx, req.SubscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}
		if sub.Status != subscriptiondomain.SubscriptionStatusActive {
			return subscriptiondomain.ErrSubscriptionInactive
		}
		if sub.PlanID == req.NewPlanID {
			return subscriptiondomain.ErrSamePlan
		}

		newPlan, err := s.planRepo.FindByID(ctx, tx, req.NewPlanID)
		if err != nil {
			return err
		}
		if newPlan == nil {
			return plandomain.ErrPlanNotFound
		}
		oldPlan, err := s.planRepo.FindByID(ctx, tx, sub.PlanID)
		if err != nil {
			return err
		}
		if oldPlan == nil {
			return plandomain.ErrPlanNotFound
		}
		oldPlanID = sub.PlanID

		// Upgrades are billed for the unconsumed remainder of the cycle;
		// downgrades and changes on the cycle boundary produce no charge.
		remainingDays := wholeDaysBetween(now, sub.CycleEnd)
		priceDiff := newPlan.MonthlyPrice.Sub(oldPlan.MonthlyPrice)
		if priceDiff.IsPositive() && remainingDays > 0 {
			factor := decimal.NewFromInt(int64(remainingDays)).
				DivRound(decimal.NewFromInt(subscriptiondomain.CycleDays), 4)
			prorated = priceDiff.Mul(factor).Round(2)
			if prorated.IsPositive() {
				concept := fmt.Sprintf("plan change to %s (prorated %d days)", newPlan.Name, remainingDays)
				if _, err := s.invoiceSvc.Issue(ctx, tx, sub, prorated, concept, now); err != nil {
					return err
				}
			}
		}

		return s.repo.UpdatePlan(ctx, tx, sub.ID, req.NewPlanID, now)
	})
	if err != nil {
		return err
	}

	_ = s.auditSvc.Record(ctx, auditdomain.RecordRequest{
		SubscriptionID: req.SubscriptionID,
		Action:         auditdomain.ActionPlanChanged,
		OldPlanID:      &oldPlanID,
		NewPlanID:      &req.NewPlanID,
		Metadata: map[string]any{
			"prorated_amount": prorated.String(),
		},
	})
	return nil
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID, at time.Time) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if sub == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}
		if sub.Status != subscriptiondomain.SubscriptionStatusActive {
			return subscriptiondomain.ErrSubscriptionInactive
		}
		return s.repo.MarkCancelled(ctx, tx, id, at)
	})
	if err != nil {
		return err
	}

	oldStatus := string(subscriptiondomain.SubscriptionStatusActive)
	newStatus := string(subscriptiondomain.SubscriptionStatusCancelled)
	_ = s.auditSvc.Record(ctx, auditdomain.RecordRequest{
		SubscriptionID: id,
		Action:         auditdomain.ActionCancelled,
		OldStatus:      &oldStatus,
		NewStatus:      &newStatus,
	})
	return nil
}

// wholeDaysBetween reports the number of complete 24h days from a to b,
// negative when b precedes a.
func wholeDaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
