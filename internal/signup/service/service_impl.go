package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/suscribo/suscribo/internal/account/domain"
	auditdomain "github.com/suscribo/suscribo/internal/audit/domain"
	"github.com/suscribo/suscribo/internal/clock"
	invoicedomain "github.com/suscribo/suscribo/internal/invoice/domain"
	plandomain "github.com/suscribo/suscribo/internal/plan/domain"
	signupdomain "github.com/suscribo/suscribo/internal/signup/domain"
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
	AccountRepo accountdomain.Repository
	PlanRepo    plandomain.Repository
	SubSvc      subscriptiondomain.Service
	InvoiceSvc  invoicedomain.Service
	AuditSvc    auditdomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	accountRepo accountdomain.Repository
	planRepo    plandomain.Repository
	subSvc      subscriptiondomain.Service
	invoiceSvc  invoicedomain.Service
	auditSvc    auditdomain.Service
}

func NewService(p Params) signupdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("signup.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		accountRepo: p.AccountRepo,
		planRepo:    p.PlanRepo,
		subSvc:      p.SubSvc,
		invoiceSvc:  p.InvoiceSvc,
		auditSvc:    p.AuditSvc,
	}
}

func (s *Service) Register(ctx context.Context, req signupdomain.RegisterRequest) (*accountdomain.Account, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !strings.Contains(email, "@") {
		return nil, accountdomain.ErrInvalidEmail
	}

	now := s.clock.Now()
	var (
		account *accountdomain.Account
		sub     *subscriptiondomain.Subscription
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		plan, err := s.planRepo.FindByID(ctx, tx, req.PlanID)
		if err != nil {
			return err
		}
		if plan == nil {
			return plandomain.ErrPlanNotFound
		}

		account = &accountdomain.Account{
			ID:        s.genID.Generate(),
			Email:     email,
			Country:   strings.TrimSpace(req.Country),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.accountRepo.Insert(ctx, tx, account); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return accountdomain.ErrEmailTaken
			}
			return err
		}

		sub, err = s.subSvc.Create(ctx, tx, subscriptiondomain.CreateSubscriptionRequest{
			AccountID: account.ID,
			PlanID:    req.PlanID,
		})
		if err != nil {
			return err
		}

		_, err = s.invoiceSvc.Issue(ctx, tx, sub, plan.MonthlyPrice, invoicedomain.ConceptRegistration, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	newStatus := string(subscriptiondomain.SubscriptionStatusActive)
	_ = s.auditSvc.Record(ctx, auditdomain.RecordRequest{
		SubscriptionID: sub.ID,
		Action:         auditdomain.ActionCreated,
		NewPlanID:      &req.PlanID,
		NewStatus:      &newStatus,
	})

	s.log.Info("account registered",
		zap.String("account_id", account.ID.String()),
		zap.String("subscription_id", sub.ID.String()),
	)
	return account, nil
}
