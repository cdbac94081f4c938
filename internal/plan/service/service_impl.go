package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/suscribo/suscribo/internal/plan/domain"
	pkgdb "github.com/suscribo/suscribo/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  plandomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  plandomain.Repository
}

func NewService(p Params) plandomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("plan.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req plandomain.CreatePlanRequest) (*plandomain.Plan, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.MonthlyPrice.IsNegative() {
		return nil, plandomain.ErrInvalidPlan
	}

	now := time.Now().UTC()
	plan := &plandomain.Plan{
		ID:           s.genID.Generate(),
		Name:         name,
		MonthlyPrice: req.MonthlyPrice.Round(2),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, s.db, plan); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, plandomain.ErrPlanExists
		}
		return nil, err
	}
	return plan, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*plandomain.Plan, error) {
	plan, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, plandomain.ErrPlanNotFound
	}
	return plan, nil
}

func (s *Service) GetByName(ctx context.Context, name string) (*plandomain.Plan, error) {
	plan, err := s.repo.FindByName(ctx, s.db, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, plandomain.ErrPlanNotFound
	}
	return plan, nil
}

func (s *Service) List(ctx context.Context) ([]plandomain.Plan, error) {
	return s.repo.List(ctx, s.db)
}
