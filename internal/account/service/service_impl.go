package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/suscribo/suscribo/internal/account/domain"
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
	Repo  accountdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  accountdomain.Repository
}

func NewService(p Params) accountdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("account.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req accountdomain.CreateAccountRequest) (*accountdomain.Account, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, accountdomain.ErrInvalidEmail
	}

	now := time.Now().UTC()
	account := &accountdomain.Account{
		ID:             s.genID.Generate(),
		Email:          email,
		Country:        strings.TrimSpace(req.Country),
		AutoPayEnabled: req.AutoPayEnabled,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Insert(ctx, s.db, account); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, accountdomain.ErrEmailTaken
		}
		return nil, err
	}
	return account, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error) {
	account, err := s.repo.FindByEmail(ctx, s.db, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, accountdomain.ErrAccountNotFound
	}
	return account, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*accountdomain.Account, error) {
	account, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, accountdomain.ErrAccountNotFound
	}
	return account, nil
}

func (s *Service) UpdatePreferredPaymentMethod(ctx context.Context, tx *gorm.DB, id snowflake.ID, method string) error {
	if tx == nil {
		tx = s.db
	}
	return s.repo.UpdatePreferredPaymentMethod(ctx, tx, id, method)
}
