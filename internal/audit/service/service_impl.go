package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/suscribo/suscribo/internal/audit/domain"
	"github.com/suscribo/suscribo/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, req auditdomain.RecordRequest) error {
	action := strings.TrimSpace(req.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	if req.SubscriptionID == 0 {
		return auditdomain.ErrInvalidSubscription
	}

	payload := map[string]any{}
	for key, value := range req.Metadata {
		if key == "" {
			continue
		}
		payload[key] = value
	}

	entry := auditdomain.ChangeEvent{
		ID:             s.genID.Generate(),
		SubscriptionID: req.SubscriptionID,
		Action:         action,
		OldPlanID:      req.OldPlanID,
		NewPlanID:      req.NewPlanID,
		OldStatus:      req.OldStatus,
		NewStatus:      req.NewStatus,
		Metadata:       datatypes.JSONMap(payload),
		OccurredAt:     s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write change event", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) ListBySubscription(ctx context.Context, req auditdomain.ListRequest) ([]auditdomain.ChangeEvent, error) {
	if req.SubscriptionID == 0 {
		return nil, auditdomain.ErrInvalidSubscription
	}
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return nil, auditdomain.ErrInvalidTimeRange
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 250 {
		limit = 250
	}

	return s.repo.ListBySubscription(ctx, s.db, req.SubscriptionID, req.StartAt, req.EndAt, limit)
}
