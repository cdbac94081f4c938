package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type RecordRequest struct {
	SubscriptionID snowflake.ID
	Action         string
	OldPlanID      *snowflake.ID
	NewPlanID      *snowflake.ID
	OldStatus      *string
	NewStatus      *string
	Metadata       map[string]any
}

type ListRequest struct {
	SubscriptionID snowflake.ID
	StartAt        *time.Time
	EndAt          *time.Time
	Limit          int
}

type Service interface {
	Record(ctx context.Context, req RecordRequest) error
	ListBySubscription(ctx context.Context, req ListRequest) ([]ChangeEvent, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *ChangeEvent) error
	ListBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, startAt, endAt *time.Time, limit int) ([]ChangeEvent, error)
}

var (
	ErrInvalidAction       = errors.New("invalid_action")
	ErrInvalidSubscription = errors.New("invalid_subscription")
	ErrInvalidTimeRange    = errors.New("invalid_time_range")
)
