package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreatePlanRequest struct {
	Name         string          `json:"name"`
	MonthlyPrice decimal.Decimal `json:"monthly_price"`
}

type Service interface {
	Create(ctx context.Context, req CreatePlanRequest) (*Plan, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Plan, error)
	GetByName(ctx context.Context, name string) (*Plan, error)
	List(ctx context.Context) ([]Plan, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, plan *Plan) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Plan, error)
	FindByName(ctx context.Context, db *gorm.DB, name string) (*Plan, error)
	List(ctx context.Context, db *gorm.DB) ([]Plan, error)
}

var (
	ErrPlanNotFound = errors.New("plan_not_found")
	ErrPlanExists   = errors.New("plan_exists")
	ErrInvalidPlan  = errors.New("invalid_plan")
)
