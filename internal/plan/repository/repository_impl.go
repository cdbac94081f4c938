package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/suscribo/suscribo/internal/plan/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() plandomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, plan *plandomain.Plan) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO plans (id, name, monthly_price, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		plan.ID,
		plan.Name,
		plan.MonthlyPrice,
		plan.CreatedAt,
		plan.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*plandomain.Plan, error) {
	var plan plandomain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, monthly_price, created_at, updated_at FROM plans WHERE id = ?`,
		id,
	).Scan(&plan).Error
	if err != nil {
		return nil, err
	}
	if plan.ID == 0 {
		return nil, nil
	}
	return &plan, nil
}

func (r *repo) FindByName(ctx context.Context, db *gorm.DB, name string) (*plandomain.Plan, error) {
	var plan plandomain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, monthly_price, created_at, updated_at FROM plans WHERE name = ?`,
		name,
	).Scan(&plan).Error
	if err != nil {
		return nil, err
	}
	if plan.ID == 0 {
		return nil, nil
	}
	return &plan, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]plandomain.Plan, error) {
	var plans []plandomain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, monthly_price, created_at, updated_at FROM plans ORDER BY monthly_price ASC`,
	).Scan(&plans).Error
	if err != nil {
		return nil, err
	}
	return plans, nil
}
