package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	accountdomain "github.com/suscribo/suscribo/internal/account/domain"
	accountrepo "github.com/suscribo/suscribo/internal/account/repository"
	auditdomain "github.com/suscribo/suscribo/internal/audit/domain"
	auditrepo "github.com/suscribo/suscribo/internal/audit/repository"
	auditservice "github.com/suscribo/suscribo/internal/audit/service"
	"github.com/suscribo/suscribo/internal/clock"
	invoicedomain "github.com/suscribo/suscribo/internal/invoice/domain"
	invoicerepo "github.com/suscribo/suscribo/internal/invoice/repository"
	invoiceservice "github.com/suscribo/suscribo/internal/invoice/service"
	plandomain "github.com/suscribo/suscribo/internal/plan/domain"
	planrepo "github.com/suscribo/suscribo/internal/plan/repository"
	subscriptiondomain "github.com/suscribo/suscribo/internal/subscription/domain"
	subscriptionrepo "github.com/suscribo/suscribo/internal/subscription/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type changePlanFixture struct {
	db     *gorm.DB
	node   *snowflake.Node
	clk    *clock.FakeClock
	subSvc subscriptiondomain.Service
}

func setupChangePlanTest(t *testing.T) *changePlanFixture {
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&accountdomain.Account{},
		&plandomain.Plan{},
		&subscriptiondomain.Subscription{},
		&invoicedomain.Invoice{},
		&auditdomain.ChangeEvent{},
	)
	require.NoError(t, err)

	node, _ := snowflake.NewNode(1)
	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	accRepo := accountrepo.Provide()
	plRepo := planrepo.Provide()
	subRepo := subscriptionrepo.Provide()
	invRepo := invoicerepo.Provide()

	auditSvc := auditservice.NewService(auditservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: auditrepo.Provide(),
	})
	invoiceSvc := invoiceservice.NewService(invoiceservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Repo: invRepo, SubRepo: subRepo, PlanRepo: plRepo, AccountRepo: accRepo,
		AuditSvc: auditSvc,
	})
	subSvc := NewService(Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Repo: subRepo, PlanRepo: plRepo, InvoiceSvc: invoiceSvc, AuditSvc: auditSvc,
	})

	return &changePlanFixture{db: db, node: node, clk: clk, subSvc: subSvc}
}

func (f *changePlanFixture) seedPlan(t *testing.T, name, price string) *plandomain.Plan {
	t.Helper()
	plan := &plandomain.Plan{
		ID:           f.node.Generate(),
		Name:         name,
		MonthlyPrice: decimal.RequireFromString(price),
		CreatedAt:    f.clk.Now(),
		UpdatedAt:    f.clk.Now(),
	}
	require.NoError(t, f.db.Create(plan).Error)
	return plan
}

func (f *changePlanFixture) seedAccount(t *testing.T, email, country string) *accountdomain.Account {
	t.Helper()
	account := &accountdomain.Account{
		ID:        f.node.Generate(),
		Email:     email,
		Country:   country,
		CreatedAt: f.clk.Now(),
		UpdatedAt: f.clk.Now(),
	}
	require.NoError(t, f.db.Create(account).Error)
	return account
}

func (f *changePlanFixture) seedSubscription(t *testing.T, accountID, planID snowflake.ID, status subscriptiondomain.SubscriptionStatus, cycleEnd time.Time) *subscriptiondomain.Subscription {
	t.Helper()
	sub := &subscriptiondomain.Subscription{
		ID:         f.node.Generate(),
		AccountID:  accountID,
		PlanID:     planID,
		Status:     status,
		CycleStart: cycleEnd.AddDate(0, 0, -subscriptiondomain.CycleDays),
		CycleEnd:   cycleEnd,
		CreatedAt:  f.clk.Now(),
		UpdatedAt:  f.clk.Now(),
	}
	require.NoError(t, f.db.Create(sub).Error)
	return sub
}

func TestChangePlan_UpgradeProratesRemainingDays(t *testing.T) {
	f := setupChangePlanTest(t)

	basic := f.seedPlan(t, "BASIC", "10.00")
	premium := f.seedPlan(t, "PREMIUM", "50.00")
	account := f.seedAccount(t, "ana@example.com", "ES")
	// 15 of 30 days left in the cycle.
	sub := f.seedSubscription(t, account.ID, basic.ID, subscriptiondomain.SubscriptionStatusActive, f.clk.Now().AddDate(0, 0, 15))

	err := f.subSvc.ChangePlan(context.Background(), subscriptiondomain.ChangePlanRequest{
		SubscriptionID: sub.ID,
		NewPlanID:      premium.ID,
	})
	require.NoError(t, err)

	var updated subscriptiondomain.Subscription
	require.NoError(t, f.db.First(&updated, "id = ?", sub.ID).Error)
	assert.Equal(t, premium.ID, updated.PlanID)

	var invoices []invoicedomain.Invoice
	require.NoError(t, f.db.Find(&invoices, "subscription_id = ?", sub.ID).Error)
	require.Len(t, invoices, 1)

	// (50 - 10) * 15/30 = 20.00; ES tax 21% = 4.20.
	assert.Equal(t, "20.00", invoices[0].BaseAmount.StringFixed(2))
	assert.Equal(t, "4.20", invoices[0].TaxAmount.StringFixed(2))
	assert.Equal(t, "24.20", invoices[0].TotalAmount.StringFixed(2))
	assert.Contains(t, invoices[0].Concept, "PREMIUM")

	var events []auditdomain.ChangeEvent
	require.NoError(t, f.db.Find(&events, "subscription_id = ?", sub.ID).Error)
	require.Len(t, events, 1)
	assert.Equal(t, auditdomain.ActionPlanChanged, events[0].Action)
	require.NotNil(t, events[0].OldPlanID)
	assert.Equal(t, basic.ID, *events[0].OldPlanID)
	require.NotNil(t, events[0].NewPlanID)
	assert.Equal(t, premium.ID, *events[0].NewPlanID)
}

func TestChangePlan_DowngradeIsFree(t *testing.T) {
	f := setupChangePlanTest(t)

	basic := f.seedPlan(t, "BASIC", "10.00")
	premium := f.seedPlan(t, "PREMIUM", "50.00")
	account := f.seedAccount(t, "bea@example.com", "ES")
	sub := f.seedSubscription(t, account.ID, premium.ID, subscriptiondomain.SubscriptionStatusActive, f.clk.Now().AddDate(0, 0, 20))

	err := f.subSvc.ChangePlan(context.Background(), subscriptiondomain.ChangePlanRequest{
		SubscriptionID: sub.ID,
		NewPlanID:      basic.ID,
	})
	require.NoError(t, err)

	var updated subscriptiondomain.Subscription
	require.NoError(t, f.db.First(&updated, "id = ?", sub.ID).Error)
	assert.Equal(t, basic.ID, updated.PlanID)

	var count int64
	require.NoError(t, f.db.Model(&invoicedomain.Invoice{}).Where("subscription_id = ?", sub.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestChangePlan_UpgradeOnCycleBoundaryIsFree(t *testing.T) {
	f := setupChangePlanTest(t)

	basic := f.seedPlan(t, "BASIC", "10.00")
	premium := f.seedPlan(t, "PREMIUM", "50.00")
	account := f.seedAccount(t, "cai@example.com", "ES")
	// Cycle already lapsed: no days left to prorate.
	sub := f.seedSubscription(t, account.ID, basic.ID, subscriptiondomain.SubscriptionStatusActive, f.clk.Now().Add(-time.Hour))

	err := f.subSvc.ChangePlan(context.Background(), subscriptiondomain.ChangePlanRequest{
		SubscriptionID: sub.ID,
		NewPlanID:      premium.ID,
	})
	require.NoError(t, err)

	var updated subscriptiondomain.Subscription
	require.NoError(t, f.db.First(&updated, "id = ?", sub.ID).Error)
	assert.Equal(t, premium.ID, updated.PlanID)

	var count int64
	require.NoError(t, f.db.Model(&invoicedomain.Invoice{}).Where("subscription_id = ?", sub.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestChangePlan_SamePlanFails(t *testing.T) {
	f := setupChangePlanTest(t)

	basic := f.seedPlan(t, "BASIC", "10.00")
	account := f.seedAccount(t, "dan@example.com", "ES")
	sub := f.seedSubscription(t, account.ID, basic.ID, subscriptiondomain.SubscriptionStatusActive, f.clk.Now().AddDate(0, 0, 10))

	err := f.subSvc.ChangePlan(context.Background(), subscriptiondomain.ChangePlanRequest{
		SubscriptionID: sub.ID,
		NewPlanID:      basic.ID,
	})
	assert.ErrorIs(t, err, subscriptiondomain.ErrSamePlan)
}

func TestChangePlan_InactiveSubscriptionFails(t *testing.T) {
	f := setupChangePlanTest(t)

	basic := f.seedPlan(t, "BASIC", "10.00")
	premium := f.seedPlan(t, "PREMIUM", "50.00")
	account := f.seedAccount(t, "eva@example.com", "ES")
	sub := f.seedSubscription(t, account.ID, basic.ID, subscriptiondomain.SubscriptionStatusCancelled, f.clk.Now().AddDate(0, 0, 10))

	err := f.subSvc.ChangePlan(context.Background(), subscriptiondomain.ChangePlanRequest{
		SubscriptionID: sub.ID,
		NewPlanID:      premium.ID,
	})
	assert.ErrorIs(t, err, subscriptiondomain.ErrSubscriptionInactive)
}

func TestChangePlan_UnknownPlanFails(t *testing.T) {
	f := setupChangePlanTest(t)

	basic := f.seedPlan(t, "BASIC", "10.00")
	account := f.seedAccount(t, "gil@example.com", "ES")
	sub := f.seedSubscription(t, account.ID, basic.ID, subscriptiondomain.SubscriptionStatusActive, f.clk.Now().AddDate(0, 0, 10))

	err := f.subSvc.ChangePlan(context.Background(), subscriptiondomain.ChangePlanRequest{
		SubscriptionID: sub.ID,
		NewPlanID:      f.node.Generate(),
	})
	assert.ErrorIs(t, err, plandomain.ErrPlanNotFound)
}
