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
	paymentdomain "github.com/suscribo/suscribo/internal/payment/domain"
	plandomain "github.com/suscribo/suscribo/internal/plan/domain"
	planrepo "github.com/suscribo/suscribo/internal/plan/repository"
	subscriptiondomain "github.com/suscribo/suscribo/internal/subscription/domain"
	subscriptionrepo "github.com/suscribo/suscribo/internal/subscription/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type renewalFixture struct {
	db   *gorm.DB
	node *snowflake.Node
	clk  *clock.FakeClock
	svc  invoicedomain.Service
}

func setupRenewalTest(t *testing.T) *renewalFixture {
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&accountdomain.Account{},
		&plandomain.Plan{},
		&subscriptiondomain.Subscription{},
		&invoicedomain.Invoice{},
		&paymentdomain.Payment{},
		&auditdomain.ChangeEvent{},
	)
	require.NoError(t, err)

	node, _ := snowflake.NewNode(1)
	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2026, 4, 10, 3, 0, 0, 0, time.UTC))

	auditSvc := auditservice.NewService(auditservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: auditrepo.Provide(),
	})
	svc := NewService(Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Repo:    invoicerepo.Provide(),
		SubRepo: subscriptionrepo.Provide(), PlanRepo: planrepo.Provide(), AccountRepo: accountrepo.Provide(),
		AuditSvc: auditSvc,
	})

	return &renewalFixture{db: db, node: node, clk: clk, svc: svc}
}

func (f *renewalFixture) seed(t *testing.T, email, country, price string, cycleEnd time.Time, status subscriptiondomain.SubscriptionStatus) *subscriptiondomain.Subscription {
	t.Helper()

	plan := &plandomain.Plan{
		ID:           f.node.Generate(),
		Name:         "PLAN-" + email,
		MonthlyPrice: decimal.RequireFromString(price),
	}
	require.NoError(t, f.db.Create(plan).Error)

	account := &accountdomain.Account{
		ID:      f.node.Generate(),
		Email:   email,
		Country: country,
	}
	require.NoError(t, f.db.Create(account).Error)

	sub := &subscriptiondomain.Subscription{
		ID:         f.node.Generate(),
		AccountID:  account.ID,
		PlanID:     plan.ID,
		Status:     status,
		CycleStart: cycleEnd.AddDate(0, 0, -subscriptiondomain.CycleDays),
		CycleEnd:   cycleEnd,
	}
	require.NoError(t, f.db.Create(sub).Error)
	return sub
}

func TestRenewIfDue_GeneratesInvoiceAndAdvancesCycle(t *testing.T) {
	f := setupRenewalTest(t)
	cycleEnd := f.clk.Now().AddDate(0, 0, -1)
	sub := f.seed(t, "ana@example.com", "ES", "10.00", cycleEnd, subscriptiondomain.SubscriptionStatusActive)

	result, err := f.svc.RenewIfDue(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.True(t, result.Renewed)

	var invoices []invoicedomain.Invoice
	require.NoError(t, f.db.Find(&invoices, "subscription_id = ?", sub.ID).Error)
	require.Len(t, invoices, 1)
	assert.Equal(t, invoicedomain.ConceptRenewal, invoices[0].Concept)
	assert.Equal(t, "10.00", invoices[0].BaseAmount.StringFixed(2))
	assert.Equal(t, "2.10", invoices[0].TaxAmount.StringFixed(2))
	assert.Equal(t, "12.10", invoices[0].TotalAmount.StringFixed(2))

	var updated subscriptiondomain.Subscription
	require.NoError(t, f.db.First(&updated, "id = ?", sub.ID).Error)
	assert.Equal(t, cycleEnd.AddDate(0, 0, subscriptiondomain.CycleDays).Unix(), updated.CycleEnd.Unix())

	// Immediately after a successful renewal the subscription is no
	// longer due; a second call must not bill again.
	result, err = f.svc.RenewIfDue(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.False(t, result.Renewed)
	assert.Contains(t, result.Message, "not due")

	var count int64
	require.NoError(t, f.db.Model(&invoicedomain.Invoice{}).Where("subscription_id = ?", sub.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	var events []auditdomain.ChangeEvent
	require.NoError(t, f.db.Find(&events, "subscription_id = ?", sub.ID).Error)
	require.Len(t, events, 1)
	assert.Equal(t, auditdomain.ActionRenewed, events[0].Action)
}

func TestRenewIfDue_UnknownEmail(t *testing.T) {
	f := setupRenewalTest(t)

	result, err := f.svc.RenewIfDue(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, result.Renewed)
	assert.Contains(t, result.Message, "no subscription")
}

func TestRenewIfDue_CancelledSubscription(t *testing.T) {
	f := setupRenewalTest(t)
	f.seed(t, "bea@example.com", "ES", "10.00", f.clk.Now().AddDate(0, 0, -5), subscriptiondomain.SubscriptionStatusCancelled)

	result, err := f.svc.RenewIfDue(context.Background(), "bea@example.com")
	require.NoError(t, err)
	assert.False(t, result.Renewed)
	assert.Contains(t, result.Message, "not active")
}

func TestGenerateDueInvoices_RenewsOnlyDueSubscriptions(t *testing.T) {
	f := setupRenewalTest(t)
	due1 := f.seed(t, "one@example.com", "ES", "10.00", f.clk.Now().AddDate(0, 0, -2), subscriptiondomain.SubscriptionStatusActive)
	due2 := f.seed(t, "two@example.com", "USA", "25.00", f.clk.Now().AddDate(0, 0, -1), subscriptiondomain.SubscriptionStatusActive)
	notDue := f.seed(t, "three@example.com", "ES", "10.00", f.clk.Now().AddDate(0, 0, 10), subscriptiondomain.SubscriptionStatusActive)

	count, err := f.svc.GenerateDueInvoices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var invoiceCount int64
	require.NoError(t, f.db.Model(&invoicedomain.Invoice{}).Count(&invoiceCount).Error)
	assert.EqualValues(t, 2, invoiceCount)

	for _, id := range []snowflake.ID{due1.ID, due2.ID} {
		var sub subscriptiondomain.Subscription
		require.NoError(t, f.db.First(&sub, "id = ?", id).Error)
		assert.True(t, sub.CycleEnd.After(f.clk.Now()))
	}
	var untouched subscriptiondomain.Subscription
	require.NoError(t, f.db.First(&untouched, "id = ?", notDue.ID).Error)
	assert.Equal(t, notDue.CycleEnd.Unix(), untouched.CycleEnd.Unix())

	count, err = f.svc.GenerateDueInvoices(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestList_HidesZeroTotalAnchors(t *testing.T) {
	f := setupRenewalTest(t)
	sub := f.seed(t, "cai@example.com", "ES", "10.00", f.clk.Now().AddDate(0, 0, 10), subscriptiondomain.SubscriptionStatusActive)

	require.NoError(t, f.db.Create(&invoicedomain.Invoice{
		ID: f.node.Generate(), SubscriptionID: sub.ID,
		BaseAmount:  decimal.RequireFromString("10.00"),
		TaxAmount:   decimal.RequireFromString("2.10"),
		TotalAmount: decimal.RequireFromString("12.10"),
		Concept:     invoicedomain.ConceptRenewal,
		IssuedAt:    f.clk.Now().AddDate(0, 0, -3),
	}).Error)
	require.NoError(t, f.db.Create(&invoicedomain.Invoice{
		ID: f.node.Generate(), SubscriptionID: sub.ID,
		BaseAmount:  decimal.Zero,
		TaxAmount:   decimal.Zero,
		TotalAmount: decimal.Zero,
		Concept:     invoicedomain.ConceptValidation,
		IssuedAt:    f.clk.Now().AddDate(0, 0, -2),
	}).Error)

	invoices, err := f.svc.List(context.Background(), "cai@example.com")
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, invoicedomain.ConceptRenewal, invoices[0].Concept)

	// The filtered listing is the raw surface and keeps the anchor row.
	all, err := f.svc.ListWithFilters(context.Background(), "cai@example.com", invoicedomain.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	min := decimal.RequireFromString("5.00")
	filtered, err := f.svc.ListWithFilters(context.Background(), "cai@example.com", invoicedomain.ListFilter{TotalMin: &min})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "12.10", filtered[0].TotalAmount.StringFixed(2))
}

func TestIsPaid(t *testing.T) {
	f := setupRenewalTest(t)
	sub := f.seed(t, "dan@example.com", "ES", "10.00", f.clk.Now().AddDate(0, 0, 10), subscriptiondomain.SubscriptionStatusActive)

	invoice := &invoicedomain.Invoice{
		ID: f.node.Generate(), SubscriptionID: sub.ID,
		BaseAmount:  decimal.RequireFromString("10.00"),
		TaxAmount:   decimal.RequireFromString("2.10"),
		TotalAmount: decimal.RequireFromString("12.10"),
		Concept:     invoicedomain.ConceptRenewal,
		IssuedAt:    f.clk.Now(),
	}
	require.NoError(t, f.db.Create(invoice).Error)

	paid, err := f.svc.IsPaid(context.Background(), invoice.ID)
	require.NoError(t, err)
	assert.False(t, paid)

	payment := paymentdomain.NewCardPayment(invoice.ID, invoice.TotalAmount, f.clk.Now(), "1234", "Ana Diaz")
	payment.ID = f.node.Generate()
	require.NoError(t, f.db.Create(payment).Error)

	paid, err = f.svc.IsPaid(context.Background(), invoice.ID)
	require.NoError(t, err)
	assert.True(t, paid)

	_, err = f.svc.IsPaid(context.Background(), f.node.Generate())
	assert.ErrorIs(t, err, invoicedomain.ErrInvoiceNotFound)
}

func TestBackfillZeroTax(t *testing.T) {
	f := setupRenewalTest(t)
	esSub := f.seed(t, "eva@example.com", "ES", "10.00", f.clk.Now().AddDate(0, 0, 10), subscriptiondomain.SubscriptionStatusActive)
	usSub := f.seed(t, "gil@example.com", "USA", "10.00", f.clk.Now().AddDate(0, 0, 10), subscriptiondomain.SubscriptionStatusActive)

	broken := &invoicedomain.Invoice{
		ID: f.node.Generate(), SubscriptionID: esSub.ID,
		BaseAmount:  decimal.RequireFromString("100.00"),
		TaxAmount:   decimal.Zero,
		TotalAmount: decimal.RequireFromString("100.00"),
		Concept:     invoicedomain.ConceptRenewal,
		IssuedAt:    f.clk.Now().AddDate(0, 0, -40),
	}
	require.NoError(t, f.db.Create(broken).Error)

	foreign := &invoicedomain.Invoice{
		ID: f.node.Generate(), SubscriptionID: usSub.ID,
		BaseAmount:  decimal.RequireFromString("100.00"),
		TaxAmount:   decimal.Zero,
		TotalAmount: decimal.RequireFromString("100.00"),
		Concept:     invoicedomain.ConceptRenewal,
		IssuedAt:    f.clk.Now().AddDate(0, 0, -40),
	}
	require.NoError(t, f.db.Create(foreign).Error)

	corrected, err := f.svc.BackfillZeroTax(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, corrected)

	var fixed invoicedomain.Invoice
	require.NoError(t, f.db.First(&fixed, "id = ?", broken.ID).Error)
	assert.Equal(t, "21.00", fixed.TaxAmount.StringFixed(2))
	assert.Equal(t, "121.00", fixed.TotalAmount.StringFixed(2))

	var untouched invoicedomain.Invoice
	require.NoError(t, f.db.First(&untouched, "id = ?", foreign.ID).Error)
	assert.True(t, untouched.TaxAmount.IsZero())

	// Safe to rerun: nothing left to correct.
	corrected, err = f.svc.BackfillZeroTax(context.Background())
	require.NoError(t, err)
	assert.Zero(t, corrected)
}
