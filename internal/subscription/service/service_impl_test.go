package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurra/internal/clock"
	customerrepo "github.com/smallbiznis/recurra/internal/customer/repository"
	customerservice "github.com/smallbiznis/recurra/internal/customer/service"
	"github.com/smallbiznis/recurra/internal/subscription/domain"
	"github.com/smallbiznis/recurra/internal/subscription/repository"
	"github.com/smallbiznis/recurra/internal/subscription/service"
	"github.com/smallbiznis/recurra/internal/testutil"
	"github.com/smallbiznis/recurra/pkg/billing"
	"github.com/smallbiznis/recurra/pkg/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tenantID = snowflake.ID(1)

func newService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	testutil.SeedTenant(t, db, testutil.TenantSeed{ID: tenantID})
	testutil.SeedCustomer(t, db, testutil.CustomerSeed{ID: 100, TenantID: tenantID})

	svc := service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Clock: clock.NewFakeClock(time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
		Customers: customerservice.New(customerservice.Params{
			DB:   db,
			Log:  zap.NewNop(),
			Repo: customerrepo.Provide(),
		}),
	})
	return svc, db
}

func createMonthly(t *testing.T, svc domain.Service, due calendar.Date) domain.Subscription {
	t.Helper()
	sub, err := svc.Create(context.Background(), tenantID, domain.CreateSubscriptionRequest{
		CustomerID:    100,
		Description:   " Plano mensal ",
		AmountCents:   4990,
		Interval:      "Monthly",
		PaymentMethod: "PIX",
		NextDueDate:   due,
		Fees:          billing.FeeTerms{FineCents: -10, InterestBps: 33},
	})
	require.NoError(t, err)
	return sub
}

func TestCreateNormalizesAndPersists(t *testing.T) {
	svc, _ := newService(t)
	sub := createMonthly(t, svc, calendar.New(2024, time.January, 31))

	assert.Equal(t, "Plano mensal", sub.Description)
	assert.Equal(t, calendar.IntervalMonthly, sub.Interval)
	assert.Equal(t, billing.PaymentMethodPix, sub.PaymentMethod)
	assert.Zero(t, sub.FineCents)
	assert.True(t, sub.Active)

	got, err := svc.GetByID(context.Background(), tenantID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.NextDueDate, got.NextDueDate)
	assert.Equal(t, 33, got.InterestBps)

	_, err = svc.GetByID(context.Background(), snowflake.ID(2), sub.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t)
	base := domain.CreateSubscriptionRequest{
		CustomerID:    100,
		AmountCents:   100,
		Interval:      calendar.IntervalWeekly,
		PaymentMethod: billing.PaymentMethodBoleto,
		NextDueDate:   calendar.New(2024, time.May, 1),
	}

	cases := []struct {
		name string
		mut  func(*domain.CreateSubscriptionRequest)
		want error
	}{
		{"amount", func(r *domain.CreateSubscriptionRequest) { r.AmountCents = -1 }, domain.ErrInvalidAmount},
		{"interval", func(r *domain.CreateSubscriptionRequest) { r.Interval = "daily" }, domain.ErrInvalidInterval},
		{"method", func(r *domain.CreateSubscriptionRequest) { r.PaymentMethod = "cash" }, domain.ErrInvalidPaymentMethod},
		{"due", func(r *domain.CreateSubscriptionRequest) { r.NextDueDate = calendar.Date{} }, domain.ErrInvalidNextDueDate},
		{"customer", func(r *domain.CreateSubscriptionRequest) { r.CustomerID = 404 }, domain.ErrInvalidCustomer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mut(&req)
			_, err := svc.Create(context.Background(), tenantID, req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestUpdateNextDueDateOnlyMovesForward(t *testing.T) {
	svc, _ := newService(t)
	sub := createMonthly(t, svc, calendar.New(2024, time.March, 10))
	ctx := context.Background()

	earlier := calendar.New(2024, time.March, 1)
	_, err := svc.Update(ctx, tenantID, sub.ID, domain.UpdateSubscriptionRequest{NextDueDate: &earlier})
	assert.ErrorIs(t, err, domain.ErrNextDueDateBackwards)

	later := calendar.New(2024, time.April, 1)
	amount := int64(7990)
	inactive := false
	updated, err := svc.Update(ctx, tenantID, sub.ID, domain.UpdateSubscriptionRequest{
		NextDueDate: &later,
		AmountCents: &amount,
		Active:      &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, later, updated.NextDueDate)
	assert.Equal(t, amount, updated.AmountCents)
	assert.False(t, updated.Active)

	got, err := svc.GetByID(ctx, tenantID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, later, got.NextDueDate)
	assert.False(t, got.Active)
}

func TestAdvanceNextDueDateIsConditional(t *testing.T) {
	svc, _ := newService(t)
	sub := createMonthly(t, svc, calendar.New(2024, time.January, 31))
	ctx := context.Background()

	next, moved, err := svc.AdvanceNextDueDate(ctx, sub)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, calendar.New(2024, time.February, 29), next)

	// stale snapshot loses
	_, moved, err = svc.AdvanceNextDueDate(ctx, sub)
	require.NoError(t, err)
	assert.False(t, moved)

	got, err := svc.GetByID(ctx, tenantID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, calendar.New(2024, time.February, 29), got.NextDueDate)
}

func TestListDueOrdersOldestFirstAndSkipsInactive(t *testing.T) {
	svc, db := newService(t)
	inactive := false
	testutil.SeedSubscription(t, db, testutil.SubscriptionSeed{ID: 1, TenantID: tenantID, CustomerID: 100, AmountCents: 100, NextDueDate: "2024-01-20"})
	testutil.SeedSubscription(t, db, testutil.SubscriptionSeed{ID: 2, TenantID: tenantID, CustomerID: 100, AmountCents: 100, NextDueDate: "2024-01-05"})
	testutil.SeedSubscription(t, db, testutil.SubscriptionSeed{ID: 3, TenantID: tenantID, CustomerID: 100, AmountCents: 100, NextDueDate: "2024-01-01", Active: &inactive})
	testutil.SeedSubscription(t, db, testutil.SubscriptionSeed{ID: 4, TenantID: tenantID, CustomerID: 100, AmountCents: 100, NextDueDate: "2024-02-01"})

	subs, err := svc.ListDue(context.Background(), calendar.New(2024, time.January, 20), 10)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, snowflake.ID(2), subs[0].ID)
	assert.Equal(t, snowflake.ID(1), subs[1].ID)

	subs, err = svc.ListDue(context.Background(), calendar.New(2024, time.January, 20), 1)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestUpdatePaymentMethodIsParsed(t *testing.T) {
	svc, _ := newService(t)
	sub := createMonthly(t, svc, calendar.New(2024, time.March, 10))
	ctx := context.Background()

	bad := billing.PaymentMethod("cash")
	_, err := svc.Update(ctx, tenantID, sub.ID, domain.UpdateSubscriptionRequest{PaymentMethod: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)

	mixed := billing.PaymentMethod(" Boleto ")
	updated, err := svc.Update(ctx, tenantID, sub.ID, domain.UpdateSubscriptionRequest{PaymentMethod: &mixed})
	require.NoError(t, err)
	assert.Equal(t, billing.PaymentMethodBoleto, updated.PaymentMethod)
}
