package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/recurra/internal/charge/domain"
	"github.com/smallbiznis/recurra/internal/clock"
	gatewaydomain "github.com/smallbiznis/recurra/internal/gateway/domain"
	obsmetrics "github.com/smallbiznis/recurra/internal/observability/metrics"
	"github.com/smallbiznis/recurra/internal/ratelimit"
	"github.com/smallbiznis/recurra/internal/testutil"
	"github.com/smallbiznis/recurra/pkg/billing"
	"github.com/smallbiznis/recurra/pkg/calendar"
	"github.com/smallbiznis/recurra/pkg/db/pagination"
	"github.com/smallbiznis/recurra/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"gorm.io/gorm"
)

const (
	tenantID   = snowflake.ID(1)
	customerID = snowflake.ID(100)
)

func seedTenant(t *testing.T, db *gorm.DB, provider string) {
	t.Helper()
	testutil.SeedTenant(t, db, testutil.TenantSeed{ID: tenantID, Provider: provider, WebhookSecret: "whsec"})
	testutil.SeedCustomer(t, db, testutil.CustomerSeed{ID: customerID, TenantID: tenantID})
}

func createRequest(key string, due calendar.Date) domain.CreateChargeRequest {
	return domain.CreateChargeRequest{
		CustomerID:     customerID,
		AmountCents:    9990,
		DueDate:        due,
		PaymentMethod:  billing.PaymentMethodBoleto,
		Description:    "Plano mensal",
		Fees:           billing.FeeTerms{FineCents: 200, InterestBps: 100},
		IdempotencyKey: key,
	}
}

func TestCreateReplaysSameIdempotencyKey(t *testing.T) {
	db := testutil.NewDB(t)
	seedTenant(t, db, "asaas")
	gw := testutil.NewFakeGateway("asaas")
	svc := testutil.NewChargeService(t, db, testutil.ChargeDeps{Gateways: []gatewaydomain.Gateway{gw}})
	ctx := context.Background()

	due := calendar.New(2024, time.February, 10)
	first, err := svc.Create(ctx, tenantID, createRequest("sub:7:due:2024-02-10", due))
	require.NoError(t, err)
	second, err := svc.Create(ctx, tenantID, createRequest("sub:7:due:2024-02-10", due))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.StatusPending, first.Status)
	assert.Equal(t, "asaas", first.Provider)
	assert.Equal(t, "asaas_1", first.ProviderChargeID)
	assert.Equal(t, int64(200), first.FineCents)
	assert.Equal(t, int64(1), gw.Creates())
	assert.Equal(t, int64(1), testutil.CountRows(t, db, `SELECT COUNT(*) FROM charges`))
	assert.Equal(t, int64(1), testutil.CountRows(t, db,
		`SELECT COUNT(*) FROM payments WHERE charge_id = ? AND status = ?`, first.ID, domain.PaymentStatusCreated))

	reqs := gw.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "sub:7:due:2024-02-10", reqs[0].Reference)
	assert.Equal(t, "Maria Silva", reqs[0].Customer.Name)
}

func TestCreateConcurrentAcrossInstances(t *testing.T) {
	db := testutil.NewDB(t)
	seedTenant(t, db, "mock")

	nodeA, err := snowflake.NewNode(1)
	require.NoError(t, err)
	nodeB, err := snowflake.NewNode(2)
	require.NoError(t, err)

	gwA := testutil.NewFakeGateway("mock")
	gwA.Delay = 30 * time.Millisecond
	gwB := testutil.NewFakeGateway("mock")
	gwB.Delay = 30 * time.Millisecond
	svcA := testutil.NewChargeService(t, db, testutil.ChargeDeps{Node: nodeA, Gateways: []gatewaydomain.Gateway{gwA}})
	svcB := testutil.NewChargeService(t, db, testutil.ChargeDeps{Node: nodeB, Gateways: []gatewaydomain.Gateway{gwB}})

	due := calendar.New(2024, time.March, 5)
	req := createRequest("sub:9:due:2024-03-05", due)

	const workers = 8
	ids := make([]snowflake.ID, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			svc := svcA
			if i%2 == 1 {
				svc = svcB
			}
			charge, err := svc.Create(context.Background(), tenantID, req)
			if assert.NoError(t, err) {
				ids[i] = charge.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, int64(1), testutil.CountRows(t, db, `SELECT COUNT(*) FROM charges`))
	assert.Equal(t, int64(1), testutil.CountRows(t, db, `SELECT COUNT(*) FROM payments`))

	remoteCalls := gwA.Creates() + gwB.Creates()
	assert.GreaterOrEqual(t, remoteCalls, int64(1))
	assert.LessOrEqual(t, remoteCalls, int64(2))
	orphans := len(gwA.Canceled()) + len(gwB.Canceled())
	assert.Equal(t, int(remoteCalls-1), orphans)
}

func TestCreateWaitsForLockHolder(t *testing.T) {
	db := testutil.NewDB(t)
	seedTenant(t, db, "mock")

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := ratelimit.NewLocker(client)

	key := "sub:3:due:2024-04-01"
	_, ok, err := locker.TryLock(context.Background(), ratelimit.IdempotencyLockKey(tenantID, key), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	nodeB, err := snowflake.NewNode(2)
	require.NoError(t, err)
	gwLocked := testutil.NewFakeGateway("mock")
	gwOther := testutil.NewFakeGateway("mock")
	locked := testutil.NewChargeService(t, db, testutil.ChargeDeps{Locker: locker, Gateways: []gatewaydomain.Gateway{gwLocked}})
	other := testutil.NewChargeService(t, db, testutil.ChargeDeps{Node: nodeB, Gateways: []gatewaydomain.Gateway{gwOther}})

	req := createRequest(key, calendar.New(2024, time.April, 1))
	type result struct {
		charge domain.Charge
		err    error
	}
	done := make(chan result, 1)
	go func() {
		charge, err := locked.Create(context.Background(), tenantID, req)
		done <- result{charge, err}
	}()

	time.Sleep(150 * time.Millisecond)
	winner, err := other.Create(context.Background(), tenantID, req)
	require.NoError(t, err)

	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, winner.ID, got.charge.ID)
	assert.Equal(t, int64(0), gwLocked.Creates())
	assert.Equal(t, int64(1), gwOther.Creates())
}

func TestCreateReleasesIdempotencyLock(t *testing.T) {
	db := testutil.NewDB(t)
	seedTenant(t, db, "mock")

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	gw := testutil.NewFakeGateway("mock")
	svc := testutil.NewChargeService(t, db, testutil.ChargeDeps{
		Locker:   ratelimit.NewLocker(client),
		Gateways: []gatewaydomain.Gateway{gw},
	})

	_, err := svc.Create(context.Background(), tenantID, createRequest("k-1", calendar.New(2024, time.May, 2)))
	require.NoError(t, err)
	assert.False(t, mr.Exists(ratelimit.IdempotencyLockKey(tenantID, "k-1")))
}

func replayedTotal(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "recurra_charges_replayed_total" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestCreateSharedFlightSurvivesLeaderCancel(t *testing.T) {
	db := testutil.NewDB(t)
	seedTenant(t, db, "mock")

	reader := sdkmetric.NewManualReader()
	m, err := obsmetrics.New(obsmetrics.Config{}, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	gw := testutil.NewFakeGateway("mock")
	gw.Delay = 300 * time.Millisecond
	svc := testutil.NewChargeService(t, db, testutil.ChargeDeps{Gateways: []gatewaydomain.Gateway{gw}, Metrics: m})
	req := createRequest("sub:12:due:2024-06-01", calendar.New(2024, time.June, 1))

	leaderCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		charge domain.Charge
		err    error
	}
	leaderDone := make(chan result, 1)
	go func() {
		charge, err := svc.Create(leaderCtx, tenantID, req)
		leaderDone <- result{charge, err}
	}()
	require.Eventually(t, func() bool { return gw.Creates() == 1 }, time.Second, 5*time.Millisecond)

	const followers = 2
	done := make(chan result, followers)
	for i := 0; i < followers; i++ {
		go func() {
			charge, err := svc.Create(context.Background(), tenantID, req)
			done <- result{charge, err}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	cancel()

	leader := <-leaderDone
	require.NoError(t, leader.err)
	for i := 0; i < followers; i++ {
		got := <-done
		require.NoError(t, got.err)
		assert.Equal(t, leader.charge.ID, got.charge.ID)
	}

	assert.Equal(t, int64(1), gw.Creates())
	assert.Equal(t, int64(1), testutil.CountRows(t, db, `SELECT COUNT(*) FROM charges`))
	assert.Equal(t, int64(followers), replayedTotal(t, reader))
}

func TestCreateValidationAndFailures(t *testing.T) {
	db := testutil.NewDB(t)
	seedTenant(t, db, "mock")
	gw := testutil.NewFakeGateway("mock")
	svc := testutil.NewChargeService(t, db, testutil.ChargeDeps{Gateways: []gatewaydomain.Gateway{gw}})
	ctx := context.Background()
	due := calendar.New(2024, time.June, 1)

	cases := []struct {
		name string
		mut  func(*domain.CreateChargeRequest)
		want error
	}{
		{"amount", func(r *domain.CreateChargeRequest) { r.AmountCents = 0 }, domain.ErrInvalidAmount},
		{"due date", func(r *domain.CreateChargeRequest) { r.DueDate = calendar.Date{} }, domain.ErrInvalidDueDate},
		{"method", func(r *domain.CreateChargeRequest) { r.PaymentMethod = "wire" }, domain.ErrInvalidPaymentMethod},
		{"customer", func(r *domain.CreateChargeRequest) { r.CustomerID = 0 }, domain.ErrInvalidCustomer},
		{"unknown customer", func(r *domain.CreateChargeRequest) { r.CustomerID = 999 }, domain.ErrInvalidCustomer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := createRequest("", due)
			tc.mut(&req)
			_, err := svc.Create(ctx, tenantID, req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	gw.CreateErr = gatewaydomain.NewUpstreamError("mock", 422, "pix disabled")
	_, err := svc.Create(ctx, tenantID, createRequest("k-fail", due))
	require.Error(t, err)
	assert.Equal(t, errs.KindUpstream, errs.KindOf(err))
	assert.Equal(t, int64(0), testutil.CountRows(t, db, `SELECT COUNT(*) FROM charges`))
}

func TestCreateUnknownProviderFailsLoudly(t *testing.T) {
	db := testutil.NewDB(t)
	seedTenant(t, db, "paypal")
	svc := testutil.NewChargeService(t, db, testutil.ChargeDeps{Gateways: []gatewaydomain.Gateway{testutil.NewFakeGateway("mock")}})

	_, err := svc.Create(context.Background(), tenantID, createRequest("k", calendar.New(2024, time.June, 1)))
	assert.ErrorIs(t, err, gatewaydomain.ErrProviderNotFound)
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	seedTenant(t, db, "mock")

	var mu sync.Mutex
	var hooked []snowflake.ID
	hook := func(_ context.Context, charge domain.Charge) error {
		mu.Lock()
		defer mu.Unlock()
		hooked = append(hooked, charge.ID)
		return nil
	}
	svc := testutil.NewChargeService(t, db, testutil.ChargeDeps{
		Gateways:  []gatewaydomain.Gateway{testutil.NewFakeGateway("mock")},
		PaidHooks: []domain.PaidHook{hook},
	})
	ctx := context.Background()

	charge, err := svc.Create(ctx, tenantID, createRequest("k-paid", calendar.New(2024, time.January, 15)))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		paid, err := svc.MarkPaid(ctx, tenantID, charge.ID, domain.MarkPaidRequest{Source: domain.SourceManual})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPaid, paid.Status)
		assert.NotNil(t, paid.PaidAt)
	}

	assert.Equal(t, []snowflake.ID{charge.ID}, hooked)
	assert.Equal(t, int64(1), testutil.CountRows(t, db, `SELECT COUNT(*) FROM payments WHERE charge_id = ?`, charge.ID))
	assert.Equal(t, int64(1), testutil.CountRows(t, db,
		`SELECT COUNT(*) FROM payments WHERE charge_id = ? AND status = 'confirmed' AND source = 'manual'`, charge.ID))

	_, err = svc.Cancel(ctx, tenantID, charge.ID)
	assert.ErrorIs(t, err, domain.ErrChargeAlreadyPaid)
}

func TestMarkPaidAppendsPaymentWhenNoneCreated(t *testing.T) {
	db := testutil.NewDB(t)
	seedTenant(t, db, "mock")
	svc := testutil.NewChargeService(t, db, testutil.ChargeDeps{Gateways: []gatewaydomain.Gateway{testutil.NewFakeGateway("mock")}})
	ctx := context.Background()

	charge, err := svc.Create(ctx, tenantID, createRequest("k-append", calendar.New(2024, time.January, 15)))
	require.NoError(t, err)
	require.NoError(t, db.Exec(`DELETE FROM payments WHERE charge_id = ?`, charge.ID).Error)

	_, err = svc.MarkPaid(ctx, tenantID, charge.ID, domain.MarkPaidRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), testutil.CountRows(t, db,
		`SELECT COUNT(*) FROM payments WHERE charge_id = ? AND status = 'confirmed'`, charge.ID))
}

func TestMarkPaidRejectsInvalidInput(t *testing.T) {
	db := testutil.NewDB(t)
	seedTenant(t, db, "mock")
	svc := testutil.NewChargeService(t, db, testutil.ChargeDeps{Gateways: []gatewaydomain.Gateway{testutil.NewFakeGateway("mock")}})
	ctx := context.Background()

	_, err := svc.MarkPaid(ctx, tenantID, 12345, domain.MarkPaidRequest{})
	assert.ErrorIs(t, err, domain.ErrChargeNotFound)

	_, err = svc.MarkPaid(ctx, tenantID, 12345, domain.MarkPaidRequest{Source: "cash"})
	assert.ErrorIs(t, err, domain.ErrInvalidSource)
}

func TestCancelPaths(t *testing.T) {
	db := testutil.NewDB(t)
	seedTenant(t, db, "mock")
	gw := testutil.NewFakeGateway("mock")
	svc := testutil.NewChargeService(t, db, testutil.ChargeDeps{Gateways: []gatewaydomain.Gateway{gw}})
	ctx := context.Background()

	charge, err := svc.Create(ctx, tenantID, createRequest("k-cancel", calendar.New(2024, time.July, 1)))
	require.NoError(t, err)

	gw.CancelErr = gatewaydomain.NewUpstreamError("mock", 502, "boom")
	_, err = svc.Cancel(ctx, tenantID, charge.ID)
	require.Error(t, err)
	current, err := svc.GetByID(ctx, tenantID, charge.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, current.Status)

	gw.CancelErr = nil
	canceled, err := svc.Cancel(ctx, tenantID, charge.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, canceled.Status)
	assert.NotNil(t, canceled.CanceledAt)
	assert.Equal(t, []string{charge.ProviderChargeID}, gw.Canceled())

	again, err := svc.Cancel(ctx, tenantID, charge.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, again.Status)
	assert.Len(t, gw.Canceled(), 1)

	_, err = svc.MarkPaid(ctx, tenantID, charge.ID, domain.MarkPaidRequest{})
	assert.ErrorIs(t, err, domain.ErrChargeCanceled)
}

func TestMarkOverdueSweep(t *testing.T) {
	db := testutil.NewDB(t)
	seedTenant(t, db, "mock")
	fake := clock.NewFakeClock(time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC))
	svc := testutil.NewChargeService(t, db, testutil.ChargeDeps{
		Clock:    fake,
		Gateways: []gatewaydomain.Gateway{testutil.NewFakeGateway("mock")},
	})
	ctx := context.Background()

	past, err := svc.Create(ctx, tenantID, createRequest("past", calendar.New(2024, time.March, 1)))
	require.NoError(t, err)
	paid, err := svc.Create(ctx, tenantID, createRequest("paid", calendar.New(2024, time.March, 2)))
	require.NoError(t, err)
	today, err := svc.Create(ctx, tenantID, createRequest("today", calendar.New(2024, time.March, 10)))
	require.NoError(t, err)
	_, err = svc.MarkPaid(ctx, tenantID, paid.ID, domain.MarkPaidRequest{})
	require.NoError(t, err)

	n, err := svc.MarkOverdue(ctx, domain.MarkOverdueRequest{AsOf: calendar.New(2024, time.March, 10)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := svc.GetByID(ctx, tenantID, past.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOverdue, got.Status)
	got, err = svc.GetByID(ctx, tenantID, today.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	got, err = svc.GetByID(ctx, tenantID, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, got.Status)

	n, err = svc.MarkOverdue(ctx, domain.MarkOverdueRequest{AsOf: calendar.New(2024, time.March, 10)})
	require.NoError(t, err)
	assert.Zero(t, n)

	// overdue charges can still be paid
	got, err = svc.MarkPaid(ctx, tenantID, past.ID, domain.MarkPaidRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, got.Status)
}

func TestConfirmByProviderOutcomes(t *testing.T) {
	db := testutil.NewDB(t)
	seedTenant(t, db, "mock")
	svc := testutil.NewChargeService(t, db, testutil.ChargeDeps{Gateways: []gatewaydomain.Gateway{testutil.NewFakeGateway("mock")}})
	ctx := context.Background()

	charge, err := svc.Create(ctx, tenantID, createRequest("k-confirm", calendar.New(2024, time.August, 1)))
	require.NoError(t, err)

	res, err := svc.ConfirmByProvider(ctx, tenantID, domain.ConfirmByProviderRequest{Provider: "mock", ProviderChargeID: "nope"})
	require.NoError(t, err)
	assert.Equal(t, domain.ConfirmNotFound, res.Outcome)

	req := domain.ConfirmByProviderRequest{
		Provider:         "mock",
		ProviderChargeID: charge.ProviderChargeID,
		Raw:              []byte(`{"event":"PAYMENT_RECEIVED"}`),
	}
	res, err = svc.ConfirmByProvider(ctx, tenantID, req)
	require.NoError(t, err)
	assert.Equal(t, domain.ConfirmApplied, res.Outcome)
	assert.Equal(t, domain.StatusPaid, res.Charge.Status)

	res, err = svc.ConfirmByProvider(ctx, tenantID, req)
	require.NoError(t, err)
	assert.Equal(t, domain.ConfirmAlreadyPaid, res.Outcome)

	payments, err := svc.ListPayments(ctx, tenantID, charge.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, domain.PaymentStatusConfirmed, payments[0].Status)
	assert.Equal(t, domain.SourceWebhook, payments[0].Source)
	assert.JSONEq(t, `{"event":"PAYMENT_RECEIVED"}`, string(payments[0].RawPayload))

	other, err := svc.Create(ctx, tenantID, createRequest("k-canceled", calendar.New(2024, time.August, 2)))
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, tenantID, other.ID)
	require.NoError(t, err)
	res, err = svc.ConfirmByProvider(ctx, tenantID, domain.ConfirmByProviderRequest{Provider: "mock", ProviderChargeID: other.ProviderChargeID})
	require.NoError(t, err)
	assert.Equal(t, domain.ConfirmCanceled, res.Outcome)
	assert.Equal(t, domain.StatusCanceled, res.Charge.Status)
}

func TestListFiltersAndPages(t *testing.T) {
	db := testutil.NewDB(t)
	seedTenant(t, db, "mock")
	svc := testutil.NewChargeService(t, db, testutil.ChargeDeps{Gateways: []gatewaydomain.Gateway{testutil.NewFakeGateway("mock")}})
	ctx := context.Background()

	for day := 1; day <= 3; day++ {
		_, err := svc.Create(ctx, tenantID, createRequest("", calendar.New(2024, time.September, day)))
		require.NoError(t, err)
	}

	res, err := svc.List(ctx, tenantID, domain.ListChargeRequest{
		Pagination: pagination.Pagination{Page: 1, PageSize: 2},
	})
	require.NoError(t, err)
	require.Len(t, res.Charges, 2)
	assert.True(t, res.HasMore)
	assert.Equal(t, calendar.New(2024, time.September, 3), res.Charges[0].DueDate)

	res, err = svc.List(ctx, tenantID, domain.ListChargeRequest{
		ListChargeFilter: domain.ListChargeFilter{
			DueFrom: calendar.New(2024, time.September, 2),
			Search:  "maria",
		},
	})
	require.NoError(t, err)
	assert.Len(t, res.Charges, 2)
	assert.False(t, res.HasMore)

	_, err = svc.List(ctx, tenantID, domain.ListChargeRequest{ListChargeFilter: domain.ListChargeFilter{Status: "late"}})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = svc.List(ctx, snowflake.ID(0), domain.ListChargeRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidTenant)
}

type countingNotifier struct {
	mu      sync.Mutex
	created []snowflake.ID
}

func (n *countingNotifier) ChargeCreated(_ context.Context, charge domain.Charge) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, charge.ID)
}

func TestCreateNotifiesOnlyNewCharges(t *testing.T) {
	db := testutil.NewDB(t)
	seedTenant(t, db, "mock")
	notifier := &countingNotifier{}
	svc := testutil.NewChargeService(t, db, testutil.ChargeDeps{
		Gateways: []gatewaydomain.Gateway{testutil.NewFakeGateway("mock")},
		Notifier: notifier,
	})
	ctx := context.Background()

	due := calendar.New(2024, time.February, 10)
	first, err := svc.Create(ctx, tenantID, createRequest("sub:8:due:2024-02-10", due))
	require.NoError(t, err)
	_, err = svc.Create(ctx, tenantID, createRequest("sub:8:due:2024-02-10", due))
	require.NoError(t, err)

	assert.Equal(t, []snowflake.ID{first.ID}, notifier.created)
}
