package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	chargedomain "github.com/smallbiznis/recurra/internal/charge/domain"
	"github.com/smallbiznis/recurra/internal/clock"
	"github.com/smallbiznis/recurra/internal/config"
	obsmetrics "github.com/smallbiznis/recurra/internal/observability/metrics"
	"github.com/smallbiznis/recurra/internal/ratelimit"
	"github.com/smallbiznis/recurra/internal/scheduler/guard"
	subscriptiondomain "github.com/smallbiznis/recurra/internal/subscription/domain"
	"github.com/smallbiznis/recurra/pkg/calendar"
	"github.com/smallbiznis/recurra/pkg/errs"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrInvalidConfig = errors.New("scheduler: invalid config")
	ErrInvalidAsOf   = errors.New("scheduler: as_of date is required")
	ErrTickInFlight  = errors.New("scheduler: tick already in flight")
	ErrTickLocked    = errors.New("scheduler: tick held by another replica")
)

type Params struct {
	fx.In

	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Charges       chargedomain.Service
	Subscriptions subscriptiondomain.Service
	Billing       *config.BillingConfigHolder `optional:"true"`
	Locker        *ratelimit.Locker           `optional:"true"`
	Config        Config                      `optional:"true"`
}

// Scheduler turns due subscriptions into charges. One tick runs at a time per
// process, and per deployment when a Redis locker is wired.
type Scheduler struct {
	log           *zap.Logger
	cfg           Config
	genID         *snowflake.Node
	clock         clock.Clock
	billing       *config.BillingConfigHolder
	locker        *ratelimit.Locker
	charges       chargedomain.Service
	subscriptions subscriptiondomain.Service

	running atomic.Bool
}

// TickSummary reports what a single tick did.
type TickSummary struct {
	RunID     string        `json:"run_id"`
	AsOf      calendar.Date `json:"as_of"`
	Overdue   int64         `json:"overdue"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
}

func (t TickSummary) hasWork() bool {
	return t.Overdue > 0 || t.Processed > 0 || t.Skipped > 0 || t.Failed > 0
}

type itemOutcome int

const (
	outcomeProcessed itemOutcome = iota
	outcomeSkipped
	outcomeFailed
)

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Charges == nil || p.Subscriptions == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:           p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:           p.Config.withDefaults(),
		genID:         p.GenID,
		clock:         p.Clock,
		billing:       p.Billing,
		locker:        p.Locker,
		charges:       p.Charges,
		subscriptions: p.Subscriptions,
	}, nil
}

// Tick runs one pass for today in the configured timezone.
func (s *Scheduler) Tick(ctx context.Context) (TickSummary, error) {
	cfg := s.currentConfig()
	return s.RunAt(ctx, calendar.Today(s.clock.Now(), cfg.Location))
}

// RunAt runs one pass as of the given date. It marks overdue charges, then
// bills up to one batch of due subscriptions in next_due_date order.
func (s *Scheduler) RunAt(ctx context.Context, asOf calendar.Date) (TickSummary, error) {
	if asOf.IsZero() {
		return TickSummary{}, ErrInvalidAsOf
	}
	schedMetrics := obsmetrics.Scheduler()

	if !s.running.CompareAndSwap(false, true) {
		schedMetrics.IncTickSkipped(obsmetrics.TickSkipOverlap)
		return TickSummary{AsOf: asOf}, ErrTickInFlight
	}
	defer s.running.Store(false)

	cfg := s.currentConfig()
	release, acquired := s.acquireTickLock(ctx, cfg.TickLockTTL)
	if !acquired {
		schedMetrics.IncTickSkipped(obsmetrics.TickSkipLocked)
		return TickSummary{AsOf: asOf}, ErrTickLocked
	}
	defer release()

	ctx, run := s.newTickRun(ctx)
	summary := TickSummary{RunID: run.runID, AsOf: asOf}
	schedMetrics.IncTickRun()
	defer func() {
		schedMetrics.ObserveTickDuration(time.Since(run.startedAt))
		schedMetrics.AddItems(obsmetrics.ItemOutcomeProcessed, summary.Processed)
		schedMetrics.AddItems(obsmetrics.ItemOutcomeSkipped, summary.Skipped)
		schedMetrics.AddItems(obsmetrics.ItemOutcomeFailed, summary.Failed)
		s.logTickFinish(ctx, run, summary)
	}()

	var tickErr error
	overdue, err := s.charges.MarkOverdue(ctx, chargedomain.MarkOverdueRequest{AsOf: asOf})
	if err != nil {
		schedMetrics.IncTickError(err)
		s.logger(ctx).Warn("mark overdue failed", zap.String("run_id", run.runID), zap.Error(err))
		tickErr = errors.Join(tickErr, err)
	} else {
		summary.Overdue = overdue
		schedMetrics.AddOverdueMarked(overdue)
	}

	due, err := s.subscriptions.ListDue(ctx, asOf, cfg.BatchSize)
	if err != nil {
		schedMetrics.IncTickError(err)
		s.logger(ctx).Warn("list due subscriptions failed", zap.String("run_id", run.runID), zap.Error(err))
		return summary, errors.Join(tickErr, err)
	}

	for _, sub := range due {
		if err := ctx.Err(); err != nil {
			schedMetrics.IncTickTimeout()
			return summary, errors.Join(tickErr, err)
		}
		switch s.processSubscription(ctx, sub, cfg.ItemTimeout) {
		case outcomeProcessed:
			summary.Processed++
		case outcomeSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}

	return summary, tickErr
}

func (s *Scheduler) processSubscription(parent context.Context, sub subscriptiondomain.Subscription, timeout time.Duration) (outcome itemOutcome) {
	defer s.recoverItem(parent, sub, &outcome)
	schedMetrics := obsmetrics.Scheduler()

	if err := guard.EnsureSubscriptionBillable(sub); err != nil {
		s.logItemError(parent, "subscription skipped", sub, err)
		return outcomeSkipped
	}

	ctx, cancel := context.WithTimeout(s.withLogContext(parent, sub.TenantID), timeout)
	defer cancel()

	subID := sub.ID
	charge, err := s.charges.Create(ctx, sub.TenantID, chargedomain.CreateChargeRequest{
		CustomerID:     sub.CustomerID,
		SubscriptionID: &subID,
		AmountCents:    sub.AmountCents,
		DueDate:        sub.NextDueDate,
		PaymentMethod:  sub.PaymentMethod,
		Description:    sub.Description,
		Fees:           sub.Fees(),
		IdempotencyKey: chargedomain.SubscriptionKey(sub.ID, sub.NextDueDate),
	})
	if err != nil {
		schedMetrics.IncItemError(err)
		switch errs.KindOf(err) {
		case errs.KindValidation, errs.KindNotFound:
			s.logItemError(parent, "subscription skipped", sub, err)
			return outcomeSkipped
		}
		s.logItemError(parent, "subscription charge failed", sub, err)
		return outcomeFailed
	}

	next, advanced, err := s.subscriptions.AdvanceNextDueDate(ctx, sub)
	if err != nil {
		schedMetrics.IncItemError(err)
		s.logItemError(parent, "advance next due date failed", sub, err)
		return outcomeFailed
	}

	log := s.logger(ctx).With(
		zap.String("subscription_id", sub.ID.String()),
		zap.String("charge_id", charge.ID.String()),
		zap.String("due_date", sub.NextDueDate.String()),
	)
	if !advanced {
		log.Debug("next due date already advanced by another writer")
		return outcomeProcessed
	}
	log.Debug("subscription billed", zap.String("next_due_date", next.String()))
	return outcomeProcessed
}

// RunForever ticks immediately and then every RunInterval until ctx is done.
// Tick errors are logged and retried on the next interval.
func (s *Scheduler) RunForever(ctx context.Context) {
	schedMetrics := obsmetrics.Scheduler()
	nextRun := time.Now()

	for {
		if lag := time.Since(nextRun); lag > 0 {
			schedMetrics.ObserveRunLoopLag(lag)
		}
		if _, err := s.Tick(ctx); err != nil && !errors.Is(err, ErrTickInFlight) && !errors.Is(err, ErrTickLocked) {
			s.log.Warn("scheduler tick failed", zap.Error(err))
		}

		interval := s.currentConfig().RunInterval
		nextRun = time.Now().Add(interval)
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
