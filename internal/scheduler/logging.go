package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	obscontext "github.com/smallbiznis/recurra/internal/observability/context"
	obslogger "github.com/smallbiznis/recurra/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/recurra/internal/observability/metrics"
	subscriptiondomain "github.com/smallbiznis/recurra/internal/subscription/domain"
	"github.com/smallbiznis/recurra/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

type tickRun struct {
	runID     string
	startedAt time.Time
}

func (s *Scheduler) newTickRun(ctx context.Context) (context.Context, *tickRun) {
	run := &tickRun{
		runID:     s.genID.Generate().String(),
		startedAt: time.Now(),
	}
	ctx, _ = correlation.EnsureCorrelationID(ctx)
	ctx = s.withLogContext(ctx, 0)
	return ctx, run
}

func (s *Scheduler) withLogContext(ctx context.Context, tenantID snowflake.ID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	if tenantID != 0 {
		ctx = obscontext.WithTenantID(ctx, tenantID.String())
	}
	return ctx
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logTickFinish(ctx context.Context, run *tickRun, summary TickSummary) {
	fields := []zap.Field{
		zap.String("run_id", run.runID),
		zap.String("as_of", summary.AsOf.String()),
		zap.Int64("overdue", summary.Overdue),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int64("duration_ms", time.Since(run.startedAt).Milliseconds()),
	}
	log := s.logger(ctx)
	switch {
	case summary.Failed > 0:
		log.Warn("scheduler.tick.finish", fields...)
	case summary.hasWork():
		log.Info("scheduler.tick.finish", fields...)
	default:
		log.Debug("scheduler.tick.finish", fields...)
	}
}

func (s *Scheduler) logItemError(ctx context.Context, msg string, sub subscriptiondomain.Subscription, err error) {
	ctx = s.withLogContext(ctx, sub.TenantID)
	s.logger(ctx).Warn(msg,
		zap.String("subscription_id", sub.ID.String()),
		zap.String("next_due_date", sub.NextDueDate.String()),
		zap.String("reason", obsmetrics.ClassifySchedulerReason(err)),
		zap.Error(err),
	)
}
