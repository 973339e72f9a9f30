package scheduler

import (
	"context"
	"fmt"

	subscriptiondomain "github.com/smallbiznis/recurra/internal/subscription/domain"
	"go.uber.org/zap"
)

// recoverItem turns a panic while billing one subscription into a failed
// outcome so the rest of the batch still runs.
func (s *Scheduler) recoverItem(ctx context.Context, sub subscriptiondomain.Subscription, outcome *itemOutcome) {
	r := recover()
	if r == nil {
		return
	}
	*outcome = outcomeFailed
	s.logger(s.withLogContext(ctx, sub.TenantID)).Error("scheduler item panic recovered",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("panic", fmt.Sprint(r)),
		zap.Stack("stack"),
	)
}
