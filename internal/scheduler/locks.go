package scheduler

import (
	"context"
	"time"

	"github.com/smallbiznis/recurra/internal/ratelimit"
	"go.uber.org/zap"
)

// acquireTickLock keeps replicas from ticking at the same time. Without Redis
// only the in-process guard applies. A Redis failure does not block the tick:
// charge creation is idempotent per subscription period.
func (s *Scheduler) acquireTickLock(ctx context.Context, ttl time.Duration) (release func(), acquired bool) {
	noop := func() {}
	if s.locker == nil {
		return noop, true
	}

	token, ok, err := s.locker.TryLock(ctx, ratelimit.SchedulerTickLockKey, ttl)
	if err != nil {
		s.logger(ctx).Warn("scheduler tick lock unavailable", zap.Error(err))
		return noop, true
	}
	if !ok {
		return noop, false
	}
	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), ratelimit.SchedulerTickLockKey, token); err != nil {
			s.logger(ctx).Warn("scheduler tick lock release failed", zap.Error(err))
		}
	}, true
}
