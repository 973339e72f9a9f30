package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurra/internal/charge/domain"
	"github.com/smallbiznis/recurra/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	idempotencyLockTTL   = 60 * time.Second
	idempotencyFlightTTL = 45 * time.Second
	idempotencyWaitLimit = 10 * time.Second
	idempotencyPollEvery = 100 * time.Millisecond
)

type createFunc func(ctx context.Context) (*domain.Charge, bool, error)

type resolved struct {
	charge   *domain.Charge
	replayed bool
}

// resolve returns the charge bound to (tenant, key), creating it at most once.
// The unique index on (tenant_id, idempotency_key) is the final arbiter; the
// in-process collapse and the Redis lock only keep duplicate gateway calls rare.
func (s *Service) resolve(ctx context.Context, tenantID snowflake.ID, key string, create createFunc) (*domain.Charge, bool, error) {
	existing, err := s.repo.FindByIdempotencyKey(ctx, s.db, tenantID, key)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, true, nil
	}

	// Followers share the flight, so it runs detached from the leader's cancel.
	leader := false
	v, err, _ := s.inflight.Do(tenantID.String()+":"+key, func() (any, error) {
		leader = true
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), idempotencyFlightTTL)
		defer cancel()

		charge, replayed, err := s.resolveLocked(flightCtx, tenantID, key, create)
		if err != nil {
			return nil, err
		}
		return resolved{charge: charge, replayed: replayed}, nil
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(resolved)
	charge := *res.charge
	return &charge, res.replayed || !leader, nil
}

func (s *Service) resolveLocked(ctx context.Context, tenantID snowflake.ID, key string, create createFunc) (*domain.Charge, bool, error) {
	lockKey := ratelimit.IdempotencyLockKey(tenantID, key)
	if s.locker != nil {
		token, ok, err := s.locker.TryLock(ctx, lockKey, idempotencyLockTTL)
		switch {
		case err != nil:
			s.log.Warn("idempotency lock unavailable, relying on unique index",
				zap.String("key", lockKey),
				zap.Error(err),
			)
		case !ok:
			return s.awaitWinner(ctx, tenantID, key)
		default:
			defer func() {
				if err := s.locker.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
					s.log.Warn("idempotency lock release failed", zap.String("key", lockKey), zap.Error(err))
				}
			}()
		}
	}

	existing, err := s.repo.FindByIdempotencyKey(ctx, s.db, tenantID, key)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, true, nil
	}
	return create(ctx)
}

// awaitWinner polls for the charge another replica is creating under the lock.
func (s *Service) awaitWinner(ctx context.Context, tenantID snowflake.ID, key string) (*domain.Charge, bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, idempotencyWaitLimit)
	defer cancel()

	ticker := time.NewTicker(idempotencyPollEvery)
	defer ticker.Stop()

	for {
		existing, err := s.repo.FindByIdempotencyKey(waitCtx, s.db, tenantID, key)
		if err == nil && existing != nil {
			return existing, true, nil
		}
		select {
		case <-waitCtx.Done():
			return nil, false, domain.ErrCreationInFlight
		case <-ticker.C:
		}
	}
}
