package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/smallbiznis/recurra/internal/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const keyWebhookTenant = "webhook:tenant:%s"

// WebhookLimiter throttles inbound webhook deliveries per tenant. It uses
// the shared redis bucket when available, else one in-process limiter per tenant.
type WebhookLimiter struct {
	enabled bool
	rate    float64
	burst   int

	bucket *TokenBucket
	log    *zap.Logger

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

func NewWebhookLimiter(cfg config.Config, bucket *TokenBucket, log *zap.Logger) *WebhookLimiter {
	limitCfg := cfg.WebhookRateLimit
	if !limitCfg.Enabled || limitCfg.Rate <= 0 || limitCfg.Burst <= 0 {
		return &WebhookLimiter{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WebhookLimiter{
		enabled: true,
		rate:    limitCfg.Rate,
		burst:   limitCfg.Burst,
		bucket:  bucket,
		log:     log.Named("ratelimit.webhook"),
		local:   make(map[string]*rate.Limiter),
	}
}

func (l *WebhookLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow fails open when redis errors; a dropped webhook costs more than a burst.
func (l *WebhookLimiter) Allow(ctx context.Context, tenantID string) bool {
	if !l.Enabled() {
		return true
	}
	tenantID = strings.TrimSpace(tenantID)

	if l.bucket != nil {
		res, err := l.bucket.Take(ctx, fmt.Sprintf(keyWebhookTenant, tenantID), l.rate, l.burst)
		if err != nil {
			l.log.Warn("webhook rate limit check failed", zap.String("tenant_id", tenantID), zap.Error(err))
			return true
		}
		return res.Allowed
	}

	return l.localLimiter(tenantID).Allow()
}

func (l *WebhookLimiter) localLimiter(tenantID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.local[tenantID]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(l.rate), l.burst)
		l.local[tenantID] = limiter
	}
	return limiter
}
