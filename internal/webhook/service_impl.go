package webhook

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	chargedomain "github.com/smallbiznis/recurra/internal/charge/domain"
	"github.com/smallbiznis/recurra/internal/gateway/adapters"
	gatewaydomain "github.com/smallbiznis/recurra/internal/gateway/domain"
	obslogger "github.com/smallbiznis/recurra/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/recurra/internal/observability/metrics"
	"github.com/smallbiznis/recurra/internal/ratelimit"
	tenantdomain "github.com/smallbiznis/recurra/internal/tenant/domain"
	"github.com/smallbiznis/recurra/pkg/errs"
	"github.com/smallbiznis/recurra/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	HeaderSecret      = "X-Webhook-Secret"
	HeaderAsaasSecret = "asaas-access-token"
)

var (
	ErrUnauthorized   = errs.New(errs.KindUnauthorized, "webhook_unauthorized")
	ErrRateLimited    = errs.New(errs.KindRateLimited, "webhook_rate_limited")
	ErrUnprocessable  = errs.New(errs.KindValidation, "webhook_unprocessable")
	errPanicRecovered = errors.New("webhook handler panic")
)

type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeIgnored  Outcome = "ignored"
	OutcomeRejected Outcome = "rejected"
)

// Delivery is one inbound callback as received at the HTTP boundary.
type Delivery struct {
	Provider string
	TenantID string
	Headers  http.Header
	Payload  []byte
}

// Result says how a delivery was settled. Reason is a short machine code.
type Result struct {
	Outcome  Outcome       `json:"outcome"`
	Reason   string        `json:"reason,omitempty"`
	ChargeID *snowflake.ID `json:"charge_id,omitempty"`
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Tenants    tenantdomain.Service
	Charges    chargedomain.Service
	Gateways   *adapters.Registry
	Limiter    *ratelimit.WebhookLimiter `optional:"true"`
	ObsMetrics *obsmetrics.Metrics       `optional:"true"`
}

// Service reconciles provider callbacks into charge state.
type Service struct {
	log        *zap.Logger
	tenants    tenantdomain.Service
	charges    chargedomain.Service
	gateways   *adapters.Registry
	limiter    *ratelimit.WebhookLimiter
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		log:        p.Log.Named("webhook"),
		tenants:    p.Tenants,
		charges:    p.Charges,
		gateways:   p.Gateways,
		limiter:    p.Limiter,
		obsMetrics: p.ObsMetrics,
	}
}

// IngestWebhook authenticates, parses and applies one delivery. Only auth
// failures, throttling and unexpected faults return an error; everything a
// sender should not retry settles as Ignored.
func (s *Service) IngestWebhook(ctx context.Context, d Delivery) (res Result, err error) {
	if d.Headers != nil {
		ctx = correlation.ContextFromTraceparent(ctx, d.Headers.Get("traceparent"))
	}
	ctx, _ = correlation.EnsureCorrelationID(ctx)
	provider := strings.ToLower(strings.TrimSpace(d.Provider))
	log := obslogger.WithContext(ctx, s.log).With(zap.String("provider", provider))

	defer func() {
		if r := recover(); r != nil {
			log.Error("webhook panic recovered", zap.String("panic", fmt.Sprint(r)), zap.Stack("stack"))
			res = Result{Outcome: OutcomeRejected, Reason: "internal"}
			err = fmt.Errorf("%w: %w", ErrUnprocessable, errPanicRecovered)
		}
		s.obsMetrics.RecordWebhookEvent(ctx, provider, metricOutcome(res))
	}()

	account, err := s.authenticate(ctx, d)
	if err != nil {
		log.Info("webhook rejected", zap.String("tenant", d.TenantID), zap.Error(err))
		return Result{Outcome: OutcomeRejected, Reason: errs.CodeOf(err)}, err
	}
	log = log.With(zap.String("tenant_id", account.TenantID.String()))

	if !s.limiter.Allow(ctx, account.TenantID.String()) {
		return Result{Outcome: OutcomeRejected, Reason: "rate_limited"}, ErrRateLimited
	}

	if provider != strings.ToLower(strings.TrimSpace(account.Provider)) {
		log.Warn("webhook provider does not match tenant provider", zap.String("tenant_provider", account.Provider))
		return Result{Outcome: OutcomeIgnored, Reason: "provider_mismatch"}, nil
	}

	gw, err := s.gateways.Resolve(provider)
	if err != nil {
		log.Warn("webhook for unregistered provider", zap.Error(err))
		return Result{Outcome: OutcomeIgnored, Reason: "provider_not_found"}, nil
	}

	event := gw.ParseWebhook(d.Payload)
	if event == nil {
		log.Debug("webhook payload not recognized")
		return Result{Outcome: OutcomeIgnored, Reason: "unrecognized"}, nil
	}
	log = log.With(zap.String("event", event.EventType), zap.String("provider_charge_id", event.ProviderChargeID))
	if !event.Paid {
		log.Debug("non-payment webhook ignored")
		return Result{Outcome: OutcomeIgnored, Reason: "not_payment"}, nil
	}

	return s.apply(ctx, log, account.TenantID, provider, event)
}

func (s *Service) authenticate(ctx context.Context, d Delivery) (*tenantdomain.Account, error) {
	tenantID, err := snowflake.ParseString(strings.TrimSpace(d.TenantID))
	if err != nil || tenantID == 0 {
		return nil, ErrUnauthorized
	}
	secret := headerSecret(d.Headers)
	if secret == "" {
		return nil, ErrUnauthorized
	}

	account, err := s.tenants.GetWebhookAccount(ctx, tenantID)
	if err != nil {
		if errs.IsKind(err, errs.KindNotFound) || errs.IsKind(err, errs.KindValidation) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: %w", ErrUnprocessable, err)
	}
	stored := strings.TrimSpace(account.WebhookSecret)
	if stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(secret)) != 1 {
		return nil, ErrUnauthorized
	}
	return account, nil
}

func (s *Service) apply(ctx context.Context, log *zap.Logger, tenantID snowflake.ID, provider string, event *gatewaydomain.WebhookEvent) (Result, error) {
	confirmed, err := s.charges.ConfirmByProvider(ctx, tenantID, chargedomain.ConfirmByProviderRequest{
		Provider:         provider,
		ProviderChargeID: event.ProviderChargeID,
		Raw:              event.Raw,
	})
	if err != nil {
		log.Warn("webhook confirmation failed", zap.Error(err))
		return Result{Outcome: OutcomeRejected, Reason: errs.CodeOf(err)}, fmt.Errorf("%w: %w", ErrUnprocessable, err)
	}

	var chargeID *snowflake.ID
	if confirmed.Charge != nil {
		id := confirmed.Charge.ID
		chargeID = &id
	}

	switch confirmed.Outcome {
	case chargedomain.ConfirmApplied:
		if confirmed.Charge != nil && event.AmountCents > 0 && event.AmountCents != confirmed.Charge.AmountCents {
			log.Warn("paid amount differs from charge amount",
				zap.Int64("paid_cents", event.AmountCents),
				zap.Int64("amount_cents", confirmed.Charge.AmountCents),
			)
		}
		log.Info("charge paid via webhook", zap.Stringp("charge_id", idString(chargeID)))
		return Result{Outcome: OutcomeApplied, ChargeID: chargeID}, nil
	case chargedomain.ConfirmNotFound:
		log.Warn("webhook for unknown charge")
		return Result{Outcome: OutcomeIgnored, Reason: string(confirmed.Outcome)}, nil
	default:
		return Result{Outcome: OutcomeIgnored, Reason: string(confirmed.Outcome), ChargeID: chargeID}, nil
	}
}

func headerSecret(h http.Header) string {
	if h == nil {
		return ""
	}
	if v := strings.TrimSpace(h.Get(HeaderSecret)); v != "" {
		return v
	}
	return strings.TrimSpace(h.Get(HeaderAsaasSecret))
}

func metricOutcome(res Result) string {
	if res.Outcome == OutcomeIgnored && res.Reason != "" {
		return res.Reason
	}
	if res.Outcome == "" {
		return string(OutcomeRejected)
	}
	return string(res.Outcome)
}

func idString(id *snowflake.ID) *string {
	if id == nil {
		return nil
	}
	v := id.String()
	return &v
}
