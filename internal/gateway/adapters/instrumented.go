package adapters

import (
	"context"
	"time"

	"github.com/smallbiznis/recurra/internal/gateway/domain"
	"github.com/smallbiznis/recurra/internal/observability/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/smallbiznis/recurra/internal/gateway")

type instrumented struct {
	next    domain.Gateway
	metrics *metrics.GatewayMetrics
}

func instrument(gw domain.Gateway, gm *metrics.GatewayMetrics) domain.Gateway {
	return &instrumented{next: gw, metrics: gm}
}

func (g *instrumented) Provider() string {
	return g.next.Provider()
}

func (g *instrumented) CreateCharge(ctx context.Context, creds domain.Credentials, req domain.CreateChargeRequest) (*domain.CreateChargeResult, error) {
	ctx, span := g.start(ctx, metrics.GatewayOperationCreate)
	start := time.Now()
	res, err := g.next.CreateCharge(ctx, creds, req)
	g.finish(span, metrics.GatewayOperationCreate, start, err)
	return res, err
}

func (g *instrumented) CancelCharge(ctx context.Context, creds domain.Credentials, providerChargeID string) error {
	ctx, span := g.start(ctx, metrics.GatewayOperationCancel)
	span.SetAttributes(attribute.String("gateway.provider_charge_id", providerChargeID))
	start := time.Now()
	err := g.next.CancelCharge(ctx, creds, providerChargeID)
	g.finish(span, metrics.GatewayOperationCancel, start, err)
	return err
}

func (g *instrumented) ParseWebhook(payload []byte) *domain.WebhookEvent {
	return g.next.ParseWebhook(payload)
}

func (g *instrumented) start(ctx context.Context, operation string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "gateway."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("gateway.provider", g.next.Provider())),
	)
}

func (g *instrumented) finish(span trace.Span, operation string, start time.Time, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	g.metrics.Observe(g.next.Provider(), operation, time.Since(start), err)
}
