package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes charge lifecycle instruments pushed over OTLP.
type Metrics struct {
	chargesCreated  metric.Int64Counter
	chargesReplayed metric.Int64Counter
	chargesPaid     metric.Int64Counter
	chargesCanceled metric.Int64Counter
	webhookEvents   metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "recurra"
	}
	meter := provider.Meter(name)

	chargesCreated, err := meter.Int64Counter("recurra_charges_created_total")
	if err != nil {
		return nil, err
	}
	chargesReplayed, err := meter.Int64Counter("recurra_charges_replayed_total")
	if err != nil {
		return nil, err
	}
	chargesPaid, err := meter.Int64Counter("recurra_charges_paid_total")
	if err != nil {
		return nil, err
	}
	chargesCanceled, err := meter.Int64Counter("recurra_charges_canceled_total")
	if err != nil {
		return nil, err
	}
	webhookEvents, err := meter.Int64Counter("recurra_webhook_events_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		chargesCreated:  chargesCreated,
		chargesReplayed: chargesReplayed,
		chargesPaid:     chargesPaid,
		chargesCanceled: chargesCanceled,
		webhookEvents:   webhookEvents,
	}, nil
}

func (m *Metrics) RecordChargeCreated(ctx context.Context, provider string) {
	if m == nil {
		return
	}
	m.chargesCreated.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
	)...))
}

// RecordChargeReplayed counts creates answered from an existing charge.
func (m *Metrics) RecordChargeReplayed(ctx context.Context, provider string) {
	if m == nil {
		return
	}
	m.chargesReplayed.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
	)...))
}

func (m *Metrics) RecordChargePaid(ctx context.Context, provider, source string) {
	if m == nil {
		return
	}
	m.chargesPaid.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("source", strings.TrimSpace(source)),
	)...))
}

func (m *Metrics) RecordChargeCanceled(ctx context.Context, provider string) {
	if m == nil {
		return
	}
	m.chargesCanceled.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
	)...))
}

func (m *Metrics) RecordWebhookEvent(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"provider":  {},
	"source":    {},
	"outcome":   {},
	"operation": {},
	"reason":    {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
