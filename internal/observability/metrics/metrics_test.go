package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("tenant_id", "123"),
		attribute.String("charge_id", "456"),
		attribute.String("provider", "asaas"),
		attribute.String("outcome", "applied"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "tenant_id" || attr.Key == "charge_id" {
			t.Fatalf("high-cardinality label %s leaked", attr.Key)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordChargeCreated(context.Background(), "mock")
	m.RecordChargePaid(context.Background(), "mock", "webhook")
	m.RecordWebhookEvent(context.Background(), "mock", "ignored")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "recurra"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordChargeCanceled(context.Background(), "asaas")
	m.RecordChargeReplayed(context.Background(), "asaas")
}
