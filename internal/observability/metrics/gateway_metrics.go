package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/recurra/pkg/errs"
)

const (
	GatewayOperationCreate = "create_charge"
	GatewayOperationCancel = "cancel_charge"
	GatewayOperationParse  = "parse_webhook"
)

// GatewayMetrics tracks outbound calls to payment providers.
type GatewayMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	gatewayMetricsOnce sync.Once
	gatewayMetrics     *GatewayMetrics
)

func Gateway() *GatewayMetrics {
	return GatewayWithConfig(Config{})
}

func GatewayWithConfig(cfg Config) *GatewayMetrics {
	gatewayMetricsOnce.Do(func() {
		gatewayMetrics = newGatewayMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return gatewayMetrics
}

func newGatewayMetrics(registerer prometheus.Registerer, cfg Config) *GatewayMetrics {
	constLabels := constLabelsFor(cfg)
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "recurra_gateway_requests_total",
		Help:        "Payment gateway calls by provider, operation and outcome.",
		ConstLabels: constLabels,
	}, []string{"provider", "operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "recurra_gateway_request_duration_seconds",
		Help:        "Payment gateway call latency.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		ConstLabels: constLabels,
	}, []string{"provider", "operation"})

	registerer.MustRegister(requests, duration)
	return &GatewayMetrics{requests: requests, duration: duration}
}

// Observe records one call. The outcome is "ok" or the error kind.
func (m *GatewayMetrics) Observe(provider, operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = errs.KindOf(err).String()
	}
	m.requests.WithLabelValues(provider, operation, outcome).Inc()
	m.duration.WithLabelValues(provider, operation).Observe(elapsed.Seconds())
}
