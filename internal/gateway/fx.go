package gateway

import (
	"github.com/smallbiznis/recurra/internal/config"
	"github.com/smallbiznis/recurra/internal/gateway/adapters"
	"github.com/smallbiznis/recurra/internal/gateway/adapters/asaas"
	"github.com/smallbiznis/recurra/internal/gateway/adapters/mock"
	"github.com/smallbiznis/recurra/internal/gateway/adapters/unsupported"
	"github.com/smallbiznis/recurra/internal/gateway/domain"
	"github.com/smallbiznis/recurra/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("gateway",
	fx.Provide(NewRegistry),
)

func NewRegistry(cfg config.Config, metricsCfg metrics.Config) *adapters.Registry {
	return adapters.NewRegistry(
		metrics.GatewayWithConfig(metricsCfg),
		asaas.New(asaas.Config{
			BaseURL:           cfg.Asaas.BaseURL,
			AllowPix:          cfg.Asaas.AllowPix,
			UserAgent:         cfg.Asaas.UserAgent,
			Timeout:           cfg.Gateway.Timeout,
			RequestsPerSecond: cfg.Gateway.RequestsPerSecond,
			Burst:             cfg.Gateway.Burst,
		}, nil),
		mock.New(),
		unsupported.New(domain.ProviderCora),
		unsupported.New(domain.ProviderSantander),
	)
}
