package adapters

import (
	"strings"

	"github.com/smallbiznis/recurra/internal/gateway/domain"
	"github.com/smallbiznis/recurra/internal/observability/metrics"
	"github.com/smallbiznis/recurra/pkg/errs"
)

// Registry is the closed set of gateways known to this process.
type Registry struct {
	gateways map[string]domain.Gateway
}

func NewRegistry(gm *metrics.GatewayMetrics, gateways ...domain.Gateway) *Registry {
	registry := &Registry{gateways: map[string]domain.Gateway{}}
	for _, gw := range gateways {
		if gw == nil {
			continue
		}
		provider := strings.ToLower(strings.TrimSpace(gw.Provider()))
		if provider == "" {
			continue
		}
		registry.gateways[provider] = instrument(gw, gm)
	}
	return registry
}

// Resolve fails loudly on unknown names instead of degrading to the mock.
func (r *Registry) Resolve(provider string) (domain.Gateway, error) {
	if r == nil {
		return nil, domain.ErrProviderNotFound
	}
	name := strings.ToLower(strings.TrimSpace(provider))
	gw, ok := r.gateways[name]
	if !ok {
		return nil, errs.Newf(errs.KindValidation, domain.ErrProviderNotFound.Code, "unknown payment provider %q", provider)
	}
	return gw, nil
}
