package testutil

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	chargedomain "github.com/smallbiznis/recurra/internal/charge/domain"
	chargerepo "github.com/smallbiznis/recurra/internal/charge/repository"
	chargeservice "github.com/smallbiznis/recurra/internal/charge/service"
	"github.com/smallbiznis/recurra/internal/clock"
	"github.com/smallbiznis/recurra/internal/config"
	customerrepo "github.com/smallbiznis/recurra/internal/customer/repository"
	customerservice "github.com/smallbiznis/recurra/internal/customer/service"
	"github.com/smallbiznis/recurra/internal/gateway/adapters"
	gatewaydomain "github.com/smallbiznis/recurra/internal/gateway/domain"
	obsmetrics "github.com/smallbiznis/recurra/internal/observability/metrics"
	"github.com/smallbiznis/recurra/internal/ratelimit"
	tenantdomain "github.com/smallbiznis/recurra/internal/tenant/domain"
	tenantrepo "github.com/smallbiznis/recurra/internal/tenant/repository"
	tenantservice "github.com/smallbiznis/recurra/internal/tenant/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ChargeDeps overrides pieces of the charge service wiring.
type ChargeDeps struct {
	Node      *snowflake.Node
	Clock     clock.Clock
	Locker    *ratelimit.Locker
	Notifier  chargedomain.Notifier
	PaidHooks []chargedomain.PaidHook
	Gateways  []gatewaydomain.Gateway
	Metrics   *obsmetrics.Metrics
}

// NewTenantService builds the tenant service without a credential secret.
func NewTenantService(db *gorm.DB) tenantdomain.Service {
	return tenantservice.New(tenantservice.Params{
		DB:   db,
		Log:  zap.NewNop(),
		Cfg:  config.Config{},
		Repo: tenantrepo.Provide(),
	})
}

// NewChargeService wires the charge service the way the fx graph does.
func NewChargeService(t testing.TB, db *gorm.DB, deps ChargeDeps) *chargeservice.Service {
	t.Helper()
	if deps.Node == nil {
		deps.Node = NewNode(t)
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	customers := customerservice.New(customerservice.Params{
		DB:   db,
		Log:  zap.NewNop(),
		Repo: customerrepo.Provide(),
	})
	return chargeservice.NewService(chargeservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      deps.Node,
		Clock:      deps.Clock,
		Repo:       chargerepo.Provide(),
		Customers:  customers,
		Tenants:    NewTenantService(db),
		Gateways:   adapters.NewRegistry(nil, deps.Gateways...),
		Locker:     deps.Locker,
		Notifier:   deps.Notifier,
		PaidHooks:  deps.PaidHooks,
		ObsMetrics: deps.Metrics,
	})
}
