package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurra/internal/config"
	"github.com/smallbiznis/recurra/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Cfg  config.Config
	Repo domain.Repository
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	repo   domain.Repository
	cipher *ConfigCipher
}

func New(p Params) domain.Service {
	log := p.Log.Named("tenant.service")
	if p.Cfg.IsProduction() && strings.TrimSpace(p.Cfg.PaymentProviderConfigSecret) == "" {
		log.Warn("PAYMENT_PROVIDER_CONFIG_SECRET is unset; tenants with stored credentials cannot create or cancel charges")
	}
	return &Service{
		db:     p.DB,
		log:    log,
		repo:   p.Repo,
		cipher: NewConfigCipher(p.Cfg.PaymentProviderConfigSecret),
	}
}

func (s *Service) GetAccount(ctx context.Context, tenantID snowflake.ID) (*domain.Account, error) {
	tenant, account, err := s.lookup(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	// Tenants on the mock provider usually carry no credentials at all.
	if len(tenant.ProviderConfig) == 0 || string(tenant.ProviderConfig) == "null" {
		return account, nil
	}

	credentials, err := s.cipher.Decrypt(tenant.ProviderConfig)
	if err != nil {
		s.log.Warn("provider config decrypt failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("provider", account.Provider),
			zap.Error(err),
		)
		return nil, err
	}
	account.Credentials = credentials
	return account, nil
}

// GetWebhookAccount skips provider config entirely, so a broken or
// unreadable config never blocks inbound callbacks.
func (s *Service) GetWebhookAccount(ctx context.Context, tenantID snowflake.ID) (*domain.Account, error) {
	_, account, err := s.lookup(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) lookup(ctx context.Context, tenantID snowflake.ID) (*domain.Tenant, *domain.Account, error) {
	if tenantID == 0 {
		return nil, nil, domain.ErrInvalidTenant
	}

	tenant, err := s.repo.FindByID(ctx, s.db, tenantID)
	if err != nil {
		return nil, nil, err
	}
	if tenant == nil {
		return nil, nil, domain.ErrTenantNotFound
	}

	return tenant, &domain.Account{
		TenantID:      tenant.ID,
		Name:          tenant.Name,
		Provider:      strings.ToLower(strings.TrimSpace(tenant.PaymentProvider)),
		Credentials:   map[string]string{},
		WebhookSecret: tenant.WebhookSecret,
	}, nil
}
