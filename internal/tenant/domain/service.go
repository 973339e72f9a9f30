package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurra/pkg/errs"
)

type Service interface {
	// GetAccount resolves provider selection, credentials and webhook secret.
	GetAccount(ctx context.Context, tenantID snowflake.ID) (*Account, error)
	// GetWebhookAccount resolves provider selection and webhook secret
	// without touching credentials.
	GetWebhookAccount(ctx context.Context, tenantID snowflake.ID) (*Account, error)
}

var (
	ErrInvalidTenant        = errs.New(errs.KindValidation, "invalid_tenant")
	ErrTenantNotFound       = errs.New(errs.KindNotFound, "tenant_not_found")
	ErrEncryptionKeyMissing = errs.New(errs.KindUnknown, "encryption_key_missing")
	ErrInvalidConfig        = errs.New(errs.KindValidation, "invalid_provider_config")
)
