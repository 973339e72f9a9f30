// Package unsupported stands in for providers that are named but not built yet.
package unsupported

import (
	"context"
	"fmt"

	"github.com/smallbiznis/recurra/internal/gateway/domain"
)

type Adapter struct {
	provider string
}

func New(provider string) *Adapter {
	return &Adapter{provider: provider}
}

func (a *Adapter) Provider() string {
	return a.provider
}

func (a *Adapter) CreateCharge(context.Context, domain.Credentials, domain.CreateChargeRequest) (*domain.CreateChargeResult, error) {
	return nil, fmt.Errorf("%w: %s create charge", domain.ErrNotSupported, a.provider)
}

func (a *Adapter) CancelCharge(context.Context, domain.Credentials, string) error {
	return fmt.Errorf("%w: %s cancel charge", domain.ErrNotSupported, a.provider)
}

func (a *Adapter) ParseWebhook([]byte) *domain.WebhookEvent {
	return nil
}

var _ domain.Gateway = (*Adapter)(nil)
