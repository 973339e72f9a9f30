package adapters_test

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/recurra/internal/gateway/adapters"
	"github.com/smallbiznis/recurra/internal/gateway/adapters/mock"
	"github.com/smallbiznis/recurra/internal/gateway/adapters/unsupported"
	"github.com/smallbiznis/recurra/internal/gateway/domain"
	"github.com/smallbiznis/recurra/pkg/billing"
	"github.com/smallbiznis/recurra/pkg/calendar"
	"github.com/smallbiznis/recurra/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry() *adapters.Registry {
	return adapters.NewRegistry(nil,
		mock.New(),
		unsupported.New(domain.ProviderCora),
		unsupported.New(domain.ProviderSantander),
	)
}

func TestResolveUnknownProviderFailsLoudly(t *testing.T) {
	registry := newRegistry()

	_, err := registry.Resolve("paypal")
	require.ErrorIs(t, err, domain.ErrProviderNotFound)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	assert.Contains(t, err.Error(), `"paypal"`)

	gw, err := registry.Resolve(" MOCK ")
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderMock, gw.Provider())
}

func TestUnsupportedProvidersFailEveryCall(t *testing.T) {
	registry := newRegistry()
	for _, name := range []string{domain.ProviderCora, domain.ProviderSantander} {
		gw, err := registry.Resolve(name)
		require.NoError(t, err)

		_, err = gw.CreateCharge(context.Background(), nil, domain.CreateChargeRequest{})
		assert.Equal(t, errs.KindNotSupported, errs.KindOf(err))
		assert.ErrorIs(t, gw.CancelCharge(context.Background(), nil, "x"), domain.ErrNotSupported)
		assert.Nil(t, gw.ParseWebhook([]byte(`{"event":"PAYMENT_RECEIVED","payment":{"id":"x"}}`)))
	}
}

func TestMockIsDeterministic(t *testing.T) {
	gw := mock.New()
	req := domain.CreateChargeRequest{
		AmountCents: 5000,
		DueDate:     calendar.New(2024, time.January, 10),
		Method:      billing.PaymentMethodPix,
		Reference:   "sub:1:due:2024-01-10",
	}

	first, err := gw.CreateCharge(context.Background(), nil, req)
	require.NoError(t, err)
	second, err := gw.CreateCharge(context.Background(), nil, req)
	require.NoError(t, err)
	assert.Equal(t, first.ProviderChargeID, second.ProviderChargeID)
	assert.Contains(t, first.ProviderChargeID, "mock_")
	assert.Contains(t, first.InvoiceURL, first.ProviderChargeID)

	req.Reference = "sub:1:due:2024-02-10"
	third, err := gw.CreateCharge(context.Background(), nil, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.ProviderChargeID, third.ProviderChargeID)

	assert.NoError(t, gw.CancelCharge(context.Background(), nil, first.ProviderChargeID))
}

func TestMockParseWebhook(t *testing.T) {
	gw := mock.New()

	event := gw.ParseWebhook([]byte(`{"charge_id":"mock_1","paid":true}`))
	require.NotNil(t, event)
	assert.Equal(t, "mock_1", event.ProviderChargeID)
	assert.True(t, event.Paid)

	assert.Nil(t, gw.ParseWebhook([]byte(`{"paid":true}`)))
	assert.Nil(t, gw.ParseWebhook([]byte(`[1,2,3]`)))
}

func TestUpstreamErrorHTTPStatus(t *testing.T) {
	assert.Equal(t, 422, domain.NewUpstreamError("asaas", 422, "pix").HTTPStatus())
	assert.Equal(t, 502, domain.NewUpstreamError("asaas", 0, "boom").HTTPStatus())
}
