package asaas

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/recurra/internal/gateway/domain"
	"github.com/smallbiznis/recurra/pkg/billing"
	"github.com/smallbiznis/recurra/pkg/calendar"
	"github.com/smallbiznis/recurra/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	Method string
	Path   string
	Token  string
	Body   map[string]any
}

type fakeAsaas struct {
	mu    sync.Mutex
	calls []recordedCall
	route func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeAsaas) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{}
	raw, _ := io.ReadAll(r.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{Method: r.Method, Path: r.URL.Path, Token: r.Header.Get("access_token"), Body: body})
	f.mu.Unlock()
	f.route(w, r)
}

func (f *fakeAsaas) Calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func newTestAdapter(t *testing.T, fake *fakeAsaas, allowPix bool) *Adapter {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/", AllowPix: allowPix, Timeout: 2 * time.Second}, srv.Client())
}

func chargeRequest(method billing.PaymentMethod) domain.CreateChargeRequest {
	return domain.CreateChargeRequest{
		Customer:    domain.Customer{Name: "Maria Silva", Document: "123.456.789-09", Email: "maria@example.com", Phone: "(11) 99999-0000"},
		AmountCents: 5000,
		DueDate:     calendar.New(2024, time.January, 10),
		Method:      method,
		Description: "Plano mensal",
		Fees:        billing.FeeTerms{FineCents: 200, InterestBps: 100, DiscountCents: 500, DiscountDaysBefore: 5},
		Reference:   "sub:9:due:2024-01-10",
	}
}

var creds = domain.Credentials{"api_key": "key_123"}

func TestCreateChargeCreatesCustomerThenPayment(t *testing.T) {
	fake := &fakeAsaas{route: func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/customers":
			_, _ = w.Write([]byte(`{"id":"cus_1"}`))
		case "/payments":
			_, _ = w.Write([]byte(`{"id":"pay_1","status":"PENDING","invoiceUrl":"","bankSlipUrl":"https://asaas/b/pay_1"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}}
	adapter := newTestAdapter(t, fake, false)

	res, err := adapter.CreateCharge(context.Background(), creds, chargeRequest(billing.PaymentMethodBoleto))
	require.NoError(t, err)
	assert.Equal(t, "asaas", res.Provider)
	assert.Equal(t, "pay_1", res.ProviderChargeID)
	assert.Equal(t, "https://asaas/b/pay_1", res.InvoiceURL)

	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "/customers", calls[0].Path)
	assert.Equal(t, "12345678909", calls[0].Body["cpfCnpj"])
	assert.Equal(t, "key_123", calls[0].Token)

	payment := calls[1].Body
	assert.Equal(t, "cus_1", payment["customer"])
	assert.Equal(t, "BOLETO", payment["billingType"])
	assert.Equal(t, 50.0, payment["value"])
	assert.Equal(t, "2024-01-10", payment["dueDate"])
	assert.Equal(t, "sub:9:due:2024-01-10", payment["externalReference"])
	assert.Equal(t, map[string]any{"value": 2.0, "type": "FIXED"}, payment["fine"])
	assert.Equal(t, map[string]any{"value": 1.0}, payment["interest"])
	assert.Equal(t, map[string]any{"value": 5.0, "dueDateLimitDays": 5.0, "type": "FIXED"}, payment["discount"])
}

func TestCreateChargeValidationCodes(t *testing.T) {
	fake := &fakeAsaas{route: func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call %s", r.URL.Path)
	}}
	adapter := newTestAdapter(t, fake, false)

	_, err := adapter.CreateCharge(context.Background(), domain.Credentials{}, chargeRequest(billing.PaymentMethodBoleto))
	assertUpstream(t, err, http.StatusBadRequest)

	_, err = adapter.CreateCharge(context.Background(), creds, chargeRequest(billing.PaymentMethodPix))
	assertUpstream(t, err, http.StatusUnprocessableEntity)
}

func TestCreateChargeServerErrorIsBadGateway(t *testing.T) {
	fake := &fakeAsaas{route: func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}}
	adapter := newTestAdapter(t, fake, true)

	_, err := adapter.CreateCharge(context.Background(), creds, chargeRequest(billing.PaymentMethodPix))
	assertUpstream(t, err, http.StatusBadGateway)
	assert.Equal(t, errs.KindUpstream, errs.KindOf(err))
}

func TestCreateChargeMissingPaymentID(t *testing.T) {
	fake := &fakeAsaas{route: func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/customers" {
			_, _ = w.Write([]byte(`{"id":"cus_1"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"PENDING"}`))
	}}
	adapter := newTestAdapter(t, fake, false)

	_, err := adapter.CreateCharge(context.Background(), creds, chargeRequest(billing.PaymentMethodCard))
	assertUpstream(t, err, http.StatusBadGateway)
}

func TestCreateChargeTimeout(t *testing.T) {
	release := make(chan struct{})
	fake := &fakeAsaas{route: func(w http.ResponseWriter, r *http.Request) {
		<-release
	}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	adapter := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, srv.Client())

	_, err := adapter.CreateCharge(context.Background(), creds, chargeRequest(billing.PaymentMethodBoleto))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Equal(t, errs.KindTimeout, errs.KindOf(err))
}

func TestCancelChargeFallsBackToDeleteOnNotFound(t *testing.T) {
	fake := &fakeAsaas{route: func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"deleted":true,"id":"pay_1"}`))
	}}
	adapter := newTestAdapter(t, fake, false)

	require.NoError(t, adapter.CancelCharge(context.Background(), creds, "pay_1"))
	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, http.MethodPost, calls[0].Method)
	assert.Equal(t, "/payments/pay_1/cancel", calls[0].Path)
	assert.Equal(t, http.MethodDelete, calls[1].Method)
	assert.Equal(t, "/payments/pay_1", calls[1].Path)
}

func TestCancelChargeAbsentRemotelyIsSuccess(t *testing.T) {
	fake := &fakeAsaas{route: func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}}
	adapter := newTestAdapter(t, fake, false)

	assert.NoError(t, adapter.CancelCharge(context.Background(), creds, "pay_gone"))
	assert.Len(t, fake.Calls(), 2)
}

func TestCancelChargeDoesNotMaskOtherFailures(t *testing.T) {
	fake := &fakeAsaas{route: func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"code":"invalid_action","description":"already received"}]}`))
	}}
	adapter := newTestAdapter(t, fake, false)

	err := adapter.CancelCharge(context.Background(), creds, "pay_1")
	assertUpstream(t, err, http.StatusBadRequest)
	assert.Contains(t, err.Error(), "already received")
	assert.Len(t, fake.Calls(), 1)
}

func TestParseWebhook(t *testing.T) {
	adapter := New(Config{}, http.DefaultClient)

	event := adapter.ParseWebhook([]byte(`{"event":"PAYMENT_RECEIVED","payment":{"id":"abc","status":"RECEIVED","value":99.9}}`))
	require.NotNil(t, event)
	assert.Equal(t, "abc", event.ProviderChargeID)
	assert.True(t, event.Paid)
	assert.Equal(t, int64(9990), event.AmountCents)

	event = adapter.ParseWebhook([]byte(`{"event":"PAYMENT_UPDATED","payment":{"id":"abc","status":"CONFIRMED"}}`))
	require.NotNil(t, event)
	assert.True(t, event.Paid)
	assert.Zero(t, event.AmountCents)

	event = adapter.ParseWebhook([]byte(`{"event":"PAYMENT_CREATED","payment":{"id":"abc","status":"PENDING"}}`))
	require.NotNil(t, event)
	assert.False(t, event.Paid)

	assert.Nil(t, adapter.ParseWebhook([]byte(`{"hello":"world"}`)))
	assert.Nil(t, adapter.ParseWebhook([]byte(`{"event":"PAYMENT_RECEIVED","payment":{}}`)))
	assert.Nil(t, adapter.ParseWebhook([]byte(`not json`)))
	assert.Nil(t, adapter.ParseWebhook(nil))
}

func assertUpstream(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	var upstream *domain.UpstreamError
	require.True(t, errors.As(err, &upstream), "expected UpstreamError, got %v", err)
	assert.Equal(t, status, upstream.StatusCode)
}
