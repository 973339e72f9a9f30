// Package asaas talks to the Asaas v3 REST API.
package asaas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/recurra/internal/gateway/domain"
	"github.com/smallbiznis/recurra/pkg/billing"
	"github.com/smallbiznis/recurra/pkg/money"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const (
	headerAccessToken = "access_token"
	maxErrorBody      = 4 << 10
)

type Config struct {
	BaseURL   string
	AllowPix  bool
	UserAgent string
	Timeout   time.Duration
	// RequestsPerSecond <= 0 disables outbound throttling.
	RequestsPerSecond float64
	Burst             int
}

type Adapter struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

// New builds the adapter. A nil client gets a traced transport with cfg.Timeout.
func New(cfg Config, client *http.Client) *Adapter {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if client == nil {
		client = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Adapter{cfg: cfg, client: client, limiter: limiter}
}

func (a *Adapter) Provider() string {
	return domain.ProviderAsaas
}

func (a *Adapter) CreateCharge(ctx context.Context, creds domain.Credentials, req domain.CreateChargeRequest) (*domain.CreateChargeResult, error) {
	apiKey := creds.Get("api_key")
	if apiKey == "" {
		return nil, domain.NewUpstreamError(domain.ProviderAsaas, http.StatusBadRequest, "api_key is not configured")
	}
	billingType, ok := billingTypes[req.Method]
	if !ok {
		return nil, domain.NewUpstreamError(domain.ProviderAsaas, http.StatusUnprocessableEntity, "payment method %q is not supported", req.Method)
	}
	if req.Method == billing.PaymentMethodPix && !a.cfg.AllowPix {
		return nil, domain.NewUpstreamError(domain.ProviderAsaas, http.StatusUnprocessableEntity, "pix is not enabled for this account")
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	var customer customerResponse
	if _, err := a.do(ctx, apiKey, http.MethodPost, "/customers", newCustomerRequest(req.Customer), &customer); err != nil {
		return nil, err
	}
	if strings.TrimSpace(customer.ID) == "" {
		return nil, domain.NewUpstreamError(domain.ProviderAsaas, http.StatusBadGateway, "customer response without id")
	}

	var payment paymentResponse
	raw, err := a.do(ctx, apiKey, http.MethodPost, "/payments", newPaymentRequest(customer.ID, billingType, req), &payment)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(payment.ID) == "" {
		return nil, domain.NewUpstreamError(domain.ProviderAsaas, http.StatusBadGateway, "payment response without id")
	}

	return &domain.CreateChargeResult{
		Provider:         domain.ProviderAsaas,
		ProviderChargeID: payment.ID,
		InvoiceURL:       payment.invoiceLink(),
		Raw:              raw,
	}, nil
}

// CancelCharge tries the cancel endpoint first and falls back to DELETE only
// when the first call reports not found.
func (a *Adapter) CancelCharge(ctx context.Context, creds domain.Credentials, providerChargeID string) error {
	apiKey := creds.Get("api_key")
	if apiKey == "" {
		return domain.NewUpstreamError(domain.ProviderAsaas, http.StatusBadRequest, "api_key is not configured")
	}
	providerChargeID = strings.TrimSpace(providerChargeID)
	if providerChargeID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	path := "/payments/" + url.PathEscape(providerChargeID)
	_, err := a.do(ctx, apiKey, http.MethodPost, path+"/cancel", nil, nil)
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return err
	}

	_, err = a.do(ctx, apiKey, http.MethodDelete, path, nil, nil)
	if err == nil || isNotFound(err) {
		return nil
	}
	return err
}

func (a *Adapter) ParseWebhook(payload []byte) *domain.WebhookEvent {
	var event webhookPayload
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil
	}
	eventType := strings.ToUpper(strings.TrimSpace(event.Event))
	if eventType == "" || event.Payment == nil {
		return nil
	}
	paymentID := strings.TrimSpace(event.Payment.ID)
	if paymentID == "" {
		return nil
	}

	// A malformed value leaves the amount unknown rather than dropping the event.
	amount, _ := money.ParseDecimal(event.Payment.Value.String())

	return &domain.WebhookEvent{
		EventType:        eventType,
		ProviderChargeID: paymentID,
		Paid:             paidEvents[eventType] || paidStatuses[strings.ToUpper(strings.TrimSpace(event.Payment.Status))],
		AmountCents:      amount,
		Raw:              json.RawMessage(payload),
	}
}

func (a *Adapter) do(ctx context.Context, apiKey, method, path string, body any, out any) (json.RawMessage, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, wrapTransportErr(err)
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set(headerAccessToken, apiKey)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if a.cfg.UserAgent != "" {
		httpReq.Header.Set("User-Agent", a.cfg.UserAgent)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, wrapTransportErr(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapTransportErr(err)
	}

	if resp.StatusCode >= 500 {
		return nil, domain.NewUpstreamError(domain.ProviderAsaas, http.StatusBadGateway, "%s %s returned %d: %s", method, path, resp.StatusCode, truncate(raw))
	}
	if resp.StatusCode >= 400 {
		return nil, domain.NewUpstreamError(domain.ProviderAsaas, resp.StatusCode, "%s %s rejected: %s", method, path, describeErrors(raw))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, &domain.UpstreamError{
				Provider:   domain.ProviderAsaas,
				StatusCode: http.StatusBadGateway,
				Message:    fmt.Sprintf("%s %s returned malformed body", method, path),
				Err:        err,
			}
		}
	}
	return json.RawMessage(raw), nil
}

func wrapTransportErr(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: asaas: %v", domain.ErrTimeout, err)
	}
	return &domain.UpstreamError{
		Provider:   domain.ProviderAsaas,
		StatusCode: http.StatusBadGateway,
		Message:    "request failed",
		Err:        err,
	}
}

func isNotFound(err error) bool {
	var upstream *domain.UpstreamError
	return errors.As(err, &upstream) && upstream.StatusCode == http.StatusNotFound
}

func truncate(raw []byte) string {
	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody]
	}
	return strings.TrimSpace(string(raw))
}

// describeErrors flattens the {"errors":[{"code","description"}]} envelope.
func describeErrors(raw []byte) string {
	var envelope errorEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Errors) == 0 {
		return truncate(raw)
	}
	parts := make([]string, 0, len(envelope.Errors))
	for _, e := range envelope.Errors {
		parts = append(parts, strings.TrimSpace(e.Code+" "+e.Description))
	}
	return strings.Join(parts, "; ")
}

var billingTypes = map[billing.PaymentMethod]string{
	billing.PaymentMethodPix:    "PIX",
	billing.PaymentMethodBoleto: "BOLETO",
	billing.PaymentMethodCard:   "CREDIT_CARD",
}

var paidEvents = map[string]bool{
	"PAYMENT_RECEIVED":  true,
	"PAYMENT_CONFIRMED": true,
}

var paidStatuses = map[string]bool{
	"RECEIVED":         true,
	"CONFIRMED":        true,
	"RECEIVED_IN_CASH": true,
}

var _ domain.Gateway = (*Adapter)(nil)
