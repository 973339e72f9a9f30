package domain

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/smallbiznis/recurra/pkg/billing"
	"github.com/smallbiznis/recurra/pkg/calendar"
)

const (
	ProviderAsaas     = "asaas"
	ProviderMock      = "mock"
	ProviderCora      = "cora"
	ProviderSantander = "santander"
)

// Credentials are the decrypted per-tenant provider settings.
type Credentials map[string]string

func (c Credentials) Get(key string) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c[key])
}

type Customer struct {
	Name              string
	Document          string
	Email             string
	Phone             string
	AddressStreet     string
	AddressNumber     string
	AddressCity       string
	AddressState      string
	AddressPostalCode string
}

type CreateChargeRequest struct {
	Customer    Customer
	AmountCents int64
	DueDate     calendar.Date
	Method      billing.PaymentMethod
	Description string
	Fees        billing.FeeTerms
	// Reference is echoed to the provider as the external reference.
	Reference string
}

type CreateChargeResult struct {
	Provider         string
	ProviderChargeID string
	InvoiceURL       string
	Raw              json.RawMessage
}

type WebhookEvent struct {
	EventType        string
	ProviderChargeID string
	Paid             bool

	// AmountCents is what the provider reports as paid; zero when absent.
	AmountCents int64
	Raw         json.RawMessage
}

// Gateway is the uniform contract over one payment network.
type Gateway interface {
	Provider() string
	CreateCharge(ctx context.Context, creds Credentials, req CreateChargeRequest) (*CreateChargeResult, error)
	// CancelCharge treats a charge already absent remotely as success.
	CancelCharge(ctx context.Context, creds Credentials, providerChargeID string) error
	// ParseWebhook is pure and returns nil for payloads it does not recognize.
	ParseWebhook(payload []byte) *WebhookEvent
}
