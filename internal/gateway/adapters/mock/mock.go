// Package mock is a deterministic local gateway for development and tests.
package mock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/smallbiznis/recurra/internal/gateway/domain"
)

const invoiceBaseURL = "https://mock.recurra.local/invoices/"

type Adapter struct{}

func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Provider() string {
	return domain.ProviderMock
}

// CreateCharge derives the id from the request, so the same request always
// maps to the same remote charge.
func (a *Adapter) CreateCharge(ctx context.Context, _ domain.Credentials, req domain.CreateChargeRequest) (*domain.CreateChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}

	id := chargeID(req)
	raw, err := json.Marshal(map[string]any{
		"id":       id,
		"amount":   req.AmountCents,
		"due_date": req.DueDate.String(),
		"method":   string(req.Method),
		"status":   "PENDING",
	})
	if err != nil {
		return nil, err
	}

	return &domain.CreateChargeResult{
		Provider:         domain.ProviderMock,
		ProviderChargeID: id,
		InvoiceURL:       invoiceBaseURL + id,
		Raw:              raw,
	}, nil
}

func (a *Adapter) CancelCharge(context.Context, domain.Credentials, string) error {
	return nil
}

type webhookPayload struct {
	ProviderChargeID string `json:"provider_charge_id"`
	ChargeID         string `json:"charge_id"`
	Event            string `json:"event"`
	Paid             bool   `json:"paid"`
}

func (a *Adapter) ParseWebhook(payload []byte) *domain.WebhookEvent {
	var event webhookPayload
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil
	}
	id := strings.TrimSpace(event.ProviderChargeID)
	if id == "" {
		id = strings.TrimSpace(event.ChargeID)
	}
	if id == "" {
		return nil
	}
	eventType := strings.TrimSpace(event.Event)
	if eventType == "" {
		eventType = "payment.updated"
	}
	return &domain.WebhookEvent{
		EventType:        eventType,
		ProviderChargeID: id,
		Paid:             event.Paid,
		Raw:              json.RawMessage(payload),
	}
}

func chargeID(req domain.CreateChargeRequest) string {
	seed := req.Reference
	if seed == "" {
		seed = strings.Join([]string{
			req.Customer.Document,
			fmt.Sprint(req.AmountCents),
			req.DueDate.String(),
			string(req.Method),
			req.Description,
		}, "|")
	}
	sum := sha256.Sum256([]byte(seed))
	return "mock_" + hex.EncodeToString(sum[:8])
}

var _ domain.Gateway = (*Adapter)(nil)
