package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smallbiznis/recurra/internal/gateway/domain"
)

// FakeGateway records every call and hands out sequential remote ids.
type FakeGateway struct {
	Name string
	// Delay is applied to CreateCharge so concurrent callers overlap.
	Delay     time.Duration
	CreateErr error
	CancelErr error

	creates atomic.Int64
	seq     atomic.Int64

	mu        sync.Mutex
	canceled  []string
	requests  []domain.CreateChargeRequest
	lastCreds domain.Credentials
}

func NewFakeGateway(name string) *FakeGateway {
	return &FakeGateway{Name: name}
}

func (g *FakeGateway) Provider() string {
	return g.Name
}

func (g *FakeGateway) CreateCharge(ctx context.Context, creds domain.Credentials, req domain.CreateChargeRequest) (*domain.CreateChargeResult, error) {
	g.creates.Add(1)
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.lastCreds = creds
	g.mu.Unlock()

	if g.Delay > 0 {
		select {
		case <-time.After(g.Delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrTimeout, ctx.Err())
		}
	}
	if g.CreateErr != nil {
		return nil, g.CreateErr
	}

	id := fmt.Sprintf("%s_%d", g.Name, g.seq.Add(1))
	raw, _ := json.Marshal(map[string]any{"id": id, "status": "PENDING"})
	return &domain.CreateChargeResult{
		Provider:         g.Name,
		ProviderChargeID: id,
		InvoiceURL:       "https://pay.example/" + id,
		Raw:              raw,
	}, nil
}

func (g *FakeGateway) CancelCharge(_ context.Context, _ domain.Credentials, providerChargeID string) error {
	if g.CancelErr != nil {
		return g.CancelErr
	}
	g.mu.Lock()
	g.canceled = append(g.canceled, providerChargeID)
	g.mu.Unlock()
	return nil
}

type fakeWebhook struct {
	Event   string `json:"event"`
	Payment struct {
		ID string `json:"id"`
	} `json:"payment"`
}

// ParseWebhook understands {"event": "...", "payment": {"id": "..."}} with
// PAYMENT_RECEIVED and PAYMENT_CONFIRMED as paid events.
func (g *FakeGateway) ParseWebhook(payload []byte) *domain.WebhookEvent {
	var body fakeWebhook
	if err := json.Unmarshal(payload, &body); err != nil || body.Event == "" {
		return nil
	}
	return &domain.WebhookEvent{
		EventType:        body.Event,
		ProviderChargeID: body.Payment.ID,
		Paid:             body.Event == "PAYMENT_RECEIVED" || body.Event == "PAYMENT_CONFIRMED",
		Raw:              payload,
	}
}

func (g *FakeGateway) Creates() int64 {
	return g.creates.Load()
}

func (g *FakeGateway) Canceled() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.canceled...)
}

func (g *FakeGateway) Requests() []domain.CreateChargeRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.CreateChargeRequest(nil), g.requests...)
}

func (g *FakeGateway) LastCredentials() domain.Credentials {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastCreds
}
