package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurra/pkg/billing"
	"github.com/smallbiznis/recurra/pkg/calendar"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusOverdue  Status = "overdue"
	StatusPaid     Status = "paid"
	StatusCanceled Status = "canceled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusOverdue, StatusPaid, StatusCanceled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusCanceled
}

type Charge struct {
	ID                 snowflake.ID          `json:"id"`
	TenantID           snowflake.ID          `json:"tenant_id"`
	CustomerID         snowflake.ID          `json:"customer_id"`
	SubscriptionID     *snowflake.ID         `json:"subscription_id,omitempty"`
	AmountCents        int64                 `json:"amount_cents"`
	DueDate            calendar.Date         `json:"due_date"`
	PaymentMethod      billing.PaymentMethod `json:"payment_method"`
	Status             Status                `json:"status"`
	Description        string                `json:"description,omitempty"`
	Provider           string                `json:"provider"`
	ProviderChargeID   string                `json:"provider_charge_id,omitempty"`
	InvoiceURL         string                `json:"invoice_url,omitempty"`
	IdempotencyKey     *string               `json:"idempotency_key,omitempty"`
	FineCents          int64                 `json:"fine_cents"`
	InterestBps        int                   `json:"interest_bps"`
	DiscountCents      int64                 `json:"discount_cents"`
	DiscountDaysBefore int                   `json:"discount_days_before"`
	PaidAt             *time.Time            `json:"paid_at,omitempty"`
	CanceledAt         *time.Time            `json:"canceled_at,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

func (c Charge) Fees() billing.FeeTerms {
	return billing.FeeTerms{
		FineCents:          c.FineCents,
		InterestBps:        c.InterestBps,
		DiscountCents:      c.DiscountCents,
		DiscountDaysBefore: c.DiscountDaysBefore,
	}
}

type PaymentStatus string

const (
	PaymentStatusCreated   PaymentStatus = "created"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

const (
	SourceManual  = "manual"
	SourceWebhook = "webhook"
)

// Payment is the audit trail of gateway interaction for a charge.
type Payment struct {
	ID                snowflake.ID   `json:"id"`
	TenantID          snowflake.ID   `json:"tenant_id"`
	ChargeID          snowflake.ID   `json:"charge_id"`
	Provider          string         `json:"provider"`
	ProviderPaymentID string         `json:"provider_payment_id,omitempty"`
	Status            PaymentStatus  `json:"status"`
	Source            string         `json:"source,omitempty"`
	RawPayload        datatypes.JSON `json:"raw_payload,omitempty"`
	ConfirmedAt       *time.Time     `json:"confirmed_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// SubscriptionKey is the dedup key for the charge of one subscription period.
func SubscriptionKey(subscriptionID snowflake.ID, due calendar.Date) string {
	return fmt.Sprintf("sub:%s:due:%s", subscriptionID.String(), due.String())
}
