package domain

import (
	"context"
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurra/pkg/billing"
	"github.com/smallbiznis/recurra/pkg/calendar"
	"github.com/smallbiznis/recurra/pkg/db/pagination"
	"github.com/smallbiznis/recurra/pkg/errs"
)

type CreateChargeRequest struct {
	CustomerID     snowflake.ID          `json:"customer_id"`
	SubscriptionID *snowflake.ID         `json:"subscription_id,omitempty"`
	AmountCents    int64                 `json:"amount_cents"`
	DueDate        calendar.Date         `json:"due_date"`
	PaymentMethod  billing.PaymentMethod `json:"payment_method"`
	Description    string                `json:"description"`
	Fees           billing.FeeTerms      `json:"fees"`
	IdempotencyKey string                `json:"idempotency_key"`
}

type MarkPaidRequest struct {
	Source string
	// Raw is the provider payload that confirmed the payment, if any.
	Raw json.RawMessage
}

type MarkOverdueRequest struct {
	// TenantID zero sweeps every tenant.
	TenantID snowflake.ID
	AsOf     calendar.Date
}

type ListChargeRequest struct {
	ListChargeFilter
	pagination.Pagination
}

type ListChargeResponse struct {
	pagination.PageInfo
	Charges []Charge `json:"charges"`
}

type ConfirmOutcome string

const (
	ConfirmApplied     ConfirmOutcome = "applied"
	ConfirmAlreadyPaid ConfirmOutcome = "already_paid"
	ConfirmNotFound    ConfirmOutcome = "not_found"
	ConfirmCanceled    ConfirmOutcome = "canceled"
)

type ConfirmByProviderRequest struct {
	Provider         string
	ProviderChargeID string
	Raw              json.RawMessage
}

type ConfirmResult struct {
	Outcome ConfirmOutcome
	Charge  *Charge
}

// PaidHook runs after a charge commits as paid. Errors are logged only.
type PaidHook func(ctx context.Context, charge Charge) error

type Service interface {
	Create(ctx context.Context, tenantID snowflake.ID, req CreateChargeRequest) (Charge, error)
	GetByID(ctx context.Context, tenantID, id snowflake.ID) (Charge, error)
	List(ctx context.Context, tenantID snowflake.ID, req ListChargeRequest) (ListChargeResponse, error)
	ListPayments(ctx context.Context, tenantID, id snowflake.ID) ([]Payment, error)
	MarkPaid(ctx context.Context, tenantID, id snowflake.ID, req MarkPaidRequest) (Charge, error)
	Cancel(ctx context.Context, tenantID, id snowflake.ID) (Charge, error)
	MarkOverdue(ctx context.Context, req MarkOverdueRequest) (int64, error)
	ConfirmByProvider(ctx context.Context, tenantID snowflake.ID, req ConfirmByProviderRequest) (ConfirmResult, error)
}

var (
	ErrInvalidTenant        = errs.New(errs.KindValidation, "invalid_tenant")
	ErrInvalidID            = errs.New(errs.KindValidation, "invalid_charge_id")
	ErrInvalidCustomer      = errs.New(errs.KindValidation, "invalid_customer")
	ErrInvalidAmount        = errs.New(errs.KindValidation, "invalid_amount")
	ErrInvalidDueDate       = errs.New(errs.KindValidation, "invalid_due_date")
	ErrInvalidPaymentMethod = errs.New(errs.KindValidation, "invalid_payment_method")
	ErrInvalidStatus        = errs.New(errs.KindValidation, "invalid_status")
	ErrInvalidSource        = errs.New(errs.KindValidation, "invalid_source")
	ErrChargeNotFound       = errs.New(errs.KindNotFound, "charge_not_found")
	ErrChargeAlreadyPaid    = errs.New(errs.KindConflict, "charge_already_paid")
	ErrChargeCanceled       = errs.New(errs.KindConflict, "charge_canceled")
	ErrCreationInFlight     = errs.New(errs.KindConflict, "charge_creation_in_flight")
)

// Notifier is told about new charges. Implementations must not block the caller.
type Notifier interface {
	ChargeCreated(ctx context.Context, charge Charge)
}
