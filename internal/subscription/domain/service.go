package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurra/pkg/billing"
	"github.com/smallbiznis/recurra/pkg/calendar"
	"github.com/smallbiznis/recurra/pkg/errs"
)

type CreateSubscriptionRequest struct {
	CustomerID    snowflake.ID          `json:"customer_id"`
	Description   string                `json:"description"`
	AmountCents   int64                 `json:"amount_cents"`
	Interval      calendar.Interval     `json:"interval"`
	PaymentMethod billing.PaymentMethod `json:"payment_method"`
	NextDueDate   calendar.Date         `json:"next_due_date"`
	Fees          billing.FeeTerms      `json:"fees"`
}

// UpdateSubscriptionRequest is a partial update; nil fields are left as is.
type UpdateSubscriptionRequest struct {
	Description   *string                `json:"description,omitempty"`
	AmountCents   *int64                 `json:"amount_cents,omitempty"`
	Interval      *calendar.Interval     `json:"interval,omitempty"`
	PaymentMethod *billing.PaymentMethod `json:"payment_method,omitempty"`
	NextDueDate   *calendar.Date         `json:"next_due_date,omitempty"`
	Fees          *billing.FeeTerms      `json:"fees,omitempty"`
	Active        *bool                  `json:"active,omitempty"`
}

type Service interface {
	Create(ctx context.Context, tenantID snowflake.ID, req CreateSubscriptionRequest) (Subscription, error)
	GetByID(ctx context.Context, tenantID, id snowflake.ID) (Subscription, error)
	Update(ctx context.Context, tenantID, id snowflake.ID, req UpdateSubscriptionRequest) (Subscription, error)
	ListDue(ctx context.Context, asOf calendar.Date, limit int) ([]Subscription, error)
	// AdvanceNextDueDate moves the subscription one period past from. It
	// reports false when another writer already moved it.
	AdvanceNextDueDate(ctx context.Context, sub Subscription) (calendar.Date, bool, error)
}

var (
	ErrInvalidTenant        = errs.New(errs.KindValidation, "invalid_tenant")
	ErrInvalidID            = errs.New(errs.KindValidation, "invalid_subscription_id")
	ErrInvalidCustomer      = errs.New(errs.KindValidation, "invalid_customer")
	ErrInvalidAmount        = errs.New(errs.KindValidation, "invalid_amount")
	ErrInvalidInterval      = errs.New(errs.KindValidation, "invalid_interval")
	ErrInvalidPaymentMethod = errs.New(errs.KindValidation, "invalid_payment_method")
	ErrInvalidNextDueDate   = errs.New(errs.KindValidation, "invalid_next_due_date")
	ErrNextDueDateBackwards = errs.New(errs.KindValidation, "next_due_date_cannot_move_backwards")
	ErrNotFound             = errs.New(errs.KindNotFound, "subscription_not_found")
	ErrConcurrentUpdate     = errs.New(errs.KindConflict, "subscription_concurrently_updated")
)
