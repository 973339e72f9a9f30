package guard

import (
	"errors"

	subscriptiondomain "github.com/smallbiznis/recurra/internal/subscription/domain"
)

var (
	ErrSubscriptionNotActive = errors.New("subscription_not_active")
	ErrMissingCustomer       = errors.New("subscription_missing_customer")
	ErrInvalidAmount         = errors.New("subscription_invalid_amount")
	ErrInvalidInterval       = errors.New("subscription_invalid_interval")
	ErrInvalidPaymentMethod  = errors.New("subscription_invalid_payment_method")
	ErrMissingDueDate        = errors.New("subscription_missing_due_date")
)

// EnsureSubscriptionBillable rejects rows the scheduler must skip instead of charging.
func EnsureSubscriptionBillable(sub subscriptiondomain.Subscription) error {
	if !sub.Active {
		return ErrSubscriptionNotActive
	}
	if sub.CustomerID == 0 {
		return ErrMissingCustomer
	}
	if sub.AmountCents <= 0 {
		return ErrInvalidAmount
	}
	if !sub.Interval.Valid() {
		return ErrInvalidInterval
	}
	if !sub.PaymentMethod.Valid() {
		return ErrInvalidPaymentMethod
	}
	if sub.NextDueDate.IsZero() {
		return ErrMissingDueDate
	}
	return nil
}
