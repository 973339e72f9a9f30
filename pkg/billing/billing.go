// Package billing holds vocabulary shared by subscriptions, charges and gateways.
package billing

import (
	"errors"
	"strings"

	"github.com/smallbiznis/recurra/pkg/money"
)

type PaymentMethod string

const (
	PaymentMethodPix    PaymentMethod = "pix"
	PaymentMethodBoleto PaymentMethod = "boleto"
	PaymentMethodCard   PaymentMethod = "card"
)

var ErrInvalidPaymentMethod = errors.New("invalid_payment_method")

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	method := PaymentMethod(raw).Normalize()
	if !method.Valid() {
		return "", ErrInvalidPaymentMethod
	}
	return method, nil
}

func (m PaymentMethod) Normalize() PaymentMethod {
	return PaymentMethod(strings.ToLower(strings.TrimSpace(string(m))))
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodPix, PaymentMethodBoleto, PaymentMethodCard:
		return true
	default:
		return false
	}
}

// FeeTerms are the late-payment and early-payment terms forwarded to the gateway.
type FeeTerms struct {
	FineCents          int64 `json:"fine_cents"`
	InterestBps        int   `json:"interest_bps"`
	DiscountCents      int64 `json:"discount_cents"`
	DiscountDaysBefore int   `json:"discount_days_before"`
}

// Normalize clamps every term at zero.
func (f FeeTerms) Normalize() FeeTerms {
	f.FineCents = money.NonNegative(f.FineCents)
	f.DiscountCents = money.NonNegative(f.DiscountCents)
	if f.InterestBps < 0 {
		f.InterestBps = 0
	}
	if f.DiscountDaysBefore < 0 {
		f.DiscountDaysBefore = 0
	}
	return f
}

func (f FeeTerms) IsZero() bool {
	return f == FeeTerms{}
}
