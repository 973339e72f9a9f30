package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurra/pkg/billing"
	"github.com/smallbiznis/recurra/pkg/calendar"
)

// Subscription is a recurring charge agreement. The scheduler only ever
// moves NextDueDate forward.
type Subscription struct {
	ID                 snowflake.ID          `json:"id"`
	TenantID           snowflake.ID          `json:"tenant_id"`
	CustomerID         snowflake.ID          `json:"customer_id"`
	Description        string                `json:"description,omitempty"`
	AmountCents        int64                 `json:"amount_cents"`
	Interval           calendar.Interval     `gorm:"column:billing_interval" json:"interval"`
	PaymentMethod      billing.PaymentMethod `json:"payment_method"`
	NextDueDate        calendar.Date         `json:"next_due_date"`
	FineCents          int64                 `json:"fine_cents"`
	InterestBps        int                   `json:"interest_bps"`
	DiscountCents      int64                 `json:"discount_cents"`
	DiscountDaysBefore int                   `json:"discount_days_before"`
	Active             bool                  `json:"active"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

func (s Subscription) Fees() billing.FeeTerms {
	return billing.FeeTerms{
		FineCents:          s.FineCents,
		InterestBps:        s.InterestBps,
		DiscountCents:      s.DiscountCents,
		DiscountDaysBefore: s.DiscountDaysBefore,
	}
}

func (s *Subscription) SetFees(f billing.FeeTerms) {
	f = f.Normalize()
	s.FineCents = f.FineCents
	s.InterestBps = f.InterestBps
	s.DiscountCents = f.DiscountCents
	s.DiscountDaysBefore = f.DiscountDaysBefore
}
