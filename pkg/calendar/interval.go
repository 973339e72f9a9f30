package calendar

import (
	"errors"
	"strings"
)

// Interval is a subscription recurrence period.
type Interval string

const (
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
	IntervalYearly  Interval = "yearly"
)

var ErrInvalidInterval = errors.New("invalid_interval")

func ParseInterval(raw string) (Interval, error) {
	interval := Interval(strings.ToLower(strings.TrimSpace(raw)))
	if !interval.Valid() {
		return "", ErrInvalidInterval
	}
	return interval, nil
}

func (i Interval) Valid() bool {
	switch i {
	case IntervalWeekly, IntervalMonthly, IntervalYearly:
		return true
	default:
		return false
	}
}

// Next returns the due date one period after d.
func (i Interval) Next(d Date) (Date, error) {
	if d.IsZero() {
		return Date{}, ErrInvalidDate
	}
	switch i {
	case IntervalWeekly:
		return d.AddDays(7), nil
	case IntervalMonthly:
		return d.AddMonths(1), nil
	case IntervalYearly:
		return d.AddYears(1), nil
	default:
		return Date{}, ErrInvalidInterval
	}
}
