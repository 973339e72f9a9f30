package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurra/internal/subscription/domain"
	"github.com/smallbiznis/recurra/pkg/calendar"
	"gorm.io/gorm"
)

const subscriptionColumns = `id, tenant_id, customer_id, description, amount_cents, billing_interval,
	payment_method, next_due_date, fine_cents, interest_bps, discount_cents, discount_days_before,
	active, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (`+subscriptionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID,
		sub.TenantID,
		sub.CustomerID,
		sub.Description,
		sub.AmountCents,
		sub.Interval,
		sub.PaymentMethod,
		sub.NextDueDate,
		sub.FineCents,
		sub.InterestBps,
		sub.DiscountCents,
		sub.DiscountDaysBefore,
		sub.Active,
		sub.CreatedAt,
		sub.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE tenant_id = ? AND id = ?`,
		tenantID,
		id,
	).Scan(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.ID == 0 {
		return nil, nil
	}
	return &sub, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, sub *domain.Subscription, expectedDue calendar.Date) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET description = ?, amount_cents = ?, billing_interval = ?, payment_method = ?, next_due_date = ?,
			fine_cents = ?, interest_bps = ?, discount_cents = ?, discount_days_before = ?,
			active = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ? AND next_due_date = ?`,
		sub.Description,
		sub.AmountCents,
		sub.Interval,
		sub.PaymentMethod,
		sub.NextDueDate,
		sub.FineCents,
		sub.InterestBps,
		sub.DiscountCents,
		sub.DiscountDaysBefore,
		sub.Active,
		sub.UpdatedAt,
		sub.TenantID,
		sub.ID,
		expectedDue,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) ListDue(ctx context.Context, db *gorm.DB, asOf calendar.Date, limit int) ([]*domain.Subscription, error) {
	var subs []*domain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE active = ? AND next_due_date <= ?
		 ORDER BY next_due_date ASC, id ASC
		 LIMIT ?`,
		true,
		asOf,
		limit,
	).Scan(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repo) AdvanceNextDueDate(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, from, to calendar.Date, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET next_due_date = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ? AND next_due_date = ?`,
		to,
		at,
		tenantID,
		id,
		from,
	)
	return res.RowsAffected, res.Error
}
