package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurra/internal/charge/domain"
	"github.com/smallbiznis/recurra/pkg/calendar"
	"github.com/smallbiznis/recurra/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const chargeColumns = `id, tenant_id, customer_id, subscription_id, amount_cents, due_date, payment_method,
	status, description, provider, provider_charge_id, invoice_url, idempotency_key,
	fine_cents, interest_bps, discount_cents, discount_days_before,
	paid_at, canceled_at, created_at, updated_at`

const insertChargeSQL = ` INTO charges (` + chargeColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, charge *domain.Charge) (bool, error) {
	var stmt string
	switch db.Dialector.Name() {
	case "mysql":
		stmt = "INSERT IGNORE" + insertChargeSQL
	default:
		stmt = "INSERT" + insertChargeSQL + " ON CONFLICT (tenant_id, idempotency_key) DO NOTHING"
	}

	res := db.WithContext(ctx).Exec(stmt,
		charge.ID,
		charge.TenantID,
		charge.CustomerID,
		charge.SubscriptionID,
		charge.AmountCents,
		charge.DueDate,
		charge.PaymentMethod,
		charge.Status,
		charge.Description,
		charge.Provider,
		charge.ProviderChargeID,
		charge.InvoiceURL,
		charge.IdempotencyKey,
		charge.FineCents,
		charge.InterestBps,
		charge.DiscountCents,
		charge.DiscountDaysBefore,
		charge.PaidAt,
		charge.CanceledAt,
		charge.CreatedAt,
		charge.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (id, tenant_id, charge_id, provider, provider_payment_id, status, source,
			raw_payload, confirmed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.TenantID,
		payment.ChargeID,
		payment.Provider,
		payment.ProviderPaymentID,
		payment.Status,
		payment.Source,
		payment.RawPayload,
		payment.ConfirmedAt,
		payment.CreatedAt,
		payment.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Charge, error) {
	return r.findOne(ctx, db, `tenant_id = ? AND id = ?`, tenantID, id)
}

func (r *repo) FindByIdempotencyKey(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, key string) (*domain.Charge, error) {
	return r.findOne(ctx, db, `tenant_id = ? AND idempotency_key = ?`, tenantID, key)
}

func (r *repo) FindByProviderRef(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, provider, providerChargeID string) (*domain.Charge, error) {
	return r.findOne(ctx, db, `tenant_id = ? AND provider = ? AND provider_charge_id = ?`, tenantID, provider, providerChargeID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, args ...any) (*domain.Charge, error) {
	var charge domain.Charge
	err := db.WithContext(ctx).Raw(
		`SELECT `+chargeColumns+` FROM charges WHERE `+where+` ORDER BY created_at ASC LIMIT 1`,
		args...,
	).Scan(&charge).Error
	if err != nil {
		return nil, err
	}
	if charge.ID == 0 {
		return nil, nil
	}
	return &charge, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, filter domain.ListChargeFilter, page pagination.Pagination) ([]*domain.Charge, error) {
	stmt := db.WithContext(ctx).
		Table("charges").
		Select(chargeColumns).
		Where("tenant_id = ?", tenantID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.SubscriptionID != 0 {
		stmt = stmt.Where("subscription_id = ?", filter.SubscriptionID)
	}
	if filter.CustomerID != 0 {
		stmt = stmt.Where("customer_id = ?", filter.CustomerID)
	}
	if !filter.DueFrom.IsZero() {
		stmt = stmt.Where("due_date >= ?", filter.DueFrom)
	}
	if !filter.DueTo.IsZero() {
		stmt = stmt.Where("due_date <= ?", filter.DueTo)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		stmt = stmt.Where(
			`customer_id IN (SELECT id FROM customers WHERE tenant_id = ? AND (LOWER(name) LIKE ? OR document LIKE ?))`,
			tenantID, like, like,
		)
	}

	var charges []*domain.Charge
	err := stmt.
		Order("due_date desc, id desc").
		Limit(page.Limit()).
		Offset(page.Offset()).
		Scan(&charges).Error
	if err != nil {
		return nil, err
	}
	return charges, nil
}

func (r *repo) ListPayments(ctx context.Context, db *gorm.DB, tenantID, chargeID snowflake.ID) ([]*domain.Payment, error) {
	var payments []*domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, charge_id, provider, provider_payment_id, status, source,
			raw_payload, confirmed_at, created_at, updated_at
		 FROM payments WHERE tenant_id = ? AND charge_id = ?
		 ORDER BY created_at ASC, id ASC`,
		tenantID,
		chargeID,
	).Scan(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE charges SET status = ?, paid_at = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ? AND status IN (?, ?)`,
		domain.StatusPaid, at, at,
		tenantID, id, domain.StatusPending, domain.StatusOverdue,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) MarkCanceled(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE charges SET status = ?, canceled_at = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ? AND status IN (?, ?)`,
		domain.StatusCanceled, at, at,
		tenantID, id, domain.StatusPending, domain.StatusOverdue,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) MarkOverdue(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, asOf calendar.Date, at time.Time) (int64, error) {
	query := `UPDATE charges SET status = ?, updated_at = ? WHERE status = ? AND due_date < ?`
	args := []any{domain.StatusOverdue, at, domain.StatusPending, asOf}
	if tenantID != 0 {
		query += ` AND tenant_id = ?`
		args = append(args, tenantID)
	}
	res := db.WithContext(ctx).Exec(query, args...)
	return res.RowsAffected, res.Error
}

func (r *repo) ConfirmCreatedPayment(ctx context.Context, db *gorm.DB, chargeID snowflake.ID, source string, raw datatypes.JSON, at time.Time) (int64, error) {
	var paymentID snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM payments WHERE charge_id = ? AND status = ?
		 ORDER BY created_at ASC, id ASC LIMIT 1`,
		chargeID, domain.PaymentStatusCreated,
	).Scan(&paymentID).Error
	if err != nil {
		return 0, err
	}
	if paymentID == 0 {
		return 0, nil
	}

	query := `UPDATE payments SET status = ?, source = ?, confirmed_at = ?, updated_at = ?`
	args := []any{domain.PaymentStatusConfirmed, source, at, at}
	if len(raw) > 0 {
		query += `, raw_payload = ?`
		args = append(args, raw)
	}
	query += ` WHERE id = ? AND status = ?`
	args = append(args, paymentID, domain.PaymentStatusCreated)

	res := db.WithContext(ctx).Exec(query, args...)
	return res.RowsAffected, res.Error
}

func (r *repo) HasConfirmedPayment(ctx context.Context, db *gorm.DB, chargeID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM payments WHERE charge_id = ? AND status = ?`,
		chargeID, domain.PaymentStatusConfirmed,
	).Scan(&count).Error
	return count > 0, err
}
