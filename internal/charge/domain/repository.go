package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurra/pkg/calendar"
	"github.com/smallbiznis/recurra/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ListChargeFilter struct {
	Status         Status
	SubscriptionID snowflake.ID
	CustomerID     snowflake.ID
	DueFrom        calendar.Date
	DueTo          calendar.Date
	Search         string
}

type Repository interface {
	// InsertIfAbsent reports false when (tenant_id, idempotency_key) already exists.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, charge *Charge) (bool, error)
	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error

	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Charge, error)
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, key string) (*Charge, error)
	FindByProviderRef(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, provider, providerChargeID string) (*Charge, error)
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, filter ListChargeFilter, page pagination.Pagination) ([]*Charge, error)
	ListPayments(ctx context.Context, db *gorm.DB, tenantID, chargeID snowflake.ID) ([]*Payment, error)

	// Status updates are conditional on a non-terminal current status and
	// return the number of rows changed.
	MarkPaid(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, at time.Time) (int64, error)
	MarkCanceled(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, at time.Time) (int64, error)
	// MarkOverdue sweeps every tenant when tenantID is zero.
	MarkOverdue(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, asOf calendar.Date, at time.Time) (int64, error)

	// ConfirmCreatedPayment flips the oldest created payment of a charge to confirmed.
	ConfirmCreatedPayment(ctx context.Context, db *gorm.DB, chargeID snowflake.ID, source string, raw datatypes.JSON, at time.Time) (int64, error)
	HasConfirmedPayment(ctx context.Context, db *gorm.DB, chargeID snowflake.ID) (bool, error)
}
