package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurra/pkg/calendar"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Subscription, error)
	// Update writes the mutable fields when next_due_date still equals expectedDue.
	Update(ctx context.Context, db *gorm.DB, sub *Subscription, expectedDue calendar.Date) (int64, error)
	// ListDue returns active subscriptions of every tenant due on or before asOf, oldest first.
	ListDue(ctx context.Context, db *gorm.DB, asOf calendar.Date, limit int) ([]*Subscription, error)
	AdvanceNextDueDate(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, from, to calendar.Date, at time.Time) (int64, error)
}
