package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurra/pkg/errs"
)

// Service is a read-only view; customers are managed elsewhere.
type Service interface {
	GetByID(ctx context.Context, tenantID, id snowflake.ID) (Customer, error)
}

var (
	ErrInvalidID = errs.New(errs.KindValidation, "invalid_customer_id")
	ErrNotFound  = errs.New(errs.KindNotFound, "customer_not_found")
)
