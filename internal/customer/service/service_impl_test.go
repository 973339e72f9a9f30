package service_test

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurra/internal/customer/domain"
	"github.com/smallbiznis/recurra/internal/customer/repository"
	"github.com/smallbiznis/recurra/internal/customer/service"
	"github.com/smallbiznis/recurra/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetByIDIsTenantScoped(t *testing.T) {
	db := testutil.NewDB(t)
	svc := service.New(service.Params{DB: db, Log: zap.NewNop(), Repo: repository.Provide()})

	testutil.SeedTenant(t, db, testutil.TenantSeed{ID: 1})
	testutil.SeedTenant(t, db, testutil.TenantSeed{ID: 2})
	testutil.SeedCustomer(t, db, testutil.CustomerSeed{ID: 100, TenantID: 1, Email: "maria@example.com"})

	customer, err := svc.GetByID(context.Background(), 1, 100)
	require.NoError(t, err)
	assert.Equal(t, "Maria Silva", customer.Name)
	assert.Equal(t, "maria@example.com", customer.Email)

	_, err = svc.GetByID(context.Background(), snowflake.ID(2), 100)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetByID(context.Background(), 1, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}
