// Package testutil builds an in-memory SQLite ledger for package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// Schema mirrors the postgres migration. Dates are TEXT in YYYY-MM-DD form so
// lexical comparison matches calendar order.
var Schema = []string{
	`CREATE TABLE tenants (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		payment_provider TEXT NOT NULL DEFAULT 'mock',
		provider_config TEXT,
		webhook_secret TEXT NOT NULL DEFAULT '',
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE customers (
		id INTEGER PRIMARY KEY,
		tenant_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		document TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		address_street TEXT NOT NULL DEFAULT '',
		address_number TEXT NOT NULL DEFAULT '',
		address_city TEXT NOT NULL DEFAULT '',
		address_state TEXT NOT NULL DEFAULT '',
		address_postal_code TEXT NOT NULL DEFAULT '',
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE subscriptions (
		id INTEGER PRIMARY KEY,
		tenant_id INTEGER NOT NULL,
		customer_id INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		amount_cents INTEGER NOT NULL,
		billing_interval TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		next_due_date TEXT NOT NULL,
		fine_cents INTEGER NOT NULL DEFAULT 0,
		interest_bps INTEGER NOT NULL DEFAULT 0,
		discount_cents INTEGER NOT NULL DEFAULT 0,
		discount_days_before INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE charges (
		id INTEGER PRIMARY KEY,
		tenant_id INTEGER NOT NULL,
		customer_id INTEGER NOT NULL,
		subscription_id INTEGER,
		amount_cents INTEGER NOT NULL,
		due_date TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		status TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		provider TEXT NOT NULL,
		provider_charge_id TEXT NOT NULL DEFAULT '',
		invoice_url TEXT NOT NULL DEFAULT '',
		idempotency_key TEXT,
		fine_cents INTEGER NOT NULL DEFAULT 0,
		interest_bps INTEGER NOT NULL DEFAULT 0,
		discount_cents INTEGER NOT NULL DEFAULT 0,
		discount_days_before INTEGER NOT NULL DEFAULT 0,
		paid_at DATETIME,
		canceled_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_charges_tenant_idempotency_key ON charges (tenant_id, idempotency_key)`,
	`CREATE INDEX idx_charges_provider_ref ON charges (tenant_id, provider, provider_charge_id)`,
	`CREATE TABLE payments (
		id INTEGER PRIMARY KEY,
		tenant_id INTEGER NOT NULL,
		charge_id INTEGER NOT NULL,
		provider TEXT NOT NULL,
		provider_payment_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		raw_payload TEXT,
		confirmed_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_payments_confirmed_per_charge ON payments (charge_id) WHERE status = 'confirmed'`,
}

// NewDB opens an isolated in-memory database with the billing schema.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// A single connection keeps the shared-cache database alive and serializes writers.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range Schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return db
}

// NewNode returns a snowflake node for test ID generation.
func NewNode(t testing.TB) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

type TenantSeed struct {
	ID             snowflake.ID
	Name           string
	Provider       string
	ProviderConfig []byte
	WebhookSecret  string
}

func SeedTenant(t testing.TB, db *gorm.DB, seed TenantSeed) {
	t.Helper()
	if seed.Name == "" {
		seed.Name = "Acme"
	}
	if seed.Provider == "" {
		seed.Provider = "mock"
	}
	var providerConfig any
	if len(seed.ProviderConfig) > 0 {
		providerConfig = string(seed.ProviderConfig)
	}
	now := time.Now().UTC()
	err := db.Exec(
		`INSERT INTO tenants (id, name, payment_provider, provider_config, webhook_secret, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		seed.ID, seed.Name, seed.Provider, providerConfig, seed.WebhookSecret, now, now,
	).Error
	if err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
}

type CustomerSeed struct {
	ID       snowflake.ID
	TenantID snowflake.ID
	Name     string
	Document string
	Email    string
	Phone    string
}

func SeedCustomer(t testing.TB, db *gorm.DB, seed CustomerSeed) {
	t.Helper()
	if seed.Name == "" {
		seed.Name = "Maria Silva"
	}
	if seed.Document == "" {
		seed.Document = "12345678909"
	}
	now := time.Now().UTC()
	err := db.Exec(
		`INSERT INTO customers (id, tenant_id, name, document, email, phone, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		seed.ID, seed.TenantID, seed.Name, seed.Document, seed.Email, seed.Phone, now, now,
	).Error
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}
}

type SubscriptionSeed struct {
	ID          snowflake.ID
	TenantID    snowflake.ID
	CustomerID  snowflake.ID
	AmountCents int64
	Interval    string
	Method      string
	NextDueDate string
	Active      *bool
}

func SeedSubscription(t testing.TB, db *gorm.DB, seed SubscriptionSeed) {
	t.Helper()
	if seed.Interval == "" {
		seed.Interval = "monthly"
	}
	if seed.Method == "" {
		seed.Method = "boleto"
	}
	active := true
	if seed.Active != nil {
		active = *seed.Active
	}
	now := time.Now().UTC()
	err := db.Exec(
		`INSERT INTO subscriptions (id, tenant_id, customer_id, description, amount_cents, billing_interval,
			payment_method, next_due_date, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		seed.ID, seed.TenantID, seed.CustomerID, "Plano mensal", seed.AmountCents, seed.Interval,
		seed.Method, seed.NextDueDate, active, now, now,
	).Error
	if err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
}

// CountRows runs a COUNT(*) query with optional WHERE arguments.
func CountRows(t testing.TB, db *gorm.DB, query string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := db.Raw(query, args...).Scan(&n).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}

type ChargeSeed struct {
	ID               snowflake.ID
	TenantID         snowflake.ID
	CustomerID       snowflake.ID
	AmountCents      int64
	DueDate          string
	Status           string
	Provider         string
	ProviderChargeID string
}

// SeedCharge inserts a charge row directly, bypassing the gateway.
func SeedCharge(t testing.TB, db *gorm.DB, seed ChargeSeed) {
	t.Helper()
	if seed.AmountCents == 0 {
		seed.AmountCents = 5000
	}
	if seed.DueDate == "" {
		seed.DueDate = "2024-01-10"
	}
	if seed.Status == "" {
		seed.Status = "pending"
	}
	if seed.Provider == "" {
		seed.Provider = "mock"
	}
	now := time.Now().UTC()
	err := db.Exec(
		`INSERT INTO charges (id, tenant_id, customer_id, amount_cents, due_date, payment_method, status,
			provider, provider_charge_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		seed.ID, seed.TenantID, seed.CustomerID, seed.AmountCents, seed.DueDate, "boleto", seed.Status,
		seed.Provider, seed.ProviderChargeID, now, now,
	).Error
	if err != nil {
		t.Fatalf("seed charge: %v", err)
	}
}
