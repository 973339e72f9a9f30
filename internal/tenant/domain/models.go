package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Tenant is the persisted row. ProviderConfig holds the encrypted credential envelope.
type Tenant struct {
	ID              snowflake.ID   `gorm:"primaryKey" json:"id"`
	Name            string         `gorm:"not null" json:"name"`
	PaymentProvider string         `gorm:"column:payment_provider;not null" json:"payment_provider"`
	ProviderConfig  datatypes.JSON `gorm:"column:provider_config" json:"-"`
	WebhookSecret   string         `gorm:"column:webhook_secret" json:"-"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Account is the billing view of a tenant with credentials decrypted.
type Account struct {
	TenantID      snowflake.ID
	Name          string
	Provider      string
	Credentials   map[string]string
	WebhookSecret string
}
