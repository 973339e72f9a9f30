package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Customer struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID          snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	Name              string       `gorm:"not null" json:"name"`
	Document          string       `json:"document"`
	Email             string       `json:"email,omitempty"`
	Phone             string       `json:"phone,omitempty"`
	AddressStreet     string       `json:"address_street,omitempty"`
	AddressNumber     string       `json:"address_number,omitempty"`
	AddressCity       string       `json:"address_city,omitempty"`
	AddressState      string       `json:"address_state,omitempty"`
	AddressPostalCode string       `json:"address_postal_code,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}
