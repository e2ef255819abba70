package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/go-honoraires/internal/fees"
)

// Cabinet is one of the brands the firm bills under. Each cabinet has its
// own account on the billing platform.
type Cabinet struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Code string `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Name string `gorm:"size:255;not null" json:"name"`
}

// Client is a firm-owned client record. ExternalRef links it to a customer
// of the billing platform once the matcher found one.
type Client struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name    string `gorm:"size:255;not null" json:"name"`
	Cabinet string `gorm:"size:50;index" json:"cabinet"`

	// Tax information
	SIREN     string `gorm:"size:9;index" json:"siren,omitempty"`
	SIRET     string `gorm:"size:14" json:"siret,omitempty"`
	VATNumber string `gorm:"size:20" json:"vat_number,omitempty"`

	// Billing platform linkage
	ExternalRef string     `gorm:"size:100;index" json:"external_ref,omitempty"`
	ExternalID  *int64     `json:"external_id,omitempty"`
	LinkedAt    *time.Time `json:"linked_at,omitempty"`

	SocialBillingMode fees.SocialMode `gorm:"size:20" json:"social_billing_mode,omitempty"`
	// Excluded clients are simulated with zero increase.
	Excluded bool `gorm:"not null;default:false" json:"excluded"`

	Subscriptions []Subscription `gorm:"foreignKey:ClientID" json:"subscriptions,omitempty"`
}

// Linked returns true once the client is attached to a billing customer.
func (c *Client) Linked() bool {
	return c.ExternalRef != ""
}

// Link records the billing customer the client was matched to.
func (c *Client) Link(ref string, externalID int64, at time.Time) {
	c.ExternalRef = ref
	c.ExternalID = &externalID
	c.LinkedAt = &at
}
