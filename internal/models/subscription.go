package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/diewo77/go-honoraires/internal/fees"
)

// Subscription is a recurring billing arrangement copied from the billing
// platform. Its status is owned by the platform and never changed locally.
type Subscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ExternalID int64 `gorm:"uniqueIndex;not null" json:"external_id"`

	ClientID uint    `gorm:"index;not null" json:"client_id"`
	Client   *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Cabinet  string  `gorm:"size:50;index" json:"cabinet"`

	Label      string                  `gorm:"size:255" json:"label"`
	Status     fees.SubscriptionStatus `gorm:"size:20;index" json:"status"`
	Frequency  fees.Frequency          `gorm:"size:20" json:"frequency"`
	Interval   int                     `gorm:"not null;default:1" json:"interval"`
	BillingDay int                     `json:"billing_day"`

	// Totals
	TotalHT  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_ht"`
	TotalTTC decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_ttc"`
	TotalVAT decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_vat"`

	SyncedAt time.Time `json:"synced_at"`

	Lines []InvoiceLine `gorm:"foreignKey:SubscriptionID;constraint:OnDelete:CASCADE" json:"lines,omitempty"`
}

// Active returns true for subscriptions still billing or about to.
func (s *Subscription) Active() bool {
	return s.Status.Active()
}

// LinesTotalHT sums the HT amount of the loaded lines.
func (s *Subscription) LinesTotalHT() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.Lines {
		total = total.Add(l.AmountHT)
	}
	return total.Round(2)
}

// InvoiceLine is one line of a subscription. Lines are replaced as a whole
// on every resync, so they carry no soft delete.
type InvoiceLine struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	SubscriptionID uint          `gorm:"index;not null" json:"subscription_id"`
	Subscription   *Subscription `gorm:"foreignKey:SubscriptionID" json:"-"`
	ExternalID     int64         `gorm:"index" json:"external_id,omitempty"`

	Label       string `gorm:"size:500;not null" json:"label"`
	Family      string `gorm:"size:100" json:"family,omitempty"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	Quantity  decimal.Decimal `gorm:"type:decimal(12,3);not null;default:1" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"unit_price"`
	AmountHT  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount_ht"`
	AmountTTC decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount_ttc"`

	// Position for ordering
	Position int `gorm:"default:0" json:"position"`
}

// AmountVAT is the tax part of the line.
func (l *InvoiceLine) AmountVAT() decimal.Decimal {
	return l.AmountTTC.Sub(l.AmountHT).Round(2)
}
