package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/diewo77/go-honoraires/internal/fees"
)

// TariffReference is the reference unit price of one axe for one client,
// saved from a simulation and reused by the restructuring planner.
type TariffReference struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ClientID uint     `gorm:"uniqueIndex:idx_tariff_client_axe;not null" json:"client_id"`
	Axe      fees.Axe `gorm:"size:40;uniqueIndex:idx_tariff_client_axe;not null" json:"axe"`

	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	// RunID is the simulation run that produced the price.
	RunID string `gorm:"size:36" json:"run_id,omitempty"`
}

// ProductionRecord holds the payroll volume a client produced in a month.
type ProductionRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ClientID uint   `gorm:"uniqueIndex:idx_production_client_period;not null" json:"client_id"`
	Period   string `gorm:"size:7;uniqueIndex:idx_production_client_period;not null" json:"period"`

	Bulletins int `gorm:"not null;default:0" json:"bulletins"`
	Entries   int `gorm:"not null;default:0" json:"entries"`
	Exits     int `gorm:"not null;default:0" json:"exits"`

	SourceFile string `gorm:"size:255" json:"source_file,omitempty"`
}

// Period formats a month as stored in ProductionRecord.Period (YYYY-MM).
func Period(t time.Time) string {
	return t.Format("2006-01")
}

// ParsePeriod validates a YYYY-MM period.
func ParsePeriod(s string) (string, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return "", fmt.Errorf("invalid period %q: expected YYYY-MM", s)
	}
	return Period(t), nil
}
