package services

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/diewo77/go-honoraires/internal/config"
	"github.com/diewo77/go-honoraires/internal/db"
	"github.com/diewo77/go-honoraires/internal/fees"
	"github.com/diewo77/go-honoraires/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
	}, nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	return conn
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s got %s", want, got)
}

func createClient(t *testing.T, conn *gorm.DB, c models.Client) models.Client {
	t.Helper()
	require.NoError(t, conn.Create(&c).Error)
	return c
}

type lineRow struct {
	label, family, qty, unit string
}

func createSubscription(t *testing.T, conn *gorm.DB, clientID uint, extID int64, status fees.SubscriptionStatus, lines ...lineRow) models.Subscription {
	t.Helper()
	sub := models.Subscription{
		ExternalID: extID,
		ClientID:   clientID,
		Label:      "Abonnement",
		Status:     status,
		Frequency:  fees.FrequencyMonthly,
		Interval:   1,
	}
	for i, l := range lines {
		q, u := d(l.qty), d(l.unit)
		sub.Lines = append(sub.Lines, models.InvoiceLine{
			Label: l.label, Family: l.family, Quantity: q, UnitPrice: u,
			AmountHT: q.Mul(u).Round(2), AmountTTC: q.Mul(u).Mul(d("1.2")).Round(2), Position: i,
		})
	}
	require.NoError(t, conn.Create(&sub).Error)
	return sub
}
