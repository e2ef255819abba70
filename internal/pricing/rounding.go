// Package pricing simulates fee increases on classified billing lines and
// rolls the results up per client, axe and cabinet.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/diewo77/go-honoraires/internal/fees"
)

var (
	ten     = decimal.NewFromInt(10)
	hundred = decimal.NewFromInt(100)
)

// snap applies the 0-2 down / 3-7 five / 8-9 up law to the last digit of n.
func snap(n int64) int64 {
	neg := n < 0
	if neg {
		n = -n
	}
	unit := n % 10
	base := n - unit
	switch {
	case unit <= 2:
	case unit <= 7:
		base += 5
	default:
		base += 10
	}
	if neg {
		return -base
	}
	return base
}

// RoundHalfTen rounds a price of 10 or more to a multiple of 5 currency
// units using the 0/3/8 breakpoints on the units digit: 12 gives 10, 13 and
// 17 give 15, 18 gives 20. Prices under 10 are only rounded to cents.
func RoundHalfTen(v decimal.Decimal) decimal.Decimal {
	if v.LessThan(ten) {
		return v.Round(2)
	}
	return decimal.NewFromInt(snap(v.Round(0).IntPart()))
}

// RoundHalfCent rounds to the nearest five cents with the same breakpoints,
// working in integer cents: 15.862 gives 15.85, 15.821 gives 15.80 and
// 15.889 gives 15.90.
func RoundHalfCent(v decimal.Decimal) decimal.Decimal {
	cents := v.Mul(hundred).Round(0).IntPart()
	return decimal.New(snap(cents), -2)
}

// RoundBusiness applies the rounding law of axe to a unit price.
func RoundBusiness(axe fees.Axe, v decimal.Decimal) decimal.Decimal {
	switch axe {
	case fees.ComptaMensuelle, fees.Bilan, fees.Juridique, fees.Support:
		return RoundHalfTen(v)
	case fees.SocialBulletin, fees.AccessoiresSocial:
		return RoundHalfCent(v)
	}
	return v.Round(2)
}

// Coefficient converts a per-period amount into a yearly one: 12/interval
// for monthly billing, 1/interval for yearly billing.
func Coefficient(f fees.Frequency, interval int) decimal.Decimal {
	if interval < 1 {
		interval = 1
	}
	n := decimal.NewFromInt(int64(interval))
	if f == fees.FrequencyYearly {
		return decimal.NewFromInt(1).Div(n)
	}
	return decimal.NewFromInt(12).Div(n)
}

// MonthsPerPeriod is the number of months one billing period covers.
func MonthsPerPeriod(f fees.Frequency, interval int) decimal.Decimal {
	if interval < 1 {
		interval = 1
	}
	if f == fees.FrequencyYearly {
		return decimal.NewFromInt(int64(12 * interval))
	}
	return decimal.NewFromInt(int64(interval))
}

// pct returns delta/base in percent, or zero for a zero base.
func pct(delta, base decimal.Decimal) decimal.Decimal {
	if base.IsZero() {
		return decimal.Zero
	}
	return delta.Div(base).Mul(hundred).Round(2)
}
