package fees

import "github.com/shopspring/decimal"

// Line is an invoice line flattened with the subscription and client it
// belongs to. It is an immutable snapshot of the last sync.
type Line struct {
	ID          uint
	Label       string
	Family      Family
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	AmountHT    decimal.Decimal
	AmountTTC   decimal.Decimal

	SubscriptionID     uint
	SubscriptionLabel  string
	SubscriptionStatus SubscriptionStatus
	Frequency          Frequency
	Interval           int

	ClientID   uint
	ClientName string
	Cabinet    string
}

// BilledQuantity is the quantity used for amount computations; a zero
// quantity bills as one unit.
func (l Line) BilledQuantity() decimal.Decimal {
	if l.Quantity.IsPositive() {
		return l.Quantity
	}
	return decimal.NewFromInt(1)
}

// EffectiveUnitPrice returns the unit price, back-derived from the HT amount
// when the platform did not provide one.
func (l Line) EffectiveUnitPrice() decimal.Decimal {
	if !l.UnitPrice.IsZero() || l.AmountHT.IsZero() {
		return l.UnitPrice
	}
	return l.AmountHT.Div(l.BilledQuantity()).Round(2)
}

// ClassifiedLine is a Line with its resolved axe and the social mode detected
// for its client at classification time.
type ClassifiedLine struct {
	Line
	Axe        Axe
	SocialMode SocialMode
}

// Classified reports whether a rule matched the line.
func (c ClassifiedLine) Classified() bool {
	return c.Axe != Unclassified
}
