package billing

import "github.com/shopspring/decimal"

// Customer is a customer record of the billing platform.
type Customer struct {
	ID                int64    `json:"id"`
	ExternalReference string   `json:"external_reference"`
	Name              string   `json:"name"`
	RegNo             string   `json:"reg_no"`
	VATNumber         string   `json:"vat_number"`
	Emails            []string `json:"emails"`
}

// RecurringRule describes how often a subscription bills.
type RecurringRule struct {
	RuleType   string `json:"rule_type"` // monthly, yearly
	Interval   int    `json:"interval"`
	DayOfMonth int    `json:"day_of_month"`
}

type CustomerRef struct {
	ID int64 `json:"id"`
}

// Subscription is a recurring billing subscription.
type Subscription struct {
	ID            int64           `json:"id"`
	Label         string          `json:"label"`
	Status        string          `json:"status"`
	Customer      CustomerRef     `json:"customer"`
	RecurringRule RecurringRule   `json:"recurring_rule"`
	AmountHT      decimal.Decimal `json:"currency_amount_before_tax"`
	AmountTTC     decimal.Decimal `json:"currency_amount"`
	Tax           decimal.Decimal `json:"currency_tax"`
}

// Line is an invoice line template of a subscription.
type Line struct {
	ID          int64           `json:"id"`
	Label       string          `json:"label"`
	Description string          `json:"description"`
	Family      string          `json:"family"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"raw_currency_unit_price"`
	AmountHT    decimal.Decimal `json:"currency_amount_before_tax"`
	AmountTTC   decimal.Decimal `json:"currency_amount"`
}

// page is the cursor-paginated envelope every list endpoint returns.
type page[T any] struct {
	Items      []T    `json:"items"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}
