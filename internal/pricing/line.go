package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/diewo77/go-honoraires/internal/fees"
)

// LineOptions carries the per-line inputs that do not come from the line
// itself.
type LineOptions struct {
	// RealQuantity is the produced volume (payslips, exits...) for the
	// line's billing period, when known.
	RealQuantity *decimal.Decimal
	// BulletinUnitDelta is the unit price change the client's bulletin
	// line received; accessory lines follow it.
	BulletinUnitDelta *decimal.Decimal
}

// LineResult is the simulated outcome for one line. Monetary values are
// rounded to cents.
type LineResult struct {
	Line fees.ClassifiedLine `json:"line"`

	Mode  Mode            `json:"mode,omitempty"`
	Value decimal.Decimal `json:"value"`

	OldUnitPrice decimal.Decimal `json:"old_unit_price"`
	NewUnitPrice decimal.Decimal `json:"new_unit_price"`
	OldAmount    decimal.Decimal `json:"old_amount"`
	NewAmount    decimal.Decimal `json:"new_amount"`
	Delta        decimal.Decimal `json:"delta"`
	DeltaPct     decimal.Decimal `json:"delta_pct"`
	Coefficient  decimal.Decimal `json:"coefficient"`

	Multiplier  int64 `json:"multiplier,omitempty"`
	NeedsReview bool  `json:"needs_review,omitempty"`

	HasReal       bool            `json:"has_real"`
	RealQuantity  decimal.Decimal `json:"real_quantity"`
	RealOldAmount decimal.Decimal `json:"real_old_amount"`
	RealNewAmount decimal.Decimal `json:"real_new_amount"`
	RealDelta     decimal.Decimal `json:"real_delta"`
}

// UnitDelta is the change applied to the unit price.
func (r LineResult) UnitDelta() decimal.Decimal {
	return r.NewUnitPrice.Sub(r.OldUnitPrice)
}

// Reported returns the old and new amounts used for aggregation: the real
// volume figures when available, the billed ones otherwise.
func (r LineResult) Reported() (oldAmount, newAmount decimal.Decimal) {
	if r.HasReal {
		return r.RealOldAmount, r.RealNewAmount
	}
	return r.OldAmount, r.NewAmount
}

// ComputeLine simulates params on a single classified line.
func ComputeLine(line fees.ClassifiedLine, params Parameters, opts LineOptions) LineResult {
	qty := line.BilledQuantity()
	oldUnit := line.EffectiveUnitPrice()
	oldAmount := line.AmountHT.Round(2)
	if oldAmount.IsZero() {
		oldAmount = oldUnit.Mul(qty).Round(2)
	}

	res := LineResult{
		Line:         line,
		OldUnitPrice: oldUnit,
		NewUnitPrice: oldUnit,
		OldAmount:    oldAmount,
		NewAmount:    oldAmount,
		Coefficient:  Coefficient(line.Frequency, line.Interval),
	}

	if line.Axe != fees.Unclassified {
		if mode, value, ok := params.Effective(line.Axe); ok {
			res.Mode, res.Value = mode, value
			switch line.Axe {
			case fees.AccessoiresSocial:
				res.Multiplier, res.NeedsReview = fees.AccessoryMultiplier(line.Label)
				res.NewUnitPrice = oldUnit.Add(accessoryUnitDelta(mode, value, oldUnit, res.Multiplier, opts.BulletinUnitDelta))
			case fees.SocialBulletin:
				res.NewUnitPrice = oldUnit.Add(bulletinUnitDelta(mode, value, oldUnit))
			default:
				newAmount := oldAmount.Add(amountDelta(mode, value, oldAmount))
				res.NewUnitPrice = newAmount.Div(qty)
			}
			// Rounding only applies to prices that actually moved, and a
			// price rounded back onto itself keeps the billed amount.
			if !res.NewUnitPrice.Equal(oldUnit) {
				res.NewUnitPrice = RoundBusiness(line.Axe, res.NewUnitPrice)
				if res.NewUnitPrice.Equal(oldUnit) {
					res.NewUnitPrice = oldUnit
				} else {
					res.NewAmount = res.NewUnitPrice.Mul(qty).Round(2)
				}
			}
		}
	}

	res.Delta = res.NewAmount.Sub(res.OldAmount).Round(2)
	res.DeltaPct = pct(res.Delta, res.OldAmount)

	if opts.RealQuantity != nil && line.Axe.Variable() {
		rq := *opts.RealQuantity
		res.HasReal = true
		res.RealQuantity = rq
		res.RealOldAmount = oldUnit.Mul(rq).Round(2)
		res.RealNewAmount = res.NewUnitPrice.Mul(rq).Round(2)
		res.RealDelta = res.RealNewAmount.Sub(res.RealOldAmount)
	}
	return res
}

func bulletinUnitDelta(mode Mode, value, unit decimal.Decimal) decimal.Decimal {
	if mode == ModeAmount {
		return value
	}
	return unit.Mul(value).Div(hundred)
}

// accessoryUnitDelta scales the bulletin unit delta by the accessory
// multiplier. Without a bulletin line to follow, a percentage is a rate on
// the accessory's own price and applies once.
func accessoryUnitDelta(mode Mode, value, unit decimal.Decimal, multiplier int64, ref *decimal.Decimal) decimal.Decimal {
	m := decimal.NewFromInt(multiplier)
	switch {
	case ref != nil:
		return ref.Mul(m)
	case mode == ModeAmount:
		return value.Mul(m)
	default:
		return unit.Mul(value).Div(hundred)
	}
}

func amountDelta(mode Mode, value, amount decimal.Decimal) decimal.Decimal {
	if mode == ModeAmount {
		return value
	}
	return amount.Mul(value).Div(hundred)
}
