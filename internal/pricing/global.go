package pricing

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/diewo77/go-honoraires/internal/fees"
)

// MonthlyUsage is a client's average monthly payroll production.
type MonthlyUsage struct {
	Bulletins decimal.Decimal `json:"bulletins"`
	Entries   decimal.Decimal `json:"entries"`
	Exits     decimal.Decimal `json:"exits"`
}

// RealQuantity derives the produced volume matching a variable line over its
// billing period. ok is false for lines the production data says nothing
// about.
func RealQuantity(line fees.ClassifiedLine, u MonthlyUsage) (decimal.Decimal, bool) {
	months := MonthsPerPeriod(line.Frequency, line.Interval)
	switch line.Axe {
	case fees.SocialBulletin:
		return u.Bulletins.Mul(months).Round(2), true
	case fees.AccessoiresSocial:
		switch {
		case fees.IsExitLabel(line.Label):
			return u.Exits.Mul(months).Round(2), true
		case fees.IsEntryLabel(line.Label):
			return u.Entries.Mul(months).Round(2), true
		}
		for _, k := range fees.AccessoryKinds(line.Label) {
			if k == fees.AccessoryMovement {
				return u.Entries.Add(u.Exits).Mul(months).Round(2), true
			}
		}
	}
	return decimal.Zero, false
}

// Totals are old/new/delta sums, annualized.
type Totals struct {
	Old      decimal.Decimal `json:"old"`
	New      decimal.Decimal `json:"new"`
	Delta    decimal.Decimal `json:"delta"`
	DeltaPct decimal.Decimal `json:"delta_pct"`
}

func (t Totals) add(oldAmount, newAmount decimal.Decimal) Totals {
	return Totals{Old: t.Old.Add(oldAmount), New: t.New.Add(newAmount)}
}

func (t Totals) plus(o Totals) Totals {
	return t.add(o.Old, o.New)
}

func (t Totals) finish() Totals {
	old := t.Old.Round(2)
	nw := t.New.Round(2)
	delta := nw.Sub(old)
	return Totals{Old: old, New: nw, Delta: delta, DeltaPct: pct(delta, old)}
}

// ClientResult aggregates the line results of one client.
type ClientResult struct {
	ClientID   uint                `json:"client_id"`
	ClientName string              `json:"client_name"`
	Cabinet    string              `json:"cabinet"`
	SocialMode fees.SocialMode     `json:"social_mode"`
	Excluded   bool                `json:"excluded"`
	ByAxis     map[fees.Axe]Totals `json:"by_axis"`
	Total      Totals              `json:"total"`
	Lines      []LineResult        `json:"lines"`
}

// ComputeGlobal simulates params over every client. Excluded clients are
// computed with zero parameters. Per-axe and overall totals use the real
// volume figures when usage is known, each multiplied by the line's
// annualization coefficient. Results are sorted by client name.
func ComputeGlobal(lines []fees.ClassifiedLine, params Parameters, excluded map[uint]bool, usage map[uint]MonthlyUsage) []ClientResult {
	var order []uint
	byClient := make(map[uint][]fees.ClassifiedLine)
	for _, l := range lines {
		if _, seen := byClient[l.ClientID]; !seen {
			order = append(order, l.ClientID)
		}
		byClient[l.ClientID] = append(byClient[l.ClientID], l)
	}

	results := make([]ClientResult, 0, len(order))
	for _, id := range order {
		p := params
		if excluded[id] {
			p = ZeroParameters()
		}
		u, hasUsage := usage[id]
		results = append(results, computeClient(byClient[id], p, excluded[id], u, hasUsage))
	}
	sort.SliceStable(results, func(i, j int) bool {
		a, b := strings.ToLower(results[i].ClientName), strings.ToLower(results[j].ClientName)
		if a != b {
			return a < b
		}
		return results[i].ClientID < results[j].ClientID
	})
	return results
}

func computeClient(lines []fees.ClassifiedLine, params Parameters, excluded bool, u MonthlyUsage, hasUsage bool) ClientResult {
	first := lines[0]
	out := ClientResult{
		ClientID:   first.ClientID,
		ClientName: first.ClientName,
		Cabinet:    first.Cabinet,
		SocialMode: first.SocialMode,
		Excluded:   excluded,
		ByAxis:     make(map[fees.Axe]Totals),
		Lines:      make([]LineResult, 0, len(lines)),
	}

	optsFor := func(l fees.ClassifiedLine) LineOptions {
		var opts LineOptions
		if hasUsage {
			if rq, ok := RealQuantity(l, u); ok {
				opts.RealQuantity = &rq
			}
		}
		return opts
	}

	// The reference bulletin is the one with the largest billed quantity.
	var ref *decimal.Decimal
	var refQty decimal.Decimal
	for _, l := range lines {
		if l.Axe != fees.SocialBulletin {
			continue
		}
		r := ComputeLine(l, params, optsFor(l))
		if ref == nil || l.BilledQuantity().GreaterThan(refQty) {
			d := r.UnitDelta()
			ref, refQty = &d, l.BilledQuantity()
		}
	}

	var total Totals
	for _, l := range lines {
		opts := optsFor(l)
		if l.Axe == fees.AccessoiresSocial {
			opts.BulletinUnitDelta = ref
		}
		r := ComputeLine(l, params, opts)
		out.Lines = append(out.Lines, r)

		oldAmount, newAmount := r.Reported()
		oldAmount, newAmount = oldAmount.Mul(r.Coefficient), newAmount.Mul(r.Coefficient)
		total = total.add(oldAmount, newAmount)
		if l.Axe != fees.Unclassified {
			out.ByAxis[l.Axe] = out.ByAxis[l.Axe].add(oldAmount, newAmount)
		}
	}
	for axe, t := range out.ByAxis {
		out.ByAxis[axe] = t.finish()
	}
	out.Total = total.finish()
	return out
}
