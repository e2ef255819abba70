// Package restructure splits each active subscription into the lines that
// keep a fixed recurrence and the variable ones to be billed separately.
package restructure

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/diewo77/go-honoraires/internal/fees"
)

// Action is what happens to a subscription once variable lines move out.
type Action string

const (
	// ActionUnchanged: no variable line, only a price refresh.
	ActionUnchanged Action = "unchanged"
	// ActionModify: mixed subscription, variable lines are dropped.
	ActionModify Action = "modify"
	// ActionDelete: every line is variable, the subscription goes away.
	ActionDelete Action = "delete"
)

// Client identifies the owner of the planned subscriptions.
type Client struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	Cabinet string `json:"cabinet"`
}

// References are reference unit prices per axe, usually the tariffs saved
// from the last simulation.
type References map[fees.Axe]decimal.Decimal

// LinePlan is the planned price of one line.
type LinePlan struct {
	LineID        uint            `json:"line_id"`
	Label         string          `json:"label"`
	Axe           fees.Axe        `json:"axe"`
	Variable      bool            `json:"variable"`
	Quantity      decimal.Decimal `json:"quantity"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	FromReference bool            `json:"from_reference"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	PlannedAmount decimal.Decimal `json:"planned_amount"`
}

// SubscriptionPlan splits one subscription into fixed and variable lines.
type SubscriptionPlan struct {
	SubscriptionID uint                    `json:"subscription_id"`
	Label          string                  `json:"label"`
	Status         fees.SubscriptionStatus `json:"status"`
	Action         Action                  `json:"action"`
	Fixed          []LinePlan              `json:"fixed"`
	Variable       []LinePlan              `json:"variable"`
	CurrentTotal   decimal.Decimal         `json:"current_total"`
	FixedTotal     decimal.Decimal         `json:"fixed_total"`
	VariableTotal  decimal.Decimal         `json:"variable_total"`
}

// ClientPlan gathers the plans of a client's active subscriptions.
type ClientPlan struct {
	Client        Client             `json:"client"`
	Subscriptions []SubscriptionPlan `json:"subscriptions"`
	// CurrentTotal is what the active subscriptions bill today.
	CurrentTotal decimal.Decimal `json:"current_total"`
	// ProjectedFixedTotal is what the kept fixed lines will bill.
	ProjectedFixedTotal decimal.Decimal `json:"projected_fixed_total"`
	// CurrentVariableTotal is what moves to separate billing.
	CurrentVariableTotal decimal.Decimal `json:"current_variable_total"`
}

// Counts returns the number of subscriptions per action.
func (p ClientPlan) Counts() map[Action]int {
	out := map[Action]int{ActionUnchanged: 0, ActionModify: 0, ActionDelete: 0}
	for _, s := range p.Subscriptions {
		out[s.Action]++
	}
	return out
}

// Plan builds the restructuring plan of one client. Lines of inactive
// subscriptions are ignored. Subscriptions are ordered by id.
func Plan(client Client, lines []fees.ClassifiedLine, refs References) ClientPlan {
	var order []uint
	bySub := make(map[uint][]fees.ClassifiedLine)
	for _, l := range lines {
		if !l.SubscriptionStatus.Active() {
			continue
		}
		if _, seen := bySub[l.SubscriptionID]; !seen {
			order = append(order, l.SubscriptionID)
		}
		bySub[l.SubscriptionID] = append(bySub[l.SubscriptionID], l)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	out := ClientPlan{
		Client:               client,
		Subscriptions:        make([]SubscriptionPlan, 0, len(order)),
		CurrentTotal:         decimal.Zero,
		ProjectedFixedTotal:  decimal.Zero,
		CurrentVariableTotal: decimal.Zero,
	}
	for _, id := range order {
		sp := planSubscription(bySub[id], refs)
		out.Subscriptions = append(out.Subscriptions, sp)
		out.CurrentTotal = out.CurrentTotal.Add(sp.CurrentTotal)
		out.ProjectedFixedTotal = out.ProjectedFixedTotal.Add(sp.FixedTotal)
		out.CurrentVariableTotal = out.CurrentVariableTotal.Add(sp.VariableTotal)
	}
	return out
}

func planSubscription(lines []fees.ClassifiedLine, refs References) SubscriptionPlan {
	first := lines[0]
	sp := SubscriptionPlan{
		SubscriptionID: first.SubscriptionID,
		Label:          first.SubscriptionLabel,
		Status:         first.SubscriptionStatus,
		Fixed:          []LinePlan{},
		Variable:       []LinePlan{},
		CurrentTotal:   decimal.Zero,
		FixedTotal:     decimal.Zero,
		VariableTotal:  decimal.Zero,
	}
	for _, l := range lines {
		lp := planLine(l, refs)
		sp.CurrentTotal = sp.CurrentTotal.Add(lp.CurrentAmount)
		if lp.Variable {
			sp.Variable = append(sp.Variable, lp)
			sp.VariableTotal = sp.VariableTotal.Add(lp.CurrentAmount)
			continue
		}
		sp.Fixed = append(sp.Fixed, lp)
		sp.FixedTotal = sp.FixedTotal.Add(lp.PlannedAmount)
	}
	switch {
	case len(sp.Variable) == 0:
		sp.Action = ActionUnchanged
	case len(sp.Fixed) == 0:
		sp.Action = ActionDelete
	default:
		sp.Action = ActionModify
	}
	return sp
}

func planLine(l fees.ClassifiedLine, refs References) LinePlan {
	qty := l.BilledQuantity()
	current := l.EffectiveUnitPrice()
	currentAmount := l.AmountHT.Round(2)
	if currentAmount.IsZero() {
		currentAmount = current.Mul(qty).Round(2)
	}
	lp := LinePlan{
		LineID:        l.ID,
		Label:         l.Label,
		Axe:           l.Axe,
		Variable:      l.Axe.Variable(),
		Quantity:      qty,
		CurrentPrice:  current,
		UnitPrice:     current,
		CurrentAmount: currentAmount,
		PlannedAmount: currentAmount,
	}
	if ref, ok := refs[l.Axe]; ok && l.Axe != fees.Unclassified && ref.IsPositive() {
		lp.UnitPrice = ref
		lp.FromReference = true
		lp.PlannedAmount = ref.Mul(qty).Round(2)
	}
	return lp
}
