// Package diagnostics scans classified billing lines for structural
// inconsistencies. The report is advisory: it never blocks pricing or
// restructuring.
package diagnostics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/diewo77/go-honoraires/internal/fees"
)

// Severity ranks how urgently an anomaly needs fixing.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Type identifies the kind of inconsistency detected.
type Type string

const (
	TypeSocialConflict        Type = "social_conflict"
	TypeDuplicateUniqueAxis   Type = "duplicate_unique_axis"
	TypeDuplicateLabel        Type = "duplicate_label"
	TypeMultipleSubscriptions Type = "multiple_subscriptions"
	TypeNonStandardLabel      Type = "non_standard_label"
	TypeUnclassifiedLine      Type = "unclassified_line"
	TypeSuspiciousPrice       Type = "suspicious_price"
	TypeAccessoryReview       Type = "accessory_review"
)

// Evidence points at a line supporting an anomaly.
type Evidence struct {
	LineID    uint            `json:"line_id"`
	Label     string          `json:"label"`
	Axe       fees.Axe        `json:"axe"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Anomaly is one finding on a client, with the lines backing it.
type Anomaly struct {
	Type           Type       `json:"type"`
	Severity       Severity   `json:"severity"`
	ClientID       uint       `json:"client_id"`
	ClientName     string     `json:"client_name"`
	SubscriptionID uint       `json:"subscription_id,omitempty"`
	Description    string     `json:"description"`
	Evidence       []Evidence `json:"evidence"`
}

// Report lists the anomalies found and their count per severity.
type Report struct {
	Anomalies []Anomaly        `json:"anomalies"`
	Counts    map[Severity]int `json:"counts"`
}

// Options tunes the price heuristics.
type Options struct {
	BulletinThreshold decimal.Decimal
	// MinBulletinPrice is the unit price under which a bulletin line
	// probably has quantity and amount swapped.
	MinBulletinPrice decimal.Decimal
	KnownKeywords    []string
}

// DefaultKnownKeywords are the label fragments of the standard fee catalogue.
var DefaultKnownKeywords = []string{
	"bilan", "liasse", "p&l", "gestion", "comptab", "surveillance", "tva",
	"bulletin", "forfait", "social", "paie", "salaire", "coffre",
	"publipostage", "entree", "sortie", "extra", "modification",
	"juridique", "approbation", "assemblee", "secretariat", "support",
	"logiciel", "licence", "abonnement",
}

// DefaultOptions uses the standard bulletin threshold, a one euro floor
// for bulletin prices and DefaultKnownKeywords.
func DefaultOptions() Options {
	return Options{
		BulletinThreshold: fees.DefaultBulletinThreshold,
		MinBulletinPrice:  decimal.NewFromInt(1),
		KnownKeywords:     DefaultKnownKeywords,
	}
}

func evidence(l fees.ClassifiedLine) Evidence {
	return Evidence{LineID: l.ID, Label: l.Label, Axe: l.Axe, Quantity: l.Quantity, UnitPrice: l.EffectiveUnitPrice()}
}

// Audit scans lines grouped by client and by active subscription.
func Audit(lines []fees.ClassifiedLine, opts Options) Report {
	if !opts.BulletinThreshold.IsPositive() {
		opts.BulletinThreshold = fees.DefaultBulletinThreshold
	}
	if opts.KnownKeywords == nil {
		opts.KnownKeywords = DefaultKnownKeywords
	}

	byClient := make(map[uint][]fees.ClassifiedLine)
	for _, l := range lines {
		byClient[l.ClientID] = append(byClient[l.ClientID], l)
	}
	clientIDs := make([]uint, 0, len(byClient))
	for id := range byClient {
		clientIDs = append(clientIDs, id)
	}
	sort.Slice(clientIDs, func(i, j int) bool { return clientIDs[i] < clientIDs[j] })

	var out []Anomaly
	for _, id := range clientIDs {
		out = append(out, auditClient(byClient[id], opts)...)
	}

	counts := map[Severity]int{SeverityError: 0, SeverityWarning: 0, SeverityInfo: 0}
	for _, a := range out {
		counts[a.Severity]++
	}
	if out == nil {
		out = []Anomaly{}
	}
	return Report{Anomalies: out, Counts: counts}
}

func auditClient(lines []fees.ClassifiedLine, opts Options) []Anomaly {
	clientID, clientName := lines[0].ClientID, lines[0].ClientName
	newAnomaly := func(t Type, sev Severity, subID uint, desc string, ev ...fees.ClassifiedLine) Anomaly {
		a := Anomaly{Type: t, Severity: sev, ClientID: clientID, ClientName: clientName, SubscriptionID: subID, Description: desc}
		for _, l := range ev {
			a.Evidence = append(a.Evidence, evidence(l))
		}
		return a
	}

	var out []Anomaly

	inProgress := map[uint]fees.ClassifiedLine{}
	bySub := map[uint][]fees.ClassifiedLine{}
	var subIDs []uint
	for _, l := range lines {
		if l.SubscriptionStatus == fees.StatusInProgress {
			if _, seen := inProgress[l.SubscriptionID]; !seen {
				inProgress[l.SubscriptionID] = l
			}
		}
		if !l.SubscriptionStatus.Active() {
			continue
		}
		if _, seen := bySub[l.SubscriptionID]; !seen {
			subIDs = append(subIDs, l.SubscriptionID)
		}
		bySub[l.SubscriptionID] = append(bySub[l.SubscriptionID], l)
	}
	sort.Slice(subIDs, func(i, j int) bool { return subIDs[i] < subIDs[j] })

	if len(inProgress) > 1 {
		ids := make([]string, 0, len(inProgress))
		for id := range inProgress {
			ids = append(ids, fmt.Sprint(id))
		}
		sort.Strings(ids)
		out = append(out, newAnomaly(TypeMultipleSubscriptions, SeverityInfo, 0,
			fmt.Sprintf("%d abonnements en cours (%s)", len(inProgress), strings.Join(ids, ", "))))
	}

	for _, subID := range subIDs {
		sub := bySub[subID]
		out = append(out, auditSubscription(sub, subID, opts, newAnomaly)...)
	}
	return out
}

type anomalyFunc func(t Type, sev Severity, subID uint, desc string, ev ...fees.ClassifiedLine) Anomaly

func auditSubscription(sub []fees.ClassifiedLine, subID uint, opts Options, newAnomaly anomalyFunc) []Anomaly {
	var out []Anomaly

	byAxe := map[fees.Axe][]fees.ClassifiedLine{}
	byLabel := map[string][]fees.ClassifiedLine{}
	var labels []string
	for _, l := range sub {
		byAxe[l.Axe] = append(byAxe[l.Axe], l)
		key := fees.NormalizeLabel(l.Label)
		if _, seen := byLabel[key]; !seen {
			labels = append(labels, key)
		}
		byLabel[key] = append(byLabel[key], l)
	}

	if f, b := byAxe[fees.SocialForfait], byAxe[fees.SocialBulletin]; len(f) > 0 && len(b) > 0 {
		out = append(out, newAnomaly(TypeSocialConflict, SeverityError, subID,
			"abonnement facturant à la fois un forfait social et des bulletins",
			append(append([]fees.ClassifiedLine{}, f...), b...)...))
	}

	for _, axe := range fees.Axes() {
		ls := byAxe[axe]
		if axe.Unique() && len(ls) > 1 {
			out = append(out, newAnomaly(TypeDuplicateUniqueAxis, SeverityWarning, subID,
				fmt.Sprintf("%d lignes sur l'axe %s", len(ls), axe), ls...))
		}
	}

	for _, key := range labels {
		if ls := byLabel[key]; len(ls) > 1 {
			out = append(out, newAnomaly(TypeDuplicateLabel, SeverityWarning, subID,
				fmt.Sprintf("libellé %q présent %d fois", ls[0].Label, len(ls)), ls...))
		}
	}

	for _, l := range sub {
		if !knownLabel(l.Label, opts.KnownKeywords) {
			out = append(out, newAnomaly(TypeNonStandardLabel, SeverityInfo, subID,
				fmt.Sprintf("libellé hors catalogue : %q", l.Label), l))
		}
		if !l.Classified() {
			out = append(out, newAnomaly(TypeUnclassifiedLine, SeverityInfo, subID,
				fmt.Sprintf("ligne non classée : %q", l.Label), l))
		}
		if a, ok := suspiciousPrice(l, opts); ok {
			out = append(out, newAnomaly(a.Type, a.Severity, subID, a.Description, l))
		}
		if l.Axe == fees.AccessoiresSocial {
			if _, review := fees.AccessoryMultiplier(l.Label); review {
				out = append(out, newAnomaly(TypeAccessoryReview, SeverityInfo, subID,
					fmt.Sprintf("multiplicateur d'accessoire incertain pour %q", l.Label), l))
			}
		}
	}
	return out
}

func suspiciousPrice(l fees.ClassifiedLine, opts Options) (Anomaly, bool) {
	unit := l.EffectiveUnitPrice()
	switch l.Axe {
	case fees.SocialBulletin:
		if unit.GreaterThan(opts.BulletinThreshold) {
			return Anomaly{Type: TypeSuspiciousPrice, Severity: SeverityError,
				Description: fmt.Sprintf("prix unitaire bulletin de %s : probablement un forfait mal classé", unit.StringFixed(2))}, true
		}
		if unit.LessThan(opts.MinBulletinPrice) {
			return Anomaly{Type: TypeSuspiciousPrice, Severity: SeverityWarning,
				Description: fmt.Sprintf("prix unitaire bulletin de %s : quantité et montant probablement inversés", unit.StringFixed(2))}, true
		}
	case fees.SocialForfait:
		if unit.LessThan(opts.BulletinThreshold) {
			return Anomaly{Type: TypeSuspiciousPrice, Severity: SeverityWarning,
				Description: fmt.Sprintf("forfait social à %s : probablement un bulletin mal classé", unit.StringFixed(2))}, true
		}
	}
	return Anomaly{}, false
}

func knownLabel(label string, keywords []string) bool {
	l := fees.NormalizeLabel(label)
	for _, k := range keywords {
		if strings.Contains(l, k) {
			return true
		}
	}
	return false
}
