package fees

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultBulletinThreshold is the unit price under which a payroll line is
// read as a per-payslip price rather than a flat fee.
var DefaultBulletinThreshold = decimal.NewFromInt(30)

// ErrClassificationUnresolved marks a line no rule could classify.
var ErrClassificationUnresolved = errors.New("classification_unresolved")

// Rule is one row of the classification decision table.
type Rule struct {
	Name  string
	Match func(Line) bool
	Axe   Axe
}

// Classifier evaluates its rules top to bottom and stops at the first match.
// Rule order is load-bearing: accessories must be caught before the generic
// payroll rules, bookkeeping before everything else.
type Classifier struct {
	BulletinThreshold decimal.Decimal
	rules             []Rule
}

var (
	reVault        = regexp.MustCompile(`\bcoffre`)
	reMailMerge    = regexp.MustCompile(`publipostage`)
	reEntry        = regexp.MustCompile(`\bentrees?\b`)
	reExit         = regexp.MustCompile(`\bsorties?\b`)
	reExtra        = regexp.MustCompile(`\bextras?\b`)
	reModification = regexp.MustCompile(`modif\w*\s+(?:d[eu]s?\s+)?bulletins?|bulletins?\s+modif`)
)

// NewClassifier builds the decision table for the given bulletin threshold.
// A zero threshold falls back to DefaultBulletinThreshold.
func NewClassifier(threshold decimal.Decimal) *Classifier {
	if !threshold.IsPositive() {
		threshold = DefaultBulletinThreshold
	}
	c := &Classifier{BulletinThreshold: threshold}
	social := func(l Line) bool { return l.Family == FamilySocial }
	c.rules = []Rule{
		{Name: "label_bilan", Axe: Bilan, Match: labelContains("bilan")},
		{Name: "label_pl", Axe: PL, Match: labelContains("p&l", "gestion")},
		{Name: "label_compta", Axe: ComptaMensuelle, Match: labelContains("comptab", "surveillance")},
		{Name: "label_accessory", Axe: AccessoiresSocial, Match: func(l Line) bool { return IsAccessoryLabel(l.Label) }},
		{Name: "social_label_bulletin", Axe: SocialBulletin, Match: func(l Line) bool {
			return social(l) && strings.Contains(NormalizeLabel(l.Label), "bulletin")
		}},
		{Name: "social_label_forfait", Axe: SocialForfait, Match: func(l Line) bool {
			return social(l) && strings.Contains(NormalizeLabel(l.Label), "forfait")
		}},
		{Name: "social_quantity", Axe: SocialBulletin, Match: func(l Line) bool {
			return social(l) && l.Quantity.GreaterThan(decimal.NewFromInt(1))
		}},
		{Name: "social_unit_price", Axe: SocialBulletin, Match: func(l Line) bool {
			return social(l) && l.EffectiveUnitPrice().LessThan(c.BulletinThreshold)
		}},
		{Name: "social_default", Axe: SocialForfait, Match: social},
		{Name: "family_juridique", Axe: Juridique, Match: func(l Line) bool { return l.Family == FamilyJuridique }},
		{Name: "family_support", Axe: Support, Match: func(l Line) bool { return l.Family == FamilySupport }},
	}
	return c
}

// Rules returns a copy of the decision table.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Axe returns the axe of the first matching rule, or Unclassified.
func (c *Classifier) Axe(l Line) Axe {
	for _, r := range c.rules {
		if r.Match(l) {
			return r.Axe
		}
	}
	return Unclassified
}

// Classify resolves the axe of l and annotates it with the client's social mode.
func (c *Classifier) Classify(l Line, mode SocialMode) ClassifiedLine {
	return ClassifiedLine{Line: l, Axe: c.Axe(l), SocialMode: mode}
}

// DetectSocialMode scans a client's non-accessory payroll lines and returns
// reel when any of them looks billed per payslip. It only annotates clients;
// the per-line rules stay authoritative for axe assignment.
func (c *Classifier) DetectSocialMode(lines []Line) SocialMode {
	for _, l := range lines {
		if l.Family != FamilySocial || IsAccessoryLabel(l.Label) {
			continue
		}
		if strings.Contains(NormalizeLabel(l.Label), "bulletin") ||
			l.Quantity.GreaterThan(decimal.NewFromInt(1)) ||
			l.EffectiveUnitPrice().LessThan(c.BulletinThreshold) {
			return SocialModeReel
		}
	}
	return SocialModeForfait
}

// ClassifyClient classifies the lines of a single client.
func (c *Classifier) ClassifyClient(lines []Line) []ClassifiedLine {
	mode := c.DetectSocialMode(lines)
	out := make([]ClassifiedLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, c.Classify(l, mode))
	}
	return out
}

// ClassifyAll groups lines by client, detecting each client's social mode
// before classifying its lines. Input order is preserved.
func (c *Classifier) ClassifyAll(lines []Line) []ClassifiedLine {
	byClient := make(map[uint][]Line)
	for _, l := range lines {
		byClient[l.ClientID] = append(byClient[l.ClientID], l)
	}
	modes := make(map[uint]SocialMode, len(byClient))
	for id, ls := range byClient {
		modes[id] = c.DetectSocialMode(ls)
	}
	out := make([]ClassifiedLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, c.Classify(l, modes[l.ClientID]))
	}
	return out
}

var defaultClassifier = NewClassifier(DefaultBulletinThreshold)

// Classify uses the default threshold.
func Classify(l Line, mode SocialMode) ClassifiedLine { return defaultClassifier.Classify(l, mode) }

// DetectSocialMode uses the default threshold.
func DetectSocialMode(lines []Line) SocialMode { return defaultClassifier.DetectSocialMode(lines) }

// ClassifyAll uses the default threshold.
func ClassifyAll(lines []Line) []ClassifiedLine { return defaultClassifier.ClassifyAll(lines) }

func labelContains(subs ...string) func(Line) bool {
	return func(l Line) bool {
		label := NormalizeLabel(l.Label)
		for _, s := range subs {
			if strings.Contains(label, s) {
				return true
			}
		}
		return false
	}
}
