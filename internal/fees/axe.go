// Package fees holds the fee vocabulary shared by the pricing, audit and
// restructuring engines: the eight fee axes, billing families, subscription
// statuses and the ordered-rule line classifier.
package fees

// Axe is one of the eight fee categories a billing line can belong to.
// The zero value is Unclassified.
type Axe string

const (
	Unclassified      Axe = ""
	ComptaMensuelle   Axe = "compta_mensuelle"
	Bilan             Axe = "bilan"
	PL                Axe = "pl"
	Juridique         Axe = "juridique"
	SocialBulletin    Axe = "social_bulletin"
	SocialForfait     Axe = "social_forfait"
	AccessoiresSocial Axe = "accessoires_social"
	Support           Axe = "support"
)

var axes = []Axe{
	ComptaMensuelle,
	Bilan,
	PL,
	Juridique,
	SocialBulletin,
	SocialForfait,
	AccessoiresSocial,
	Support,
}

// Axes returns every classified axe in display order.
func Axes() []Axe {
	out := make([]Axe, len(axes))
	copy(out, axes)
	return out
}

// ParseAxe returns the axe named s, or Unclassified when s is unknown.
func ParseAxe(s string) Axe {
	for _, a := range axes {
		if string(a) == s {
			return a
		}
	}
	return Unclassified
}

// Valid reports whether a is one of the eight classified axes.
func (a Axe) Valid() bool {
	return ParseAxe(string(a)) != Unclassified
}

// Unique reports whether an active subscription should carry at most one line
// of this axe.
func (a Axe) Unique() bool {
	switch a {
	case ComptaMensuelle, Bilan, PL, SocialForfait, SocialBulletin, Juridique:
		return true
	}
	return false
}

// Variable reports whether the axe bills a variable recurrence (volume driven).
func (a Axe) Variable() bool {
	return a == SocialBulletin || a == AccessoiresSocial
}

// FollowsBulletin reports whether the axe takes no parameters of its own and
// tracks the bulletin axe instead.
func (a Axe) FollowsBulletin() bool {
	return a == AccessoiresSocial
}

// Social reports whether the axe belongs to payroll services.
func (a Axe) Social() bool {
	return a == SocialBulletin || a == SocialForfait || a == AccessoiresSocial
}

func (a Axe) String() string {
	if a == Unclassified {
		return "unclassified"
	}
	return string(a)
}

// SocialMode is the payroll billing mode detected for a client.
type SocialMode string

const (
	SocialModeForfait SocialMode = "forfait"
	SocialModeReel    SocialMode = "reel"
)

// Family is the product family tag carried by an external billing line.
type Family string

const (
	FamilyOther        Family = "other"
	FamilySocial       Family = "social"
	FamilyJuridique    Family = "juridique"
	FamilySupport      Family = "support"
	FamilyComptabilite Family = "comptabilite"
)

// ParseFamily maps a free-text family tag onto the closed Family set.
func ParseFamily(s string) Family {
	switch NormalizeLabel(s) {
	case "social", "paie", "social / paie":
		return FamilySocial
	case "juridique", "legal":
		return FamilyJuridique
	case "support", "logiciel":
		return FamilySupport
	case "comptabilite", "comptable", "expertise comptable":
		return FamilyComptabilite
	}
	return FamilyOther
}

// SubscriptionStatus is owned by the external platform and never inferred locally.
type SubscriptionStatus string

const (
	StatusNotStarted SubscriptionStatus = "not_started"
	StatusInProgress SubscriptionStatus = "in_progress"
	StatusStopped    SubscriptionStatus = "stopped"
	StatusFinished   SubscriptionStatus = "finished"
)

// Active reports whether the subscription still bills or is about to.
func (s SubscriptionStatus) Active() bool {
	return s == StatusNotStarted || s == StatusInProgress
}

// Frequency is the billing recurrence unit of a subscription.
type Frequency string

const (
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)
