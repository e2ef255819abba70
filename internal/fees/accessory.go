package fees

// AccessoryKind names the payroll accessory families recognised on labels.
type AccessoryKind string

const (
	AccessoryVault        AccessoryKind = "coffre"
	AccessoryMailMerge    AccessoryKind = "publipostage"
	AccessoryMovement     AccessoryKind = "entree_sortie"
	AccessoryExtra        AccessoryKind = "extra"
	AccessoryModification AccessoryKind = "modification_bulletin"
)

// AccessoryKinds returns the accessory families found in label.
func AccessoryKinds(label string) []AccessoryKind {
	l := NormalizeLabel(label)
	var kinds []AccessoryKind
	if reVault.MatchString(l) {
		kinds = append(kinds, AccessoryVault)
	}
	if reMailMerge.MatchString(l) {
		kinds = append(kinds, AccessoryMailMerge)
	}
	if reEntry.MatchString(l) || reExit.MatchString(l) {
		kinds = append(kinds, AccessoryMovement)
	}
	if reExtra.MatchString(l) {
		kinds = append(kinds, AccessoryExtra)
	}
	if reModification.MatchString(l) {
		kinds = append(kinds, AccessoryModification)
	}
	return kinds
}

// IsAccessoryLabel reports whether label names a payroll accessory.
func IsAccessoryLabel(label string) bool {
	return len(AccessoryKinds(label)) > 0
}

// IsExitLabel reports a departure not bundled with an arrival.
func IsExitLabel(label string) bool {
	l := NormalizeLabel(label)
	return reExit.MatchString(l) && !reEntry.MatchString(l)
}

// IsEntryLabel reports an arrival not bundled with a departure.
func IsEntryLabel(label string) bool {
	l := NormalizeLabel(label)
	return reEntry.MatchString(l) && !reExit.MatchString(l)
}

// AccessoryMultiplier returns how many bulletin deltas an accessory line
// carries: two for a standalone exit, one otherwise. needsReview is set when
// the free-text label matches several accessory families, since the
// multiplier then rests on a guess.
func AccessoryMultiplier(label string) (multiplier int64, needsReview bool) {
	multiplier = 1
	if IsExitLabel(label) {
		multiplier = 2
	}
	return multiplier, len(AccessoryKinds(label)) > 1
}
