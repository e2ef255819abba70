package matching

import (
	"errors"
	"strings"
	"unicode"

	"github.com/diewo77/go-honoraires/internal/fees"
)

// ErrAmbiguousRegistryNumber is returned for a registry number that is not a
// 9-digit SIREN.
var ErrAmbiguousRegistryNumber = errors.New("ambiguous_registry_number")

// RegistryNumber extracts a 9-digit SIREN from raw. Spaces, dots and dashes
// are ignored.
func RegistryNumber(raw string) (string, error) {
	digits, err := registryDigits(raw)
	if err != nil || len(digits) != 9 {
		return "", ErrAmbiguousRegistryNumber
	}
	return digits, nil
}

// LocalRegistryNumber is RegistryNumber for the firm's own client records,
// which may hold an establishment SIRET: its SIREN prefix is used.
func LocalRegistryNumber(raw string) (string, error) {
	digits, err := registryDigits(raw)
	if err != nil {
		return "", err
	}
	switch len(digits) {
	case 9:
		return digits, nil
	case 14:
		return digits[:9], nil
	}
	return "", ErrAmbiguousRegistryNumber
}

func registryDigits(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '.' || r == '-' || r == '\u00a0':
		default:
			return "", ErrAmbiguousRegistryNumber
		}
	}
	return b.String(), nil
}

var legalSuffixes = map[string]bool{
	"sarl": true, "sas": true, "sasu": true, "eurl": true, "sa": true,
	"sci": true, "snc": true, "selarl": true, "selas": true, "scp": true,
	"holding": true, "france": true, "groupe": true, "group": true,
	"cabinet": true, "societe": true, "ste": true, "et": true, "cie": true,
}

// nameTokens lower-cases, strips diacritics and splits on anything that is
// not a letter or digit.
func nameTokens(name string) []string {
	s := strings.ToLower(fees.StripDiacritics(name))
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// NormalizeName returns the case-folded alphanumeric skeleton of name.
func NormalizeName(name string) string {
	return strings.Join(nameTokens(name), "")
}

// CoreName is NormalizeName with legal-form and group suffixes removed from
// both ends. A name made only of suffixes keeps its plain normalized form.
func CoreName(name string) string {
	tokens := nameTokens(name)
	start, end := 0, len(tokens)
	for start < end && legalSuffixes[tokens[start]] {
		start++
	}
	for end > start && legalSuffixes[tokens[end-1]] {
		end--
	}
	if start == end {
		return strings.Join(tokens, "")
	}
	return strings.Join(tokens[start:end], "")
}
