// Package i18n holds the fr/en labels of the codes exposed by the reports.
package i18n

import (
	"context"
	"strings"
)

const DefaultLang = "fr"

var messages = map[string]map[string]string{
	"fr": {
		// axes
		"compta_mensuelle":   "Comptabilité mensuelle",
		"bilan":              "Bilan",
		"pl":                 "P&L / gestion",
		"juridique":          "Juridique",
		"social_bulletin":    "Social au bulletin",
		"social_forfait":     "Social au forfait",
		"accessoires_social": "Accessoires sociaux",
		"support":            "Support",
		"unclassified":       "Non classé",
		// anomaly types
		"social_conflict":        "Conflit forfait / bulletin",
		"duplicate_unique_axis":  "Axe unique en double",
		"duplicate_label":        "Libellé en double",
		"multiple_subscriptions": "Abonnements multiples",
		"non_standard_label":     "Libellé non standard",
		"unclassified_line":      "Ligne non classée",
		"suspicious_price":       "Prix suspect",
		"accessory_review":       "Accessoire à vérifier",
		// severities
		"error":   "Erreur",
		"warning": "Avertissement",
		"info":    "Information",
		// restructuring actions
		"unchanged": "Inchangé",
		"modify":    "À modifier",
		"delete":    "À supprimer",
		// api errors
		"required":           "Requis",
		"invalid_id":         "Identifiant invalide",
		"invalid_json":       "JSON invalide",
		"invalid_parameters": "Paramètres invalides",
		"client_not_found":   "Client introuvable",
		"run_in_progress":    "Un traitement est déjà en cours",
		"internal_error":     "Erreur interne",
	},
	"en": {
		"compta_mensuelle":   "Monthly bookkeeping",
		"bilan":              "Annual accounts",
		"pl":                 "P&L / management",
		"juridique":          "Legal",
		"social_bulletin":    "Payroll per payslip",
		"social_forfait":     "Payroll flat fee",
		"accessoires_social": "Payroll extras",
		"support":            "Support",
		"unclassified":       "Unclassified",

		"social_conflict":        "Flat fee / payslip conflict",
		"duplicate_unique_axis":  "Duplicated unique axis",
		"duplicate_label":        "Duplicated label",
		"multiple_subscriptions": "Multiple subscriptions",
		"non_standard_label":     "Non-standard label",
		"unclassified_line":      "Unclassified line",
		"suspicious_price":       "Suspicious price",
		"accessory_review":       "Extra to review",

		"error":   "Error",
		"warning": "Warning",
		"info":    "Info",

		"unchanged": "Unchanged",
		"modify":    "Modify",
		"delete":    "Delete",

		"required":           "Required",
		"invalid_id":         "Invalid identifier",
		"invalid_json":       "Invalid JSON",
		"invalid_parameters": "Invalid parameters",
		"client_not_found":   "Client not found",
		"run_in_progress":    "A run is already in progress",
		"internal_error":     "Internal error",
	},
}

// Supported reports whether lang has its own catalog.
func Supported(lang string) bool {
	_, ok := messages[lang]
	return ok
}

// DetectLanguage picks the first supported language of an Accept-Language
// header, falling back to French.
func DetectLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		base := strings.ToLower(strings.SplitN(tag, "-", 2)[0])
		if Supported(base) {
			return base
		}
	}
	return DefaultLang
}

// T translates code. Unknown languages use French; unknown codes are
// returned as is.
func T(lang, code string) string {
	if msg, ok := messages[lang][code]; ok {
		return msg
	}
	if msg, ok := messages[DefaultLang][code]; ok {
		return msg
	}
	return code
}

type ctxKey struct{}

func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, ctxKey{}, lang)
}

// LangFrom returns the language stored in ctx, or DefaultLang.
func LangFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok && v != "" {
		return v
	}
	return DefaultLang
}
