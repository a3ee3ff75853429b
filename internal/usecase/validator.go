package usecase

import (
	"strings"
	"unicode"

	"utmtrack/internal/domain"
)

// warning kinds, used as metric labels
const (
	warningMissingCritical = "missing_critical"
	warningDirect          = "direct_attribution"
	warningWhitespace      = "whitespace"
	warningNoFallback      = "no_fallback"
)

// Validate checks current against the critical-key policy. It is advisory:
// warnings never affect HasRequiredUTMs, and nothing here blocks dispatch.
func Validate(current domain.TrackingParameterSet, hasPersistedData bool) domain.AttributionValidation {
	validation, _ := validate(current, hasPersistedData)
	return validation
}

func validate(current domain.TrackingParameterSet, hasPersistedData bool) (domain.AttributionValidation, []string) {
	validation := domain.AttributionValidation{
		MissingCritical: []domain.ParameterName{},
		WarningMessages: []string{},
		Recommendations: []string{},
	}
	var kinds []string

	warn := func(kind, warning string, recommendations ...string) {
		kinds = append(kinds, kind)
		validation.WarningMessages = append(validation.WarningMessages, warning)
		validation.Recommendations = append(validation.Recommendations, recommendations...)
	}

	for _, name := range domain.CriticalParameters {
		// an empty value reports as "(not set)" just like an absent one
		if current.Value(name) == "" {
			validation.MissingCritical = append(validation.MissingCritical, name)
		}
	}

	if len(validation.MissingCritical) > 0 {
		names := make([]string, len(validation.MissingCritical))
		for i, name := range validation.MissingCritical {
			names[i] = string(name)
		}
		warn(warningMissingCritical,
			"Missing critical UTM parameters: "+strings.Join(names, ", "),
			"Ensure all campaign URLs include utm_source, utm_medium, and utm_campaign",
			"Use a UTM builder tool to generate properly formatted campaign URLs",
		)
		warn(warningMissingCritical,
			`This will likely result in "(not set)" values in GA4 acquisition reports`,
		)
	}

	source := current.Value(domain.UTMSource)
	medium := current.Value(domain.UTMMedium)

	if source == "direct" || medium == "direct" {
		warn(warningDirect,
			"Using 'direct' as utm_source or utm_medium can cause attribution confusion",
			"Use specific source names like 'google', 'facebook', 'newsletter' instead of 'direct'",
		)
	}

	if containsSpace(source) || containsSpace(medium) {
		warn(warningWhitespace,
			"UTM parameters contain spaces which may cause tracking issues",
			"Replace spaces with underscores or hyphens in UTM parameters",
		)
	}

	if len(validation.MissingCritical) > 0 && !hasPersistedData {
		warn(warningNoFallback,
			"No UTM parameters in URL and no stored campaign data from previous pages",
			"Consider implementing UTM parameter persistence across page navigation",
		)
	}

	validation.HasRequiredUTMs = len(validation.MissingCritical) == 0
	return validation, kinds
}

func containsSpace(s string) bool {
	return strings.IndexFunc(s, unicode.IsSpace) >= 0
}
