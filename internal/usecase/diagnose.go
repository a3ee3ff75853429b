package usecase

import (
	"strings"

	"utmtrack/internal/domain"
)

// Diagnose classifies a visit by how it will show up in acquisition
// reports and lists what to do about it.
func Diagnose(current domain.TrackingParameterSet, stored domain.PersistedAttribution, validation domain.AttributionValidation, readiness domain.Readiness) domain.Diagnosis {
	d := domain.Diagnosis{
		Current:    current,
		Stored:     stored,
		Validation: validation,
		Readiness:  readiness,
	}

	switch {
	case !hasCampaignParams(current):
		d.Severity = domain.DiagnosisMissing
		d.Summary = "No UTM parameters detected; this visit will show as \"(not set)\" in GA4 acquisition reports"
		d.Solutions = []string{
			"Access this page with UTM parameters in the URL",
			"Example: ?utm_source=google&utm_medium=cpc&utm_campaign=test",
		}
	case !validation.HasRequiredUTMs:
		names := make([]string, len(validation.MissingCritical))
		for i, name := range validation.MissingCritical {
			names[i] = string(name)
		}
		d.Severity = domain.DiagnosisPartial
		d.Summary = "Missing some critical UTM parameters: " + strings.Join(names, ", ")
		d.Solutions = []string{
			"Include all three: utm_source, utm_medium, utm_campaign",
		}
	default:
		d.Severity = domain.DiagnosisOK
		d.Summary = "UTM parameters look good and should not cause \"(not set)\" values"
		d.Solutions = []string{
			"Wait 24-48 hours for data processing",
			"Check the date range in your GA4 reports",
			"Verify your GA4 measurement ID is correct",
		}
	}

	if readiness != domain.ReadinessReady {
		d.Solutions = append(d.Solutions, "Analytics is not ready ("+readiness.String()+"); events are being skipped")
	}

	return d
}

func hasCampaignParams(params domain.TrackingParameterSet) bool {
	for _, p := range params.Entries() {
		if p.Name.Group() == domain.GroupCampaign && p.Value != "" {
			return true
		}
	}
	return false
}
