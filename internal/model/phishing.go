package model

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// PhishingAlert is the brand-impersonation verdict for a URL. Severity is
// always set, even when nothing was detected.
type PhishingAlert struct {
	Detected           bool     `json:"detected"`
	BrandName          string   `json:"brand_name,omitempty"`
	BrandLocalizedName string   `json:"brand_localized_name,omitempty"`
	ImpersonatedDomain string   `json:"impersonated_domain,omitempty"`
	LegitimateDomains  []string `json:"legitimate_domains,omitempty"`
	Reason             string   `json:"reason,omitempty"`
	LocalizedReason    string   `json:"localized_reason,omitempty"`
	Severity           Severity `json:"severity"`
}

// NoPhishing is the alert returned when no brand matched.
func NoPhishing() PhishingAlert {
	return PhishingAlert{Detected: false, Severity: SeverityLow}
}
