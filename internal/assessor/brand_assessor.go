// Package assessor flags links that impersonate well-known brands.
//
// The assessor is a pure heuristic: it never performs network I/O and its
// registry is fixed once constructed, so a single instance can be shared by
// any number of concurrent scans.
package assessor

import (
	"fmt"
	"strings"

	"github.com/raysh454/linkguard/internal/logging"
	"github.com/raysh454/linkguard/internal/model"
	"github.com/raysh454/linkguard/internal/utils"
)

// Reason clauses, English and localized.
const (
	reasonBrand    = "the link contains the brand name"
	reasonHyphen   = ", and uses hyphens in the domain"
	reasonTLD      = ", and uses a suspicious domain extension"
	reasonKeywords = ", and contains phishing keywords"

	localizedReasonBrand    = "يحتوي الرابط على اسم العلامة التجارية"
	localizedReasonHyphen   = "، ويستخدم شرطات في النطاق"
	localizedReasonTLD      = "، ويستخدم امتداد نطاق مشبوه"
	localizedReasonKeywords = "، ويحتوي على كلمات تصيد احتيالي"
)

type BrandAssessor struct {
	brands []Brand
	logger logging.Logger
}

// NewBrandAssessor builds the registry from the built-in brands followed by
// cfg.BrandsFile and cfg.ExtraBrands.
func NewBrandAssessor(cfg Config, logger logging.Logger) (*BrandAssessor, error) {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	l := logger.With(logging.Field{Key: "component", Value: "brand-assessor"})

	extra := append([]Brand(nil), cfg.ExtraBrands...)
	if cfg.BrandsFile != "" {
		fromFile, err := LoadBrands(cfg.BrandsFile)
		if err != nil {
			return nil, err
		}
		extra = append(extra, fromFile...)
	}

	brands := make([]Brand, 0, len(defaultBrands)+len(extra))
	for _, b := range defaultBrands {
		brands = append(brands, b.normalize())
	}
	for _, b := range extra {
		if err := b.validate(); err != nil {
			return nil, fmt.Errorf("assessor: %w", err)
		}
		brands = append(brands, b.normalize())
	}

	l.Debug("brand assessor constructed", logging.Field{Key: "brands", Value: len(brands)})
	return &BrandAssessor{brands: brands, logger: l}, nil
}

// Brands returns a copy of the registry in lookup order.
func (a *BrandAssessor) Brands() []Brand {
	out := make([]Brand, len(a.brands))
	for i, b := range a.brands {
		out[i] = b.clone()
	}
	return out
}

// Analyze decides whether resolvedURL impersonates a registered brand.
//
// A keyword hit on a brand's legitimate domain (or a subdomain of it) is not
// a match and the scan moves on to the next brand. The first brand matched
// on a foreign domain wins. Unparseable input is never a match.
func (a *BrandAssessor) Analyze(resolvedURL string) model.PhishingAlert {
	hostname, err := utils.Hostname(resolvedURL)
	if err != nil {
		return model.NoPhishing()
	}
	fullURL := strings.ToLower(resolvedURL)

	for _, brand := range a.brands {
		if !containsAny(hostname, brand.Keywords) && !containsAny(fullURL, brand.Keywords) {
			continue
		}
		if isLegitimate(hostname, brand.LegitimateDomains) {
			continue
		}

		urgent := containsAny(fullURL, urgencyKeywords)
		hyphen := strings.Contains(hostname, "-")
		lowTrust := hasAnySuffix(hostname, lowTrustTLDs)

		alert := model.PhishingAlert{
			Detected:           true,
			BrandName:          brand.Name,
			BrandLocalizedName: brand.LocalizedName,
			ImpersonatedDomain: hostname,
			LegitimateDomains:  append([]string(nil), brand.LegitimateDomains...),
			Severity:           severity(urgent, hyphen, lowTrust),
		}
		alert.Reason, alert.LocalizedReason = reasons(hyphen, lowTrust, urgent)

		a.logger.Info("brand impersonation detected",
			logging.Field{Key: "brand", Value: brand.Name},
			logging.Field{Key: "host", Value: hostname},
			logging.Field{Key: "severity", Value: string(alert.Severity)})
		return alert
	}

	return model.NoPhishing()
}

// severity: high needs an urgency keyword plus a hyphen or a low-trust TLD;
// any other signal on its own (or hyphen with TLD) is medium.
func severity(urgent, hyphen, lowTrust bool) model.Severity {
	switch {
	case urgent && (hyphen || lowTrust):
		return model.SeverityHigh
	case urgent || hyphen || lowTrust:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func reasons(hyphen, lowTrust, urgent bool) (string, string) {
	var en, loc strings.Builder
	en.WriteString(reasonBrand)
	loc.WriteString(localizedReasonBrand)
	if hyphen {
		en.WriteString(reasonHyphen)
		loc.WriteString(localizedReasonHyphen)
	}
	if lowTrust {
		en.WriteString(reasonTLD)
		loc.WriteString(localizedReasonTLD)
	}
	if urgent {
		en.WriteString(reasonKeywords)
		loc.WriteString(localizedReasonKeywords)
	}
	return en.String(), loc.String()
}

func isLegitimate(hostname string, domains []string) bool {
	for _, d := range domains {
		if utils.HostMatches(hostname, d) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}
