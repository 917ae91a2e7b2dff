package assessor

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Brand is one entry of the impersonation registry.
type Brand struct {
	Name              string   `yaml:"name"`
	LocalizedName     string   `yaml:"localized_name"`
	Keywords          []string `yaml:"keywords"`
	LegitimateDomains []string `yaml:"legitimate_domains"`
}

var defaultBrands = []Brand{
	{
		Name:              "Facebook",
		LocalizedName:     "فيسبوك",
		Keywords:          []string{"facebook", "face-book", "face book", "fb", "meta"},
		LegitimateDomains: []string{"facebook.com", "fb.com", "meta.com"},
	},
	{
		Name:              "Google",
		LocalizedName:     "جوجل",
		Keywords:          []string{"google", "gmail"},
		LegitimateDomains: []string{"google.com", "gmail.com", "goo.gl"},
	},
	{
		Name:              "PayPal",
		LocalizedName:     "باي بال",
		Keywords:          []string{"paypal", "pay-pal"},
		LegitimateDomains: []string{"paypal.com"},
	},
	{
		Name:              "Amazon",
		LocalizedName:     "أمازون",
		Keywords:          []string{"amazon", "amzn"},
		LegitimateDomains: []string{"amazon.com", "amazon.co.uk", "amzn.to"},
	},
	{
		Name:              "Microsoft",
		LocalizedName:     "مايكروسوفت",
		Keywords:          []string{"microsoft", "msft", "outlook", "hotmail"},
		LegitimateDomains: []string{"microsoft.com", "outlook.com", "hotmail.com", "live.com"},
	},
	{
		Name:              "Apple",
		LocalizedName:     "أبل",
		Keywords:          []string{"apple", "icloud", "itunes"},
		LegitimateDomains: []string{"apple.com", "icloud.com", "itunes.com"},
	},
	{
		Name:              "Instagram",
		LocalizedName:     "إنستغرام",
		Keywords:          []string{"instagram", "insta"},
		LegitimateDomains: []string{"instagram.com"},
	},
	{
		Name:              "WhatsApp",
		LocalizedName:     "واتساب",
		Keywords:          []string{"whatsapp", "whats-app"},
		LegitimateDomains: []string{"whatsapp.com", "wa.me"},
	},
}

// urgencyKeywords are credential-harvesting words looked up in the full URL.
var urgencyKeywords = []string{
	"login", "signin", "secure", "update", "verify", "account",
	"confirm", "suspended", "locked", "urgent", "billing",
}

var lowTrustTLDs = []string{
	".xyz", ".top", ".tk", ".ml", ".ga", ".cf", ".gq",
	".pw", ".cc", ".ws", ".info", ".biz",
}

// DefaultBrands returns a copy of the built-in registry.
func DefaultBrands() []Brand {
	out := make([]Brand, len(defaultBrands))
	for i, b := range defaultBrands {
		out[i] = b.clone()
	}
	return out
}

func (b Brand) clone() Brand {
	b.Keywords = append([]string(nil), b.Keywords...)
	b.LegitimateDomains = append([]string(nil), b.LegitimateDomains...)
	return b
}

func (b Brand) normalize() Brand {
	b = b.clone()
	for i, k := range b.Keywords {
		b.Keywords[i] = strings.ToLower(strings.TrimSpace(k))
	}
	for i, d := range b.LegitimateDomains {
		b.LegitimateDomains[i] = strings.ToLower(strings.TrimSpace(d))
	}
	return b
}

func (b Brand) validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("brand without name")
	}
	if len(b.Keywords) == 0 {
		return fmt.Errorf("brand %q has no keywords", b.Name)
	}
	for _, k := range b.Keywords {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("brand %q has an empty keyword", b.Name)
		}
	}
	if len(b.LegitimateDomains) == 0 {
		return fmt.Errorf("brand %q has no legitimate domains", b.Name)
	}
	return nil
}

type brandFile struct {
	Brands []Brand `yaml:"brands"`
}

// LoadBrands reads extra registry entries from a YAML file of the form
//
//	brands:
//	  - name: Netflix
//	    localized_name: نتفليكس
//	    keywords: [netflix]
//	    legitimate_domains: [netflix.com]
func LoadBrands(path string) ([]Brand, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read brands file: %w", err)
	}
	var f brandFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse brands file %s: %w", path, err)
	}
	for _, b := range f.Brands {
		if err := b.validate(); err != nil {
			return nil, fmt.Errorf("brands file %s: %w", path, err)
		}
	}
	return f.Brands, nil
}
