package sandbox

import "time"

// EnvAPIKey names the credential variable for the sandbox service.
const EnvAPIKey = "URLSCAN_API_KEY"

type Config struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"-"`

	// Visibility of submitted runs on the sandbox service.
	Visibility string `yaml:"visibility"`

	// SettleDelay is the single fixed wait between submission and fetch.
	SettleDelay time.Duration `yaml:"settle_delay"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://urlscan.io",
		Visibility:  "public",
		SettleDelay: 15 * time.Second,
	}
}
