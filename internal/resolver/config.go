package resolver

// Config holds the unshortening service settings.
type Config struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL: "https://unshorten.me",
	}
}
