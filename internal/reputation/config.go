package reputation

import "time"

// EnvAPIKey names the credential variable for the reputation service.
const EnvAPIKey = "VIRUSTOTAL_API_KEY"

type Config struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"-"`

	// PollInterval is the wait before every status poll.
	PollInterval time.Duration `yaml:"poll_interval"`

	// MaxAttempts bounds the number of status polls.
	MaxAttempts int `yaml:"max_attempts"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:      "https://www.virustotal.com",
		PollInterval: 2 * time.Second,
		MaxAttempts:  30,
	}
}
