package demoserver

// Config holds configuration for the demo server.
type Config struct {
	// Port is the port on which the demo server listens.
	Port int

	// APIKey, when set, must be presented the way each real service expects
	// it. Empty accepts any key.
	APIKey string

	// InitialScenario is the scenario applied to every link until changed
	// from the control panel (default: clean).
	InitialScenario string

	// CompleteAfterPolls is the number of status polls an analysis stays
	// queued before it completes.
	CompleteAfterPolls int

	// ShortLinks maps short links to the destinations the unshortening
	// endpoint reports.
	ShortLinks map[string]string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:               9999,
		InitialScenario:    ScenarioClean,
		CompleteAfterPolls: 2,
		ShortLinks: map[string]string{
			"https://bit.ly/linkguard-demo":  "https://example.com/welcome",
			"https://bit.ly/linkguard-phish": "https://paypal-secure-login.com/verify",
			"https://tinyurl.com/lg-malware": "https://malware.example.net/payload",
		},
	}
}
