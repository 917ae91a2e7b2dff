package app

import (
	"strings"
	"time"

	"github.com/raysh454/linkguard/internal/assessor"
	"github.com/raysh454/linkguard/internal/health"
	"github.com/raysh454/linkguard/internal/model"
	"github.com/raysh454/linkguard/internal/reputation"
	"github.com/raysh454/linkguard/internal/resolver"
	"github.com/raysh454/linkguard/internal/sandbox"
	"github.com/raysh454/linkguard/internal/utils"
	"github.com/raysh454/linkguard/internal/webclient"
)

// Config is the process-wide configuration. It is read once at startup and
// passed explicitly to every component; nothing mutates it afterwards.
type Config struct {
	LogLevel string `yaml:"log_level"`

	WebClient  webclient.Config  `yaml:"webclient"`
	Resolver   resolver.Config   `yaml:"resolver"`
	Reputation reputation.Config `yaml:"reputation"`
	Sandbox    sandbox.Config    `yaml:"sandbox"`
	Assessor   assessor.Config   `yaml:"assessor"`
	Health     health.Config     `yaml:"health"`

	// JobRetentionTime is how long finished jobs stay queryable. Zero keeps
	// them until the orchestrator is closed.
	JobRetentionTime time.Duration `yaml:"job_retention_time"`

	// MaxConcurrentScans caps the number of jobs talking to the upstreams at
	// once. Excess jobs stay pending until a slot frees up.
	MaxConcurrentScans int `yaml:"max_concurrent_scans"`

	// URLOptions drive pre-flight validation of submitted links.
	URLOptions utils.CanonicalizeOptions `yaml:"-"`
}

// DefaultConfig returns a Config populated with production endpoints and no
// credentials.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:           "info",
		WebClient:          webclient.DefaultConfig(),
		Resolver:           resolver.DefaultConfig(),
		Reputation:         reputation.DefaultConfig(),
		Sandbox:            sandbox.DefaultConfig(),
		Assessor:           assessor.DefaultConfig(),
		Health:             health.Config{Timeout: 10 * time.Second},
		JobRetentionTime:   30 * time.Minute,
		MaxConcurrentScans: 4,
		URLOptions: utils.CanonicalizeOptions{
			DefaultScheme: "https",
		},
	}
}

// Validate reports the credentials a scan cannot run without. The sandbox
// key is optional: without it the visual capture is simply empty.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Resolver.APIKey) == "" {
		missing = append(missing, resolver.EnvAPIKey)
	}
	if strings.TrimSpace(c.Reputation.APIKey) == "" {
		missing = append(missing, reputation.EnvAPIKey)
	}
	if len(missing) > 0 {
		return &model.ConfigurationError{Missing: missing}
	}
	return nil
}

// HealthConfig points the health prober at the configured upstreams.
func (c *Config) HealthConfig() health.Config {
	hc := c.Health
	hc.VirusTotal = health.Endpoint{BaseURL: c.Reputation.BaseURL, APIKey: c.Reputation.APIKey}
	hc.URLScan = health.Endpoint{BaseURL: c.Sandbox.BaseURL, APIKey: c.Sandbox.APIKey}
	hc.Unshorten = health.Endpoint{BaseURL: c.Resolver.BaseURL, APIKey: c.Resolver.APIKey}
	return hc
}
