package webclient

import "time"

type Client string

const (
	ClientNetHTTP Client = "nethttp"
)

// Config describes how upstream HTTP clients are built. Each upstream gets its
// own client, so RequestsPerSecond paces one service at a time.
type Config struct {
	Client            Client        `yaml:"client"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // <= 0 disables pacing
	Burst             int           `yaml:"burst"`
	UserAgent         string        `yaml:"user_agent"`
	MaxResponseBytes  int64         `yaml:"max_response_bytes"` // <= 0 means DefaultMaxResponseBytes
}

// DefaultMaxResponseBytes caps a response body. Upstream JSON replies are far
// smaller; anything bigger is refused rather than buffered.
const DefaultMaxResponseBytes int64 = 4 << 20

func DefaultConfig() Config {
	return Config{
		Client:            ClientNetHTTP,
		Timeout:           30 * time.Second,
		RequestsPerSecond: 0,
		Burst:             1,
		UserAgent:         "linkguard/1.0",
		MaxResponseBytes:  DefaultMaxResponseBytes,
	}
}
