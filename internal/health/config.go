package health

import "time"

// Endpoint is one upstream service to probe.
type Endpoint struct {
	BaseURL string
	APIKey  string
}

type Config struct {
	VirusTotal Endpoint `yaml:"-"`
	URLScan    Endpoint `yaml:"-"`
	Unshorten  Endpoint `yaml:"-"`

	// Timeout bounds a whole Check; zero means the webclient timeout only.
	Timeout time.Duration `yaml:"timeout"`
}
