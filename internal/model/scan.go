package model

// ScanRequest represents a request to check a URL.
type ScanRequest struct {
	// URL is the user-supplied link. It is untrusted, may be malformed and
	// may lack a scheme.
	URL string `json:"url"`
}

// ResolvedTarget is produced once by the resolver and consumed by every
// downstream component. ResolvedURL is either a valid absolute URL or equal
// to OriginalURL when resolution failed.
type ResolvedTarget struct {
	OriginalURL  string `json:"original_url"`
	ResolvedURL  string `json:"resolved_url"`
	WasShortened bool   `json:"was_shortened"`

	// Note explains a degraded resolution. Empty when nothing went wrong.
	Note string `json:"note,omitempty"`
}

// SandboxReport is what the visual sandbox returned. Every field is
// optional; the zero value is a valid outcome.
type SandboxReport struct {
	ScreenshotURL string `json:"screenshot_url,omitempty"`
	Country       string `json:"country,omitempty"`
	IP            string `json:"ip,omitempty"`
	Server        string `json:"server,omitempty"`
	ScanUUID      string `json:"scan_uuid,omitempty"`
}

// Empty reports whether the sandbox produced nothing usable.
func (r *SandboxReport) Empty() bool {
	return r == nil || (r.ScreenshotURL == "" && r.Country == "" && r.IP == "" && r.Server == "")
}

// ScanResult is the aggregated outcome of a completed scan.
type ScanResult struct {
	Target     ResolvedTarget    `json:"target"`
	Reputation *ReputationReport `json:"reputation"`
	Sandbox    *SandboxReport    `json:"sandbox"`
	Phishing   PhishingAlert     `json:"phishing"`
	Verdict    Verdict           `json:"verdict"`
}
