package model

// Stats are the engine-level counters reported by the reputation service.
// Absent counters decode as zero.
type Stats struct {
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
	Harmless   int `json:"harmless"`
	Undetected int `json:"undetected"`
}

// TotalVendors is the number of engines that gave any answer.
func (s Stats) TotalVendors() int {
	return s.Malicious + s.Suspicious + s.Harmless + s.Undetected
}

// ThreatCount is the number of engines flagging the URL.
func (s Stats) ThreatCount() int {
	return s.Malicious + s.Suspicious
}

// EngineResult is one detection engine's answer.
type EngineResult struct {
	Category   string `json:"category"`
	Result     string `json:"result"`
	Method     string `json:"method,omitempty"`
	EngineName string `json:"engine_name,omitempty"`
}

// Votes are community votes on a URL.
type Votes struct {
	Harmless  int `json:"harmless"`
	Malicious int `json:"malicious"`
}

// URLMeta is the aggregate metadata the reputation service keeps per URL.
type URLMeta struct {
	Title               string            `json:"title,omitempty"`
	Tags                []string          `json:"tags,omitempty"`
	Categories          map[string]string `json:"categories,omitempty"`
	Reputation          int               `json:"reputation"`
	TimesSubmitted      int               `json:"times_submitted"`
	FirstSubmissionDate int64             `json:"first_submission_date,omitempty"`
	LastSubmissionDate  int64             `json:"last_submission_date,omitempty"`
	TotalVotes          Votes             `json:"total_votes"`
}

// ReputationReport is produced once per scan by the reputation scanner.
// Per-engine results and URL metadata are kept apart.
type ReputationReport struct {
	Stats   Stats                   `json:"stats"`
	Engines map[string]EngineResult `json:"engines,omitempty"`
	URLMeta *URLMeta                `json:"url_meta,omitempty"`

	// ScanID is the URL identifier when known, otherwise the analysis id.
	ScanID     string `json:"scan_id"`
	AnalysisID string `json:"analysis_id"`

	// Attempts is the number of status polls it took to complete.
	Attempts int `json:"attempts"`
}
