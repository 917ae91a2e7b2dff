package reputation

import "github.com/raysh454/linkguard/internal/model"

// AnalysisStatusCompleted is the only status that ends polling successfully.
const AnalysisStatusCompleted = "completed"

// Analysis is one decoded status poll.
type Analysis struct {
	ID      string
	Status  string
	Stats   model.Stats
	Engines map[string]model.EngineResult

	// URLID is the canonical URL identifier, empty when the service did not
	// report one.
	URLID string
}

func (a *Analysis) Completed() bool {
	return a != nil && a.Status == AnalysisStatusCompleted
}

// Wire payloads. Only the fields the scanner reads are declared.

type submitPayload struct {
	Data struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	} `json:"data"`
}

type analysisPayload struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Status  string                        `json:"status"`
			Stats   model.Stats                   `json:"stats"`
			Results map[string]model.EngineResult `json:"results"`
		} `json:"attributes"`
	} `json:"data"`
	Meta struct {
		URLInfo struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"url_info"`
	} `json:"meta"`
}

type urlObjectPayload struct {
	Data struct {
		ID         string        `json:"id"`
		Attributes model.URLMeta `json:"attributes"`
	} `json:"data"`
}
