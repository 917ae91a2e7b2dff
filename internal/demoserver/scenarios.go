package demoserver

import (
	"fmt"
	"sort"

	"github.com/raysh454/linkguard/internal/model"
)

const (
	ScenarioClean       = "clean"
	ScenarioSuspicious  = "suspicious"
	ScenarioMalicious   = "malicious"
	ScenarioRateLimited = "rate_limited"
	ScenarioTimeout     = "timeout"
)

// Scenario decides how the emulated services answer for a link.
type Scenario struct {
	Name        string
	Description string

	Stats      model.Stats
	Title      string
	Reputation int
	Tags       []string

	Country string
	IP      string
	Server  string

	// RateLimited makes reputation and sandbox submissions answer 429.
	RateLimited bool

	// Stalled keeps analyses queued no matter how often they are polled.
	Stalled bool
}

// GetAllScenarios returns every built-in scenario keyed by name.
func GetAllScenarios() map[string]Scenario {
	return map[string]Scenario{
		ScenarioClean: {
			Name:        ScenarioClean,
			Description: "No engine flags the link. Verdict: SAFE.",
			Stats:       model.Stats{Harmless: 62, Undetected: 8},
			Title:       "Example Domain",
			Reputation:  5,
			Country:     "US",
			IP:          "93.184.215.14",
			Server:      "ECAcc (nyd/D184)",
		},
		ScenarioSuspicious: {
			Name:        ScenarioSuspicious,
			Description: "One engine calls the link suspicious. Verdict: WARNING.",
			Stats:       model.Stats{Suspicious: 1, Harmless: 58, Undetected: 11},
			Title:       "Account verification",
			Reputation:  -3,
			Tags:        []string{"redirector"},
			Country:     "NL",
			IP:          "185.220.101.4",
			Server:      "nginx",
		},
		ScenarioMalicious: {
			Name:        ScenarioMalicious,
			Description: "Several engines flag the link as malicious. Verdict: DANGER.",
			Stats:       model.Stats{Malicious: 7, Suspicious: 2, Harmless: 49, Undetected: 12},
			Title:       "Sign in",
			Reputation:  -42,
			Tags:        []string{"phishing", "credential-harvesting"},
			Country:     "RU",
			IP:          "45.142.212.61",
			Server:      "Apache/2.4.41 (Ubuntu)",
		},
		ScenarioRateLimited: {
			Name:        ScenarioRateLimited,
			Description: "Submissions are refused with 429 Too Many Requests.",
			RateLimited: true,
		},
		ScenarioTimeout: {
			Name:        ScenarioTimeout,
			Description: "Analyses never leave the queue, so polling runs out.",
			Stalled:     true,
		},
	}
}

// ScenarioNames returns the built-in scenario names in a stable order.
func ScenarioNames() []string {
	all := GetAllScenarios()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// engineResults fabricates one per-engine answer for every counted engine so
// the results map agrees with the stats.
func engineResults(stats model.Stats) map[string]model.EngineResult {
	out := make(map[string]model.EngineResult, stats.TotalVendors())
	n := 0
	add := func(count int, category, result string) {
		for i := 0; i < count; i++ {
			n++
			name := fmt.Sprintf("DemoEngine%02d", n)
			out[name] = model.EngineResult{
				Category:   category,
				Result:     result,
				Method:     "blacklist",
				EngineName: name,
			}
		}
	}
	add(stats.Malicious, "malicious", "phishing")
	add(stats.Suspicious, "suspicious", "suspicious")
	add(stats.Harmless, "harmless", "clean")
	add(stats.Undetected, "undetected", "unrated")
	return out
}
