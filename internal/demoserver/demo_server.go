// Package demoserver emulates the three upstream services a scan talks to,
// so the whole pipeline can be demonstrated without real credentials. The
// verdict of each link is driven by a scenario chosen from a control panel.
package demoserver

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/raysh454/linkguard/internal/logging"
	"github.com/raysh454/linkguard/internal/model"
	"github.com/raysh454/linkguard/internal/utils"
)

type analysis struct {
	url      string
	urlID    string
	scenario Scenario
	polls    int
}

type sandboxRun struct {
	url      string
	scenario Scenario
}

// DemoServer answers unshortening, reputation and sandbox requests the way
// the real services do.
type DemoServer struct {
	cfg       Config
	logger    logging.Logger
	scenarios map[string]Scenario

	mu          sync.RWMutex
	active      string
	hosts       map[string]string // host -> scenario name
	analyses    map[string]*analysis
	urls        map[string]*analysis // url id -> latest analysis
	runs        map[string]*sandboxRun
	submissions int
}

// NewDemoServer creates a new demo server instance.
func NewDemoServer(cfg Config, logger logging.Logger) *DemoServer {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	scenarios := GetAllScenarios()
	if _, ok := scenarios[cfg.InitialScenario]; !ok {
		cfg.InitialScenario = ScenarioClean
	}
	if cfg.CompleteAfterPolls < 1 {
		cfg.CompleteAfterPolls = 1
	}
	return &DemoServer{
		cfg:       cfg,
		logger:    logger.With(logging.Field{Key: "component", Value: "demoserver"}),
		scenarios: scenarios,
		active:    cfg.InitialScenario,
		hosts:     map[string]string{},
		analyses:  map[string]*analysis{},
		urls:      map[string]*analysis{},
		runs:      map[string]*sandboxRun{},
	}
}

// Handler returns the routes of every emulated service plus the control panel.
func (s *DemoServer) Handler() http.Handler {
	r := chi.NewRouter()

	// unshorten.me
	r.Get("/api/v2/unshorten", s.unshortenHandler)

	// VirusTotal
	r.Post("/api/v3/urls", s.submitURLHandler)
	r.Get("/api/v3/analyses/{id}", s.analysisHandler)
	r.Get("/api/v3/urls/{id}", s.urlObjectHandler)
	r.Get("/api/v3/ip_addresses/{ip}", s.ipAddressHandler)

	// urlscan.io
	r.Post("/api/v1/scan/", s.sandboxSubmitHandler)
	r.Get("/api/v1/result/{uuid}/", s.sandboxResultHandler)
	r.Get("/user/quotas/", s.quotasHandler)
	r.Get("/screenshots/{file}", s.screenshotHandler)

	// Control panel for scenario switching
	r.Get("/demo/control", s.controlPanelHandler)
	r.Post("/demo/set-scenario", s.setScenarioHandler)
	r.Get("/demo/get-scenarios", s.getScenariosHandler)
	r.Post("/demo/reset", s.resetHandler)

	return r
}

// Start starts the demo server.
func (s *DemoServer) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Info("demo server starting",
		logging.Field{Key: "addr", Value: "http://localhost" + addr},
		logging.Field{Key: "control_panel", Value: "http://localhost" + addr + "/demo/control"})
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// ─── unshorten.me ──────────────────────────────────────────────────────

func (s *DemoServer) unshortenHandler(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(strings.TrimPrefix(r.Header.Get("Authorization"), "Token ")) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Invalid token."})
		return
	}
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if !utils.IsAbsoluteHTTPURL(raw) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "url is required"})
		return
	}

	resolved := raw
	if target, ok := s.cfg.ShortLinks[raw]; ok {
		resolved = target
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"requested_url": raw,
		"success":       true,
		"resolved_url":  resolved,
	})
}

// ─── VirusTotal ────────────────────────────────────────────────────────

func (s *DemoServer) submitURLHandler(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r.Header.Get("x-apikey")) {
		writeVTError(w, http.StatusUnauthorized, "WrongCredentialsError", "Wrong API key")
		return
	}
	raw := strings.TrimSpace(r.FormValue("url"))
	if !utils.IsAbsoluteHTTPURL(raw) {
		writeVTError(w, http.StatusBadRequest, "InvalidArgumentError", "Unable to canonicalize url")
		return
	}

	s.mu.Lock()
	sc := s.scenarioFor(raw)
	if sc.RateLimited {
		s.mu.Unlock()
		writeVTError(w, http.StatusTooManyRequests, "QuotaExceededError", "Quota exceeded")
		return
	}
	s.submissions++
	urlID := urlIdentifier(raw)
	id := fmt.Sprintf("u-%s-%d", urlID[:16], s.submissions)
	a := &analysis{url: raw, urlID: urlID, scenario: sc}
	s.analyses[id] = a
	s.urls[urlID] = a
	s.mu.Unlock()

	s.logger.Info("url submitted",
		logging.Field{Key: "url", Value: raw},
		logging.Field{Key: "scenario", Value: sc.Name},
		logging.Field{Key: "analysis_id", Value: id})
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"type":  "analysis",
			"id":    id,
			"links": map[string]string{"self": baseURL(r) + "/api/v3/analyses/" + id},
		},
	})
}

func (s *DemoServer) analysisHandler(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r.Header.Get("x-apikey")) {
		writeVTError(w, http.StatusUnauthorized, "WrongCredentialsError", "Wrong API key")
		return
	}
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	a, ok := s.analyses[id]
	if !ok {
		s.mu.Unlock()
		writeVTError(w, http.StatusNotFound, "NotFoundError", fmt.Sprintf("Analysis %q not found", id))
		return
	}
	a.polls++
	completed := !a.scenario.Stalled && a.polls >= s.cfg.CompleteAfterPolls
	snapshot := *a
	s.mu.Unlock()

	attrs := map[string]any{
		"status":  "queued",
		"stats":   model.Stats{},
		"results": map[string]model.EngineResult{},
		"date":    time.Now().Unix(),
	}
	if completed {
		attrs["status"] = "completed"
		attrs["stats"] = snapshot.scenario.Stats
		attrs["results"] = engineResults(snapshot.scenario.Stats)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"type":       "analysis",
			"id":         id,
			"attributes": attrs,
		},
		"meta": map[string]any{
			"url_info": map[string]string{"id": snapshot.urlID, "url": snapshot.url},
		},
	})
}

func (s *DemoServer) urlObjectHandler(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r.Header.Get("x-apikey")) {
		writeVTError(w, http.StatusUnauthorized, "WrongCredentialsError", "Wrong API key")
		return
	}
	id := chi.URLParam(r, "id")

	s.mu.RLock()
	a, ok := s.urls[id]
	var snapshot analysis
	if ok {
		snapshot = *a
	}
	s.mu.RUnlock()
	if !ok {
		writeVTError(w, http.StatusNotFound, "NotFoundError", fmt.Sprintf("URL %q not found", id))
		return
	}

	sc := snapshot.scenario
	categories := map[string]string{}
	if len(sc.Tags) > 0 {
		categories["DemoEngine01"] = sc.Tags[0]
	}
	now := time.Now().Unix()
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"type": "url",
			"id":   id,
			"attributes": model.URLMeta{
				Title:               sc.Title,
				Tags:                sc.Tags,
				Categories:          categories,
				Reputation:          sc.Reputation,
				TimesSubmitted:      1,
				FirstSubmissionDate: now,
				LastSubmissionDate:  now,
				TotalVotes:          model.Votes{Harmless: sc.Stats.Harmless / 10, Malicious: sc.Stats.Malicious},
			},
		},
	})
}

func (s *DemoServer) ipAddressHandler(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r.Header.Get("x-apikey")) {
		writeVTError(w, http.StatusUnauthorized, "WrongCredentialsError", "Wrong API key")
		return
	}
	ip := chi.URLParam(r, "ip")
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"type":       "ip_address",
			"id":         ip,
			"attributes": map[string]any{"country": "US", "as_owner": "Demo Networks"},
		},
	})
}

// ─── urlscan.io ────────────────────────────────────────────────────────

func (s *DemoServer) sandboxSubmitHandler(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r.Header.Get("API-Key")) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "API key supplied but not found in database!", "status": 401})
		return
	}
	var req struct {
		URL        string `json:"url"`
		Visibility string `json:"visibility"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !utils.IsAbsoluteHTTPURL(req.URL) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Missing URL properties", "status": 400})
		return
	}

	id := uuid.NewString()
	s.mu.Lock()
	sc := s.scenarioFor(req.URL)
	if sc.RateLimited {
		s.mu.Unlock()
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"message": "Rate limit exceeded", "status": 429})
		return
	}
	s.runs[id] = &sandboxRun{url: req.URL, scenario: sc}
	s.mu.Unlock()

	base := baseURL(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Submission successful",
		"uuid":       id,
		"result":     base + "/result/" + id + "/",
		"api":        base + "/api/v1/result/" + id + "/",
		"visibility": req.Visibility,
		"url":        req.URL,
	})
}

func (s *DemoServer) sandboxResultHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	s.mu.RLock()
	run, ok := s.runs[id]
	var snapshot sandboxRun
	if ok {
		snapshot = *run
	}
	s.mu.RUnlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Scan is not finished yet or does not exist", "status": 404})
		return
	}

	sc := snapshot.scenario
	writeJSON(w, http.StatusOK, map[string]any{
		"task": map[string]any{
			"uuid":          id,
			"url":           snapshot.url,
			"screenshotURL": baseURL(r) + "/screenshots/" + id + ".svg",
		},
		"page": map[string]any{
			"url":     snapshot.url,
			"country": sc.Country,
			"ip":      sc.IP,
			"server":  sc.Server,
		},
	})
}

func (s *DemoServer) quotasHandler(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r.Header.Get("API-Key")) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "API key supplied but not found in database!", "status": 401})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"limits": map[string]any{
			"public": map[string]any{"day": map[string]int{"limit": 5000, "used": s.sandboxRuns(), "remaining": 5000 - s.sandboxRuns()}},
		},
	})
}

// screenshotHandler renders a placeholder image naming the captured link.
func (s *DemoServer) screenshotHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(chi.URLParam(r, "file"), ".svg")
	s.mu.RLock()
	run, ok := s.runs[id]
	var target string
	if ok {
		target = run.url
	}
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = fmt.Fprintf(w, `<svg xmlns="http://www.w3.org/2000/svg" width="640" height="360">`+
		`<rect width="100%%" height="100%%" fill="#f5f5f5"/>`+
		`<text x="20" y="180" font-family="sans-serif" font-size="18">%s</text></svg>`,
		html.EscapeString(target))
}

// ─── Control panel ─────────────────────────────────────────────────────

// controlPanelHandler serves the control panel for scenario management.
func (s *DemoServer) controlPanelHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tmpl := template.Must(template.New("control").Parse(controlPanelHTML))
	data := struct {
		Scenarios  map[string]Scenario
		Active     string
		Hosts      map[string]string
		ShortLinks map[string]string
		Port       int
	}{
		Scenarios:  s.scenarios,
		Active:     s.active,
		Hosts:      s.hosts,
		ShortLinks: s.cfg.ShortLinks,
		Port:       s.cfg.Port,
	}
	w.Header().Set("Content-Type", "text/html")
	_ = tmpl.Execute(w, data)
}

// setScenarioHandler sets the default scenario, or the scenario for one host
// when a host is given.
func (s *DemoServer) setScenarioHandler(w http.ResponseWriter, r *http.Request) {
	name := r.FormValue("scenario")
	host := strings.ToLower(strings.TrimSpace(r.FormValue("host")))

	if _, ok := s.scenarios[name]; !ok {
		http.Error(w, "Unknown scenario", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if host == "" {
		s.active = name
	} else {
		s.hosts[host] = name
	}
	s.mu.Unlock()

	s.logger.Info("scenario changed",
		logging.Field{Key: "scenario", Value: name},
		logging.Field{Key: "host", Value: host})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"scenario": name,
		"host":     host,
	})
}

// getScenariosHandler returns every scenario and the current selection.
func (s *DemoServer) getScenariosHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type ScenarioInfo struct {
		Name        string      `json:"name"`
		Description string      `json:"description"`
		Stats       model.Stats `json:"stats"`
		Active      bool        `json:"active"`
	}

	var scenarios []ScenarioInfo
	for _, name := range ScenarioNames() {
		sc := s.scenarios[name]
		scenarios = append(scenarios, ScenarioInfo{
			Name:        sc.Name,
			Description: sc.Description,
			Stats:       sc.Stats,
			Active:      name == s.active,
		})
	}

	hosts := make(map[string]string, len(s.hosts))
	for h, n := range s.hosts {
		hosts[h] = n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active":    s.active,
		"hosts":     hosts,
		"scenarios": scenarios,
	})
}

// resetHandler restores the initial scenario and forgets every submission.
func (s *DemoServer) resetHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.active = s.cfg.InitialScenario
	s.hosts = map[string]string{}
	s.analyses = map[string]*analysis{}
	s.urls = map[string]*analysis{}
	s.runs = map[string]*sandboxRun{}
	s.submissions = 0
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Scenarios reset to " + s.cfg.InitialScenario,
	})
}

// ─── Helpers ───────────────────────────────────────────────────────────

// scenarioFor picks the host override for raw, else the active scenario.
// Callers hold s.mu.
func (s *DemoServer) scenarioFor(raw string) Scenario {
	if host, err := utils.Hostname(raw); err == nil {
		for h, name := range s.hosts {
			if utils.HostMatches(host, h) {
				return s.scenarios[name]
			}
		}
	}
	return s.scenarios[s.active]
}

func (s *DemoServer) sandboxRuns() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

func (s *DemoServer) authorized(key string) bool {
	return s.cfg.APIKey == "" || key == s.cfg.APIKey
}

// urlIdentifier mirrors the reputation service: the hex SHA-256 of the URL.
func urlIdentifier(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeVTError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

const controlPanelHTML = `<!DOCTYPE html>
<html>
<head>
    <title>LinkGuard Demo Upstreams</title>
    <style>
        body { font-family: system-ui, -apple-system, sans-serif; max-width: 1200px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
        h1 { color: #333; border-bottom: 2px solid #007bff; padding-bottom: 10px; }
        .card { background: white; border-radius: 8px; padding: 20px; margin: 15px 0; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .card-header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 10px; }
        .name { font-size: 1.2em; font-weight: bold; color: #007bff; }
        .desc { color: #666; margin: 5px 0; }
        .btn { padding: 8px 16px; border: none; border-radius: 4px; cursor: pointer; font-size: 14px; }
        .btn.active { background: #007bff; color: white; }
        .btn.inactive { background: #e9ecef; color: #333; }
        .current { font-weight: bold; color: #28a745; }
        .global-controls { background: #fff3cd; padding: 20px; border-radius: 8px; margin-bottom: 20px; }
        .global-controls h2 { margin-top: 0; color: #856404; }
        .reset-btn { background: #dc3545; color: white; }
        .status { margin-top: 10px; padding: 10px; border-radius: 4px; display: none; }
        .status.success { background: #d4edda; color: #155724; display: block; }
        .status.error { background: #f8d7da; color: #721c24; display: block; }
        .info-box { background: #e7f3ff; padding: 15px; border-radius: 8px; margin-bottom: 20px; border-left: 4px solid #007bff; }
        table { border-collapse: collapse; }
        td { padding: 4px 12px 4px 0; }
    </style>
</head>
<body>
    <h1>LinkGuard Demo Upstreams</h1>

    <div class="info-box">
        <strong>How to use:</strong> Point LinkGuard at this server with
        <code>--virustotal-url</code>, <code>--urlscan-url</code> and <code>--unshorten-url</code>
        set to <code>http://localhost:{{.Port}}</code>, then pick the scenario the next scans should see.
    </div>

    <div class="global-controls">
        <h2>Global Controls</h2>
        <label>Host override: <input id="host" placeholder="e.g. evil.example"></label>
        <button class="btn reset-btn" onclick="resetAll()">Reset</button>
        <div id="global-status" class="status"></div>
        {{if .Hosts}}
        <h3>Host overrides</h3>
        <table>{{range $host, $name := .Hosts}}<tr><td>{{$host}}</td><td>{{$name}}</td></tr>{{end}}</table>
        {{end}}
    </div>

    <h2>Scenarios</h2>
    {{range $name, $sc := .Scenarios}}
    <div class="card">
        <div class="card-header">
            <span class="name">{{$name}}</span>
            {{if eq $.Active $name}}<span class="current">Active</span>{{end}}
        </div>
        <div class="desc">{{$sc.Description}}</div>
        <button class="btn {{if eq $.Active $name}}active{{else}}inactive{{end}}" onclick="setScenario('{{$name}}')">Use {{$name}}</button>
    </div>
    {{end}}

    <h2>Short links</h2>
    <div class="card">
        <table>{{range $short, $long := .ShortLinks}}<tr><td>{{$short}}</td><td>&rarr; {{$long}}</td></tr>{{end}}</table>
    </div>

    <script>
        function setScenario(name) {
            const host = document.getElementById('host').value;
            fetch('/demo/set-scenario', {
                method: 'POST',
                headers: {'Content-Type': 'application/x-www-form-urlencoded'},
                body: 'scenario=' + encodeURIComponent(name) + '&host=' + encodeURIComponent(host)
            })
            .then(r => r.json())
            .then(data => {
                showGlobalStatus(data.success, 'Scenario set to ' + data.scenario + (data.host ? ' for ' + data.host : ''));
                if (data.success) location.reload();
            });
        }

        function resetAll() {
            fetch('/demo/reset', {method: 'POST'})
            .then(r => r.json())
            .then(data => {
                showGlobalStatus(data.success, data.message);
                if (data.success) location.reload();
            });
        }

        function showGlobalStatus(success, message) {
            const el = document.getElementById('global-status');
            el.textContent = message;
            el.className = 'status ' + (success ? 'success' : 'error');
        }
    </script>
</body>
</html>`
