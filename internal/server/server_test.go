package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raysh454/linkguard/internal/app"
	"github.com/raysh454/linkguard/internal/assessor"
	"github.com/raysh454/linkguard/internal/health"
	"github.com/raysh454/linkguard/internal/model"
	"github.com/raysh454/linkguard/internal/server"
	"github.com/raysh454/linkguard/internal/testutil"
	"github.com/raysh454/linkguard/internal/webclient"
)

// newTestServer serves an application whose stages are all dummies. The
// scanner is returned so tests can slow it down.
func newTestServer(t *testing.T, cfg server.Config) (*server.Server, *testutil.DummyScanner) {
	t.Helper()
	return newLoggedTestServer(t, cfg, &testutil.DummyLogger{})
}

func newLoggedTestServer(t *testing.T, cfg server.Config, logger *testutil.DummyLogger) (*server.Server, *testutil.DummyScanner) {
	t.Helper()

	appCfg := app.DefaultConfig()
	appCfg.Resolver.APIKey = "un"
	appCfg.Reputation.APIKey = "vt"
	appCfg.Sandbox.APIKey = "us"

	brands, err := assessor.NewBrandAssessor(appCfg.Assessor, logger)
	if err != nil {
		t.Fatalf("new assessor: %v", err)
	}
	scanner := &testutil.DummyScanner{}
	p, err := app.NewPipeline(appCfg, app.Stages{
		Resolver: &testutil.DummyResolver{},
		Scanner:  scanner,
		Sandbox:  &testutil.DummySandbox{},
		Analyzer: brands,
	}, logger)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	probeClient := &testutil.DummyWebClient{Handler: func(*webclient.Request) (*webclient.Response, error) {
		return testutil.JSONResponse(200, `{}`), nil
	}}

	a := &app.Application{
		Config:       appCfg,
		Logger:       logger,
		Pipeline:     p,
		Orchestrator: app.NewOrchestrator(appCfg, p, logger),
		Prober:       health.NewProber(appCfg.HealthConfig(), probeClient, logger),
	}
	s := server.New(cfg, a)
	t.Cleanup(s.Close)
	return s, scanner
}

func doJSON(t *testing.T, s http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON response: %v (body: %s)", err, rec.Body.String())
	}
}

func waitForJob(t *testing.T, s *server.Server, jobID string) *app.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if j := s.Orchestrator().GetJob(jobID); j != nil && j.Status.Terminal() {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", jobID)
	return nil
}

// ─── CORS ──────────────────────────────────────────────────────────────

func TestServer_CORS_HeaderPresent(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, server.Config{})

	rec := doJSON(t, s, "GET", "/scans", "")

	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("expected CORS origin *, got %q", origin)
	}
}

func TestServer_CORS_AllowList(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, server.Config{AllowedOrigins: []string{"https://app.example"}})

	req := httptest.NewRequest("GET", "/scans", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("allowed origin = %q", got)
	}

	req = httptest.NewRequest("GET", "/scans", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin should get no CORS header, got %q", got)
	}
}

func TestServer_Preflight(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, server.Config{})

	rec := doJSON(t, s, "OPTIONS", "/scans", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST" {
		t.Errorf("allow methods = %q", got)
	}
}

// ─── Scans ─────────────────────────────────────────────────────────────

func TestServer_StartScan(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, server.Config{})

	rec := doJSON(t, s, "POST", "/scans", `{"url":"https://example.com"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var job app.Job
	decodeJSON(t, rec, &job)
	if job.ID == "" || job.URL != "https://example.com" {
		t.Fatalf("unexpected job %+v", job)
	}

	done := waitForJob(t, s, job.ID)
	if done.Status != app.JobDone || done.Result == nil {
		t.Fatalf("job = %+v", done)
	}

	rec = doJSON(t, s, "GET", "/scans/"+job.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got map[string]any
	decodeJSON(t, rec, &got)
	result, ok := got["result"].(map[string]any)
	if !ok || result["verdict"] != string(model.VerdictSafe) {
		t.Errorf("unexpected body %v", got)
	}
}

func TestServer_StartScan_BadRequests(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, server.Config{})

	for _, body := range []string{`{invalid}`, `{"url":"   "}`, `{}`} {
		rec := doJSON(t, s, "POST", "/scans", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, rec.Code)
		}
	}
	if n := len(s.Orchestrator().ListJobs()); n != 0 {
		t.Errorf("bad requests must not create jobs, got %d", n)
	}
}

func TestServer_StartScan_InvalidLinkFailsJob(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, server.Config{})

	rec := doJSON(t, s, "POST", "/scans", `{"url":"http://[::1"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var job app.Job
	decodeJSON(t, rec, &job)

	done := waitForJob(t, s, job.ID)
	if done.Status != app.JobFailed || done.Error != app.MsgInvalidURL {
		t.Errorf("job = %+v", done)
	}
}

func TestServer_StartScan_ClosedOrchestrator(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, server.Config{})
	s.Orchestrator().Close()

	rec := doJSON(t, s, "POST", "/scans", `{"url":"https://example.com"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestServer_ListScans(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, server.Config{})

	rec := doJSON(t, s, "GET", "/scans", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var jobs []map[string]any
	decodeJSON(t, rec, &jobs)
	if len(jobs) != 0 {
		t.Errorf("expected no jobs, got %d", len(jobs))
	}

	doJSON(t, s, "POST", "/scans", `{"url":"https://example.com"}`)
	rec = doJSON(t, s, "GET", "/scans", "")
	decodeJSON(t, rec, &jobs)
	if len(jobs) != 1 {
		t.Errorf("expected 1 job, got %d", len(jobs))
	}
}

func TestServer_GetScan_NotFound(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, server.Config{})

	rec := doJSON(t, s, "GET", "/scans/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var e server.ErrorResponse
	decodeJSON(t, rec, &e)
	if e.Error != "job not found" {
		t.Errorf("error = %q", e.Error)
	}
}

func TestServer_CancelScan(t *testing.T) {
	t.Parallel()
	s, scanner := newTestServer(t, server.Config{})
	scanner.Delay = 10 * time.Second

	rec := doJSON(t, s, "POST", "/scans", `{"url":"https://example.com"}`)
	var job app.Job
	decodeJSON(t, rec, &job)

	rec = doJSON(t, s, "DELETE", "/scans/"+job.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if done := waitForJob(t, s, job.ID); done.Status != app.JobCanceled {
		t.Errorf("job = %+v", done)
	}
}

func TestServer_BodyTooLarge(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, server.Config{})

	big := `{"url":"https://example.com/` + strings.Repeat("a", 32<<10) + `"}`
	rec := doJSON(t, s, "POST", "/scans", big)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
}

func TestServer_RequestLogOmitsLink(t *testing.T) {
	t.Parallel()
	logger := &testutil.DummyLogger{}
	s, _ := newLoggedTestServer(t, server.Config{}, logger)

	const link = "https://bank.example/reset?token=s3cret"
	rec := doJSON(t, s, "POST", "/scans", `{"url":"`+link+`"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var job app.Job
	decodeJSON(t, rec, &job)
	waitForJob(t, s, job.ID)

	req := httptest.NewRequest("GET", "/scans?filter=s3cret-query", nil)
	s.ServeHTTP(httptest.NewRecorder(), req)

	var requests int
	for _, line := range logger.InfoLines() {
		if !strings.HasPrefix(line, "http_request") {
			continue
		}
		requests++
		if strings.Contains(line, "s3cret") {
			t.Errorf("request log carries the link: %q", line)
		}
	}
	if requests == 0 {
		t.Fatal("no request logged at info")
	}
}

// ─── Health & docs ─────────────────────────────────────────────────────

func TestServer_Health(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, server.Config{})

	rec := doJSON(t, s, "GET", "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var report health.Report
	decodeJSON(t, rec, &report)
	if !report.Healthy() {
		t.Errorf("report = %+v", report)
	}
}

func TestServer_SwaggerDoc(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, server.Config{})

	rec := doJSON(t, s, "GET", "/swagger/doc.json", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var doc map[string]any
	decodeJSON(t, rec, &doc)
	info, _ := doc["info"].(map[string]any)
	if info["title"] != "LinkGuard API" {
		t.Errorf("unexpected doc info %v", info)
	}
	paths, _ := doc["paths"].(map[string]any)
	if _, ok := paths["/scans"]; !ok {
		t.Error("doc is missing /scans")
	}
}

// ─── WebSocket ─────────────────────────────────────────────────────────

func dialScanWS(t *testing.T, s *server.Server, rawURL string) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/scans?url=" + rawURL
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServer_ScanWS_StreamsUntilResult(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, server.Config{})
	conn := dialScanWS(t, s, "https://example.com")
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var job app.Job
	if err := conn.ReadJSON(&job); err != nil {
		t.Fatalf("read job: %v", err)
	}
	if job.ID == "" {
		t.Fatal("first message should be the job")
	}

	var (
		phases []model.Phase
		result *app.JobEvent
	)
	for {
		var ev app.JobEvent
		if err := conn.ReadJSON(&ev); err != nil {
			break
		}
		if ev.JobID != job.ID {
			t.Errorf("event for foreign job %q", ev.JobID)
		}
		switch ev.Type {
		case app.JobEventPhase:
			phases = append(phases, ev.Phase)
		case app.JobEventResult:
			e := ev
			result = &e
		}
	}

	if result == nil || result.Result == nil || result.Result.Verdict != model.VerdictSafe {
		t.Fatalf("no result event received: %+v", result)
	}
	if len(phases) != 4 || phases[len(phases)-1] != model.PhaseComplete {
		t.Errorf("phases = %v", phases)
	}
}

func TestServer_ScanWS_DisconnectDoesNotCancel(t *testing.T) {
	t.Parallel()
	s, scanner := newTestServer(t, server.Config{})
	scanner.Delay = 100 * time.Millisecond
	conn := dialScanWS(t, s, "https://example.com")

	var job app.Job
	if err := conn.ReadJSON(&job); err != nil {
		t.Fatalf("read job: %v", err)
	}
	conn.Close()

	if done := waitForJob(t, s, job.ID); done.Status != app.JobDone {
		t.Errorf("scan should survive the disconnect, got %+v", done)
	}
}

func TestServer_ScanWS_MissingURL(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, server.Config{})

	rec := doJSON(t, s, "GET", "/ws/scans", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
