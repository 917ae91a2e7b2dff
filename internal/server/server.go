package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/raysh454/linkguard/internal/app"
	"github.com/raysh454/linkguard/internal/logging"
)

// maxBodyBytes bounds request bodies; a scan request is one short URL.
const maxBodyBytes = 16 << 10

// Server is the HTTP + WebSocket API surface for LinkGuard.
type Server struct {
	cfg      Config
	app      *app.Application
	router   chi.Router
	upgrader websocket.Upgrader
	logger   logging.Logger
}

// NewServer builds the application from appCfg and serves it.
func NewServer(cfg Config, appCfg *app.Config, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewStdoutLogger("server")
	}
	a, err := app.NewApplication(appCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("building application: %w", err)
	}
	return New(cfg, a), nil
}

// New serves an already-built application. The server takes ownership and
// closes it in Close.
func New(cfg Config, a *app.Application) *Server {
	logger := a.Logger
	if logger == nil {
		logger = logging.NopLogger{}
	}
	s := &Server{
		cfg:    cfg,
		app:    a,
		router: chi.NewRouter(),
		logger: logger.With(logging.Field{Key: "component", Value: "server"}),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.originAllowed}
	s.routes()
	return s
}

// Orchestrator returns the underlying orchestrator for advanced use (tests, etc.).
func (s *Server) Orchestrator() *app.Orchestrator {
	return s.app.Orchestrator
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/scans", s.optionsHandler("GET, POST"))
	r.Options("/scans/{jobID}", s.optionsHandler("GET, DELETE"))
	r.Options("/health", s.optionsHandler("GET"))

	// Scans over REST
	r.Post("/scans", s.handleStartScan)
	r.Get("/scans", s.handleListScans)
	r.Get("/scans/{jobID}", s.handleGetScan)
	r.Delete("/scans/{jobID}", s.handleCancelScan)

	// WebSocket for scan progress
	r.Get("/ws/scans", s.handleScanWS)

	r.Get("/health", s.handleHealth)

	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return s.allowOrigin(origin) != ""
}

// allowOrigin returns the value for Access-Control-Allow-Origin, or "" when
// origin is not allowed.
func (s *Server) allowOrigin(origin string) string {
	if len(s.cfg.AllowedOrigins) == 0 {
		return "*"
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" {
			return "*"
		}
		if strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if allowed := s.allowOrigin(r.Header.Get("Origin")); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			if allowed != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}
	// The scanned link travels in the query or the body; those stay at debug.
	s.logger.Info("http_request", fields...)

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if bodyBytes, err := io.ReadAll(r.Body); err == nil {
			fields = append(fields, logging.Field{Key: "body", Value: string(bodyBytes)})
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		} else {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
	}

	s.logger.Debug("http_request_detail", fields...)

	s.router.ServeHTTP(w, r)
}

// Close shuts down the orchestrator and the upstream clients.
func (s *Server) Close() {
	if s.app != nil {
		if err := s.app.Close(); err != nil {
			s.logger.Warn("closing application", logging.Field{Key: "error", Value: err.Error()})
		}
	}
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0, // allow streaming
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// --- HTTP handlers ---

// handleStartScan queues a scan.
//
//	@Summary	Submit a link for scanning
//	@Tags		scans
//	@Accept		json
//	@Produce	json
//	@Param		request	body		StartScanRequest	true	"Link to scan"
//	@Success	202		{object}	app.Job
//	@Failure	400		{object}	ErrorResponse
//	@Failure	503		{object}	ErrorResponse
//	@Router		/scans [post]
func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	var body StartScanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(body.URL) == "" {
		writeError(w, http.StatusBadRequest, app.MsgInvalidURL)
		return
	}

	job, err := s.app.Orchestrator.StartScanJob(body.URL)
	if err != nil {
		s.logger.Warn("starting scan job", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.logger.Info("started scan job", logging.Field{Key: "job_id", Value: job.ID})
	writeJSON(w, http.StatusAccepted, s.app.Orchestrator.GetJob(job.ID))
}

// handleListScans lists retained scan jobs.
//
//	@Summary	List scan jobs
//	@Tags		scans
//	@Produce	json
//	@Success	200	{array}	app.Job
//	@Router		/scans [get]
func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	jobs := s.app.Orchestrator.ListJobs()
	s.logger.Debug("listed jobs", logging.Field{Key: "count", Value: len(jobs)})
	writeJSON(w, http.StatusOK, jobs)
}

// handleGetScan returns one job, with its result once done.
//
//	@Summary	Get a scan job
//	@Tags		scans
//	@Produce	json
//	@Param		jobID	path		string	true	"Job ID"
//	@Success	200		{object}	app.Job
//	@Failure	404		{object}	ErrorResponse
//	@Router		/scans/{jobID} [get]
func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.app.Orchestrator.GetJob(jobID)
	if job == nil {
		s.logger.Warn("getting job: not found", logging.Field{Key: "job_id", Value: jobID})
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleCancelScan cancels a running job.
//
//	@Summary	Cancel a scan job
//	@Tags		scans
//	@Param		jobID	path	string	true	"Job ID"
//	@Success	204
//	@Router		/scans/{jobID} [delete]
func (s *Server) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	s.app.Orchestrator.CancelJob(jobID)
	s.logger.Info("canceled job", logging.Field{Key: "job_id", Value: jobID})
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth probes the upstream services.
//
//	@Summary	Upstream service status
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	health.Report
//	@Router		/health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Health(r.Context()))
}

// WebSockets

// handleScanWS starts a scan and streams its events. The first message is the
// job itself; the connection closes after the terminal event. A client that
// disconnects early does not cancel the scan: the result stays available
// under GET /scans/{jobID}.
//
//	@Summary	Scan a link and stream progress over a websocket
//	@Tags		scans
//	@Param		url	query	string	true	"Link to scan"
//	@Router		/ws/scans [get]
func (s *Server) handleScanWS(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if strings.TrimSpace(rawURL) == "" {
		writeError(w, http.StatusBadRequest, app.MsgInvalidURL)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	job, err := s.app.Orchestrator.StartScanJob(rawURL)
	if err != nil {
		s.logger.Warn("starting scan job", logging.Field{Key: "error", Value: err.Error()})
		_ = conn.WriteJSON(ErrorResponse{Error: err.Error()})
		return
	}

	s.logger.Info("started scan job", logging.Field{Key: "job_id", Value: job.ID})
	_ = conn.WriteJSON(s.app.Orchestrator.GetJob(job.ID))

	for ev := range job.Events {
		if err := conn.WriteJSON(ev); err != nil {
			s.logger.Info("websocket client went away, scan continues",
				logging.Field{Key: "job_id", Value: job.ID})
			return
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "scan finished"))
}

func statusFor(err error) int {
	if errors.Is(err, app.ErrOrchestratorClosed) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
