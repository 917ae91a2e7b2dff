// Package sandbox captures a remote rendering of a link through urlscan.io.
// Capture never fails: every problem collapses to an empty report so a
// missing preview cannot hold back the verdict.
package sandbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/raysh454/linkguard/internal/logging"
	"github.com/raysh454/linkguard/internal/model"
	"github.com/raysh454/linkguard/internal/webclient"
)

type Fetcher struct {
	baseURL     string
	apiKey      string
	visibility  string
	settleDelay time.Duration
	client      webclient.WebClient
	logger      logging.Logger
}

func NewFetcher(cfg Config, client webclient.WebClient, logger logging.Logger) *Fetcher {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Visibility == "" {
		cfg.Visibility = def.Visibility
	}
	return &Fetcher{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		visibility:  cfg.Visibility,
		settleDelay: cfg.SettleDelay,
		client:      client,
		logger:      logger.With(logging.Field{Key: "component", Value: "sandbox"}),
	}
}

type submitRequest struct {
	URL        string `json:"url"`
	Visibility string `json:"visibility"`
}

type submitResponse struct {
	UUID    string `json:"uuid"`
	API     string `json:"api"`
	Result  string `json:"result"`
	Message string `json:"message"`
}

type resultResponse struct {
	Task struct {
		UUID          string `json:"uuid"`
		ScreenshotURL string `json:"screenshotURL"`
	} `json:"task"`
	Screenshot string `json:"screenshot"`
	Page       struct {
		Country string `json:"country"`
		IP      string `json:"ip"`
		Server  string `json:"server"`
	} `json:"page"`
}

// Capture submits resolvedURL, waits the settle delay once and fetches the
// result. The returned report is never nil.
func (f *Fetcher) Capture(ctx context.Context, resolvedURL string) *model.SandboxReport {
	empty := &model.SandboxReport{}
	if f.apiKey == "" {
		f.logger.Warn("sandbox api key not configured, skipping capture")
		return empty
	}

	submitted, ok := f.submit(ctx, resolvedURL)
	if !ok {
		return empty
	}

	timer := time.NewTimer(f.settleDelay)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
		f.logger.Warn("sandbox capture cancelled while settling", logging.Field{Key: "error", Value: ctx.Err().Error()})
		return empty
	}

	report, ok := f.fetchResult(ctx, f.resultURL(submitted))
	if !ok {
		return empty
	}
	if report.ScanUUID == "" {
		report.ScanUUID = submitted.UUID
	}
	return report
}

func (f *Fetcher) submit(ctx context.Context, resolvedURL string) (*submitResponse, bool) {
	body, err := json.Marshal(submitRequest{URL: resolvedURL, Visibility: f.visibility})
	if err != nil {
		return nil, false
	}

	headers := f.headers()
	headers.Set("Content-Type", "application/json")

	resp, err := f.client.Do(ctx, &webclient.Request{
		Method:  http.MethodPost,
		URL:     f.baseURL + "/api/v1/scan/",
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		f.logger.Warn("sandbox submission failed", logging.Field{Key: "error", Value: err.Error()})
		return nil, false
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		f.logger.Warn("sandbox service busy")
		return nil, false
	}
	if !resp.OK() {
		f.logger.Warn("sandbox submission rejected", logging.Field{Key: "status", Value: resp.StatusCode})
		return nil, false
	}

	var out submitResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		f.logger.Warn("sandbox submission response undecodable", logging.Field{Key: "error", Value: err.Error()})
		return nil, false
	}
	if out.UUID == "" && out.API == "" {
		f.logger.Warn("sandbox submission returned no result handle")
		return nil, false
	}

	f.logger.Debug("sandbox run started", logging.Field{Key: "uuid", Value: out.UUID})
	return &out, true
}

// resultURL prefers the api link from the submission when it points at the
// configured service; the API key is never sent anywhere else.
func (f *Fetcher) resultURL(s *submitResponse) string {
	if s.API != "" && sameHost(s.API, f.baseURL) {
		return s.API
	}
	return f.baseURL + "/api/v1/result/" + url.PathEscape(s.UUID) + "/"
}

func (f *Fetcher) fetchResult(ctx context.Context, resultURL string) (*model.SandboxReport, bool) {
	resp, err := f.client.Do(ctx, &webclient.Request{
		Method:  http.MethodGet,
		URL:     resultURL,
		Headers: f.headers(),
	})
	if err != nil {
		f.logger.Warn("sandbox result fetch failed", logging.Field{Key: "error", Value: err.Error()})
		return nil, false
	}
	if !resp.OK() {
		f.logger.Info("sandbox result not ready", logging.Field{Key: "status", Value: resp.StatusCode})
		return nil, false
	}

	var out resultResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		f.logger.Warn("sandbox result undecodable", logging.Field{Key: "error", Value: err.Error()})
		return nil, false
	}

	screenshot := out.Task.ScreenshotURL
	if screenshot == "" {
		screenshot = out.Screenshot
	}
	return &model.SandboxReport{
		ScreenshotURL: screenshot,
		Country:       out.Page.Country,
		IP:            out.Page.IP,
		Server:        out.Page.Server,
		ScanUUID:      out.Task.UUID,
	}, true
}

func (f *Fetcher) headers() http.Header {
	h := http.Header{}
	h.Set("API-Key", f.apiKey)
	h.Set("Accept", "application/json")
	return h
}

func sameHost(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return strings.EqualFold(ua.Host, ub.Host) && ua.Scheme == ub.Scheme
}
