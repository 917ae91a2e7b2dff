// Package reputation talks to the VirusTotal v3 API: it submits a URL,
// polls the resulting analysis until it completes or the attempt budget runs
// out, and enriches completed scans with the URL object's metadata.
package reputation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/raysh454/linkguard/internal/logging"
	"github.com/raysh454/linkguard/internal/model"
	"github.com/raysh454/linkguard/internal/webclient"
)

const serviceName = "virustotal"

type Client struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	maxAttempts  int
	client       webclient.WebClient
	logger       logging.Logger
}

func NewClient(cfg Config, client webclient.WebClient, logger logging.Logger) (*Client, error) {
	if client == nil {
		return nil, errors.New("reputation: nil webclient")
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.PollInterval < 0 {
		cfg.PollInterval = 0
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		pollInterval: cfg.PollInterval,
		maxAttempts:  cfg.MaxAttempts,
		client:       client,
		logger:       logger.With(logging.Field{Key: "component", Value: "reputation"}),
	}, nil
}

// Scan runs submit → poll → enrich for resolvedURL.
//
// It fails with a *model.SubmissionError when the submission is rejected and
// with model.ErrScanTimeout when the analysis never completes within the
// attempt budget. No partial stats are ever returned.
func (c *Client) Scan(ctx context.Context, resolvedURL string) (*model.ReputationReport, error) {
	if c.apiKey == "" {
		return nil, &model.ConfigurationError{Missing: []string{EnvAPIKey}}
	}

	analysisID, err := c.SubmitScan(ctx, resolvedURL)
	if err != nil {
		return nil, err
	}

	analysis, attempts, err := c.poll(ctx, analysisID)
	if err != nil {
		return nil, err
	}

	report := &model.ReputationReport{
		Stats:      analysis.Stats,
		Engines:    analysis.Engines,
		ScanID:     analysisID,
		AnalysisID: analysisID,
		Attempts:   attempts,
	}

	if analysis.URLID != "" {
		report.ScanID = analysis.URLID
		meta, err := c.FetchURLMeta(ctx, analysis.URLID)
		if err != nil {
			c.logger.Warn("url metadata enrichment failed",
				logging.Field{Key: "url_id", Value: analysis.URLID},
				logging.Field{Key: "error", Value: err.Error()})
		} else {
			report.URLMeta = meta
		}
	}

	c.logger.Info("reputation scan completed",
		logging.Field{Key: "scan_id", Value: report.ScanID},
		logging.Field{Key: "attempts", Value: attempts},
		logging.Field{Key: "malicious", Value: report.Stats.Malicious},
		logging.Field{Key: "suspicious", Value: report.Stats.Suspicious})
	return report, nil
}

// poll waits PollInterval before each status query and stops at the first
// completed analysis. Failed polls consume an attempt and are only logged.
func (c *Client) poll(ctx context.Context, analysisID string) (*Analysis, int, error) {
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := sleep(ctx, c.pollInterval); err != nil {
			return nil, attempt - 1, fmt.Errorf("polling analysis %s: %w", analysisID, err)
		}

		analysis, err := c.GetAnalysis(ctx, analysisID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, attempt, fmt.Errorf("polling analysis %s: %w", analysisID, ctx.Err())
			}
			c.logger.Warn("analysis poll failed",
				logging.Field{Key: "analysis_id", Value: analysisID},
				logging.Field{Key: "attempt", Value: attempt},
				logging.Field{Key: "error", Value: err.Error()})
			continue
		}

		if analysis.Completed() {
			return analysis, attempt, nil
		}
		c.logger.Debug("analysis not ready",
			logging.Field{Key: "analysis_id", Value: analysisID},
			logging.Field{Key: "status", Value: analysis.Status},
			logging.Field{Key: "attempt", Value: attempt},
			logging.Field{Key: "max_attempts", Value: c.maxAttempts})
	}

	c.logger.Warn("analysis did not complete in time",
		logging.Field{Key: "analysis_id", Value: analysisID},
		logging.Field{Key: "attempts", Value: c.maxAttempts})
	return nil, c.maxAttempts, fmt.Errorf("analysis %s after %d attempts: %w", analysisID, c.maxAttempts, model.ErrScanTimeout)
}

// SubmitScan posts the URL and returns the analysis identifier.
func (c *Client) SubmitScan(ctx context.Context, resolvedURL string) (string, error) {
	form := url.Values{}
	form.Set("url", resolvedURL)

	headers := c.headers()
	headers.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(ctx, &webclient.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL + "/api/v3/urls",
		Headers: headers,
		Body:    []byte(form.Encode()),
	})
	if err != nil {
		return "", &model.SubmissionError{Service: serviceName, Reason: model.SubmissionUnexpected, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.Warn("submission rate limited")
		return "", &model.SubmissionError{Service: serviceName, Reason: model.SubmissionRateLimited, StatusCode: resp.StatusCode}
	case !resp.OK():
		c.logger.Warn("submission rejected", logging.Field{Key: "status", Value: resp.StatusCode})
		return "", &model.SubmissionError{Service: serviceName, Reason: model.SubmissionUnexpected, StatusCode: resp.StatusCode}
	}

	var payload submitPayload
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return "", &model.SubmissionError{Service: serviceName, Reason: model.SubmissionUnexpected, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode submission: %w", err)}
	}
	if payload.Data.ID == "" {
		return "", &model.SubmissionError{Service: serviceName, Reason: model.SubmissionUnexpected, StatusCode: resp.StatusCode, Err: errors.New("no analysis id in response")}
	}

	c.logger.Debug("submitted url", logging.Field{Key: "analysis_id", Value: payload.Data.ID})
	return payload.Data.ID, nil
}

// GetAnalysis fetches the current state of one analysis.
func (c *Client) GetAnalysis(ctx context.Context, analysisID string) (*Analysis, error) {
	resp, err := c.client.Do(ctx, &webclient.Request{
		Method:  http.MethodGet,
		URL:     c.baseURL + "/api/v3/analyses/" + url.PathEscape(analysisID),
		Headers: c.headers(),
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("analysis status %d", resp.StatusCode)
	}

	var payload analysisPayload
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}

	attrs := payload.Data.Attributes
	return &Analysis{
		ID:      payload.Data.ID,
		Status:  attrs.Status,
		Stats:   clampStats(attrs.Stats),
		Engines: attrs.Results,
		URLID:   payload.Meta.URLInfo.ID,
	}, nil
}

// FetchURLMeta loads the aggregate metadata kept for a URL identifier.
func (c *Client) FetchURLMeta(ctx context.Context, urlID string) (*model.URLMeta, error) {
	resp, err := c.client.Do(ctx, &webclient.Request{
		Method:  http.MethodGet,
		URL:     c.baseURL + "/api/v3/urls/" + url.PathEscape(urlID),
		Headers: c.headers(),
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("url object status %d", resp.StatusCode)
	}

	var payload urlObjectPayload
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("decode url object: %w", err)
	}
	meta := payload.Data.Attributes
	return &meta, nil
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set("x-apikey", c.apiKey)
	h.Set("Accept", "application/json")
	return h
}

func clampStats(s model.Stats) model.Stats {
	s.Malicious = max(s.Malicious, 0)
	s.Suspicious = max(s.Suspicious, 0)
	s.Harmless = max(s.Harmless, 0)
	s.Undetected = max(s.Undetected, 0)
	return s
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
