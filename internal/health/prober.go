// Package health probes connectivity to the upstream scanning services for
// an operational status page.
package health

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/raysh454/linkguard/internal/logging"
	"github.com/raysh454/linkguard/internal/webclient"
	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusError   Status = "error"
	StatusOffline Status = "offline"
)

const (
	msgConnected        = "connected"
	msgConnectedWarning = "connected (with warning)"
	msgMissingKey       = "API key missing"
)

// ServiceStatus is the outcome of probing one upstream.
type ServiceStatus struct {
	Status    Status `json:"status"`
	LatencyMS int64  `json:"latency"`
	Message   string `json:"message"`
}

// Report is the result of one Check.
type Report struct {
	VirusTotal ServiceStatus `json:"virustotal"`
	URLScan    ServiceStatus `json:"urlscan"`
	Unshorten  ServiceStatus `json:"unshorten"`
	CheckedAt  time.Time     `json:"checked_at"`
}

// Healthy reports whether every service answered as online.
func (r Report) Healthy() bool {
	return r.VirusTotal.Status == StatusOnline &&
		r.URLScan.Status == StatusOnline &&
		r.Unshorten.Status == StatusOnline
}

type Prober struct {
	cfg    Config
	client webclient.WebClient
	logger logging.Logger
}

func NewProber(cfg Config, client webclient.WebClient, logger logging.Logger) *Prober {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	cfg.VirusTotal.BaseURL = strings.TrimRight(cfg.VirusTotal.BaseURL, "/")
	cfg.URLScan.BaseURL = strings.TrimRight(cfg.URLScan.BaseURL, "/")
	cfg.Unshorten.BaseURL = strings.TrimRight(cfg.Unshorten.BaseURL, "/")
	return &Prober{
		cfg:    cfg,
		client: client,
		logger: logger.With(logging.Field{Key: "component", Value: "health"}),
	}
}

// Check probes the three services concurrently. Probe failures are part of
// the report, so Check itself never fails.
func (p *Prober) Check(ctx context.Context) Report {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	var report Report
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		report.VirusTotal = p.probeVirusTotal(gctx)
		return nil
	})
	g.Go(func() error {
		report.URLScan = p.probeURLScan(gctx)
		return nil
	})
	g.Go(func() error {
		report.Unshorten = p.probeUnshorten(gctx)
		return nil
	})
	_ = g.Wait()

	report.CheckedAt = time.Now().UTC()
	p.logger.Debug("health check finished",
		logging.Field{Key: "virustotal", Value: string(report.VirusTotal.Status)},
		logging.Field{Key: "urlscan", Value: string(report.URLScan.Status)},
		logging.Field{Key: "unshorten", Value: string(report.Unshorten.Status)})
	return report
}

func (p *Prober) probeVirusTotal(ctx context.Context) ServiceStatus {
	ep := p.cfg.VirusTotal
	if ep.APIKey == "" {
		return ServiceStatus{Status: StatusError, Message: msgMissingKey}
	}
	h := http.Header{}
	h.Set("x-apikey", ep.APIKey)
	return p.probe(ctx, ep.BaseURL+"/api/v3/ip_addresses/8.8.8.8", h, false)
}

func (p *Prober) probeURLScan(ctx context.Context) ServiceStatus {
	ep := p.cfg.URLScan
	if ep.APIKey == "" {
		return ServiceStatus{Status: StatusError, Message: msgMissingKey}
	}
	h := http.Header{}
	h.Set("API-Key", ep.APIKey)
	return p.probe(ctx, ep.BaseURL+"/user/quotas/", h, false)
}

// probeUnshorten counts any HTTP answer as online; the service replies with
// non-2xx statuses to unauthenticated probes.
func (p *Prober) probeUnshorten(ctx context.Context) ServiceStatus {
	ep := p.cfg.Unshorten
	h := http.Header{}
	if ep.APIKey != "" {
		h.Set("Authorization", "Token "+ep.APIKey)
	}
	return p.probe(ctx, ep.BaseURL+"/api/v2/unshorten?url=https://t.ly/test", h, true)
}

func (p *Prober) probe(ctx context.Context, endpoint string, headers http.Header, lenient bool) ServiceStatus {
	start := time.Now()
	resp, err := p.client.Do(ctx, &webclient.Request{Method: http.MethodGet, URL: endpoint, Headers: headers})
	if err != nil {
		p.logger.Warn("health probe failed",
			logging.Field{Key: "endpoint", Value: endpoint},
			logging.Field{Key: "error", Value: err.Error()})
		return ServiceStatus{Status: StatusOffline, Message: err.Error()}
	}
	latency := time.Since(start).Milliseconds()

	switch {
	case resp.OK():
		return ServiceStatus{Status: StatusOnline, LatencyMS: latency, Message: msgConnected}
	case lenient:
		return ServiceStatus{Status: StatusOnline, LatencyMS: latency, Message: msgConnectedWarning}
	default:
		return ServiceStatus{Status: StatusError, LatencyMS: latency, Message: fmt.Sprintf("error: %d", resp.StatusCode)}
	}
}
