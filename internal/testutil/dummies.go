// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raysh454/linkguard/internal/logging"
	"github.com/raysh454/linkguard/internal/model"
	"github.com/raysh454/linkguard/internal/webclient"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, formatEntry(msg, fields))
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, formatEntry(msg, fields))
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, formatEntry(msg, fields))
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, formatEntry(msg, fields))
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// InfoLines returns a copy of the recorded info entries.
func (l *DummyLogger) InfoLines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.Infos...)
}

// formatEntry renders msg and its fields as "msg key=value ...".
func formatEntry(msg string, fields []logging.Field) string {
	var b strings.Builder
	b.WriteString(msg)
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	return b.String()
}

// WarnCount returns the number of recorded warnings.
func (l *DummyLogger) WarnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Warns)
}

// ─── WebClient ─────────────────────────────────────────────────────────

// DummyWebClient implements webclient.WebClient.
// By default it returns body "ok:<url>" with status 200.
// Set FailURLs[url] = true to force an error for a specific URL, or Handler
// to script responses.
type DummyWebClient struct {
	ResponseDelay time.Duration
	FailURLs      map[string]bool
	Handler       func(req *webclient.Request) (*webclient.Response, error)
	mu            sync.Mutex
	Requests      []*webclient.Request
}

func (d *DummyWebClient) Do(ctx context.Context, req *webclient.Request) (*webclient.Response, error) {
	if d.ResponseDelay > 0 {
		select {
		case <-time.After(d.ResponseDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	d.Requests = append(d.Requests, req)
	d.mu.Unlock()

	if d.FailURLs != nil && d.FailURLs[req.URL] {
		return nil, &errString{"dummy fetch fail for " + req.URL}
	}
	if d.Handler != nil {
		resp, err := d.Handler(req)
		if resp != nil {
			resp.Request = req
			resp.FetchedAt = time.Now()
		}
		return resp, err
	}

	return &webclient.Response{
		Request:    req,
		Body:       []byte("ok:" + req.URL),
		StatusCode: 200,
		FetchedAt:  time.Now(),
	}, nil
}

func (d *DummyWebClient) Close() error { return nil }

// Calls returns the number of requests seen so far.
func (d *DummyWebClient) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Requests)
}

// JSONResponse builds a response carrying body with a JSON content type.
func JSONResponse(status int, body string) *webclient.Response {
	return &webclient.Response{
		StatusCode: status,
		Headers:    http.Header{"Content-Type": {"application/json"}},
		Body:       []byte(body),
	}
}

// ─── Pipeline stages ───────────────────────────────────────────────────

// DummyResolver returns Target, or Err, for every call.
type DummyResolver struct {
	Target *model.ResolvedTarget
	Err    error
	calls  atomic.Int32
}

func (d *DummyResolver) Resolve(_ context.Context, raw string) (model.ResolvedTarget, error) {
	d.calls.Add(1)
	if d.Err != nil {
		return model.ResolvedTarget{}, d.Err
	}
	if d.Target != nil {
		return *d.Target, nil
	}
	return model.ResolvedTarget{OriginalURL: raw, ResolvedURL: raw}, nil
}

func (d *DummyResolver) Calls() int { return int(d.calls.Load()) }

// DummyScanner returns Report, or Err, after an optional Delay.
type DummyScanner struct {
	Report *model.ReputationReport
	Err    error
	Delay  time.Duration
	calls  atomic.Int32
	mu     sync.Mutex
	URLs   []string
}

func (d *DummyScanner) Scan(ctx context.Context, resolvedURL string) (*model.ReputationReport, error) {
	d.calls.Add(1)
	d.mu.Lock()
	d.URLs = append(d.URLs, resolvedURL)
	d.mu.Unlock()
	if d.Delay > 0 {
		select {
		case <-time.After(d.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.Err != nil {
		return nil, d.Err
	}
	if d.Report != nil {
		cp := *d.Report
		return &cp, nil
	}
	return &model.ReputationReport{Stats: model.Stats{Harmless: 70}, ScanID: "dummy-scan"}, nil
}

func (d *DummyScanner) Calls() int { return int(d.calls.Load()) }

// DummySandbox returns Report, or an empty report when nil.
type DummySandbox struct {
	Report *model.SandboxReport
	calls  atomic.Int32
}

func (d *DummySandbox) Capture(_ context.Context, _ string) *model.SandboxReport {
	d.calls.Add(1)
	if d.Report != nil {
		cp := *d.Report
		return &cp
	}
	return &model.SandboxReport{}
}

func (d *DummySandbox) Calls() int { return int(d.calls.Load()) }

// ─── helpers ───────────────────────────────────────────────────────────

type errString struct{ s string }

func (e *errString) Error() string { return e.s }
