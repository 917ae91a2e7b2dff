package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/raysh454/linkguard/internal/app"
	"github.com/raysh454/linkguard/internal/assessor"
	"github.com/raysh454/linkguard/internal/model"
	"github.com/raysh454/linkguard/internal/testutil"
)

type fixture struct {
	resolver *testutil.DummyResolver
	scanner  *testutil.DummyScanner
	sandbox  *testutil.DummySandbox
	pipeline *app.Pipeline
}

func configWithKeys() *app.Config {
	cfg := app.DefaultConfig()
	cfg.Resolver.APIKey = "un"
	cfg.Reputation.APIKey = "vt"
	cfg.Sandbox.APIKey = "us"
	return cfg
}

func newFixture(t *testing.T, cfg *app.Config) *fixture {
	t.Helper()
	brands, err := assessor.NewBrandAssessor(assessor.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewBrandAssessor: %v", err)
	}
	f := &fixture{
		resolver: &testutil.DummyResolver{},
		scanner:  &testutil.DummyScanner{},
		sandbox:  &testutil.DummySandbox{},
	}
	f.pipeline, err = app.NewPipeline(cfg, app.Stages{
		Resolver: f.resolver,
		Scanner:  f.scanner,
		Sandbox:  f.sandbox,
		Analyzer: brands,
	}, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return f
}

type phaseRecorder struct {
	mu     sync.Mutex
	phases []model.Phase
}

func (r *phaseRecorder) record(p model.Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, p)
}

func (r *phaseRecorder) equal(want ...model.Phase) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.phases) != len(want) {
		return false
	}
	for i := range want {
		if r.phases[i] != want[i] {
			return false
		}
	}
	return true
}

// ─── Happy path ────────────────────────────────────────────────────────

func TestRun_CompletesWithAllPhases(t *testing.T) {
	t.Parallel()
	f := newFixture(t, configWithKeys())
	f.resolver.Target = &model.ResolvedTarget{
		OriginalURL:  "https://bit.ly/x",
		ResolvedURL:  "https://example.com/landing",
		WasShortened: true,
	}
	f.sandbox.Report = &model.SandboxReport{ScreenshotURL: "https://shot/1.png", Country: "US"}

	var rec phaseRecorder
	s := f.pipeline.Run(context.Background(), "  https://bit.ly/x ", rec.record)

	if s.Phase != model.PhaseComplete || s.Error != "" || s.Result == nil {
		t.Fatalf("unexpected session %+v", s)
	}
	if !rec.equal(model.PhaseUnshortening, model.PhaseScanning, model.PhaseAnalyzing, model.PhaseComplete) {
		t.Errorf("phases = %v", rec.phases)
	}
	if s.URL != "https://bit.ly/x" {
		t.Errorf("session url not trimmed: %q", s.URL)
	}
	if got := f.scanner.URLs; len(got) != 1 || got[0] != "https://example.com/landing" {
		t.Errorf("scanner must see the resolved url, got %v", got)
	}
	if s.Result.Verdict != model.VerdictSafe {
		t.Errorf("verdict = %s", s.Result.Verdict)
	}
	if s.Result.Sandbox.ScreenshotURL != "https://shot/1.png" || !s.Result.Target.WasShortened {
		t.Errorf("result not aggregated: %+v", s.Result)
	}
	if f.sandbox.Calls() != 1 {
		t.Errorf("sandbox calls = %d", f.sandbox.Calls())
	}
}

func TestRun_VerdictFromStats(t *testing.T) {
	t.Parallel()
	cases := []struct {
		stats model.Stats
		want  model.Verdict
	}{
		{model.Stats{Harmless: 80}, model.VerdictSafe},
		{model.Stats{Malicious: 3, Suspicious: 2}, model.VerdictWarning},
		{model.Stats{Malicious: 4, Suspicious: 2}, model.VerdictDanger},
	}
	for _, tc := range cases {
		f := newFixture(t, configWithKeys())
		f.scanner.Report = &model.ReputationReport{Stats: tc.stats}
		s := f.pipeline.Run(context.Background(), "https://example.com", nil)
		if s.Result == nil || s.Result.Verdict != tc.want {
			t.Errorf("stats %+v: session %+v, want %s", tc.stats, s, tc.want)
		}
	}
}

func TestRun_HighSeverityPhishingUpgradesSafe(t *testing.T) {
	t.Parallel()
	f := newFixture(t, configWithKeys())

	s := f.pipeline.Run(context.Background(), "http://facebook-login-verify.xyz", nil)

	if s.Result == nil {
		t.Fatalf("expected result, got %+v", s)
	}
	if !s.Result.Phishing.Detected || s.Result.Phishing.Severity != model.SeverityHigh {
		t.Fatalf("phishing = %+v", s.Result.Phishing)
	}
	if s.Result.Verdict != model.VerdictWarning {
		t.Errorf("verdict = %s, want WARNING", s.Result.Verdict)
	}
}

func TestRun_NilSandboxReportBecomesEmpty(t *testing.T) {
	t.Parallel()
	f := newFixture(t, configWithKeys())
	s := f.pipeline.Run(context.Background(), "example.com", nil)
	if s.Result == nil || s.Result.Sandbox == nil || !s.Result.Sandbox.Empty() {
		t.Fatalf("expected empty sandbox report, got %+v", s.Result)
	}
}

// ─── Pre-flight ────────────────────────────────────────────────────────

func TestRun_PreflightRejectsWithoutNetwork(t *testing.T) {
	t.Parallel()
	noKeys := app.DefaultConfig()

	cases := []struct {
		name string
		cfg  *app.Config
		raw  string
		msg  string
		is   error
	}{
		{"empty", configWithKeys(), "   ", app.MsgInvalidURL, model.ErrInvalidURL},
		{"unparseable", configWithKeys(), "http://[::1", app.MsgInvalidURL, model.ErrInvalidURL},
		{"no host", configWithKeys(), "https://", app.MsgInvalidURL, model.ErrInvalidURL},
		{"bad scheme", configWithKeys(), "ftp://example.com/file", app.MsgInvalidURL, model.ErrInvalidURL},
		{"mailto", configWithKeys(), "mailto:victim@example.com", app.MsgInvalidURL, model.ErrInvalidURL},
		{"tel", configWithKeys(), "tel:+1@example.com", app.MsgInvalidURL, model.ErrInvalidURL},
		{"javascript", configWithKeys(), "JavaScript:alert(1)//@example.com", app.MsgInvalidURL, model.ErrInvalidURL},
		{"missing keys", noKeys, "https://example.com", app.MsgNotConfigured, model.ErrMissingCredential},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.cfg)
			var rec phaseRecorder
			s := f.pipeline.Run(context.Background(), tc.raw, rec.record)

			if s.Phase != model.PhaseError || s.Result != nil {
				t.Fatalf("expected ERROR without result, got %+v", s)
			}
			if s.Error != tc.msg {
				t.Errorf("message = %q, want %q", s.Error, tc.msg)
			}
			if !errors.Is(s.Err, tc.is) {
				t.Errorf("err = %v, want %v", s.Err, tc.is)
			}
			if !rec.equal(model.PhaseError) {
				t.Errorf("phases = %v", rec.phases)
			}
			if f.resolver.Calls()+f.scanner.Calls()+f.sandbox.Calls() != 0 {
				t.Error("pre-flight failure must not reach any stage")
			}
		})
	}
}

func TestRun_HostWithPortIsNotAScheme(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"localhost:8080/login", "example.com:443", "example.com"} {
		f := newFixture(t, configWithKeys())
		s := f.pipeline.Run(context.Background(), raw, nil)
		if s.Phase != model.PhaseComplete {
			t.Errorf("%q: phase = %s, error = %q", raw, s.Phase, s.Error)
		}
		if f.scanner.Calls() != 1 {
			t.Errorf("%q: scanner calls = %d", raw, f.scanner.Calls())
		}
	}
}

func TestRun_MissingKeysListed(t *testing.T) {
	t.Parallel()
	f := newFixture(t, app.DefaultConfig())
	s := f.pipeline.Run(context.Background(), "https://example.com", nil)

	var cfgErr *model.ConfigurationError
	if !errors.As(s.Err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", s.Err)
	}
	if len(cfgErr.Missing) != 2 {
		t.Errorf("missing = %v", cfgErr.Missing)
	}
}

// ─── Failures ──────────────────────────────────────────────────────────

func TestRun_ResolverErrorStopsAtUnshortening(t *testing.T) {
	t.Parallel()
	f := newFixture(t, configWithKeys())
	f.resolver.Err = errors.New("boom from upstream")

	var rec phaseRecorder
	s := f.pipeline.Run(context.Background(), "https://bit.ly/x", rec.record)

	if s.Phase != model.PhaseError || s.Error != app.MsgUnexpected {
		t.Fatalf("unexpected session %+v", s)
	}
	if !rec.equal(model.PhaseUnshortening, model.PhaseError) {
		t.Errorf("phases = %v", rec.phases)
	}
	if f.scanner.Calls() != 0 {
		t.Error("scanner called after resolver failure")
	}
}

func TestRun_ScannerErrorsAreFatal(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		err  error
		msg  string
	}{
		{"rate limited", &model.SubmissionError{Service: "virustotal", Reason: model.SubmissionRateLimited, StatusCode: 429}, app.MsgRateLimited},
		{"rejected", &model.SubmissionError{Service: "virustotal", Reason: model.SubmissionUnexpected, StatusCode: 500}, app.MsgRejected},
		{"timeout", model.ErrScanTimeout, app.MsgTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, configWithKeys())
			f.scanner.Err = tc.err

			var rec phaseRecorder
			s := f.pipeline.Run(context.Background(), "https://example.com", rec.record)

			if s.Phase != model.PhaseError || s.Result != nil {
				t.Fatalf("expected ERROR without result, got %+v", s)
			}
			if s.Error != tc.msg {
				t.Errorf("message = %q, want %q", s.Error, tc.msg)
			}
			if !rec.equal(model.PhaseUnshortening, model.PhaseScanning, model.PhaseError) {
				t.Errorf("phases = %v", rec.phases)
			}
			if f.sandbox.Calls() != 0 {
				t.Error("sandbox must not run after a failed scan")
			}
		})
	}
}

func TestRun_NilReportIsAnError(t *testing.T) {
	t.Parallel()
	brands, _ := assessor.NewBrandAssessor(assessor.DefaultConfig(), nil)
	p, err := app.NewPipeline(configWithKeys(), app.Stages{
		Resolver: &testutil.DummyResolver{},
		Scanner:  nilScanner{},
		Sandbox:  &testutil.DummySandbox{},
		Analyzer: brands,
	}, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	s := p.Run(context.Background(), "https://example.com", nil)
	if s.Phase != model.PhaseError || s.Error != app.MsgUnexpected {
		t.Errorf("unexpected session %+v", s)
	}
}

type nilScanner struct{}

func (nilScanner) Scan(context.Context, string) (*model.ReputationReport, error) { return nil, nil }

func TestNewPipeline_RequiresAllStages(t *testing.T) {
	t.Parallel()
	if _, err := app.NewPipeline(nil, app.Stages{Resolver: &testutil.DummyResolver{}}, nil); err == nil {
		t.Fatal("expected error for missing stages")
	}
}

// ─── Messages ──────────────────────────────────────────────────────────

func TestUserMessage_NeverLeaksUpstreamText(t *testing.T) {
	t.Parallel()
	secret := errors.New("upstream said: internal token abc123")
	if msg := app.UserMessage(secret); msg != app.MsgUnexpected {
		t.Errorf("message = %q", msg)
	}
	if app.UserMessage(nil) != "" {
		t.Error("nil error must map to empty message")
	}
	if app.UserMessage(context.Canceled) != app.MsgCanceled {
		t.Error("canceled context mapping")
	}
}
