package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/raysh454/linkguard/internal/app"
	"github.com/raysh454/linkguard/internal/health"
	"github.com/raysh454/linkguard/internal/model"
	"github.com/raysh454/linkguard/internal/testutil"
)

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewApplication_WiresComponents(t *testing.T) {
	t.Parallel()
	up := newUpstream(t)
	cfg := configWithKeys()
	cfg.Resolver.BaseURL = up.URL
	cfg.Reputation.BaseURL = up.URL
	cfg.Sandbox.BaseURL = up.URL

	a, err := app.NewApplication(cfg, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}
	defer a.Close()

	if a.Pipeline == nil || a.Orchestrator == nil || a.Prober == nil {
		t.Fatalf("components not wired: %+v", a)
	}

	report := a.Health(context.Background())
	if !report.Healthy() {
		t.Errorf("expected healthy report against fake upstream, got %+v", report)
	}
}

func TestNewApplication_MissingKeysStillStarts(t *testing.T) {
	t.Parallel()
	up := newUpstream(t)
	cfg := app.DefaultConfig()
	cfg.Resolver.BaseURL = up.URL

	logger := &testutil.DummyLogger{}
	a, err := app.NewApplication(cfg, logger)
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}
	defer a.Close()

	if logger.WarnCount() == 0 {
		t.Error("expected a warning about missing credentials")
	}
	s := a.Scan(context.Background(), "https://example.com", nil)
	if s.Phase != model.PhaseError || s.Error != app.MsgNotConfigured {
		t.Errorf("unexpected session %+v", s)
	}

	report := a.Health(context.Background())
	if report.VirusTotal.Status != health.StatusError || report.URLScan.Status != health.StatusError {
		t.Errorf("missing keys should show as errors: %+v", report)
	}
}

func TestNewApplication_UnknownClient(t *testing.T) {
	t.Parallel()
	cfg := app.DefaultConfig()
	cfg.WebClient.Client = "carrier-pigeon"
	if _, err := app.NewApplication(cfg, nil); err == nil {
		t.Fatal("expected error for unknown webclient")
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	if err := configWithKeys().Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	cfg := configWithKeys()
	cfg.Sandbox.APIKey = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("sandbox key is optional, got %v", err)
	}
	cfg.Reputation.APIKey = " "
	if err := cfg.Validate(); !model.IsConfiguration(err) {
		t.Errorf("expected configuration error, got %v", err)
	}
}
