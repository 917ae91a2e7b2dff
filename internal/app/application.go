package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/raysh454/linkguard/internal/assessor"
	"github.com/raysh454/linkguard/internal/health"
	"github.com/raysh454/linkguard/internal/logging"
	"github.com/raysh454/linkguard/internal/reputation"
	"github.com/raysh454/linkguard/internal/resolver"
	"github.com/raysh454/linkguard/internal/sandbox"
	"github.com/raysh454/linkguard/internal/webclient"
)

// Application is the global runtime state container. It owns one web client
// per upstream so each gets its own pacing, plus the pipeline, the job
// orchestrator and the health prober built on top of them.
type Application struct {
	Config *Config
	Logger logging.Logger

	Pipeline     *Pipeline
	Orchestrator *Orchestrator
	Prober       *health.Prober

	clients []webclient.WebClient
}

// NewApplication builds every component from cfg. Missing credentials are
// not an error here: scans report them in pre-flight and the health check
// shows them, so the server can still start and explain what is wrong.
func NewApplication(cfg *Config, logger logging.Logger) (*Application, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}

	a := &Application{Config: cfg, Logger: logger}
	newClient := func(name string) (webclient.WebClient, error) {
		wc, err := webclient.NewWebClient(cfg.WebClient, logger.With(logging.Field{Key: "upstream", Value: name}))
		if err != nil {
			return nil, fmt.Errorf("new %s webclient: %w", name, err)
		}
		a.clients = append(a.clients, wc)
		return wc, nil
	}

	resolverClient, err := newClient("unshorten")
	if err != nil {
		return nil, a.closeOnError(err)
	}
	reputationClient, err := newClient("virustotal")
	if err != nil {
		return nil, a.closeOnError(err)
	}
	sandboxClient, err := newClient("urlscan")
	if err != nil {
		return nil, a.closeOnError(err)
	}
	healthClient, err := newClient("health")
	if err != nil {
		return nil, a.closeOnError(err)
	}

	scanner, err := reputation.NewClient(cfg.Reputation, reputationClient, logger)
	if err != nil {
		return nil, a.closeOnError(fmt.Errorf("new reputation client: %w", err))
	}
	brands, err := assessor.NewBrandAssessor(cfg.Assessor, logger)
	if err != nil {
		return nil, a.closeOnError(fmt.Errorf("new brand assessor: %w", err))
	}

	a.Pipeline, err = NewPipeline(cfg, Stages{
		Resolver: resolver.New(cfg.Resolver, resolverClient, logger),
		Scanner:  scanner,
		Sandbox:  sandbox.NewFetcher(cfg.Sandbox, sandboxClient, logger),
		Analyzer: brands,
	}, logger)
	if err != nil {
		return nil, a.closeOnError(err)
	}
	a.Orchestrator = NewOrchestrator(cfg, a.Pipeline, logger)
	a.Prober = health.NewProber(cfg.HealthConfig(), healthClient, logger)

	if err := cfg.Validate(); err != nil {
		logger.Warn("scans will fail until credentials are configured", logging.Field{Key: "error", Value: err.Error()})
	}
	return a, nil
}

// Scan runs one scan synchronously on ctx.
func (a *Application) Scan(ctx context.Context, rawURL string, progress ProgressFunc) *ScanSession {
	return a.Pipeline.Run(ctx, rawURL, progress)
}

// Health probes every upstream.
func (a *Application) Health(ctx context.Context) health.Report {
	return a.Prober.Check(ctx)
}

// Close stops running jobs and releases the upstream clients.
func (a *Application) Close() error {
	if a == nil {
		return errors.New("application is nil")
	}
	if a.Orchestrator != nil {
		a.Orchestrator.Close()
	}
	var errs []error
	for _, c := range a.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.clients = nil
	return errors.Join(errs...)
}

func (a *Application) closeOnError(err error) error {
	_ = a.Close()
	return err
}
