package app

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/raysh454/linkguard/internal/logging"
	"github.com/raysh454/linkguard/internal/model"
	"github.com/raysh454/linkguard/internal/utils"
)

// Resolver expands shortened links.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (model.ResolvedTarget, error)
}

// Scanner runs the multi-engine reputation scan.
type Scanner interface {
	Scan(ctx context.Context, resolvedURL string) (*model.ReputationReport, error)
}

// Sandbox captures a remote visual rendering. It never fails.
type Sandbox interface {
	Capture(ctx context.Context, resolvedURL string) *model.SandboxReport
}

// Analyzer is the offline brand-impersonation heuristic.
type Analyzer interface {
	Analyze(resolvedURL string) model.PhishingAlert
}

// Stages are the components a Pipeline drives, in phase order.
type Stages struct {
	Resolver Resolver
	Scanner  Scanner
	Sandbox  Sandbox
	Analyzer Analyzer
}

// ProgressFunc is called with every phase as it is entered.
type ProgressFunc func(phase model.Phase)

// ScanSession is the outcome of one Run. Exactly one of Result and Error is
// set once Phase is terminal.
type ScanSession struct {
	URL    string            `json:"url"`
	Phase  model.Phase       `json:"phase"`
	Result *model.ScanResult `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`

	// Err is the underlying cause, for callers that need errors.Is.
	Err error `json:"-"`
}

type Pipeline struct {
	cfg    *Config
	stages Stages
	logger logging.Logger
}

// NewPipeline wires stages together. cfg is consulted for pre-flight checks
// only; a nil cfg skips the credential check.
func NewPipeline(cfg *Config, stages Stages, logger logging.Logger) (*Pipeline, error) {
	if stages.Resolver == nil || stages.Scanner == nil || stages.Sandbox == nil || stages.Analyzer == nil {
		return nil, fmt.Errorf("pipeline: all four stages are required")
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Pipeline{
		cfg:    cfg,
		stages: stages,
		logger: logger.With(logging.Field{Key: "component", Value: "pipeline"}),
	}, nil
}

// Run drives one link through UNSHORTENING, SCANNING and ANALYZING and
// returns the terminal session. progress may be nil.
func (p *Pipeline) Run(ctx context.Context, raw string, progress ProgressFunc) *ScanSession {
	raw = strings.TrimSpace(raw)
	s := &ScanSession{URL: raw, Phase: model.PhaseIdle}
	enter := func(phase model.Phase) {
		s.Phase = phase
		if progress != nil {
			progress(phase)
		}
	}
	fail := func(err error) *ScanSession {
		s.Err = err
		s.Error = UserMessage(err)
		p.logger.Warn("scan failed",
			logging.Field{Key: "url", Value: raw},
			logging.Field{Key: "error", Value: err.Error()})
		enter(model.PhaseError)
		return s
	}

	if err := p.preflight(raw); err != nil {
		return fail(err)
	}

	enter(model.PhaseUnshortening)
	target, err := p.stages.Resolver.Resolve(ctx, raw)
	if err != nil {
		return fail(fmt.Errorf("resolve: %w", err))
	}

	enter(model.PhaseScanning)
	rep, err := p.stages.Scanner.Scan(ctx, target.ResolvedURL)
	if err != nil {
		return fail(fmt.Errorf("reputation scan: %w", err))
	}
	if rep == nil {
		return fail(fmt.Errorf("reputation scan returned no report"))
	}

	enter(model.PhaseAnalyzing)
	var (
		shot  *model.SandboxReport
		alert model.PhishingAlert
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		shot = p.stages.Sandbox.Capture(gctx, target.ResolvedURL)
		return nil
	})
	g.Go(func() error {
		alert = p.stages.Analyzer.Analyze(target.ResolvedURL)
		return nil
	})
	_ = g.Wait()
	if shot == nil {
		shot = &model.SandboxReport{}
	}

	s.Result = &model.ScanResult{
		Target:     target,
		Reputation: rep,
		Sandbox:    shot,
		Phishing:   alert,
		Verdict:    model.ComputeVerdict(rep.Stats, alert),
	}
	p.logger.Info("scan complete",
		logging.Field{Key: "url", Value: target.ResolvedURL},
		logging.Field{Key: "verdict", Value: string(s.Result.Verdict)},
		logging.Field{Key: "threats", Value: rep.Stats.ThreatCount()})
	enter(model.PhaseComplete)
	return s
}

// preflight rejects what can be rejected without touching the network.
func (p *Pipeline) preflight(raw string) error {
	if raw == "" {
		return fmt.Errorf("empty link: %w", model.ErrInvalidURL)
	}
	if scheme := explicitScheme(raw); scheme != "" && scheme != "http" && scheme != "https" {
		return fmt.Errorf("unsupported scheme %q: %w", scheme, model.ErrInvalidURL)
	}
	opts := utils.CanonicalizeOptions{DefaultScheme: "https"}
	if p.cfg != nil {
		opts = p.cfg.URLOptions
		if opts.DefaultScheme == "" {
			opts.DefaultScheme = "https"
		}
	}
	canonical, err := utils.Canonicalize(raw, opts)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidURL, err)
	}
	if !strings.HasPrefix(canonical, "http://") && !strings.HasPrefix(canonical, "https://") {
		return fmt.Errorf("unsupported scheme in %q: %w", raw, model.ErrInvalidURL)
	}
	if p.cfg != nil {
		if err := p.cfg.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// explicitScheme returns the scheme raw starts with, lower-cased, or "" when
// there is none. A host followed by a numeric port ("localhost:8080") has no
// scheme.
func explicitScheme(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return ""
	}
	if u.Opaque != "" {
		port := u.Opaque
		if i := strings.IndexAny(port, "/?#"); i >= 0 {
			port = port[:i]
		}
		if port != "" && strings.Trim(port, "0123456789") == "" {
			return ""
		}
	}
	return strings.ToLower(u.Scheme)
}
