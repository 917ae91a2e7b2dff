package cli

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/raysh454/linkguard/internal/app"
	"github.com/raysh454/linkguard/internal/health"
	"github.com/raysh454/linkguard/internal/model"
)

var phaseLabels = map[model.Phase]string{
	model.PhaseUnshortening: "Expanding shortened link",
	model.PhaseScanning:     "Checking reputation across security engines",
	model.PhaseAnalyzing:    "Capturing sandbox screenshot and checking brand impersonation",
}

// PhaseLabel is the progress line shown while phase runs.
func PhaseLabel(phase model.Phase) string {
	if l, ok := phaseLabels[phase]; ok {
		return l
	}
	return string(phase)
}

// ScanPresenter renders a terminal scan: a spinner per phase, then the
// verdict and the details of the result.
type ScanPresenter struct {
	mu      sync.Mutex
	spinner *pterm.SpinnerPrinter
	current model.Phase
	started time.Time
}

func NewScanPresenter() *ScanPresenter {
	return &ScanPresenter{}
}

// Start prints the header for target.
func (p *ScanPresenter) Start(target string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = time.Now()

	pterm.DefaultHeader.
		WithBackgroundStyle(pterm.NewStyle(pterm.BgCyan)).
		WithTextStyle(pterm.NewStyle(pterm.FgBlack)).
		Println("LinkGuard - Link Safety Scan")
	pterm.Println()
	pterm.Printf("Link: %s\n\n", pterm.Cyan(target))
}

// Phase is an app.ProgressFunc.
func (p *ScanPresenter) Phase(phase model.Phase) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.spinner != nil {
		if phase == model.PhaseError {
			p.spinner.Fail(PhaseLabel(p.current))
		} else {
			p.spinner.Success(PhaseLabel(p.current))
		}
		p.spinner = nil
	}
	p.current = phase
	if phase.Terminal() {
		return
	}
	spinner, err := pterm.DefaultSpinner.Start(PhaseLabel(phase) + "...")
	if err == nil {
		p.spinner = spinner
	}
}

// Result prints the outcome of a finished session.
func (p *ScanPresenter) Result(s *app.ScanSession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.spinner != nil {
		_ = p.spinner.Stop()
		p.spinner = nil
	}
	pterm.Println()

	if s.Result == nil {
		pterm.Error.Println(s.Error)
		return
	}
	r := s.Result

	verdictBox := pterm.DefaultBox.
		WithTitle("Verdict").
		WithTitleTopCenter().
		WithLeftPadding(4).
		WithRightPadding(4).
		WithBoxStyle(pterm.NewStyle(verdictColor(r.Verdict)))
	verdictBox.Println(verdictStyle(r.Verdict).Sprint(VerdictHeadline(r.Verdict)))
	pterm.Println()

	pterm.DefaultSection.Println("Details")
	_ = pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithData(ResultRows(r)).
		Render()

	if r.Phishing.Detected {
		pterm.Println()
		pterm.Warning.Printfln("Possible %s impersonation (%s severity): %s",
			r.Phishing.BrandName, r.Phishing.Severity, r.Phishing.Reason)
		if len(r.Phishing.LegitimateDomains) > 0 {
			pterm.Info.Printfln("The real %s lives at: %s",
				r.Phishing.BrandName, strings.Join(r.Phishing.LegitimateDomains, ", "))
		}
	}
	if r.Target.Note != "" {
		pterm.Info.Println(r.Target.Note)
	}

	pterm.Println()
	pterm.Println(pterm.Gray(fmt.Sprintf("Finished in %s", time.Since(p.started).Round(100*time.Millisecond))))
}

// VerdictHeadline is the one-line summary for a verdict.
func VerdictHeadline(v model.Verdict) string {
	switch v {
	case model.VerdictSafe:
		return "SAFE: no security engine flagged this link"
	case model.VerdictWarning:
		return "WARNING: this link looks suspicious, proceed with care"
	case model.VerdictDanger:
		return "DANGER: multiple security engines flagged this link"
	default:
		return "UNKNOWN: the scan was inconclusive"
	}
}

func verdictColor(v model.Verdict) pterm.Color {
	switch v {
	case model.VerdictSafe:
		return pterm.FgGreen
	case model.VerdictWarning:
		return pterm.FgYellow
	case model.VerdictDanger:
		return pterm.FgRed
	default:
		return pterm.FgGray
	}
}

func verdictStyle(v model.Verdict) *pterm.Style {
	return pterm.NewStyle(verdictColor(v), pterm.Bold)
}

// ResultRows flattens a result into table rows, header first. Absent
// optional fields are shown as "-".
func ResultRows(r *model.ScanResult) pterm.TableData {
	orDash := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "-"
		}
		return s
	}
	rows := pterm.TableData{{"Field", "Value"}}
	rows = append(rows,
		[]string{"Original link", orDash(r.Target.OriginalURL)},
		[]string{"Final destination", orDash(r.Target.ResolvedURL)},
		[]string{"Was shortened", fmt.Sprintf("%t", r.Target.WasShortened)},
	)
	if r.Reputation != nil {
		st := r.Reputation.Stats
		rows = append(rows,
			[]string{"Malicious", fmt.Sprintf("%d", st.Malicious)},
			[]string{"Suspicious", fmt.Sprintf("%d", st.Suspicious)},
			[]string{"Harmless", fmt.Sprintf("%d", st.Harmless)},
			[]string{"Undetected", fmt.Sprintf("%d", st.Undetected)},
			[]string{"Engines", fmt.Sprintf("%d", st.TotalVendors())},
		)
	}
	var sb model.SandboxReport
	if r.Sandbox != nil {
		sb = *r.Sandbox
	}
	rows = append(rows,
		[]string{"Screenshot", orDash(sb.ScreenshotURL)},
		[]string{"Server country", orDash(sb.Country)},
		[]string{"Server IP", orDash(sb.IP)},
		[]string{"Web server", orDash(sb.Server)},
	)
	return rows
}

// PrintHealth renders a health report as a table.
func PrintHealth(report health.Report) error {
	pterm.DefaultSection.Println("Upstream services")
	return pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithData(HealthRows(report)).
		Render()
}

// HealthRows flattens a health report into table rows, header first.
func HealthRows(report health.Report) pterm.TableData {
	row := func(name string, s health.ServiceStatus) []string {
		status := string(s.Status)
		switch s.Status {
		case health.StatusOnline:
			status = pterm.Green(status)
		case health.StatusError:
			status = pterm.Yellow(status)
		default:
			status = pterm.Red(status)
		}
		return []string{name, status, fmt.Sprintf("%dms", s.LatencyMS), s.Message}
	}
	return pterm.TableData{
		{"Service", "Status", "Latency", "Message"},
		row("VirusTotal", report.VirusTotal),
		row("urlscan.io", report.URLScan),
		row("unshorten.me", report.Unshorten),
	}
}
