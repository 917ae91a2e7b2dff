package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

const (
	CommandServe  = "serve"
	CommandScan   = "scan"
	CommandHealth = "health"
)

// CLIArgs are the command-line arguments for one invocation. Flags left unset
// do not override lower configuration layers; see Load.
type CLIArgs struct {
	Command string

	// Target is the link to scan for the scan command.
	Target string

	ConfigPath string
	EnvFiles   []string
	JSON       bool

	ListenAddr    string
	LogLevel      string
	BrandsFile    string
	VirusTotalURL string
	URLScanURL    string
	UnshortenURL  string
	PollInterval  time.Duration
	MaxAttempts   int
	SettleDelay   time.Duration
	Timeout       time.Duration

	// RawArgs is the original args slice (useful for debugging/tests).
	RawArgs []string

	flags *pflag.FlagSet
}

// Changed reports whether the named flag was given on the command line.
func (a *CLIArgs) Changed(name string) bool {
	return a.flags != nil && a.flags.Changed(name)
}

// NewFlagSet declares every flag on a fresh set bound to args.
func NewFlagSet(args *CLIArgs) *pflag.FlagSet {
	fs := pflag.NewFlagSet("linkguard", pflag.ContinueOnError)
	fs.StringVarP(&args.ConfigPath, "config", "c", "", "Path to a YAML configuration file")
	fs.StringSliceVar(&args.EnvFiles, "env-file", []string{".env", ".env.local"}, "Dotenv files to read credentials from, later files win")
	fs.BoolVar(&args.JSON, "json", false, "Print the scan result as JSON instead of the terminal report")

	fs.StringVarP(&args.ListenAddr, "listen", "l", "", "HTTP listen address for serve")
	fs.StringVar(&args.LogLevel, "log-level", "", "Minimum log level: debug|info|warn|error")
	fs.StringVar(&args.BrandsFile, "brands-file", "", "YAML file with extra brands for impersonation checks")
	fs.StringVar(&args.VirusTotalURL, "virustotal-url", "", "Base URL of the reputation service")
	fs.StringVar(&args.URLScanURL, "urlscan-url", "", "Base URL of the sandbox service")
	fs.StringVar(&args.UnshortenURL, "unshorten-url", "", "Base URL of the unshortening service")
	fs.DurationVar(&args.PollInterval, "poll-interval", 0, "Wait before each reputation status poll")
	fs.IntVar(&args.MaxAttempts, "max-attempts", 0, "Maximum number of reputation status polls")
	fs.DurationVar(&args.SettleDelay, "settle-delay", 0, "Wait between sandbox submission and result fetch")
	fs.DurationVar(&args.Timeout, "timeout", 0, "Per-request timeout for upstream calls")
	return fs
}

// ParseArgs parses a slice of args and returns CLIArgs. Use in tests by passing
// arbitrary slices. The function is deterministic and does not read os.Args.
func ParseArgs(args []string) (*CLIArgs, error) {
	out := &CLIArgs{RawArgs: args}
	fs := NewFlagSet(out)

	// Ensure Parse doesn't write to stdout/stderr in tests
	fs.SetOutput(io.Discard)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	out.flags = fs

	rest := fs.Args()
	if len(rest) == 0 {
		return nil, fmt.Errorf("missing command: expected one of %s, %s, %s", CommandServe, CommandScan, CommandHealth)
	}
	out.Command = rest[0]

	switch out.Command {
	case CommandScan:
		if len(rest) < 2 || strings.TrimSpace(rest[1]) == "" {
			return nil, fmt.Errorf("scan: missing link argument")
		}
		if len(rest) > 2 {
			return nil, fmt.Errorf("scan: expected exactly one link, got %d", len(rest)-1)
		}
		out.Target = rest[1]
	case CommandServe, CommandHealth:
		if len(rest) > 1 {
			return nil, fmt.Errorf("%s: unexpected arguments %v", out.Command, rest[1:])
		}
	default:
		return nil, fmt.Errorf("unknown command %q", out.Command)
	}
	return out, nil
}

// Usage renders the flag help for the command line.
func Usage() string {
	fs := NewFlagSet(&CLIArgs{})
	var b strings.Builder
	b.WriteString("Usage:\n")
	b.WriteString("  linkguard [flags] serve\n")
	b.WriteString("  linkguard [flags] scan <link>\n")
	b.WriteString("  linkguard [flags] health\n\n")
	b.WriteString("Flags:\n")
	b.WriteString(fs.FlagUsages())
	return b.String()
}
