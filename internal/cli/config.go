package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/raysh454/linkguard/internal/app"
	"github.com/raysh454/linkguard/internal/reputation"
	"github.com/raysh454/linkguard/internal/resolver"
	"github.com/raysh454/linkguard/internal/sandbox"
	"github.com/raysh454/linkguard/internal/server"
)

// Environment variables beyond the three credential variables.
const (
	EnvLogLevel          = "LINKGUARD_LOG_LEVEL"
	EnvListenAddr        = "LINKGUARD_LISTEN_ADDR"
	EnvAllowedOrigins    = "LINKGUARD_ALLOWED_ORIGINS"
	EnvBrandsFile        = "LINKGUARD_BRANDS_FILE"
	EnvVirusTotalURL     = "LINKGUARD_VIRUSTOTAL_URL"
	EnvURLScanURL        = "LINKGUARD_URLSCAN_URL"
	EnvUnshortenURL      = "LINKGUARD_UNSHORTEN_URL"
	EnvRequestsPerSecond = "LINKGUARD_REQUESTS_PER_SECOND"
	EnvJobRetention      = "LINKGUARD_JOB_RETENTION"
)

// Config is the on-disk configuration: the application settings at the top
// level and the HTTP server under "server".
type Config struct {
	App    app.Config    `yaml:",inline"`
	Server server.Config `yaml:"server"`
}

func DefaultConfig() *Config {
	return &Config{
		App:    *app.DefaultConfig(),
		Server: server.DefaultConfig(),
	}
}

// Getenv looks up one environment variable.
type Getenv func(key string) string

// Load layers configuration: defaults, then the YAML file, then dotenv files
// and the environment, then command-line flags. Real environment variables
// win over dotenv files. Missing dotenv files are skipped.
func Load(args *CLIArgs, getenv Getenv) (*Config, error) {
	if args == nil {
		args = &CLIArgs{}
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := DefaultConfig()

	if args.ConfigPath != "" {
		if err := loadYAML(args.ConfigPath, cfg); err != nil {
			return nil, err
		}
	}

	dotenv, err := readDotenv(args.EnvFiles)
	if err != nil {
		return nil, err
	}
	lookup := func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}
	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	applyFlags(cfg, args)
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func readDotenv(files []string) (map[string]string, error) {
	out := map[string]string{}
	for _, f := range files {
		vals, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read env file %s: %w", f, err)
		}
		for k, v := range vals {
			out[k] = v
		}
	}
	return out, nil
}

func applyEnv(cfg *Config, lookup Getenv) error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(lookup(key)); v != "" {
			*dst = v
		}
	}

	setString(resolver.EnvAPIKey, &cfg.App.Resolver.APIKey)
	setString(reputation.EnvAPIKey, &cfg.App.Reputation.APIKey)
	setString(sandbox.EnvAPIKey, &cfg.App.Sandbox.APIKey)

	setString(EnvLogLevel, &cfg.App.LogLevel)
	setString(EnvListenAddr, &cfg.Server.ListenAddr)
	setString(EnvBrandsFile, &cfg.App.Assessor.BrandsFile)
	setString(EnvVirusTotalURL, &cfg.App.Reputation.BaseURL)
	setString(EnvURLScanURL, &cfg.App.Sandbox.BaseURL)
	setString(EnvUnshortenURL, &cfg.App.Resolver.BaseURL)

	if v := strings.TrimSpace(lookup(EnvAllowedOrigins)); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Server.AllowedOrigins = origins
	}
	if v := strings.TrimSpace(lookup(EnvRequestsPerSecond)); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRequestsPerSecond, err)
		}
		cfg.App.WebClient.RequestsPerSecond = rps
	}
	if v := strings.TrimSpace(lookup(EnvJobRetention)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvJobRetention, err)
		}
		cfg.App.JobRetentionTime = d
	}
	return nil
}

func applyFlags(cfg *Config, args *CLIArgs) {
	if args.Changed("listen") {
		cfg.Server.ListenAddr = args.ListenAddr
	}
	if args.Changed("log-level") {
		cfg.App.LogLevel = args.LogLevel
	}
	if args.Changed("brands-file") {
		cfg.App.Assessor.BrandsFile = args.BrandsFile
	}
	if args.Changed("virustotal-url") {
		cfg.App.Reputation.BaseURL = args.VirusTotalURL
	}
	if args.Changed("urlscan-url") {
		cfg.App.Sandbox.BaseURL = args.URLScanURL
	}
	if args.Changed("unshorten-url") {
		cfg.App.Resolver.BaseURL = args.UnshortenURL
	}
	if args.Changed("poll-interval") {
		cfg.App.Reputation.PollInterval = args.PollInterval
	}
	if args.Changed("max-attempts") {
		cfg.App.Reputation.MaxAttempts = args.MaxAttempts
	}
	if args.Changed("settle-delay") {
		cfg.App.Sandbox.SettleDelay = args.SettleDelay
	}
	if args.Changed("timeout") {
		cfg.App.WebClient.Timeout = args.Timeout
	}
}
