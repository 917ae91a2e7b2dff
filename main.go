// Command linkguard checks whether a link is safe to open. It serves the scan
// API, runs one scan in the terminal, or reports upstream health.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"

	"github.com/raysh454/linkguard/internal/app"
	"github.com/raysh454/linkguard/internal/cli"
	"github.com/raysh454/linkguard/internal/logging"
	"github.com/raysh454/linkguard/internal/model"
	"github.com/raysh454/linkguard/internal/server"
)

// Exit codes for the scan command.
const (
	exitOK     = 0
	exitError  = 1
	exitUsage  = 2
	exitDanger = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	args, err := cli.ParseArgs(argv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, cli.Usage())
		return exitUsage
	}

	cfg, err := cli.Load(args, os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}

	// The terminal report owns stdout for scan and health; logs stay quiet
	// there unless a level was asked for.
	level := logging.ParseLevel(cfg.App.LogLevel)
	if args.Command != cli.CommandServe && !args.Changed("log-level") {
		level = logging.LevelWarn
	}
	logger := logging.NewLogger("linkguard", level, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args.Command {
	case cli.CommandServe:
		return serve(ctx, cfg, logger)
	case cli.CommandScan:
		return scan(ctx, cfg, logger, args.Target, args.JSON)
	case cli.CommandHealth:
		return checkHealth(ctx, cfg, logger, args.JSON)
	}
	return exitUsage
}

func serve(ctx context.Context, cfg *cli.Config, logger logging.Logger) int {
	srv, err := server.NewServer(cfg.Server, &cfg.App, logger)
	if err != nil {
		logger.Error("failed to build server", logging.Field{Key: "error", Value: err.Error()})
		return exitError
	}
	defer srv.Close()

	httpSrv := srv.HTTPServer()
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", logging.Field{Key: "addr", Value: httpSrv.Addr})
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", logging.Field{Key: "error", Value: err.Error()})
			return exitError
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown failed", logging.Field{Key: "error", Value: err.Error()})
		}
	}
	return exitOK
}

func scan(ctx context.Context, cfg *cli.Config, logger logging.Logger, target string, asJSON bool) int {
	a, err := app.NewApplication(&cfg.App, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	defer a.Close()

	var session *app.ScanSession
	if asJSON {
		session = a.Scan(ctx, target, nil)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(session)
	} else {
		p := cli.NewScanPresenter()
		p.Start(target)
		session = a.Scan(ctx, target, p.Phase)
		p.Result(session)
	}

	switch {
	case session.Result == nil:
		return exitError
	case session.Result.Verdict == model.VerdictDanger:
		return exitDanger
	default:
		return exitOK
	}
}

func checkHealth(ctx context.Context, cfg *cli.Config, logger logging.Logger, asJSON bool) int {
	a, err := app.NewApplication(&cfg.App, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	defer a.Close()

	report := a.Health(ctx)
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	} else if err := cli.PrintHealth(report); err != nil {
		pterm.Error.Println(err)
		return exitError
	}
	if !report.Healthy() {
		return exitError
	}
	return exitOK
}
