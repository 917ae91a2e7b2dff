// Command demoserver starts the LinkGuard demo upstreams: stand-ins for the
// unshortening, reputation and sandbox services with switchable scenarios.
// Usage: go run ./cmd/demoserver [--port 9999] [--scenario clean]
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/raysh454/linkguard/internal/demoserver"
	"github.com/raysh454/linkguard/internal/logging"
)

func main() {
	cfg := demoserver.DefaultConfig()

	fs := pflag.NewFlagSet("demoserver", pflag.ExitOnError)
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Port to listen on")
	fs.StringVar(&cfg.APIKey, "api-key", "", "Require this API key on every emulated service (empty accepts any)")
	fs.StringVar(&cfg.InitialScenario, "scenario", cfg.InitialScenario, "Initial scenario: "+strings.Join(demoserver.ScenarioNames(), "|"))
	fs.IntVar(&cfg.CompleteAfterPolls, "complete-after", cfg.CompleteAfterPolls, "Status polls before an analysis completes")
	logLevel := fs.String("log-level", "info", "Minimum log level: debug|info|warn|error")
	_ = fs.Parse(os.Args[1:])

	if cfg.Port < 1 || cfg.Port > 65535 {
		log.Fatalf("Invalid port: %d", cfg.Port)
	}

	fmt.Println("===========================================")
	fmt.Println("   LinkGuard Demo Upstreams")
	fmt.Println("===========================================")
	fmt.Println()
	fmt.Println("Point linkguard at this server to run scans without real credentials:")
	fmt.Printf("  --virustotal-url http://localhost:%d\n", cfg.Port)
	fmt.Printf("  --urlscan-url    http://localhost:%d\n", cfg.Port)
	fmt.Printf("  --unshorten-url  http://localhost:%d\n", cfg.Port)
	fmt.Println()
	fmt.Println("Scenarios:")
	all := demoserver.GetAllScenarios()
	for _, name := range demoserver.ScenarioNames() {
		fmt.Printf("  - %-13s %s\n", name, all[name].Description)
	}
	fmt.Println()

	logger := logging.NewLogger("demoserver", logging.ParseLevel(*logLevel), os.Stdout)
	server := demoserver.NewDemoServer(cfg, logger)
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
