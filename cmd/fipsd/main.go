// Command fipsd is the module supervision daemon.
//
// On startup it opens the cryptographic module, which runs the configured
// self-test suite, then serves trust state, reports, and environment
// checklists over a unix socket for local tooling.
//
// Usage:
//
//	fipsd -config /etc/fipsmod/fipsmod.yaml
//	fipsd -check          # run environment checks once and print results
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fipsmod/fipsmod/internal/config"
	"github.com/fipsmod/fipsmod/internal/envcheck"
	"github.com/fipsmod/fipsmod/internal/ipc"
	"github.com/fipsmod/fipsmod/pkg/buildinfo"
	"github.com/fipsmod/fipsmod/pkg/module"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	socketPath := flag.String("socket", "", "unix socket path override")
	statePath := flag.String("state", "", "trust state path override")
	backend := flag.String("backend", "", "state backend override (file, sqlite)")
	imagePath := flag.String("image", "", "module image path override")
	checkOnly := flag.Bool("check", false, "run environment checks once and print results")
	jsonOutput := flag.Bool("json", false, "output checks as JSON (with -check)")
	version := flag.Bool("version", false, "print version and exit")

	flag.Parse()

	if *version {
		fmt.Println(buildinfo.String())
		os.Exit(0)
	}

	logger := log.New(os.Stderr, "[fipsd] ", log.LstdFlags)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if *statePath != "" {
		cfg.StatePath = *statePath
	}
	if *backend != "" {
		cfg.StateBackend = *backend
	}
	if *imagePath != "" {
		cfg.ImagePath = *imagePath
	}

	mod, err := module.Open(module.Options{Config: cfg, Logger: logger})
	if err != nil {
		logger.Fatalf("module: %v", err)
	}
	defer mod.Close()

	env := envcheck.NewLiveChecker(
		envcheck.WithStatePath(cfg.StatePath),
		envcheck.WithImagePath(cfg.ImagePath),
		envcheck.WithStore(mod.Store()),
		envcheck.WithTrustedFn(mod.Trusted),
	)

	// Check-only mode: run checks and exit
	if *checkOnly {
		crypto := env.RunCryptoChecks()
		state := env.RunStateChecks()
		checker := envcheck.NewChecker()
		checker.AddSection(crypto)
		checker.AddSection(state)
		if *jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.Encode(checker.GenerateReport())
		} else {
			printSection(crypto)
			printSection(state)
			printSummary(checker)
		}
		os.Exit(0)
	}

	socket := *socketPath
	if socket == "" {
		socket = cfg.SocketPath
	}

	logger.Printf("%s", buildinfo.String())
	if cfg.NodeName != "" {
		logger.Printf("Node: %s", cfg.NodeName)
	}
	logger.Printf("Module state: %s", mod.State())
	logger.Printf("Trust state: %s (%s)", cfg.StatePath, cfg.StateBackend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := ipc.NewServer(socket, mod, env)
	logger.Printf("Daemon started, listening on %s", socket)
	if err := server.Start(ctx); err != nil {
		logger.Fatalf("server: %v", err)
	}
	logger.Printf("Daemon stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.NewDefaultConfig(), nil
	}
	return config.ReadConfig(path)
}

func printSection(section envcheck.Section) {
	fmt.Printf("=== %s ===\n", section.Name)
	for _, item := range section.Items {
		icon := "?"
		switch item.Status {
		case envcheck.StatusPass:
			icon = "✓"
		case envcheck.StatusFail:
			icon = "✗"
		case envcheck.StatusWarning:
			icon = "!"
		}
		fmt.Printf("  [%s] %s: %s\n", icon, item.Name, item.Status)
		if item.Remediation != "" && item.Status != envcheck.StatusPass {
			fmt.Printf("      → %s\n", item.Remediation)
		}
	}
	fmt.Println()
}

func printSummary(checker *envcheck.Checker) {
	s := checker.GenerateReport().Summary
	fmt.Printf("Summary: %d passed, %d failed, %d warnings, %d unknown\n",
		s.Passed, s.Failed, s.Warnings, s.Unknown)

	b := envcheck.DetectBackend()
	fmt.Printf("FIPS Backend: %s (validated: %v)\n", b.DisplayName, b.Validated)
}
