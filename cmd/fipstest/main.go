// Command fipstest runs the module self-test suite and reports the
// verdict.
//
// By default it executes a load run (integrity checks, plus the full KAT
// and DRBG suite when no valid trust record exists) and prints a unit
// summary. -install executes the installation suite including the pairwise
// consistency demonstrations and re-derives the persisted trust record.
// -corrupt injects a deliberate failure into the named units through the
// observer callback, for validating failure handling end to end.
//
// Exit status: 0 module trusted, 1 untrusted, 2 setup error.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fipsmod/fipsmod/internal/config"
	"github.com/fipsmod/fipsmod/internal/selftest"
	"github.com/fipsmod/fipsmod/pkg/buildinfo"
	"github.com/fipsmod/fipsmod/pkg/module"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	statePath := flag.String("state", "", "trust state path override")
	backend := flag.String("backend", "", "state backend override (file, sqlite)")
	imagePath := flag.String("image", "", "module image path override")
	install := flag.Bool("install", false, "run the installation suite and re-derive the trust record")
	jsonOut := flag.Bool("json", false, "write the full JSON report to stdout")
	corrupt := flag.String("corrupt", "", "units to fail deliberately (DESC or CAT/DESC, comma-separated)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println(buildinfo.String())
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
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
	// This command triggers the run explicitly.
	cfg.SelfTest.OnStart = false

	logger := log.New(os.Stderr, "[fipstest] ", log.LstdFlags)

	opts := module.Options{Config: cfg, Logger: logger}
	if targets := parseCorrupt(*corrupt); len(targets) > 0 {
		opts.Observer = func(r selftest.PhaseReport, _ any) bool {
			return !(r.Phase == selftest.PhaseCorrupt && targets.match(r))
		}
	}

	mod, err := module.Open(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	defer mod.Close()

	run := mod.SelfTest
	label := "load"
	if *install {
		run = mod.Install
		label = "install"
	}

	fmt.Fprintf(os.Stderr, "%s\n", buildinfo.String())
	fmt.Fprintf(os.Stderr, "Running %s self-test suite...\n\n", label)

	report, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "SELF-TEST FAILED: %v\n", err)
	}
	if report == nil {
		os.Exit(2)
	}

	if *jsonOut {
		if printErr := selftest.WriteReport(os.Stdout, report); printErr != nil {
			fmt.Fprintf(os.Stderr, "failed to print report: %v\n", printErr)
			os.Exit(2)
		}
	} else {
		printReport(report)
	}

	if !mod.Trusted() {
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "\nAll self-tests passed.\n")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.NewDefaultConfig(), nil
	}
	return config.ReadConfig(path)
}

func printReport(report *selftest.RunReport) {
	fmt.Printf("=== Self-Test Run %s (trigger: %s) ===\n", report.RunID, report.Trigger)
	for _, res := range report.Results {
		icon := "✓"
		verdict := "pass"
		if !res.Passed {
			icon = "✗"
			verdict = "fail"
		}
		line := fmt.Sprintf("  [%s] %s/%s: %s", icon, res.Category, res.Descriptor, verdict)
		if res.Forced {
			line += " (forced by observer)"
		}
		fmt.Println(line)
	}

	s := report.Summary
	fmt.Printf("\nSummary: %d passed, %d failed, %d forced, in %s\n",
		s.Passed, s.Failed, s.Forced, report.Duration)
	fmt.Printf("Module state: %s\n", report.State)
}

// corruptSet selects units for deliberate failure injection.
type corruptSet map[string]bool

func parseCorrupt(s string) corruptSet {
	set := corruptSet{}
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			set[tok] = true
		}
	}
	return set
}

// match reports whether r names a selected unit, by bare descriptor or by
// category/descriptor.
func (c corruptSet) match(r selftest.PhaseReport) bool {
	if c[string(r.Descriptor)] {
		return true
	}
	return c[fmt.Sprintf("%s/%s", r.Category, r.Descriptor)]
}
