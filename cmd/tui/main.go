// Command tui runs a self-test suite under a live terminal monitor. Each
// unit's Start, injected Corrupt, and final Pass or Fail reports render as
// they happen, and a deliberate failure can be injected per unit to watch
// the module latch untrusted.
//
// Usage:
//
//	go run ./cmd/tui [flags]
//
// Flags:
//
//	-config PATH   read configuration from PATH
//	-state PATH    override the trust state path
//	-backend NAME  override the state backend (file, sqlite)
//	-image PATH    override the module image (defaults to the executable)
//	-install       run the installation suite instead of a load run
//	-corrupt LIST  units to fail deliberately, comma-separated, each a
//	               DESCRIPTOR or CATEGORY/DESCRIPTOR
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fipsmod/fipsmod/internal/config"
	"github.com/fipsmod/fipsmod/internal/selftest"
	"github.com/fipsmod/fipsmod/internal/tui"
	"github.com/fipsmod/fipsmod/pkg/module"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	statePath := flag.String("state", "", "trust state path override")
	backend := flag.String("backend", "", "state backend override (file, sqlite)")
	imagePath := flag.String("image", "", "module image path override")
	install := flag.Bool("install", false, "run the installation suite")
	corrupt := flag.String("corrupt", "", "units to fail deliberately (DESC or CAT/DESC, comma-separated)")
	flag.Parse()

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
	// The monitor drives the run itself.
	cfg.SelfTest.OnStart = false

	targets := parseCorrupt(*corrupt)
	events := make(chan selftest.PhaseReport, 256)
	observer := func(r selftest.PhaseReport, _ any) bool {
		events <- r
		if r.Phase == selftest.PhaseCorrupt && targets.match(r) {
			return false
		}
		return true
	}

	// Runner logs would tear the alternate screen.
	mod, err := module.Open(module.Options{
		Config:   cfg,
		Observer: observer,
		Logger:   log.New(io.Discard, "", 0),
	})
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

	m := tui.NewMonitorModel(run, events, label)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if !mod.Trusted() {
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.NewDefaultConfig(), nil
	}
	return config.ReadConfig(path)
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
