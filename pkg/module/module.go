// Package module is the public entry point to the FIPS self-test core. It
// assembles the integrity engine, the known-answer test registry, the trust
// store, and the self-test runner into a single handle whose cryptographic
// operations are gated on module trust.
//
// Typical use:
//
//	mod, err := module.Open(module.Options{Config: cfg})
//	if err != nil {
//		// mod may be non-nil: inspect mod.Report() for the failed run.
//	}
//	defer mod.Close()
//	key, err := mod.GenerateECDSAKey(elliptic.P256())
package module

import (
	"crypto/dsa"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fipsmod/fipsmod/internal/config"
	"github.com/fipsmod/fipsmod/internal/envcheck"
	"github.com/fipsmod/fipsmod/internal/integrity"
	"github.com/fipsmod/fipsmod/internal/kat"
	"github.com/fipsmod/fipsmod/internal/selftest"
	"github.com/fipsmod/fipsmod/internal/truststate"
	"github.com/fipsmod/fipsmod/pkg/buildinfo"
)

// ErrModuleNotAvailable is returned by Guard and the key-generation
// operations when self-tests have not passed in this process, either
// because no run has happened yet or because a run ended untrusted.
var ErrModuleNotAvailable = errors.New("module not available: self-tests failed or not run")

// Options configures Open. Only Config is commonly set; the remaining
// fields override the collaborators Open would otherwise build from it.
type Options struct {
	// Config drives store selection, image location, and startup
	// behavior. Nil means config.NewDefaultConfig().
	Config *config.Config

	// Image overrides the module image source. When nil the image is the
	// file at Config.ImagePath, or the running executable if that is
	// empty.
	Image selftest.ImageSource

	// Store overrides the trust store built from Config.StateBackend.
	// Overridden stores are not closed by Close.
	Store truststate.Store

	// Journal overrides the run journal. When nil and the store is
	// SQLite-backed, the store itself journals runs.
	Journal truststate.Journal

	// Observer, with ObserverArg, is installed before any startup run so
	// it sees every phase report from the first unit on.
	Observer    selftest.Observer
	ObserverArg any

	// Version labels run reports and the persisted trust record.
	// Defaults to buildinfo.Version.
	Version string

	// Logger receives operational messages. Defaults to log.Default().
	Logger *log.Logger
}

// Module is an opened self-test core. All methods are safe for concurrent
// use; module-level runs serialize internally.
type Module struct {
	cfg       *config.Config
	runner    *selftest.Runner
	callbacks *selftest.Callbacks
	store     truststate.Store
	journal   truststate.Journal
	ownStore  bool
	version   string
	log       *log.Logger
}

// Open assembles a module from opts and, when the configuration asks for
// it, executes the startup self-test run.
//
// Construction failures return (nil, error). A failed startup run returns
// the module together with the error so the caller can read Report and
// decide; with SelfTest.FailOnFailure disabled the failure is logged and
// Open returns (module, nil), leaving Guard to refuse operations.
func Open(opts Options) (*Module, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("open module: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	m := &Module{
		cfg:     cfg,
		version: opts.Version,
		log:     logger,
	}
	if m.version == "" {
		m.version = buildinfo.Version
	}

	if err := m.initStore(opts); err != nil {
		return nil, fmt.Errorf("open module: %w", err)
	}

	image := opts.Image
	if image == nil {
		path := cfg.ImagePath
		if path == "" {
			exe, err := os.Executable()
			if err != nil {
				m.closeStore()
				return nil, fmt.Errorf("open module: resolve executable: %w", err)
			}
			path = exe
		}
		image = selftest.FileImage(path)
	}

	integrityKey, err := cfg.IntegrityKeyBytes()
	if err != nil {
		m.closeStore()
		return nil, fmt.Errorf("open module: %w", err)
	}

	registry := selftest.NewRegistry()
	if err := kat.Register(registry); err != nil {
		m.closeStore()
		return nil, fmt.Errorf("open module: %w", err)
	}

	m.callbacks = selftest.NewCallbacks()
	if opts.Observer != nil {
		m.callbacks.Set(opts.Observer, opts.ObserverArg)
	}

	runner, err := selftest.NewRunner(selftest.RunnerConfig{
		Registry:  registry,
		Callbacks: m.callbacks,
		Engine:    integrity.New(integrityKey),
		Store:     m.store,
		Journal:   m.journal,
		Image:     image,
		Version:   m.version,
		Logger:    logger,
	})
	if err != nil {
		m.closeStore()
		return nil, fmt.Errorf("open module: %w", err)
	}
	m.runner = runner

	if cfg.SelfTest.OnStart {
		report, err := m.runner.Startup()
		m.writeReport(report)
		if err != nil {
			if errors.Is(err, selftest.ErrModuleUntrusted) && !cfg.SelfTest.FailOnFailure {
				m.log.Printf("startup self-tests failed, continuing per config: %v", err)
				return m, nil
			}
			return m, fmt.Errorf("startup self-tests: %w", err)
		}
	}
	return m, nil
}

// initStore builds the trust store and journal from the options and the
// configured backend.
func (m *Module) initStore(opts Options) error {
	if opts.Store != nil {
		m.store = opts.Store
		m.journal = opts.Journal
		return nil
	}

	switch m.cfg.StateBackend {
	case config.BackendSQLite:
		store, err := truststate.NewSQLiteStore(m.cfg.StatePath)
		if err != nil {
			return fmt.Errorf("open trust store: %w", err)
		}
		m.store = store
		m.ownStore = true
		if opts.Journal != nil {
			m.journal = opts.Journal
		} else if m.cfg.SelfTest.JournalRuns > 0 {
			m.journal = store
		}
	case config.BackendFile:
		m.store = truststate.NewFileStore(m.cfg.StatePath)
		m.ownStore = true
		m.journal = opts.Journal
	default:
		return fmt.Errorf("unknown state backend %q", m.cfg.StateBackend)
	}
	return nil
}

func (m *Module) closeStore() {
	if m.ownStore && m.store != nil {
		m.store.Close()
	}
}

// writeReport persists the run report to the configured output path.
// Failures are logged, not returned: the report file is evidence, not a
// gate.
func (m *Module) writeReport(report *selftest.RunReport) {
	if report == nil || m.cfg.SelfTest.Output == "" {
		return
	}
	path := m.cfg.SelfTest.Output
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		m.log.Printf("write self-test report: %v", err)
		return
	}
	f, err := os.Create(path)
	if err != nil {
		m.log.Printf("write self-test report: %v", err)
		return
	}
	defer f.Close()
	if err := selftest.WriteReport(f, report); err != nil {
		m.log.Printf("write self-test report: %v", err)
	}
}

// SelfTest executes an on-demand module-load run and returns its report.
func (m *Module) SelfTest() (*selftest.RunReport, error) {
	report, err := m.runner.Startup()
	m.writeReport(report)
	return report, err
}

// Install executes the installation run: the full suite plus the pairwise
// consistency demonstrations, re-deriving the persisted trust record on
// success.
func (m *Module) Install() (*selftest.RunReport, error) {
	report, err := m.runner.Install()
	m.writeReport(report)
	return report, err
}

// Trusted reports whether the module passed its most recent module-level
// run and has not latched untrusted.
func (m *Module) Trusted() bool { return m.runner.Trusted() }

// State returns the runner's lifecycle state.
func (m *Module) State() selftest.State { return m.runner.State() }

// Guard returns nil when cryptographic operations are permitted and
// ErrModuleNotAvailable otherwise. Callers embedding the module gate their
// own crypto entry points on it.
func (m *Module) Guard() error {
	if !m.runner.Trusted() {
		return ErrModuleNotAvailable
	}
	return nil
}

// Report returns the report of the most recent module-level run, nil
// before the first.
func (m *Module) Report() *selftest.RunReport { return m.runner.LastReport() }

// Version returns the version label stamped into reports and records.
func (m *Module) Version() string { return m.version }

// Node returns the configured node name, empty when unset.
func (m *Module) Node() string { return m.cfg.NodeName }

// Backend identifies the FIPS cryptographic backend linked into this
// process: BoringCrypto, the Go native module, or none. Detection is
// advisory and independent of module trust.
func (m *Module) Backend() envcheck.Backend { return envcheck.DetectBackend() }

// TrustRecord loads the persisted trust record.
func (m *Module) TrustRecord() (*truststate.Record, error) {
	return m.store.Load()
}

// Store returns the trust store, for composition with environment checks
// and status surfaces.
func (m *Module) Store() truststate.Store { return m.store }

// Runs returns up to limit journaled runs, newest first. It returns an
// error when no journal is configured.
func (m *Module) Runs(limit int) ([]truststate.RunEntry, error) {
	if m.journal == nil {
		return nil, errors.New("no run journal configured")
	}
	return m.journal.Runs(limit)
}

// SetObserver installs the phase-report observer. The observer's return
// value is honored on Corrupt reports, where false forces the unit to
// Fail.
func (m *Module) SetObserver(fn selftest.Observer, arg any) {
	m.callbacks.Set(fn, arg)
}

// ClearObserver removes the observer. Subsequent runs proceed without
// fault injection or veto.
func (m *Module) ClearObserver() { m.callbacks.Clear() }

// GenerateRSAKey generates an RSA key pair and runs its pairwise
// consistency check. The key is returned only when the check passes.
func (m *Module) GenerateRSAKey(bits int) (*rsa.PrivateKey, error) {
	if err := m.Guard(); err != nil {
		return nil, err
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	err = m.runner.KeyPairCheck(selftest.DescRSA, func() bool {
		return kat.PairwiseRSA(key) == nil
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

// GenerateECDSAKey generates an ECDSA key pair on curve and runs its
// pairwise consistency check.
func (m *Module) GenerateECDSAKey(curve elliptic.Curve) (*ecdsa.PrivateKey, error) {
	if err := m.Guard(); err != nil {
		return nil, err
	}
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ecdsa key: %w", err)
	}
	err = m.runner.KeyPairCheck(selftest.DescECDSA, func() bool {
		return kat.PairwiseECDSA(key) == nil
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

// GenerateDSAKey generates a DSA key pair, including fresh domain
// parameters of the given sizes, and runs its pairwise consistency check.
func (m *Module) GenerateDSAKey(sizes dsa.ParameterSizes) (*dsa.PrivateKey, error) {
	if err := m.Guard(); err != nil {
		return nil, err
	}
	var key dsa.PrivateKey
	if err := dsa.GenerateParameters(&key.Parameters, rand.Reader, sizes); err != nil {
		return nil, fmt.Errorf("generate dsa parameters: %w", err)
	}
	if err := dsa.GenerateKey(&key, rand.Reader); err != nil {
		return nil, fmt.Errorf("generate dsa key: %w", err)
	}
	err := m.runner.KeyPairCheck(selftest.DescDSA, func() bool {
		return kat.PairwiseDSA(&key) == nil
	})
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// Close releases the trust store when the module owns it. The module
// remains readable (Report, State) after Close but cannot run further
// self-tests against a SQLite-backed store.
func (m *Module) Close() error {
	if m.ownStore && m.store != nil {
		return m.store.Close()
	}
	return nil
}
