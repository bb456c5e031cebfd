package selftest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fipsmod/fipsmod/internal/integrity"
	"github.com/fipsmod/fipsmod/internal/truststate"
)

// State is the runner's position in the self-test lifecycle. Trusted and
// Untrusted are terminal for a run; Untrusted additionally latches for the
// remainder of the process lifetime.
type State string

const (
	StateIdle        State = "idle"
	StateSelecting   State = "selecting"
	StateExecuting   State = "executing"
	StateAggregating State = "aggregating"
	StateTrusted     State = "trusted"
	StateUntrusted   State = "untrusted"
)

// Trigger names the lifecycle event that started a run.
type Trigger string

const (
	TriggerLoad    Trigger = "load"
	TriggerInstall Trigger = "install"
	TriggerKeyGen  Trigger = "keygen"
)

var (
	// ErrModuleUntrusted reports that self-tests have failed and the
	// module refuses cryptographic operations until process restart.
	ErrModuleUntrusted = errors.New("module is untrusted")

	// ErrPairwiseConsistency reports a failed pairwise consistency check.
	// It fails the triggering key-generation operation only.
	ErrPairwiseConsistency = errors.New("pairwise consistency check failed")
)

// ImageSource supplies the module image bytes covered by the module
// integrity check.
type ImageSource func() ([]byte, error)

// FileImage returns an ImageSource that reads the file at path on each
// run.
func FileImage(path string) ImageSource {
	return func() ([]byte, error) { return os.ReadFile(path) }
}

// StaticImage returns an ImageSource serving fixed bytes.
func StaticImage(data []byte) ImageSource {
	return func() ([]byte, error) { return data, nil }
}

// RunnerConfig wires a runner's collaborators. Registry, Callbacks,
// Engine, Store, and Image are required; Journal and Logger are optional.
type RunnerConfig struct {
	Registry  *Registry
	Callbacks *Callbacks
	Engine    *integrity.Engine
	Store     truststate.Store
	Journal   truststate.Journal
	Image     ImageSource
	Version   string
	Logger    *log.Logger
}

// Runner sequences self-test runs across the module lifecycle: which
// categories execute on module load, on explicit installation, and per
// key-pair generation, and how their verdicts aggregate into module trust.
//
// Module-level runs (load, install) are serialized; pairwise consistency
// checks may run concurrently from independent key-generation operations.
type Runner struct {
	registry  *Registry
	callbacks *Callbacks
	engine    *integrity.Engine
	store     truststate.Store
	journal   truststate.Journal
	image     ImageSource
	version   string
	log       *log.Logger

	mu        sync.Mutex
	state     State
	untrusted bool
	last      *RunReport
}

// NewRunner validates the configuration and returns an idle runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Registry == nil {
		return nil, errors.New("runner: nil registry")
	}
	if cfg.Callbacks == nil {
		return nil, errors.New("runner: nil callbacks")
	}
	if cfg.Engine == nil {
		return nil, errors.New("runner: nil integrity engine")
	}
	if cfg.Store == nil {
		return nil, errors.New("runner: nil trust store")
	}
	if cfg.Image == nil {
		return nil, errors.New("runner: nil image source")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		registry:  cfg.Registry,
		callbacks: cfg.Callbacks,
		engine:    cfg.Engine,
		store:     cfg.Store,
		journal:   cfg.Journal,
		image:     cfg.Image,
		version:   cfg.Version,
		log:       logger,
		state:     StateIdle,
	}, nil
}

// State returns the runner's current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Trusted reports whether the last module-level run ended Trusted and no
// run has latched the module untrusted.
func (r *Runner) Trusted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateTrusted && !r.untrusted
}

// LastReport returns the report of the most recent module-level run, nil
// before the first run.
func (r *Runner) LastReport() *RunReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Startup executes the module-load self-test run: both integrity checks
// always, plus the full KAT and DRBG suite when the persisted trust state
// does not prove a completed installation.
func (r *Runner) Startup() (*RunReport, error) {
	return r.run(TriggerLoad)
}

// Install executes the installation run: both integrity checks and every
// registered unit including the pairwise consistency demonstrations. On
// success the trust record is re-derived and persisted.
func (r *Runner) Install() (*RunReport, error) {
	return r.run(TriggerInstall)
}

// runPlan is the outcome of the Selecting state: the two integrity units
// built for this run, the registry units to execute, and how the install
// verdict folds into aggregation.
type runPlan struct {
	moduleUnit  Unit
	installUnit Unit
	suite       []Unit
	fullSuite   bool
	// reinstall marks an install digest that was present but did not
	// match. The reported Fail stands, but the re-run suite's verdicts
	// decide the run in its place.
	reinstall bool
}

func (r *Runner) run(trigger Trigger) (*RunReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.untrusted {
		return r.last, fmt.Errorf("%s self-tests refused: %w", trigger, ErrModuleUntrusted)
	}

	started := time.Now()
	report := &RunReport{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		Version:   r.version,
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		StartedAt: started.UTC().Format(time.RFC3339),
	}

	r.state = StateSelecting
	rec := r.loadRecord()
	var pending truststate.Record
	plan := r.buildPlan(trigger, rec, &pending)
	r.log.Printf("self-test run %s: trigger=%s units=%d full_suite=%v",
		report.RunID, trigger, 2+len(plan.suite), plan.fullSuite)

	// Every selected unit runs to completion even after earlier failures,
	// so one run shows validators every category's outcome.
	r.state = StateExecuting
	moduleRes := r.executeUnit(plan.moduleUnit)
	installRes := r.executeUnit(plan.installUnit)
	report.Results = append(report.Results, moduleRes, installRes)
	for _, u := range plan.suite {
		report.Results = append(report.Results, r.executeUnit(u))
	}

	r.state = StateAggregating
	verdict := moduleRes.Passed
	if !plan.reinstall {
		verdict = verdict && installRes.Passed
	}
	for _, res := range report.Results[2:] {
		verdict = verdict && res.Passed
	}

	report.Duration = time.Since(started).String()
	report.Summarize()

	var persistErr error
	if verdict {
		r.state = StateTrusted
		report.State = StateTrusted
		if plan.fullSuite {
			persistErr = r.persist(rec, &pending)
		}
	} else {
		r.state = StateUntrusted
		r.untrusted = true
		report.State = StateUntrusted
		r.log.Printf("self-test run %s: failed units: %s",
			report.RunID, strings.Join(report.FailedUnits(), ", "))
	}
	r.last = report
	r.appendJournal(report, started)

	if !verdict {
		return report, fmt.Errorf("%w: %s", ErrModuleUntrusted, strings.Join(report.FailedUnits(), ", "))
	}
	if persistErr != nil {
		// The module is trusted in-process; the next load will simply
		// re-run the full suite because no record proves installation.
		return report, fmt.Errorf("save trust record: %w", persistErr)
	}
	return report, nil
}

// buildPlan implements the selection decision table. The install marker is
// verified here, without reports, because the result decides whether the
// KAT and DRBG categories are selected; the install unit re-verifies it
// under the report protocol during execution.
func (r *Runner) buildPlan(trigger Trigger, rec *truststate.Record, pending *truststate.Record) runPlan {
	var expectedModule, expectedInstall []byte
	if rec != nil {
		expectedModule = rec.ModuleDigestBytes()
		if rec.InstallCompleted {
			expectedInstall = rec.InstallDigestBytes()
		}
	}

	// With no reference digest the first run derives one: the computed
	// value is held in pending and persisted only if the run ends Trusted.
	moduleUnit := Unit{
		Category:    CategoryModuleIntegrity,
		Descriptor:  DescHMAC,
		Corruptible: true,
		Run: func() bool {
			data, err := r.image()
			if err != nil {
				r.log.Printf("module integrity: read image: %v", err)
				return false
			}
			digest := r.engine.Compute(data)
			pending.SetModuleDigest(digest)
			if expectedModule == nil {
				return len(digest) > 0
			}
			return integrity.Equal(digest, expectedModule)
		},
	}

	derive := expectedInstall == nil
	installUnit := Unit{
		Category:    CategoryInstallIntegrity,
		Descriptor:  DescHMAC,
		Corruptible: true,
		Run: func() bool {
			digest := r.engine.MarkerDigest()
			pending.SetInstallDigest(digest)
			if derive {
				return len(digest) > 0
			}
			return integrity.Equal(digest, expectedInstall)
		},
	}

	installOK := !derive && r.engine.VerifyMarker(expectedInstall)
	fullSuite := trigger == TriggerInstall || !installOK

	var suite []Unit
	if fullSuite {
		cats := suiteCategories
		if trigger == TriggerInstall {
			cats = append(append([]Category{}, suiteCategories...), CategoryPCT)
		}
		suite = r.registry.UnitsIn(cats...)
	}

	return runPlan{
		moduleUnit:  moduleUnit,
		installUnit: installUnit,
		suite:       suite,
		fullSuite:   fullSuite,
		reinstall:   !derive && !installOK,
	}
}

// executeUnit runs one unit through the report protocol: Start, then
// Corrupt for corruptible units, then exactly one of Pass or Fail. The
// observer's return value is honored only on the Corrupt phase; with no
// observer registered no override is possible. The unit's real result is
// always computed, then overridden if the observer vetoed.
func (r *Runner) executeUnit(u Unit) UnitResult {
	started := time.Now()

	rep := PhaseReport{Phase: PhaseStart, Category: u.Category, Descriptor: u.Descriptor}
	r.callbacks.report(rep)

	forced := false
	if u.Corruptible {
		rep.Phase = PhaseCorrupt
		if !r.callbacks.report(rep) {
			forced = true
		}
	}

	ok := u.Run()
	if forced {
		ok = false
	}

	if ok {
		rep.Phase = PhasePass
	} else {
		rep.Phase = PhaseFail
	}
	r.callbacks.report(rep)

	return UnitResult{
		Category:   u.Category,
		Descriptor: u.Descriptor,
		Passed:     ok,
		Forced:     forced,
		Duration:   time.Since(started).String(),
	}
}

// KeyPairCheck runs a pairwise consistency check for one freshly generated
// key pair through the report protocol. The verdict is scoped to the
// triggering operation: a failure fails that operation without touching
// module-wide trust or the persisted record.
func (r *Runner) KeyPairCheck(desc Descriptor, check func() bool) error {
	if check == nil {
		return fmt.Errorf("pairwise check %s: nil check", desc)
	}
	r.mu.Lock()
	latched := r.untrusted
	r.mu.Unlock()
	if latched {
		return fmt.Errorf("pairwise check %s: %w", desc, ErrModuleUntrusted)
	}

	res := r.executeUnit(Unit{
		Category:    CategoryPCT,
		Descriptor:  desc,
		Run:         check,
		Corruptible: true,
	})
	if !res.Passed {
		return fmt.Errorf("%w: %s", ErrPairwiseConsistency, desc)
	}
	return nil
}

// loadRecord reads the trust record, mapping both absence and unreadable
// state to nil so the run re-derives trust with the full suite.
func (r *Runner) loadRecord() *truststate.Record {
	rec, err := r.store.Load()
	if err != nil {
		if !errors.Is(err, truststate.ErrNoRecord) {
			r.log.Printf("trust record load: %v", err)
		}
		return nil
	}
	return rec
}

// persist writes the re-derived trust record after a successful full run.
func (r *Runner) persist(prev, pending *truststate.Record) error {
	now := time.Now().UTC()
	rec := truststate.Record{
		ModuleDigest:     pending.ModuleDigest,
		InstallDigest:    pending.InstallDigest,
		InstallCompleted: true,
		ModuleVersion:    r.version,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if prev != nil && !prev.CreatedAt.IsZero() {
		rec.CreatedAt = prev.CreatedAt
	}
	return r.store.Save(&rec)
}

// appendJournal records the finished run when a journal is configured.
func (r *Runner) appendJournal(report *RunReport, started time.Time) {
	if r.journal == nil {
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		data = nil
	}
	entry := truststate.RunEntry{
		ID:        report.RunID,
		Trigger:   string(report.Trigger),
		State:     string(report.State),
		Passed:    report.Summary.Passed,
		Failed:    report.Summary.Failed,
		StartedAt: started.UTC(),
		Duration:  report.Duration,
		Report:    string(data),
	}
	if err := r.journal.AppendRun(entry); err != nil {
		r.log.Printf("self-test run %s: journal append: %v", report.RunID, err)
	}
}
