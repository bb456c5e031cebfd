package envcheck

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fipsmod/fipsmod/internal/truststate"
)

// LiveChecker runs real system queries to produce the crypto environment
// and module state sections.
type LiveChecker struct {
	statePath string
	imagePath string
	store     truststate.Store
	trusted   func() bool
}

// LiveCheckerOption configures a LiveChecker.
type LiveCheckerOption func(*LiveChecker)

// WithStatePath sets the trust state location checked for persistence.
func WithStatePath(path string) LiveCheckerOption {
	return func(lc *LiveChecker) { lc.statePath = path }
}

// WithImagePath sets the module image covered by the integrity digest.
// Empty selects the running executable.
func WithImagePath(path string) LiveCheckerOption {
	return func(lc *LiveChecker) { lc.imagePath = path }
}

// WithStore sets the trust store inspected by the record check.
func WithStore(store truststate.Store) LiveCheckerOption {
	return func(lc *LiveChecker) { lc.store = store }
}

// WithTrustedFn sets the probe reporting the runner's live trust verdict.
func WithTrustedFn(fn func() bool) LiveCheckerOption {
	return func(lc *LiveChecker) { lc.trusted = fn }
}

// NewLiveChecker creates a checker that queries the running system.
func NewLiveChecker(opts ...LiveCheckerOption) *LiveChecker {
	lc := &LiveChecker{}
	for _, opt := range opts {
		opt(lc)
	}
	return lc
}

// RunCryptoChecks produces the crypto environment section.
func (lc *LiveChecker) RunCryptoChecks() Section {
	section := Section{
		ID:          "crypto",
		Name:        "Crypto Environment",
		Description: "FIPS backend, host OS mode, and TLS stack state",
	}

	section.Items = append(section.Items, lc.checkBackend())
	section.Items = append(section.Items, lc.checkOSFIPSMode())
	section.Items = append(section.Items, lc.checkTLSStack())
	section.Items = append(section.Items, lc.checkTLSConfig())

	return section
}

// RunStateChecks produces the module state section.
func (lc *LiveChecker) RunStateChecks() Section {
	section := Section{
		ID:          "state",
		Name:        "Module State",
		Description: "Trust record, state persistence, and module image",
	}

	section.Items = append(section.Items, lc.checkTrustRecord())
	section.Items = append(section.Items, lc.checkStateLocation())
	section.Items = append(section.Items, lc.checkImageReadable())
	section.Items = append(section.Items, lc.checkModuleTrust())

	return section
}

// --- crypto environment checks ---

func (lc *LiveChecker) checkBackend() Item {
	item := Item{
		ID:          "c-1",
		Name:        "FIPS Crypto Backend",
		Severity:    "critical",
		What:        "Confirms a FIPS-validated crypto provider is linked into this process",
		Why:         "Without a validated module no cryptographic operation in this process is FIPS-validated.",
		Remediation: "Build with GOEXPERIMENT=boringcrypto (Linux) or run with GODEBUG=fips140=on.",
		NISTRef:     "SC-13, IA-7",
	}

	backend := DetectBackend()
	if backend.Active() {
		item.Status = StatusPass
		item.What = fmt.Sprintf("Active FIPS backend: %s (FIPS %s)", backend.DisplayName, backend.Standard)
	} else {
		item.Status = StatusFail
	}
	return item
}

func (lc *LiveChecker) checkOSFIPSMode() Item {
	item := Item{
		ID:          "c-2",
		Name:        "OS FIPS Mode",
		Severity:    "high",
		What:        "Checks if the host operating system has FIPS mode enabled via /proc/sys/crypto/fips_enabled",
		Why:         "OS-level FIPS mode restricts the kernel and userspace crypto to approved algorithms.",
		Remediation: "Enable FIPS mode: fips-mode-setup --enable && reboot. For containers, the host must have FIPS enabled.",
		NISTRef:     "SC-13, CM-6",
	}

	if runtime.GOOS != "linux" {
		item.Status = StatusWarning
		item.What = fmt.Sprintf("OS FIPS mode check not applicable on %s", runtime.GOOS)
		return item
	}

	data, err := os.ReadFile("/proc/sys/crypto/fips_enabled")
	if err != nil {
		item.Status = StatusWarning
		return item
	}

	if strings.TrimSpace(string(data)) == "1" {
		item.Status = StatusPass
	} else {
		item.Status = StatusWarning
	}
	return item
}

func (lc *LiveChecker) checkTLSStack() Item {
	item := Item{
		ID:          "c-3",
		Name:        "TLS Cipher Suites",
		Severity:    "high",
		What:        "Verifies only FIPS-approved cipher suites are available in the TLS stack",
		Why:         "Non-FIPS ciphers (RC4, DES, 3DES) must not be negotiable.",
		Remediation: "Build with GOEXPERIMENT=boringcrypto or run with GODEBUG=fips140=on.",
		NISTRef:     "SC-13, SC-8",
	}

	suites := tls.CipherSuites()
	var banned int
	for _, s := range suites {
		if !IsFIPSApproved(s.ID) {
			banned++
		}
	}

	if banned == 0 {
		item.Status = StatusPass
		item.What = fmt.Sprintf("All %d cipher suites are FIPS-approved", len(suites))
		return item
	}

	// With a FIPS backend the static registry still lists non-approved
	// suites, but the module blocks them at runtime.
	if backend := DetectBackend(); backend.Active() {
		item.Status = StatusPass
		item.What = fmt.Sprintf("%d approved suites active; %d non-approved blocked by %s",
			len(suites)-banned, banned, backend.DisplayName)
		return item
	}

	item.Status = StatusWarning
	item.What = fmt.Sprintf("%d non-FIPS cipher suites available (no FIPS backend active)", banned)
	return item
}

func (lc *LiveChecker) checkTLSConfig() Item {
	item := Item{
		ID:          "c-4",
		Name:        "TLS Version Floor",
		Severity:    "critical",
		What:        "Verifies the restricted TLS configuration enforces TLS 1.2 minimum",
		Why:         "SP 800-52 Rev 2 prohibits TLS 1.0 and 1.1.",
		Remediation: "Use GetFIPSTLSConfig for every TLS listener and client.",
		NISTRef:     "SC-8, SC-13",
	}

	if GetFIPSTLSConfig().MinVersion >= tls.VersionTLS12 {
		item.Status = StatusPass
	} else {
		item.Status = StatusFail
	}
	return item
}

// --- module state checks ---

func (lc *LiveChecker) checkTrustRecord() Item {
	item := Item{
		ID:          "s-1",
		Name:        "Trust Record",
		Severity:    "high",
		What:        "Inspects the persisted trust record proving a completed installation",
		Why:         "Without the record every module load re-runs the full test suite.",
		Remediation: "Run the installation self-tests to derive and persist the record.",
		NISTRef:     "SC-13",
	}

	if lc.store == nil {
		item.Status = StatusUnknown
		item.What = "No trust store configured"
		return item
	}

	rec, err := lc.store.Load()
	if err != nil {
		if errors.Is(err, truststate.ErrNoRecord) {
			item.Status = StatusWarning
			item.What = "No trust record; the next run derives one"
			return item
		}
		item.Status = StatusFail
		item.What = fmt.Sprintf("Trust record unreadable: %v", err)
		return item
	}

	if rec.InstallCompleted {
		item.Status = StatusPass
		item.What = fmt.Sprintf("Installation completed (module %s, updated %s)",
			rec.ModuleVersion, rec.UpdatedAt.Format("2006-01-02"))
	} else {
		item.Status = StatusWarning
		item.What = "Trust record present but installation incomplete"
	}
	return item
}

func (lc *LiveChecker) checkStateLocation() Item {
	item := Item{
		ID:          "s-2",
		Name:        "State Persistence",
		Severity:    "medium",
		What:        "Checks that the trust state directory exists",
		Why:         "A successful installation must be able to persist its record.",
		Remediation: "Create the state directory or point state_path at a writable location.",
		NISTRef:     "CM-6",
	}

	if lc.statePath == "" {
		item.Status = StatusUnknown
		item.What = "No state path configured"
		return item
	}

	dir := filepath.Dir(lc.statePath)
	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		item.Status = StatusPass
		item.What = fmt.Sprintf("State directory %s present", dir)
	case os.IsNotExist(err):
		item.Status = StatusWarning
		item.What = fmt.Sprintf("State directory %s missing; created on first save", dir)
	default:
		item.Status = StatusFail
		item.What = fmt.Sprintf("State directory %s not usable: %v", dir, err)
	}
	return item
}

func (lc *LiveChecker) checkImageReadable() Item {
	item := Item{
		ID:          "s-3",
		Name:        "Module Image",
		Severity:    "critical",
		What:        "Checks the module image covered by the integrity digest is readable",
		Why:         "The module integrity check reads the full image on every run.",
		Remediation: "Point image_path at the module binary, or leave it empty to use the running executable.",
		NISTRef:     "SC-13, SI-7",
	}

	path := lc.imagePath
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			item.Status = StatusWarning
			item.What = fmt.Sprintf("Cannot resolve running executable: %v", err)
			return item
		}
		path = exe
	}

	info, err := os.Stat(path)
	if err != nil {
		item.Status = StatusFail
		item.What = fmt.Sprintf("Image %s not readable: %v", path, err)
		return item
	}
	item.Status = StatusPass
	item.What = fmt.Sprintf("Image %s (%d bytes)", path, info.Size())
	return item
}

func (lc *LiveChecker) checkModuleTrust() Item {
	item := Item{
		ID:          "s-4",
		Name:        "Module Trust",
		Severity:    "critical",
		What:        "Reports the live trust verdict of the self-test runner",
		Why:         "An untrusted module refuses all cryptographic operations until restart.",
		Remediation: "Inspect the last run report, repair the module, and restart the process.",
		NISTRef:     "SC-13, IA-7",
	}

	if lc.trusted == nil {
		item.Status = StatusUnknown
		item.What = "No runner attached"
		return item
	}
	if lc.trusted() {
		item.Status = StatusPass
		item.What = "Self-tests passed; module is trusted"
	} else {
		item.Status = StatusFail
		item.What = "Module is untrusted; cryptographic operations refused"
	}
	return item
}
