package main

import (
	"os"
	"testing"

	"github.com/fipsmod/fipsmod/internal/selftest"
)

// ---------------------------------------------------------------------------
// parseCorrupt / match
// ---------------------------------------------------------------------------

func TestParseCorrupt_QualifiedAndBare(t *testing.T) {
	set := parseCorrupt("SHA2, KAT_Cipher/AES_GCM")
	if len(set) != 2 {
		t.Fatalf("parseCorrupt returned %d selectors, want 2", len(set))
	}
	if !set["SHA2"] || !set["KAT_Cipher/AES_GCM"] {
		t.Errorf("unexpected selector set: %v", set)
	}
}

func TestMatch_QualifiedSelector(t *testing.T) {
	set := parseCorrupt("KAT_Cipher/AES_GCM")

	hit := selftest.PhaseReport{
		Category:   selftest.CategoryKATCipher,
		Descriptor: selftest.DescAESGCM,
	}
	if !set.match(hit) {
		t.Error("qualified selector should match its category and descriptor")
	}

	miss := selftest.PhaseReport{
		Category:   selftest.CategoryModuleIntegrity,
		Descriptor: selftest.DescAESGCM,
	}
	if set.match(miss) {
		t.Error("qualified selector should not match a different category")
	}
}

func TestMatch_BareDescriptor(t *testing.T) {
	set := parseCorrupt("SHA2")
	r := selftest.PhaseReport{
		Category:   selftest.CategoryKATDigest,
		Descriptor: selftest.DescSHA2,
	}
	if !set.match(r) {
		t.Error("bare descriptor should match regardless of category")
	}
}

// ---------------------------------------------------------------------------
// printReport - verify formatting against captured stdout
// ---------------------------------------------------------------------------

func captureReport(t *testing.T, report *selftest.RunReport) string {
	t.Helper()

	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	printReport(report)

	w.Close()
	os.Stdout = old

	buf := make([]byte, 8192)
	n, _ := r.Read(buf)
	return string(buf[:n])
}

func TestPrintReport_AllPassed(t *testing.T) {
	report := &selftest.RunReport{
		RunID:    "run-1",
		Trigger:  selftest.TriggerLoad,
		Duration: "12ms",
		State:    selftest.StateTrusted,
		Results: []selftest.UnitResult{
			{Category: selftest.CategoryModuleIntegrity, Descriptor: selftest.DescHMAC, Passed: true},
			{Category: selftest.CategoryKATDigest, Descriptor: selftest.DescSHA2, Passed: true},
		},
		Summary: selftest.RunSummary{Total: 2, Passed: 2},
	}

	output := captureReport(t, report)

	if !contains(output, "run-1") {
		t.Errorf("output should name the run, got: %q", output)
	}
	if !contains(output, "✓") {
		t.Error("passing units should render the ✓ icon")
	}
	if contains(output, "✗") {
		t.Error("all-pass report should not render the ✗ icon")
	}
	if !contains(output, "Module_Integrity/HMAC: pass") {
		t.Errorf("output should list each unit verdict, got: %q", output)
	}
	if !contains(output, "2 passed, 0 failed, 0 forced") {
		t.Errorf("summary line missing or wrong, got: %q", output)
	}
	if !contains(output, "Module state: trusted") {
		t.Errorf("output should show the module state, got: %q", output)
	}
}

func TestPrintReport_FailedAndForced(t *testing.T) {
	report := &selftest.RunReport{
		RunID:    "run-2",
		Trigger:  selftest.TriggerInstall,
		Duration: "30ms",
		State:    selftest.StateUntrusted,
		Results: []selftest.UnitResult{
			{Category: selftest.CategoryKATDigest, Descriptor: selftest.DescSHA2, Passed: true},
			{Category: selftest.CategoryKATCipher, Descriptor: selftest.DescAESGCM, Passed: false, Forced: true},
		},
		Summary: selftest.RunSummary{Total: 2, Passed: 1, Failed: 1, Forced: 1},
	}

	output := captureReport(t, report)

	if !contains(output, "✗") {
		t.Error("failing units should render the ✗ icon")
	}
	if !contains(output, "KAT_Cipher/AES_GCM: fail (forced by observer)") {
		t.Errorf("forced failures should be marked, got: %q", output)
	}
	if !contains(output, "1 passed, 1 failed, 1 forced") {
		t.Errorf("summary line missing or wrong, got: %q", output)
	}
	if !contains(output, "Module state: untrusted") {
		t.Errorf("output should show the untrusted state, got: %q", output)
	}
}

func TestPrintReport_ForcedNotShownForCleanUnits(t *testing.T) {
	report := &selftest.RunReport{
		RunID:   "run-3",
		Trigger: selftest.TriggerLoad,
		State:   selftest.StateTrusted,
		Results: []selftest.UnitResult{
			{Category: selftest.CategoryKATDigest, Descriptor: selftest.DescSHA2, Passed: true},
		},
		Summary: selftest.RunSummary{Total: 1, Passed: 1},
	}

	output := captureReport(t, report)

	if contains(output, "forced by observer") {
		t.Errorf("clean units should not carry the forced marker, got: %q", output)
	}
}

// ---------------------------------------------------------------------------
// loadConfig
// ---------------------------------------------------------------------------

func TestLoadConfig_DefaultWhenUnset(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig(\"\") returned error: %v", err)
	}
	if cfg == nil {
		t.Fatal("loadConfig(\"\") returned nil config")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := loadConfig("/nonexistent/fipsmod.yaml"); err == nil {
		t.Error("loadConfig should fail for a missing file")
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && searchSubstring(s, substr)
}

func searchSubstring(s, sub string) bool {
	for i := 0; i <= len(s)-len(sub); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
