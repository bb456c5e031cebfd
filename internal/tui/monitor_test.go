package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fipsmod/fipsmod/internal/selftest"
)

// ---------------------------------------------------------------------------
// phaseIcon
// ---------------------------------------------------------------------------

func TestPhaseIcon(t *testing.T) {
	tests := []struct {
		phase selftest.Phase
		spin  string
		want  string // substring (the glyph)
	}{
		{selftest.PhasePass, "", "●"},
		{selftest.PhaseFail, "", "✖"},
		{selftest.PhaseCorrupt, "", "!"},
		{selftest.PhaseStart, "", "·"},
		{selftest.PhaseStart, "⠋", "⠋"},
		{"", "", "·"},
	}
	for _, tt := range tests {
		got := phaseIcon(tt.phase, tt.spin)
		if !strings.Contains(got, tt.want) {
			t.Errorf("phaseIcon(%q, %q) = %q, want substring %q", tt.phase, tt.spin, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// phaseLabel
// ---------------------------------------------------------------------------

func TestPhaseLabel(t *testing.T) {
	tests := []struct {
		phase selftest.Phase
		want  string
	}{
		{selftest.PhasePass, "PASS"},
		{selftest.PhaseFail, "FAIL"},
		{selftest.PhaseStart, "RUN"},
		{selftest.PhaseCorrupt, "RUN"},
	}
	for _, tt := range tests {
		got := phaseLabel(tt.phase)
		if !strings.Contains(got, tt.want) {
			t.Errorf("phaseLabel(%q) = %q, want substring %q", tt.phase, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// renderRow
// ---------------------------------------------------------------------------

func TestRenderRow(t *testing.T) {
	r := row{
		category:   selftest.CategoryKATDigest,
		descriptor: selftest.DescSHA2,
		phase:      selftest.PhasePass,
	}
	got := renderRow(r, "")
	if !strings.Contains(got, "KAT_Digest/SHA2") {
		t.Errorf("renderRow missing unit name, got: %q", got)
	}
	if !strings.Contains(got, "PASS") {
		t.Errorf("renderRow missing phase label, got: %q", got)
	}
}

func TestRenderRowCorrupted(t *testing.T) {
	r := row{
		category:   selftest.CategoryKATCipher,
		descriptor: selftest.DescAESGCM,
		phase:      selftest.PhaseFail,
		corrupted:  true,
	}
	got := renderRow(r, "")
	if !strings.Contains(got, "corrupt injected") {
		t.Errorf("corrupted row missing injection marker, got: %q", got)
	}
	if !strings.Contains(got, "FAIL") {
		t.Errorf("failed row missing FAIL label, got: %q", got)
	}
}

// ---------------------------------------------------------------------------
// renderVerdict
// ---------------------------------------------------------------------------

func TestRenderVerdict_NilReport(t *testing.T) {
	if got := renderVerdict(nil, 80); got != "" {
		t.Errorf("renderVerdict(nil) = %q, want empty", got)
	}
}

func TestRenderVerdict_Trusted(t *testing.T) {
	report := &selftest.RunReport{
		State: selftest.StateTrusted,
		Summary: selftest.RunSummary{
			Total:  4,
			Passed: 4,
		},
	}
	got := renderVerdict(report, 80)
	if !strings.Contains(got, "4/4") {
		t.Errorf("should show 4/4, got: %q", got)
	}
	if !strings.Contains(got, "MODULE TRUSTED") {
		t.Errorf("should show MODULE TRUSTED, got: %q", got)
	}
}

func TestRenderVerdict_Untrusted(t *testing.T) {
	report := &selftest.RunReport{
		State: selftest.StateUntrusted,
		Results: []selftest.UnitResult{
			{Category: selftest.CategoryKATDigest, Descriptor: selftest.DescSHA1, Passed: false},
		},
		Summary: selftest.RunSummary{
			Total:  1,
			Failed: 1,
		},
	}
	got := renderVerdict(report, 80)
	if !strings.Contains(got, "MODULE UNTRUSTED") {
		t.Errorf("should show MODULE UNTRUSTED, got: %q", got)
	}
	if !strings.Contains(got, "KAT_Digest/SHA1") {
		t.Errorf("should list failed unit, got: %q", got)
	}
	if !strings.Contains(got, "1 FAIL") {
		t.Errorf("should show FAIL count, got: %q", got)
	}
}

func TestRenderVerdict_ForcedCount(t *testing.T) {
	report := &selftest.RunReport{
		State: selftest.StateUntrusted,
		Summary: selftest.RunSummary{
			Total:  2,
			Passed: 1,
			Failed: 1,
			Forced: 1,
		},
	}
	got := renderVerdict(report, 80)
	if !strings.Contains(got, "1 FORCED") {
		t.Errorf("should show FORCED count, got: %q", got)
	}
}

func TestRenderVerdict_WideTerminal(t *testing.T) {
	report := &selftest.RunReport{
		State:   selftest.StateTrusted,
		Summary: selftest.RunSummary{Total: 5, Passed: 5},
	}
	got80 := renderVerdict(report, 80)
	got120 := renderVerdict(report, 120)
	count80 := strings.Count(got80, "█")
	count120 := strings.Count(got120, "█")
	if count120 <= count80 {
		t.Errorf("wider terminal should produce wider bar: 80=%d chars, 120=%d chars", count80, count120)
	}
}

// ---------------------------------------------------------------------------
// NewMonitorModel
// ---------------------------------------------------------------------------

func TestNewMonitorModel(t *testing.T) {
	events := make(chan selftest.PhaseReport)
	m := NewMonitorModel(func() (*selftest.RunReport, error) { return nil, nil }, events, "load")
	if m.label != "load" {
		t.Errorf("label = %q, want load", m.label)
	}
	if !m.running {
		t.Error("monitor should start in running state")
	}
	if m.ready {
		t.Error("should not be ready before first WindowSizeMsg")
	}
	if m.report != nil {
		t.Error("report should be nil initially")
	}
	if m.index == nil {
		t.Error("index map not initialized")
	}
}

// ---------------------------------------------------------------------------
// apply
// ---------------------------------------------------------------------------

func TestApplyTracksPhases(t *testing.T) {
	events := make(chan selftest.PhaseReport)
	m := NewMonitorModel(func() (*selftest.RunReport, error) { return nil, nil }, events, "load")

	m.apply(selftest.PhaseReport{
		Phase:      selftest.PhaseStart,
		Category:   selftest.CategoryModuleIntegrity,
		Descriptor: selftest.DescHMAC,
	})
	if len(m.rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(m.rows))
	}
	if m.rows[0].phase != selftest.PhaseStart {
		t.Errorf("phase = %q, want Start", m.rows[0].phase)
	}

	m.apply(selftest.PhaseReport{
		Phase:      selftest.PhaseCorrupt,
		Category:   selftest.CategoryModuleIntegrity,
		Descriptor: selftest.DescHMAC,
	})
	if len(m.rows) != 1 {
		t.Fatalf("Corrupt created a new row, len = %d", len(m.rows))
	}
	if !m.rows[0].corrupted {
		t.Error("corrupted not set after Corrupt report")
	}

	m.apply(selftest.PhaseReport{
		Phase:      selftest.PhasePass,
		Category:   selftest.CategoryModuleIntegrity,
		Descriptor: selftest.DescHMAC,
	})
	if m.rows[0].phase != selftest.PhasePass {
		t.Errorf("phase = %q, want Pass", m.rows[0].phase)
	}
	if !m.rows[0].corrupted {
		t.Error("corrupted flag lost after later phase")
	}

	// A second unit appends in arrival order.
	m.apply(selftest.PhaseReport{
		Phase:      selftest.PhaseStart,
		Category:   selftest.CategoryKATDigest,
		Descriptor: selftest.DescSHA2,
	})
	if len(m.rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(m.rows))
	}
	if m.rows[1].category != selftest.CategoryKATDigest {
		t.Errorf("rows[1].category = %q, want KAT_Digest", m.rows[1].category)
	}
}

// ---------------------------------------------------------------------------
// Update - message handling
// ---------------------------------------------------------------------------

func newTestMonitor() MonitorModel {
	events := make(chan selftest.PhaseReport, 1)
	return NewMonitorModel(func() (*selftest.RunReport, error) { return nil, nil }, events, "load")
}

func TestUpdate_WindowSizeMsg(t *testing.T) {
	m := newTestMonitor()
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	model := updated.(MonitorModel)
	if !model.ready {
		t.Error("should be ready after WindowSizeMsg")
	}
	if model.width != 100 {
		t.Errorf("width = %d, want 100", model.width)
	}
}

func TestUpdate_WindowSizeMsg_SmallHeight(t *testing.T) {
	m := newTestMonitor()
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 8})
	model := updated.(MonitorModel)
	if model.viewport.Height < 5 {
		t.Errorf("viewport height = %d, should be at least 5", model.viewport.Height)
	}
}

func TestUpdate_PhaseMsg(t *testing.T) {
	m := newTestMonitor()
	updated, cmd := m.Update(phaseMsg{
		Phase:      selftest.PhaseStart,
		Category:   selftest.CategoryKATCipher,
		Descriptor: selftest.DescTDES,
	})
	model := updated.(MonitorModel)
	if len(model.rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(model.rows))
	}
	if cmd == nil {
		t.Error("phaseMsg should re-arm the listener")
	}
}

func TestUpdate_DoneMsg(t *testing.T) {
	m := newTestMonitor()
	report := &selftest.RunReport{State: selftest.StateTrusted}
	updated, _ := m.Update(doneMsg{report: report})
	model := updated.(MonitorModel)
	if model.running {
		t.Error("running should be false after doneMsg")
	}
	if model.report != report {
		t.Error("report not stored")
	}
}

func TestUpdate_DoneMsg_Error(t *testing.T) {
	m := newTestMonitor()
	updated, _ := m.Update(doneMsg{err: errors.New("store unavailable")})
	model := updated.(MonitorModel)
	if model.err == nil {
		t.Error("err should be set after failed run")
	}
	if model.running {
		t.Error("running should be false after doneMsg")
	}
}

func TestUpdate_RerunKey(t *testing.T) {
	m := newTestMonitor()
	m.apply(selftest.PhaseReport{
		Phase:      selftest.PhasePass,
		Category:   selftest.CategoryDRBG,
		Descriptor: selftest.DescCTR,
	})
	done, _ := m.Update(doneMsg{report: &selftest.RunReport{State: selftest.StateTrusted}})
	model := done.(MonitorModel)

	rerun, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	model = rerun.(MonitorModel)
	if !model.running {
		t.Error("re-run key should set running")
	}
	if len(model.rows) != 0 {
		t.Errorf("re-run should clear rows, got %d", len(model.rows))
	}
	if model.report != nil {
		t.Error("re-run should clear the previous report")
	}
	if cmd == nil {
		t.Error("re-run should schedule the run")
	}
}

func TestUpdate_RerunIgnoredWhileRunning(t *testing.T) {
	m := newTestMonitor()
	m.apply(selftest.PhaseReport{
		Phase:      selftest.PhaseStart,
		Category:   selftest.CategoryDRBG,
		Descriptor: selftest.DescCTR,
	})
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	model := updated.(MonitorModel)
	if len(model.rows) != 1 {
		t.Error("re-run while running should not clear rows")
	}
}

func TestUpdate_QuitKey(t *testing.T) {
	m := newTestMonitor()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("quit key should produce a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit key should produce tea.Quit")
	}
}

// ---------------------------------------------------------------------------
// View
// ---------------------------------------------------------------------------

func TestView_NotReady(t *testing.T) {
	m := newTestMonitor()
	got := m.View()
	if !strings.Contains(got, "Initializing") {
		t.Errorf("not-ready model should show 'Initializing', got: %q", got)
	}
}

func TestRenderContent_Waiting(t *testing.T) {
	m := newTestMonitor()
	got := m.renderContent()
	if !strings.Contains(got, "Waiting") {
		t.Errorf("empty monitor should show 'Waiting...', got: %q", got)
	}
}

func TestRenderContent_GroupsByCategory(t *testing.T) {
	m := newTestMonitor()
	m.apply(selftest.PhaseReport{Phase: selftest.PhasePass, Category: selftest.CategoryKATDigest, Descriptor: selftest.DescSHA1})
	m.apply(selftest.PhaseReport{Phase: selftest.PhasePass, Category: selftest.CategoryKATDigest, Descriptor: selftest.DescSHA2})
	m.apply(selftest.PhaseReport{Phase: selftest.PhasePass, Category: selftest.CategoryDRBG, Descriptor: selftest.DescCTR})
	got := m.renderContent()

	// One header plus two unit rows for the digest group.
	if n := strings.Count(got, "KAT_Digest"); n != 3 {
		t.Errorf("KAT_Digest appears %d times, want 3 (header + 2 rows): %q", n, got)
	}
	// One header plus one unit row for the DRBG group.
	if n := strings.Count(got, "DRBG"); n != 2 {
		t.Errorf("DRBG appears %d times, want 2 (header + row): %q", n, got)
	}
}

// ---------------------------------------------------------------------------
// renderFooter
// ---------------------------------------------------------------------------

func TestRenderFooter_Running(t *testing.T) {
	m := newTestMonitor()
	got := m.renderFooter()
	if !strings.Contains(got, "RUNNING") {
		t.Errorf("running monitor should show RUNNING, got: %q", got)
	}
}

func TestRenderFooter_Trusted(t *testing.T) {
	m := newTestMonitor()
	done, _ := m.Update(doneMsg{report: &selftest.RunReport{State: selftest.StateTrusted}})
	model := done.(MonitorModel)
	got := model.renderFooter()
	if !strings.Contains(got, "TRUSTED") || strings.Contains(got, "UNTRUSTED") {
		t.Errorf("trusted run should show TRUSTED, got: %q", got)
	}
}

func TestRenderFooter_Untrusted(t *testing.T) {
	m := newTestMonitor()
	done, _ := m.Update(doneMsg{report: &selftest.RunReport{State: selftest.StateUntrusted}})
	model := done.(MonitorModel)
	got := model.renderFooter()
	if !strings.Contains(got, "UNTRUSTED") {
		t.Errorf("untrusted run should show UNTRUSTED, got: %q", got)
	}
}
