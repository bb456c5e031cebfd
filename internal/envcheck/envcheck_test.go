package envcheck

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/fipsmod/fipsmod/internal/truststate"
)

// --- Test helpers ---

// makeItem creates an Item with the given id and status. Other fields are
// filled with sensible defaults.
func makeItem(id string, status Status) Item {
	return Item{
		ID:          id,
		Name:        "Check " + id,
		Status:      status,
		Severity:    "high",
		What:        "Verifies " + id,
		Why:         "Required for module validation",
		Remediation: "Fix " + id,
		NISTRef:     "SC-13",
	}
}

// makeSection creates a Section containing the given items.
func makeSection(id, name string, items ...Item) Section {
	return Section{
		ID:          id,
		Name:        name,
		Description: "Test section: " + name,
		Items:       items,
	}
}

// --- Tests ---

func TestNewChecker(t *testing.T) {
	c := NewChecker()
	if c == nil {
		t.Fatal("NewChecker returned nil")
	}
	if len(c.sections) != 0 {
		t.Errorf("expected 0 sections, got %d", len(c.sections))
	}
}

func TestGenerateReportMixedStatuses(t *testing.T) {
	c := NewChecker()
	c.AddSection(makeSection("s1", "Mixed",
		makeItem("p1", StatusPass),
		makeItem("p2", StatusPass),
		makeItem("f1", StatusFail),
		makeItem("w1", StatusWarning),
		makeItem("u1", StatusUnknown),
	))

	report := c.GenerateReport()
	if report.Summary.Total != 5 {
		t.Errorf("expected Total=5, got %d", report.Summary.Total)
	}
	if report.Summary.Passed != 2 {
		t.Errorf("expected Passed=2, got %d", report.Summary.Passed)
	}
	if report.Summary.Failed != 1 {
		t.Errorf("expected Failed=1, got %d", report.Summary.Failed)
	}
	if report.Summary.Warnings != 1 {
		t.Errorf("expected Warnings=1, got %d", report.Summary.Warnings)
	}
	if report.Summary.Unknown != 1 {
		t.Errorf("expected Unknown=1, got %d", report.Summary.Unknown)
	}
	if report.Timestamp == "" {
		t.Error("report timestamp is empty")
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{name: "all pass", statuses: []Status{StatusPass, StatusPass}, want: StatusPass},
		{name: "fail wins", statuses: []Status{StatusPass, StatusFail, StatusWarning}, want: StatusFail},
		{name: "warning over unknown", statuses: []Status{StatusUnknown, StatusWarning}, want: StatusWarning},
		{name: "unknown over pass", statuses: []Status{StatusPass, StatusUnknown}, want: StatusUnknown},
		{name: "empty", statuses: nil, want: StatusPass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			var items []Item
			for i, s := range tt.statuses {
				items = append(items, makeItem(string(rune('a'+i)), s))
			}
			c.AddSection(makeSection("s", "S", items...))
			if got := c.OverallStatus(); got != tt.want {
				t.Errorf("OverallStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// live checks
// ---------------------------------------------------------------------------

func TestRunCryptoChecksShape(t *testing.T) {
	lc := NewLiveChecker()
	section := lc.RunCryptoChecks()

	if section.ID != "crypto" {
		t.Errorf("section ID = %q, want crypto", section.ID)
	}
	if len(section.Items) != 4 {
		t.Fatalf("len(Items) = %d, want 4", len(section.Items))
	}
	for _, item := range section.Items {
		if item.Status == "" {
			t.Errorf("item %s has no status", item.ID)
		}
	}
	// The version floor is a static property of the restricted config.
	if section.Items[3].Status != StatusPass {
		t.Errorf("TLS version floor = %s, want pass", section.Items[3].Status)
	}
}

func TestCheckTrustRecord(t *testing.T) {
	dir := t.TempDir()

	// No store configured.
	item := NewLiveChecker().checkTrustRecord()
	if item.Status != StatusUnknown {
		t.Errorf("no store: status = %s, want unknown", item.Status)
	}

	// Empty store: the record is still to be derived.
	store := truststate.NewFileStore(filepath.Join(dir, "trust.json"))
	item = NewLiveChecker(WithStore(store)).checkTrustRecord()
	if item.Status != StatusWarning {
		t.Errorf("empty store: status = %s, want warning", item.Status)
	}

	// Completed installation.
	rec := &truststate.Record{
		InstallCompleted: true,
		ModuleVersion:    "1.0.0",
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	rec.SetModuleDigest([]byte("digest"))
	if err := store.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	item = NewLiveChecker(WithStore(store)).checkTrustRecord()
	if item.Status != StatusPass {
		t.Errorf("completed install: status = %s, want pass", item.Status)
	}
}

type failingStore struct{}

func (failingStore) Load() (*truststate.Record, error) { return nil, errors.New("disk failure") }
func (failingStore) Save(*truststate.Record) error     { return errors.New("disk failure") }
func (failingStore) Close() error                      { return nil }

func TestCheckTrustRecordUnreadable(t *testing.T) {
	item := NewLiveChecker(WithStore(failingStore{})).checkTrustRecord()
	if item.Status != StatusFail {
		t.Errorf("unreadable store: status = %s, want fail", item.Status)
	}
}

func TestCheckStateLocation(t *testing.T) {
	dir := t.TempDir()

	item := NewLiveChecker(WithStatePath(filepath.Join(dir, "trust.db"))).checkStateLocation()
	if item.Status != StatusPass {
		t.Errorf("existing dir: status = %s, want pass", item.Status)
	}

	item = NewLiveChecker(WithStatePath(filepath.Join(dir, "missing", "trust.db"))).checkStateLocation()
	if item.Status != StatusWarning {
		t.Errorf("missing dir: status = %s, want warning", item.Status)
	}

	item = NewLiveChecker().checkStateLocation()
	if item.Status != StatusUnknown {
		t.Errorf("no path: status = %s, want unknown", item.Status)
	}
}

func TestCheckModuleTrust(t *testing.T) {
	item := NewLiveChecker().checkModuleTrust()
	if item.Status != StatusUnknown {
		t.Errorf("no runner: status = %s, want unknown", item.Status)
	}

	item = NewLiveChecker(WithTrustedFn(func() bool { return true })).checkModuleTrust()
	if item.Status != StatusPass {
		t.Errorf("trusted: status = %s, want pass", item.Status)
	}

	item = NewLiveChecker(WithTrustedFn(func() bool { return false })).checkModuleTrust()
	if item.Status != StatusFail {
		t.Errorf("untrusted: status = %s, want fail", item.Status)
	}
}

func TestCheckImageReadable(t *testing.T) {
	item := NewLiveChecker(WithImagePath("/nonexistent/module.bin")).checkImageReadable()
	if item.Status != StatusFail {
		t.Errorf("missing image: status = %s, want fail", item.Status)
	}

	// Empty path resolves to the running test binary.
	item = NewLiveChecker().checkImageReadable()
	if item.Status != StatusPass {
		t.Errorf("running executable: status = %s, want pass", item.Status)
	}
}
