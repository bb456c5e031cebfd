package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fipsmod/fipsmod/internal/config"
	"github.com/fipsmod/fipsmod/internal/selftest"
)

// ---------------------------------------------------------------------------
// parseCorrupt / match
// ---------------------------------------------------------------------------

func TestParseCorrupt_Empty(t *testing.T) {
	set := parseCorrupt("")
	if len(set) != 0 {
		t.Errorf("empty flag should select nothing, got %d entries", len(set))
	}
}

func TestParseCorrupt_TrimsAndSplits(t *testing.T) {
	set := parseCorrupt(" SHA1, KAT_Cipher/AES_GCM ,TDES")
	for _, want := range []string{"SHA1", "KAT_Cipher/AES_GCM", "TDES"} {
		if !set[want] {
			t.Errorf("expected %q in set", want)
		}
	}
	if len(set) != 3 {
		t.Errorf("len(set) = %d, want 3", len(set))
	}
}

func TestMatch_ByDescriptor(t *testing.T) {
	set := parseCorrupt("SHA1")
	r := selftest.PhaseReport{
		Phase:      selftest.PhaseCorrupt,
		Category:   selftest.CategoryKATDigest,
		Descriptor: selftest.DescSHA1,
	}
	if !set.match(r) {
		t.Error("bare descriptor should match any category")
	}
}

func TestMatch_ByCategoryAndDescriptor(t *testing.T) {
	set := parseCorrupt("KAT_Digest/HMAC")
	digest := selftest.PhaseReport{
		Category:   selftest.CategoryKATDigest,
		Descriptor: selftest.DescHMAC,
	}
	integrity := selftest.PhaseReport{
		Category:   selftest.CategoryModuleIntegrity,
		Descriptor: selftest.DescHMAC,
	}
	if !set.match(digest) {
		t.Error("qualified selector should match its unit")
	}
	if set.match(integrity) {
		t.Error("qualified selector matched a different category")
	}
}

func TestMatch_NoSelection(t *testing.T) {
	set := parseCorrupt("")
	r := selftest.PhaseReport{
		Category:   selftest.CategoryDRBG,
		Descriptor: selftest.DescCTR,
	}
	if set.match(r) {
		t.Error("empty set should match nothing")
	}
}

// ---------------------------------------------------------------------------
// loadConfig
// ---------------------------------------------------------------------------

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig(\"\"): %v", err)
	}
	if cfg.StateBackend != config.BackendSQLite {
		t.Errorf("default backend = %q, want %q", cfg.StateBackend, config.BackendSQLite)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fipsmod.yaml")
	content := "state_backend: file\nstate_path: /tmp/trust.json\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.StateBackend != config.BackendFile {
		t.Errorf("backend = %q, want file", cfg.StateBackend)
	}
	if cfg.StatePath != "/tmp/trust.json" {
		t.Errorf("state path = %q, want /tmp/trust.json", cfg.StatePath)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := loadConfig("/nonexistent/fipsmod.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}
