package kat

import (
	"crypto/aes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/fipsmod/fipsmod/internal/selftest"
)

func TestSuiteShape(t *testing.T) {
	units := Suite()
	if len(units) != 20 {
		t.Fatalf("len(Suite()) = %d, want 20", len(units))
	}

	wantPerCategory := map[selftest.Category]int{
		selftest.CategoryKATCipher:    3,
		selftest.CategoryKATDigest:    4,
		selftest.CategoryKATSignature: 3,
		selftest.CategoryKATKDF:       2,
		selftest.CategoryKATKA:        2,
		selftest.CategoryDRBG:         3,
		selftest.CategoryPCT:          3,
	}
	got := map[selftest.Category]int{}
	seen := map[string]bool{}
	for _, u := range units {
		got[u.Category]++
		if !u.Corruptible {
			t.Errorf("%s/%s is not corruptible", u.Category, u.Descriptor)
		}
		key := fmt.Sprintf("%s/%s", u.Category, u.Descriptor)
		if seen[key] {
			t.Errorf("duplicate unit %s", key)
		}
		seen[key] = true
	}
	for cat, want := range wantPerCategory {
		if got[cat] != want {
			t.Errorf("category %s has %d units, want %d", cat, got[cat], want)
		}
	}
}

func TestRegister(t *testing.T) {
	reg := selftest.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.Len() != len(Suite()) {
		t.Errorf("registry has %d units, want %d", reg.Len(), len(Suite()))
	}
	// Registering the suite twice collides on every unit.
	if err := Register(reg); err == nil {
		t.Error("second Register succeeded, want duplicate error")
	}
}

// TestEveryUnitPasses executes the complete suite against this build's
// crypto primitives.
func TestEveryUnitPasses(t *testing.T) {
	for _, u := range Suite() {
		u := u
		t.Run(fmt.Sprintf("%s/%s", u.Category, u.Descriptor), func(t *testing.T) {
			if !u.Run() {
				t.Errorf("%s/%s failed", u.Category, u.Descriptor)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// negative paths
// ---------------------------------------------------------------------------

func TestDigestMismatchDetected(t *testing.T) {
	bad := []digestVector{{
		name:     "SHA-256-bad",
		input:    "616263",
		expected: "0000000000000000000000000000000000000000000000000000000000000000",
		newHash:  sha2Vectors[0].newHash,
	}}
	if err := verifyDigests(bad); err == nil {
		t.Error("wrong expected digest not detected")
	}
}

func TestDigestBadHexDetected(t *testing.T) {
	bad := []digestVector{{
		name:     "SHA-256-badhex",
		input:    "zz",
		expected: "00",
		newHash:  sha2Vectors[0].newHash,
	}}
	if err := verifyDigests(bad); err == nil {
		t.Error("malformed input hex not detected")
	}
}

func TestBlockMismatchDetected(t *testing.T) {
	bad := aesECBVectors[0]
	bad.expected = "00000000000000000000000000000000"
	if err := blockRoundTrip(bad, aes.NewCipher); err == nil {
		t.Error("wrong expected ciphertext not detected")
	}
}

func TestAEADMismatchDetected(t *testing.T) {
	bad := gcmVectors[0]
	bad.expected = "ffffffff" + bad.expected[8:]
	if err := sealAndCompare(bad); err == nil {
		t.Error("wrong expected ciphertext not detected")
	}
}

func TestPairwiseECDSADetectsMismatchedPair(t *testing.T) {
	a, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key A: %v", err)
	}
	b, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key B: %v", err)
	}

	// A's scalar with B's public point is not a consistent pair.
	mixed := &ecdsa.PrivateKey{PublicKey: b.PublicKey, D: a.D}
	if err := PairwiseECDSA(mixed); err == nil {
		t.Error("mismatched key pair passed the consistency check")
	}
}
