package kat

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"

	"golang.org/x/crypto/sha3"

	"github.com/fipsmod/fipsmod/internal/selftest"
)

// digestVector holds one digest known answer, input and expected hex
// encoded.
type digestVector struct {
	name     string
	input    string
	expected string
	newHash  func() hash.Hash
}

// NIST CAVP short message vectors.
var sha1Vectors = []digestVector{
	{
		name:     "SHA-1",
		input:    "616263",
		expected: "a9993e364706816aba3e25717850c26c9cd0d89d",
		newHash:  sha1.New,
	},
}

var sha2Vectors = []digestVector{
	{
		name:     "SHA-256",
		input:    "616263",
		expected: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		newHash:  sha256.New,
	},
	{
		name:     "SHA-384",
		input:    "616263",
		expected: "cb00753f45a35e8bb5a03d699ac65007272c32ab0eded1631a8b605a43ff5bed8086072ba1e7cc2358baeca134c825a7",
		newHash:  sha512.New384,
	},
	{
		name:     "SHA-512",
		input:    "616263",
		expected: "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f",
		newHash:  sha512.New,
	},
}

var sha3Vectors = []digestVector{
	{
		name:     "SHA3-256",
		input:    "616263",
		expected: "3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532",
		newHash:  sha3.New256,
	},
	{
		name:     "SHA3-256-empty",
		input:    "",
		expected: "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a",
		newHash:  sha3.New256,
	},
}

// macVector holds one keyed MAC known answer, all fields hex encoded.
type macVector struct {
	name     string
	key      string
	input    string
	expected string
}

// RFC 4231 HMAC-SHA-256 vectors.
var hmacVectors = []macVector{
	{
		name:     "HMAC-SHA-256 case 1",
		key:      "0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b",
		input:    "4869205468657265",
		expected: "b0344c61d8db38535ca8afceaf0bf12b881dc200c9833da726e9376c2e32cff7",
	},
	{
		name:     "HMAC-SHA-256 case 2",
		key:      "4a656665",
		input:    "7768617420646f2079612077616e7420666f72206e6f7468696e673f",
		expected: "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843",
	},
}

func digestUnits() []selftest.Unit {
	return []selftest.Unit{
		unit(selftest.CategoryKATDigest, selftest.DescSHA1, func() error { return verifyDigests(sha1Vectors) }),
		unit(selftest.CategoryKATDigest, selftest.DescSHA2, func() error { return verifyDigests(sha2Vectors) }),
		unit(selftest.CategoryKATDigest, selftest.DescSHA3, func() error { return verifyDigests(sha3Vectors) }),
		unit(selftest.CategoryKATDigest, selftest.DescHMAC, verifyHMAC),
	}
}

func verifyDigests(vectors []digestVector) error {
	for _, vec := range vectors {
		input, err := hex.DecodeString(vec.input)
		if err != nil {
			return fmt.Errorf("%s: decode input: %w", vec.name, err)
		}
		h := vec.newHash()
		h.Write(input)
		if got := hex.EncodeToString(h.Sum(nil)); got != vec.expected {
			return fmt.Errorf("%s: got %s, expected %s", vec.name, got, vec.expected)
		}
	}
	return nil
}

func verifyHMAC() error {
	for _, vec := range hmacVectors {
		key, err := hex.DecodeString(vec.key)
		if err != nil {
			return fmt.Errorf("%s: decode key: %w", vec.name, err)
		}
		input, err := hex.DecodeString(vec.input)
		if err != nil {
			return fmt.Errorf("%s: decode input: %w", vec.name, err)
		}
		mac := hmac.New(sha256.New, key)
		mac.Write(input)
		if got := hex.EncodeToString(mac.Sum(nil)); got != vec.expected {
			return fmt.Errorf("%s: got %s, expected %s", vec.name, got, vec.expected)
		}
	}
	return nil
}
