package kat

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/fipsmod/fipsmod/internal/selftest"
)

// aeadVector holds one AEAD known answer. All fields are hex encoded;
// expected may be truncated and is matched as a prefix of ciphertext||tag.
type aeadVector struct {
	name     string
	key      string
	iv       string
	plain    string
	aad      string
	expected string
}

// NIST CAVP GCM vectors.
var gcmVectors = []aeadVector{
	{
		name:     "AES-128-GCM",
		key:      "cf063a34d4a9a76c2c86787d3f96db71",
		iv:       "113b9785971864c83b01c787",
		plain:    "10aa0a348aeb884c3e1588e6c71bab0a",
		expected: "d0313c831f850fda25b5454998058e59cf0ab9169136a778734c33c8718541e6",
	},
	{
		name:     "AES-256-GCM",
		key:      "e5a03e42e4552e0560ac34c91aab0897a04b7a05f0b9b80447e1d4e30e1e6509",
		iv:       "000000000000000000000000",
		plain:    "000000000000000000000000",
		expected: "89a607e42e930df963b6e3269289dc904021d1cf4445abcc406e8b22",
	},
}

// blockVector holds one single-block known answer, hex encoded.
type blockVector struct {
	name     string
	key      string
	plain    string
	expected string
}

// FIPS 197 appendix C vectors.
var aesECBVectors = []blockVector{
	{
		name:     "AES-128-ECB",
		key:      "000102030405060708090a0b0c0d0e0f",
		plain:    "00112233445566778899aabbccddeeff",
		expected: "69c4e0d86a7b0430d8cdb78070b4c55a",
	},
	{
		name:     "AES-256-ECB",
		key:      "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f",
		plain:    "00112233445566778899aabbccddeeff",
		expected: "8ea2b7ca516745bfeafc49904b496089",
	},
}

// Classic single-DES known answer run through the three-key construction
// with K1 = K2 = K3.
var tdesVector = blockVector{
	name:     "TDES-ECB",
	key:      "0123456789abcdef0123456789abcdef0123456789abcdef",
	plain:    "4e6f772069732074",
	expected: "3fa40e8a984d4815",
}

func cipherUnits() []selftest.Unit {
	return []selftest.Unit{
		unit(selftest.CategoryKATCipher, selftest.DescAESGCM, verifyAESGCM),
		unit(selftest.CategoryKATCipher, selftest.DescAESECB, verifyAESECB),
		unit(selftest.CategoryKATCipher, selftest.DescTDES, verifyTDES),
	}
}

func verifyAESGCM() error {
	for _, vec := range gcmVectors {
		if err := sealAndCompare(vec); err != nil {
			return fmt.Errorf("%s: %w", vec.name, err)
		}
	}
	return nil
}

func sealAndCompare(vec aeadVector) error {
	key, err := hex.DecodeString(vec.key)
	if err != nil {
		return fmt.Errorf("decode key: %w", err)
	}
	iv, err := hex.DecodeString(vec.iv)
	if err != nil {
		return fmt.Errorf("decode IV: %w", err)
	}
	plain, err := hex.DecodeString(vec.plain)
	if err != nil {
		return fmt.Errorf("decode plaintext: %w", err)
	}
	var aad []byte
	if vec.aad != "" {
		aad, err = hex.DecodeString(vec.aad)
		if err != nil {
			return fmt.Errorf("decode AAD: %w", err)
		}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("create GCM: %w", err)
	}

	got := hex.EncodeToString(aead.Seal(nil, iv, plain, aad))
	if len(vec.expected) > len(got) || got[:len(vec.expected)] != vec.expected {
		return fmt.Errorf("mismatch: got %s, expected prefix %s", got, vec.expected)
	}
	return nil
}

func verifyAESECB() error {
	for _, vec := range aesECBVectors {
		if err := blockRoundTrip(vec, aes.NewCipher); err != nil {
			return fmt.Errorf("%s: %w", vec.name, err)
		}
	}
	return nil
}

func verifyTDES() error {
	if err := blockRoundTrip(tdesVector, des.NewTripleDESCipher); err != nil {
		return fmt.Errorf("%s: %w", tdesVector.name, err)
	}
	return nil
}

// blockRoundTrip encrypts the single-block vector, compares against the
// known answer, and decrypts back to the plaintext.
func blockRoundTrip(vec blockVector, newCipher func([]byte) (cipher.Block, error)) error {
	key, err := hex.DecodeString(vec.key)
	if err != nil {
		return fmt.Errorf("decode key: %w", err)
	}
	plain, err := hex.DecodeString(vec.plain)
	if err != nil {
		return fmt.Errorf("decode plaintext: %w", err)
	}
	block, err := newCipher(key)
	if err != nil {
		return fmt.Errorf("create cipher: %w", err)
	}

	out := make([]byte, len(plain))
	block.Encrypt(out, plain)
	if got := hex.EncodeToString(out); got != vec.expected {
		return fmt.Errorf("encrypt mismatch: got %s, expected %s", got, vec.expected)
	}

	back := make([]byte, len(out))
	block.Decrypt(back, out)
	if !bytes.Equal(back, plain) {
		return errors.New("decrypt did not restore the plaintext")
	}
	return nil
}
