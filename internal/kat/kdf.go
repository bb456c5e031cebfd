package kat

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"

	"github.com/fipsmod/fipsmod/internal/selftest"
)

// RFC 5869 appendix A case 1, HKDF over SHA-256. All fields hex encoded.
var hkdfVector = struct {
	ikm  string
	salt string
	info string
	okm  string
}{
	ikm:  "0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b",
	salt: "000102030405060708090a0b0c",
	info: "f0f1f2f3f4f5f6f7f8f9",
	okm:  "3cb25f25faacd57a90434f64d0362f2a2d2d0a90cf1a5a4c5db02d56ecc4c5bf34007208d5b887185865",
}

// RFC 6070 PBKDF2 HMAC-SHA-1 cases, derived keys hex encoded.
var pbkdf2Vectors = []struct {
	password string
	salt     string
	iter     int
	derived  string
}{
	{password: "password", salt: "salt", iter: 1, derived: "0c60c80f961f0e71f3a9b524af6012062fe037a6"},
	{password: "password", salt: "salt", iter: 4096, derived: "4b007901b765489abead49d926f721d065a429c1"},
}

func kdfUnits() []selftest.Unit {
	return []selftest.Unit{
		unit(selftest.CategoryKATKDF, selftest.DescHKDF, verifyHKDF),
		unit(selftest.CategoryKATKDF, selftest.DescPBKDF2, verifyPBKDF2),
	}
}

func verifyHKDF() error {
	ikm, err := hex.DecodeString(hkdfVector.ikm)
	if err != nil {
		return fmt.Errorf("decode ikm: %w", err)
	}
	salt, err := hex.DecodeString(hkdfVector.salt)
	if err != nil {
		return fmt.Errorf("decode salt: %w", err)
	}
	info, err := hex.DecodeString(hkdfVector.info)
	if err != nil {
		return fmt.Errorf("decode info: %w", err)
	}

	okm := make([]byte, len(hkdfVector.okm)/2)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, info), okm); err != nil {
		return fmt.Errorf("hkdf expand: %w", err)
	}
	if got := hex.EncodeToString(okm); got != hkdfVector.okm {
		return fmt.Errorf("hkdf: got %s, expected %s", got, hkdfVector.okm)
	}
	return nil
}

func verifyPBKDF2() error {
	for _, vec := range pbkdf2Vectors {
		key := pbkdf2.Key([]byte(vec.password), []byte(vec.salt), vec.iter, 20, sha1.New)
		if got := hex.EncodeToString(key); got != vec.derived {
			return fmt.Errorf("pbkdf2 c=%d: got %s, expected %s", vec.iter, got, vec.derived)
		}
	}
	return nil
}
