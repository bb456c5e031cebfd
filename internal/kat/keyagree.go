package kat

import (
	"bytes"
	"crypto/ecdh"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/fipsmod/fipsmod/internal/selftest"
)

// Key agreement runs on two curves. The P-384 cofactor variant reuses the
// ECDSA descriptor; the registry disambiguates by category.
func keyAgreementUnits() []selftest.Unit {
	return []selftest.Unit{
		unit(selftest.CategoryKATKA, selftest.DescECDH, func() error { return verifyAgreement(ecdh.P256()) }),
		unit(selftest.CategoryKATKA, selftest.DescECDSA, func() error { return verifyAgreement(ecdh.P384()) }),
	}
}

// verifyAgreement runs a two-party agreement on curve and requires both
// sides to derive the same non-trivial secret.
func verifyAgreement(curve ecdh.Curve) error {
	a, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key A: %w", err)
	}
	b, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key B: %w", err)
	}

	sharedA, err := a.ECDH(b.PublicKey())
	if err != nil {
		return fmt.Errorf("derive shared secret A: %w", err)
	}
	sharedB, err := b.ECDH(a.PublicKey())
	if err != nil {
		return fmt.Errorf("derive shared secret B: %w", err)
	}

	if !bytes.Equal(sharedA, sharedB) {
		return errors.New("parties derived different secrets")
	}
	if bytes.Equal(sharedA, make([]byte, len(sharedA))) {
		return errors.New("shared secret is zero")
	}
	return nil
}
