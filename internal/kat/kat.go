// Package kat provides the algorithm test units registered with the
// self-test engine: cipher and AEAD known answers, digest and MAC known
// answers, signature round trips, key-derivation known answers, key
// agreement, deterministic random bit generator health checks, and the
// pairwise consistency demonstrations run at installation.
//
// Vectors come from the NIST CAVP suites and the algorithm RFCs. Each unit
// recomputes its answer on every invocation, so a corrupted primitive is
// caught at run time rather than at build time.
package kat

import "github.com/fipsmod/fipsmod/internal/selftest"

// unit adapts a verdict function to a registrable test unit. Every unit
// accepts the Corrupt phase so validation tooling can force an observable
// failure in any category.
func unit(cat selftest.Category, desc selftest.Descriptor, fn func() error) selftest.Unit {
	return selftest.Unit{
		Category:    cat,
		Descriptor:  desc,
		Corruptible: true,
		Run:         func() bool { return fn() == nil },
	}
}

// Suite returns every test unit in registration order: ciphers, digests,
// signatures, key derivation, key agreement, DRBG health, and the pairwise
// consistency demonstrations.
func Suite() []selftest.Unit {
	var units []selftest.Unit
	units = append(units, cipherUnits()...)
	units = append(units, digestUnits()...)
	units = append(units, signatureUnits()...)
	units = append(units, kdfUnits()...)
	units = append(units, keyAgreementUnits()...)
	units = append(units, drbgUnits()...)
	units = append(units, pairwiseUnits()...)
	return units
}

// Register adds the full suite to reg.
func Register(reg *selftest.Registry) error {
	for _, u := range Suite() {
		if err := reg.Register(u); err != nil {
			return err
		}
	}
	return nil
}
