package kat

import (
	"crypto/dsa"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"sync"

	"github.com/fipsmod/fipsmod/internal/selftest"
)

func signatureUnits() []selftest.Unit {
	return []selftest.Unit{
		unit(selftest.CategoryKATSignature, selftest.DescRSA, verifyRSA),
		unit(selftest.CategoryKATSignature, selftest.DescECDSA, verifyECDSA),
		unit(selftest.CategoryKATSignature, selftest.DescDSA, verifyDSA),
	}
}

// Each signature unit generates a fresh key pair and runs the full sign,
// verify, and tamper-rejection round trip for it. The same checks back the
// pairwise consistency demonstrations and the per-keygen checks.

func verifyRSA() error {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return fmt.Errorf("generate rsa key: %w", err)
	}
	return PairwiseRSA(priv)
}

func verifyECDSA() error {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate ecdsa key: %w", err)
	}
	return PairwiseECDSA(priv)
}

func verifyDSA() error {
	params, err := dsaParams()
	if err != nil {
		return err
	}
	priv := &dsa.PrivateKey{}
	priv.Parameters = *params
	if err := dsa.GenerateKey(priv, rand.Reader); err != nil {
		return fmt.Errorf("generate dsa key: %w", err)
	}
	return PairwiseDSA(priv)
}

var (
	dsaOnce   sync.Once
	dsaShared dsa.Parameters
	dsaErr    error
)

// dsaParams generates shared 1024/160 domain parameters once per process.
// Parameter generation is the expensive step; per-check key generation on
// fixed parameters is cheap.
func dsaParams() (*dsa.Parameters, error) {
	dsaOnce.Do(func() {
		dsaErr = dsa.GenerateParameters(&dsaShared, rand.Reader, dsa.L1024N160)
	})
	if dsaErr != nil {
		return nil, fmt.Errorf("generate dsa parameters: %w", dsaErr)
	}
	return &dsaShared, nil
}
