package kat

import (
	"crypto"
	"crypto/dsa"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/fipsmod/fipsmod/internal/selftest"
)

// Pairwise consistency checks for freshly generated key pairs. Each helper
// signs a fixed message with the new private key, verifies it with the
// public half, and confirms that a mismatched digest is rejected.

var (
	testMessage   = []byte("cryptographic module self-test message")
	tamperMessage = []byte("cryptographic module tampered message")
)

// pairwiseUnits are the installation-time demonstrations: fresh key pairs
// driven through the same checks key generation runs in production.
func pairwiseUnits() []selftest.Unit {
	return []selftest.Unit{
		unit(selftest.CategoryPCT, selftest.DescRSA, verifyRSA),
		unit(selftest.CategoryPCT, selftest.DescECDSA, verifyECDSA),
		unit(selftest.CategoryPCT, selftest.DescDSA, verifyDSA),
	}
}

// PairwiseRSA checks that priv signs and its public half verifies.
func PairwiseRSA(priv *rsa.PrivateKey) error {
	digest := sha256.Sum256(testMessage)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		return fmt.Errorf("rsa sign: %w", err)
	}
	if err := rsa.VerifyPKCS1v15(&priv.PublicKey, crypto.SHA256, digest[:], sig); err != nil {
		return fmt.Errorf("rsa verify: %w", err)
	}
	tampered := sha256.Sum256(tamperMessage)
	if rsa.VerifyPKCS1v15(&priv.PublicKey, crypto.SHA256, tampered[:], sig) == nil {
		return errors.New("rsa verify accepted a tampered digest")
	}
	bad := make([]byte, len(sig))
	copy(bad, sig)
	bad[0] ^= 0xff
	if rsa.VerifyPKCS1v15(&priv.PublicKey, crypto.SHA256, digest[:], bad) == nil {
		return errors.New("rsa verify accepted a tampered signature")
	}
	return nil
}

// PairwiseECDSA checks that priv signs and its public half verifies.
func PairwiseECDSA(priv *ecdsa.PrivateKey) error {
	digest := sha256.Sum256(testMessage)
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	if err != nil {
		return fmt.Errorf("ecdsa sign: %w", err)
	}
	if !ecdsa.VerifyASN1(&priv.PublicKey, digest[:], sig) {
		return errors.New("ecdsa verify rejected a valid signature")
	}
	tampered := sha256.Sum256(tamperMessage)
	if ecdsa.VerifyASN1(&priv.PublicKey, tampered[:], sig) {
		return errors.New("ecdsa verify accepted a tampered digest")
	}
	return nil
}

// PairwiseDSA checks that priv signs and its public half verifies.
func PairwiseDSA(priv *dsa.PrivateKey) error {
	digest := sha256.Sum256(testMessage)
	r, s, err := dsa.Sign(rand.Reader, priv, digest[:])
	if err != nil {
		return fmt.Errorf("dsa sign: %w", err)
	}
	if !dsa.Verify(&priv.PublicKey, digest[:], r, s) {
		return errors.New("dsa verify rejected a valid signature")
	}
	tampered := sha256.Sum256(tamperMessage)
	if dsa.Verify(&priv.PublicKey, tampered[:], r, s) {
		return errors.New("dsa verify accepted a tampered digest")
	}
	return nil
}
