// Package integrity computes and verifies the keyed digests that gate
// module trust: an HMAC-SHA256 over the module's loadable image for the
// module integrity check, and over a fixed marker string for the install
// integrity check.
package integrity

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// InstallMarker is the fixed string whose keyed digest records that the
// installation self-test suite has completed. The digest of this marker,
// not the marker itself, is persisted; matching it on a later startup
// proves the install cycle ran, not merely that a file exists.
const InstallMarker = "INSTALL_SELF_TEST_KATS_RUN"

// DigestSize is the byte length of every digest the engine produces.
const DigestSize = sha256.Size

// defaultKey is the compiled-in integrity key. The digest provides tamper
// evidence, not secrecy: an attacker able to rewrite both the module image
// and the trust record defeats it, so the record's storage channel must be
// protected by the deployment (file permissions, signed configuration).
var defaultKey = []byte{
	0xa6, 0xf7, 0xd1, 0xc3, 0x5e, 0x98, 0xb2, 0x40,
	0x7b, 0x6c, 0x51, 0xd8, 0xe9, 0x0f, 0x3a, 0x12,
	0xc4, 0xd5, 0xe6, 0xf7, 0x08, 0x19, 0x2a, 0x3b,
	0x4c, 0x5d, 0x6e, 0x7f, 0x80, 0x91, 0x32, 0x46,
}

// Engine computes keyed integrity digests with a fixed key.
type Engine struct {
	key []byte
}

// New returns an engine using the given key. An empty key selects the
// compiled-in default.
func New(key []byte) *Engine {
	if len(key) == 0 {
		return &Engine{key: defaultKey}
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Engine{key: k}
}

// Compute returns the keyed digest of data.
func (e *Engine) Compute(data []byte) []byte {
	mac := hmac.New(sha256.New, e.key)
	mac.Write(data)
	return mac.Sum(nil)
}

// ComputeReader returns the keyed digest of everything read from r,
// streaming so arbitrarily large images digest in bounded memory.
func (e *Engine) ComputeReader(r io.Reader) ([]byte, error) {
	mac := hmac.New(sha256.New, e.key)
	if _, err := io.Copy(mac, r); err != nil {
		return nil, fmt.Errorf("digest stream: %w", err)
	}
	return mac.Sum(nil), nil
}

// ComputeFile returns the keyed digest of the file at path.
func (e *Engine) ComputeFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	digest, err := e.ComputeReader(f)
	if err != nil {
		return nil, fmt.Errorf("digest %s: %w", path, err)
	}
	return digest, nil
}

// MarkerDigest returns the keyed digest of the install marker.
func (e *Engine) MarkerDigest() []byte {
	return e.Compute([]byte(InstallMarker))
}

// Verify recomputes the digest of data and compares it to expected in
// constant time. It returns false on any mismatch or on an empty expected
// value and never panics; the caller decides fatality.
func (e *Engine) Verify(data, expected []byte) bool {
	if len(expected) == 0 {
		return false
	}
	return hmac.Equal(e.Compute(data), expected)
}

// VerifyMarker checks expected against the install marker's digest.
func (e *Engine) VerifyMarker(expected []byte) bool {
	return e.Verify([]byte(InstallMarker), expected)
}

// Equal compares a computed digest against an expected one in constant
// time, false when expected is empty.
func Equal(computed, expected []byte) bool {
	if len(expected) == 0 {
		return false
	}
	return hmac.Equal(computed, expected)
}
