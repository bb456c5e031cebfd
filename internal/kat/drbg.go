package kat

import (
	"bytes"
	"crypto/aes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fipsmod/fipsmod/internal/selftest"
)

// The three SP 800-90A generators below are instantiated from fixed
// entropy, so their health checks are fully deterministic: an identically
// seeded twin must produce identical output, the stream must advance
// between calls, and a reseed must diverge it.

// drbg is the surface the health checks drive.
type drbg interface {
	Reseed(entropy []byte) error
	Generate(n int) ([]byte, error)
}

func drbgUnits() []selftest.Unit {
	return []selftest.Unit{
		unit(selftest.CategoryDRBG, selftest.DescCTR, verifyCTRDRBG),
		unit(selftest.CategoryDRBG, selftest.DescHASH, verifyHashDRBG),
		unit(selftest.CategoryDRBG, selftest.DescHMAC, verifyHMACDRBG),
	}
}

func verifyCTRDRBG() error {
	a, err := newCTRDRBG(seq(ctrSeedLen, 0x00))
	if err != nil {
		return err
	}
	b, err := newCTRDRBG(seq(ctrSeedLen, 0x00))
	if err != nil {
		return err
	}
	return checkDRBG(a, b, seq(ctrSeedLen, 0x80))
}

func verifyHashDRBG() error {
	seed := seq(32, 0x00)
	return checkDRBG(newHashDRBG(seed), newHashDRBG(seed), seq(32, 0x80))
}

func verifyHMACDRBG() error {
	seed := seq(32, 0x00)
	return checkDRBG(newHMACDRBG(seed), newHMACDRBG(seed), seq(32, 0x80))
}

// checkDRBG drives two identically seeded generators through the health
// properties.
func checkDRBG(a, b drbg, reseedEntropy []byte) error {
	first, err := a.Generate(64)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	twin, err := b.Generate(64)
	if err != nil {
		return fmt.Errorf("generate twin: %w", err)
	}
	if !bytes.Equal(first, twin) {
		return errors.New("identical seeds produced different output")
	}
	if bytes.Equal(first, make([]byte, len(first))) {
		return errors.New("generator produced all-zero output")
	}

	next, err := a.Generate(64)
	if err != nil {
		return fmt.Errorf("second generate: %w", err)
	}
	if bytes.Equal(first, next) {
		return errors.New("successive outputs are identical")
	}

	if err := b.Reseed(reseedEntropy); err != nil {
		return fmt.Errorf("reseed: %w", err)
	}
	diverged, err := b.Generate(64)
	if err != nil {
		return fmt.Errorf("generate after reseed: %w", err)
	}
	if bytes.Equal(next, diverged) {
		return errors.New("reseed did not change the output stream")
	}
	return nil
}

// seq returns n bytes counting up from start, the fixed entropy for the
// deterministic checks.
func seq(n int, start byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = start + byte(i)
	}
	return b
}

// ---------------------------------------------------------------------------
// CTR_DRBG, SP 800-90A section 10.2.1, AES-256 without a derivation
// function. Entropy input must be exactly seedlen = keylen + blocklen
// bytes.
// ---------------------------------------------------------------------------

const ctrSeedLen = 48

type ctrDRBG struct {
	key [32]byte
	v   [aes.BlockSize]byte
}

func newCTRDRBG(entropy []byte) (*ctrDRBG, error) {
	if len(entropy) != ctrSeedLen {
		return nil, fmt.Errorf("ctr drbg: entropy must be %d bytes, got %d", ctrSeedLen, len(entropy))
	}
	d := &ctrDRBG{}
	d.update(entropy)
	return d, nil
}

func (d *ctrDRBG) update(provided []byte) {
	block, _ := aes.NewCipher(d.key[:])
	var temp [ctrSeedLen]byte
	for off := 0; off < ctrSeedLen; off += aes.BlockSize {
		addInt(d.v[:], 1)
		block.Encrypt(temp[off:off+aes.BlockSize], d.v[:])
	}
	for i := range provided {
		temp[i] ^= provided[i]
	}
	copy(d.key[:], temp[:32])
	copy(d.v[:], temp[32:])
}

func (d *ctrDRBG) Reseed(entropy []byte) error {
	if len(entropy) != ctrSeedLen {
		return fmt.Errorf("ctr drbg: entropy must be %d bytes, got %d", ctrSeedLen, len(entropy))
	}
	d.update(entropy)
	return nil
}

func (d *ctrDRBG) Generate(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("ctr drbg: request must be positive")
	}
	block, _ := aes.NewCipher(d.key[:])
	out := make([]byte, 0, n+aes.BlockSize)
	var buf [aes.BlockSize]byte
	for len(out) < n {
		addInt(d.v[:], 1)
		block.Encrypt(buf[:], d.v[:])
		out = append(out, buf[:]...)
	}
	d.update(make([]byte, ctrSeedLen))
	return out[:n], nil
}

// ---------------------------------------------------------------------------
// HMAC_DRBG, SP 800-90A section 10.1.2, over SHA-256.
// ---------------------------------------------------------------------------

type hmacDRBG struct {
	key []byte
	v   []byte
}

func newHMACDRBG(seed []byte) *hmacDRBG {
	d := &hmacDRBG{
		key: make([]byte, sha256.Size),
		v:   bytes.Repeat([]byte{0x01}, sha256.Size),
	}
	d.update(seed)
	return d
}

func (d *hmacDRBG) update(provided []byte) {
	mac := hmac.New(sha256.New, d.key)
	mac.Write(d.v)
	mac.Write([]byte{0x00})
	mac.Write(provided)
	d.key = mac.Sum(nil)
	d.v = hmacSum(d.key, d.v)
	if len(provided) == 0 {
		return
	}
	mac = hmac.New(sha256.New, d.key)
	mac.Write(d.v)
	mac.Write([]byte{0x01})
	mac.Write(provided)
	d.key = mac.Sum(nil)
	d.v = hmacSum(d.key, d.v)
}

func (d *hmacDRBG) Reseed(entropy []byte) error {
	if len(entropy) == 0 {
		return errors.New("hmac drbg: empty entropy")
	}
	d.update(entropy)
	return nil
}

func (d *hmacDRBG) Generate(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("hmac drbg: request must be positive")
	}
	out := make([]byte, 0, n+sha256.Size)
	for len(out) < n {
		d.v = hmacSum(d.key, d.v)
		out = append(out, d.v...)
	}
	d.update(nil)
	return out[:n], nil
}

func hmacSum(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// ---------------------------------------------------------------------------
// Hash_DRBG, SP 800-90A section 10.1.1, over SHA-256 with seedlen 440
// bits.
// ---------------------------------------------------------------------------

const hashSeedLen = 55

type hashDRBG struct {
	v       []byte
	c       []byte
	counter uint64
}

func newHashDRBG(seed []byte) *hashDRBG {
	v := hashDF(seed, hashSeedLen)
	c := hashDF(append([]byte{0x00}, v...), hashSeedLen)
	return &hashDRBG{v: v, c: c, counter: 1}
}

func (d *hashDRBG) Reseed(entropy []byte) error {
	if len(entropy) == 0 {
		return errors.New("hash drbg: empty entropy")
	}
	material := append([]byte{0x01}, d.v...)
	material = append(material, entropy...)
	d.v = hashDF(material, hashSeedLen)
	d.c = hashDF(append([]byte{0x00}, d.v...), hashSeedLen)
	d.counter = 1
	return nil
}

func (d *hashDRBG) Generate(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("hash drbg: request must be positive")
	}
	out := make([]byte, 0, n+sha256.Size)
	data := make([]byte, len(d.v))
	copy(data, d.v)
	for len(out) < n {
		sum := sha256.Sum256(data)
		out = append(out, sum[:]...)
		addInt(data, 1)
	}

	h := sha256.New()
	h.Write([]byte{0x03})
	h.Write(d.v)
	addBytes(d.v, h.Sum(nil))
	addBytes(d.v, d.c)
	addInt(d.v, d.counter)
	d.counter++
	return out[:n], nil
}

// hashDF is the derivation function from section 10.3.1.
func hashDF(input []byte, n int) []byte {
	out := make([]byte, 0, n+sha256.Size)
	bits := uint32(n * 8)
	for counter := byte(1); len(out) < n; counter++ {
		h := sha256.New()
		h.Write([]byte{counter})
		h.Write([]byte{byte(bits >> 24), byte(bits >> 16), byte(bits >> 8), byte(bits)})
		h.Write(input)
		out = h.Sum(out)
	}
	return out[:n]
}

// addBytes adds src into dst modulo 2^(8*len(dst)), both big endian.
func addBytes(dst, src []byte) {
	carry := 0
	si := len(src) - 1
	for di := len(dst) - 1; di >= 0; di-- {
		sum := int(dst[di]) + carry
		if si >= 0 {
			sum += int(src[si])
			si--
		}
		dst[di] = byte(sum)
		carry = sum >> 8
	}
}

// addInt adds n into dst modulo 2^(8*len(dst)).
func addInt(dst []byte, n uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	addBytes(dst, buf[:])
}
