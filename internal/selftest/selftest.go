// Package selftest implements the self-test engine of the cryptographic
// module: the registry of algorithm test units, the runner that sequences
// integrity checks and known-answer tests across the module lifecycle, and
// the phase-report protocol that exposes every check to an external observer
// for validation tooling and deliberate fault injection.
package selftest

// Phase tags one step of a test unit's report sequence. The string values
// are the wire tokens delivered to observers and must not change.
type Phase string

const (
	PhaseStart   Phase = "Start"
	PhaseCorrupt Phase = "Corrupt"
	PhasePass    Phase = "Pass"
	PhaseFail    Phase = "Fail"
)

// Category identifies the family a test unit belongs to. The string values
// are the wire tokens delivered to observers and must not change.
type Category string

const (
	CategoryModuleIntegrity  Category = "Module_Integrity"
	CategoryInstallIntegrity Category = "Install_Integrity"
	CategoryKATCipher        Category = "KAT_Cipher"
	CategoryKATDigest        Category = "KAT_Digest"
	CategoryKATSignature     Category = "KAT_Signature"
	CategoryKATKDF           Category = "KAT_KDF"
	CategoryKATKA            Category = "KAT_KA"
	CategoryDRBG             Category = "DRBG"
	CategoryPCT              Category = "Pairwise_Consistency_Test"
)

// Descriptor identifies the algorithm or variant a test unit exercises.
// The pairing (category, descriptor) addresses a unit; the same descriptor
// may appear under more than one category (ECDSA is both a signature KAT
// and a key-agreement KAT, HMAC is both the integrity MAC and a DRBG).
type Descriptor string

const (
	DescHMAC   Descriptor = "HMAC"
	DescRSA    Descriptor = "RSA"
	DescECDSA  Descriptor = "ECDSA"
	DescDSA    Descriptor = "DSA"
	DescAESGCM Descriptor = "AES_GCM"
	DescAESECB Descriptor = "AES_ECB"
	DescTDES   Descriptor = "TDES"
	DescSHA1   Descriptor = "SHA1"
	DescSHA2   Descriptor = "SHA2"
	DescSHA3   Descriptor = "SHA3"
	DescECDH   Descriptor = "ECDH"
	DescHKDF   Descriptor = "HKDF"
	DescPBKDF2 Descriptor = "PBKDF2"
	DescCTR    Descriptor = "CTR"
	DescHASH   Descriptor = "HASH"
)

// KnownCategories lists every category the engine recognizes, in the order
// reports and summaries present them.
var KnownCategories = []Category{
	CategoryModuleIntegrity,
	CategoryInstallIntegrity,
	CategoryKATCipher,
	CategoryKATDigest,
	CategoryKATSignature,
	CategoryKATKDF,
	CategoryKATKA,
	CategoryDRBG,
	CategoryPCT,
}

// KnownDescriptors lists every descriptor the engine recognizes.
var KnownDescriptors = []Descriptor{
	DescHMAC,
	DescRSA,
	DescECDSA,
	DescDSA,
	DescAESGCM,
	DescAESECB,
	DescTDES,
	DescSHA1,
	DescSHA2,
	DescSHA3,
	DescECDH,
	DescHKDF,
	DescPBKDF2,
	DescCTR,
	DescHASH,
}

// suiteCategories are the algorithm categories selected for a full
// known-answer run. Pairwise consistency demonstrations are excluded; they
// execute only on explicit installation or per key-generation event.
var suiteCategories = []Category{
	CategoryKATCipher,
	CategoryKATDigest,
	CategoryKATSignature,
	CategoryKATKDF,
	CategoryKATKA,
	CategoryDRBG,
}

var knownCategories = func() map[Category]bool {
	m := make(map[Category]bool, len(KnownCategories))
	for _, c := range KnownCategories {
		m[c] = true
	}
	return m
}()

var knownDescriptors = func() map[Descriptor]bool {
	m := make(map[Descriptor]bool, len(KnownDescriptors))
	for _, d := range KnownDescriptors {
		m[d] = true
	}
	return m
}()

// Known reports whether c is one of the nine recognized categories.
func (c Category) Known() bool { return knownCategories[c] }

// Known reports whether d is one of the recognized descriptors.
func (d Descriptor) Known() bool { return knownDescriptors[d] }

// Integrity reports whether c is one of the two integrity categories, which
// have exactly one live check per process and are owned by the runner.
func (c Category) Integrity() bool {
	return c == CategoryModuleIntegrity || c == CategoryInstallIntegrity
}

// PhaseReport is the value delivered to the observer for each phase of a
// unit invocation. All three fields are set on every report.
type PhaseReport struct {
	Phase      Phase      `json:"phase"`
	Category   Category   `json:"category"`
	Descriptor Descriptor `json:"descriptor"`
}

// Unit is one executable self-test check. Run returns the unit's verdict.
// Corruptible units additionally emit a Corrupt phase before executing,
// giving a registered observer the chance to force the verdict to Fail.
// Units are immutable after construction.
type Unit struct {
	Category    Category
	Descriptor  Descriptor
	Run         func() bool
	Corruptible bool
}
