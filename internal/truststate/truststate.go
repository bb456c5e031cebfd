// Package truststate persists the module's trust record: the reference
// integrity digests and the flag recording that the installation self-test
// suite has completed. The record is read at every module load and written
// only by the single-threaded installation flow.
package truststate

import (
	"encoding/hex"
	"errors"
	"time"
)

// ErrNoRecord is returned by Store.Load when no trust record exists yet,
// which is the normal condition on a first-ever module load.
var ErrNoRecord = errors.New("no trust record")

// Record is the persisted trust state. Digests are hex encoded so the
// stored form stays inspectable with standard tooling. The record is only
// as trustworthy as its storage channel; protecting that channel is the
// deployment's concern, not this package's.
type Record struct {
	ModuleDigest     string    `json:"module_digest"`
	InstallDigest    string    `json:"install_digest"`
	InstallCompleted bool      `json:"install_completed"`
	ModuleVersion    string    `json:"module_version"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ModuleDigestBytes decodes the stored module digest. It returns nil when
// the field is empty or not valid hex; callers treat nil as an absent
// reference digest.
func (r *Record) ModuleDigestBytes() []byte {
	return digestBytes(r.ModuleDigest)
}

// InstallDigestBytes decodes the stored install marker digest, nil when
// empty or malformed.
func (r *Record) InstallDigestBytes() []byte {
	return digestBytes(r.InstallDigest)
}

// SetModuleDigest stores d hex encoded.
func (r *Record) SetModuleDigest(d []byte) {
	r.ModuleDigest = hex.EncodeToString(d)
}

// SetInstallDigest stores d hex encoded.
func (r *Record) SetInstallDigest(d []byte) {
	r.InstallDigest = hex.EncodeToString(d)
}

func digestBytes(s string) []byte {
	if s == "" {
		return nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

// Store reads and writes the trust record. Load returns ErrNoRecord when
// none has been saved. Implementations do not serialize writers across
// processes; the installation step is the single writer by contract.
type Store interface {
	Load() (*Record, error)
	Save(*Record) error
	Close() error
}

// RunEntry is one row of the self-test run journal: when a run happened,
// what triggered it, how it ended, and the full report for evidence.
type RunEntry struct {
	ID        string    `json:"id"`
	Trigger   string    `json:"trigger"`
	State     string    `json:"state"`
	Passed    int       `json:"passed"`
	Failed    int       `json:"failed"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
	Report    string    `json:"report,omitempty"`
}

// Journal records completed self-test runs. Stores that cannot keep
// history simply do not implement it.
type Journal interface {
	AppendRun(e RunEntry) error
	Runs(limit int) ([]RunEntry, error)
}
