package envcheck

import (
	"crypto/tls"
	"os"
	"runtime/debug"
	"strings"
)

// Backend identifies the FIPS cryptographic module linked into this
// process.
type Backend struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Standard    string `json:"standard"`
	Validated   bool   `json:"validated"`
}

// DetectBackend reports the active FIPS crypto backend: BoringCrypto for
// GOEXPERIMENT=boringcrypto builds, the Go native module when GODEBUG
// enables fips140, or a none placeholder.
func DetectBackend() Backend {
	if boringCryptoActive() {
		return Backend{
			Name:        "boringcrypto",
			DisplayName: "BoringCrypto (BoringSSL)",
			Standard:    "140-2",
			Validated:   true,
		}
	}
	if goNativeActive() {
		return Backend{
			Name:        "go-native",
			DisplayName: "Go Cryptographic Module (native)",
			Standard:    "140-3",
			Validated:   false,
		}
	}
	return Backend{
		Name:        "none",
		DisplayName: "No FIPS module",
		Standard:    "n/a",
	}
}

// Active reports whether any FIPS backend is linked.
func (b Backend) Active() bool { return b.Name != "none" }

// boringCryptoActive checks the recorded build settings first, then falls
// back to the cipher-suite heuristic: BoringCrypto builds expose only the
// restricted FIPS set.
func boringCryptoActive() bool {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "GOEXPERIMENT" && strings.Contains(s.Value, "boringcrypto") {
				return true
			}
		}
	}
	suites := tls.CipherSuites()
	for _, s := range suites {
		if strings.Contains(s.Name, "RC4") {
			return false
		}
	}
	return len(suites) > 0 && len(suites) <= 10
}

// goNativeActive checks whether GODEBUG enables the Go 1.24+ native FIPS
// module.
func goNativeActive() bool {
	for _, entry := range strings.Split(os.Getenv("GODEBUG"), ",") {
		if entry == "fips140=on" || entry == "fips140=only" {
			return true
		}
	}
	return false
}
