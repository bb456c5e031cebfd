package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	digestRe = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
	keyRe    = regexp.MustCompile(`^(?:[0-9a-fA-F]{2})+$`)
)

// ValidateNonEmpty checks that s is not empty after trimming whitespace.
func ValidateNonEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("value is required")
	}
	return nil
}

// ValidateFileExists checks that the path points to an existing file.
func ValidateFileExists(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("file path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", path)
		}
		return fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", path)
	}
	return nil
}

// ValidateDigest checks that s is a 64-character hex string, the printable
// form of an HMAC-SHA-256 digest.
func ValidateDigest(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("digest is required")
	}
	if !digestRe.MatchString(s) {
		return fmt.Errorf("invalid digest format (expected 64-character hex string)")
	}
	return nil
}

// ValidateOptionalDigest checks a digest only if non-empty.
func ValidateOptionalDigest(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return ValidateDigest(s)
}

// ValidateIntegrityKey checks an optional hex-encoded HMAC key. Keys
// shorter than 16 bytes are rejected.
func ValidateIntegrityKey(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if !keyRe.MatchString(s) {
		return fmt.Errorf("invalid integrity key (expected hex string)")
	}
	if len(s) < 32 {
		return fmt.Errorf("integrity key too short (expected at least 16 bytes)")
	}
	return nil
}

// ValidateStateBackend checks that s names a known trust-state backend.
func ValidateStateBackend(s string) error {
	switch s {
	case BackendSQLite, BackendFile:
		return nil
	case "":
		return fmt.Errorf("state backend is required")
	default:
		return fmt.Errorf("unknown state backend %q (expected %s or %s)", s, BackendSQLite, BackendFile)
	}
}

// ValidateLogLevel checks that s is a recognized log level.
func ValidateLogLevel(s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "info", "warn", "error":
		return nil
	case "":
		return fmt.Errorf("log level is required")
	default:
		return fmt.Errorf("unknown log level %q", s)
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := ValidateStateBackend(c.StateBackend); err != nil {
		return err
	}
	if err := ValidateNonEmpty(c.StatePath); err != nil {
		return fmt.Errorf("state_path: %w", err)
	}
	if err := ValidateIntegrityKey(c.IntegrityKey); err != nil {
		return err
	}
	if err := ValidateLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.SelfTest.JournalRuns < 0 {
		return fmt.Errorf("journal-runs cannot be negative")
	}
	return nil
}
