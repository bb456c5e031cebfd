// Package envcheck inspects the environment the cryptographic module runs
// in: which FIPS crypto backend is linked, whether the host OS enforces
// FIPS mode, the state of the TLS stack, and the health of the persisted
// trust state. It produces checklist reports for the daemon and the
// status tooling.
package envcheck

import "time"

// Status represents the outcome of a checklist item.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusWarning Status = "warning"
	StatusUnknown Status = "unknown"
)

// Item represents a single environment checklist entry.
type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Status      Status `json:"status"`
	Severity    string `json:"severity"`
	What        string `json:"what"`
	Why         string `json:"why"`
	Remediation string `json:"remediation"`
	NISTRef     string `json:"nist_ref"`
}

// Section represents a named group of checklist items.
type Section struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Items       []Item `json:"items"`
}

// Report is the top-level environment state.
type Report struct {
	Timestamp string    `json:"timestamp"`
	Sections  []Section `json:"sections"`
	Summary   Summary   `json:"summary"`
}

// Summary holds aggregate checklist counts.
type Summary struct {
	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Warnings int `json:"warnings"`
	Unknown  int `json:"unknown"`
}

// Checker aggregates environment state from multiple sections.
type Checker struct {
	sections []Section
}

// NewChecker creates a new environment checker.
func NewChecker() *Checker {
	return &Checker{}
}

// AddSection adds a section to the checker.
func (c *Checker) AddSection(section Section) {
	c.sections = append(c.sections, section)
}

// GenerateReport produces a report from all registered sections.
func (c *Checker) GenerateReport() *Report {
	report := &Report{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Sections:  c.sections,
	}

	for _, section := range c.sections {
		for _, item := range section.Items {
			report.Summary.Total++
			switch item.Status {
			case StatusPass:
				report.Summary.Passed++
			case StatusFail:
				report.Summary.Failed++
			case StatusWarning:
				report.Summary.Warnings++
			case StatusUnknown:
				report.Summary.Unknown++
			}
		}
	}

	return report
}

// OverallStatus returns the worst-case status across all items.
func (c *Checker) OverallStatus() Status {
	worst := StatusPass
	for _, section := range c.sections {
		for _, item := range section.Items {
			if item.Status == StatusFail {
				return StatusFail
			}
			if item.Status == StatusWarning && worst != StatusFail {
				worst = StatusWarning
			}
			if item.Status == StatusUnknown && worst == StatusPass {
				worst = StatusUnknown
			}
		}
	}
	return worst
}
