package selftest

import (
	"encoding/json"
	"fmt"
	"io"
)

// UnitResult records one executed unit's outcome within a run report.
// Forced marks verdicts overridden to Fail by the observer's Corrupt-phase
// veto.
type UnitResult struct {
	Category   Category   `json:"category"`
	Descriptor Descriptor `json:"descriptor"`
	Passed     bool       `json:"passed"`
	Forced     bool       `json:"forced,omitempty"`
	Duration   string     `json:"duration"`
}

// RunReport is the structured outcome of one module-level self-test run.
type RunReport struct {
	RunID     string       `json:"run_id"`
	Trigger   Trigger      `json:"trigger"`
	Version   string       `json:"version"`
	Platform  string       `json:"platform"`
	StartedAt string       `json:"started_at"`
	Duration  string       `json:"duration"`
	State     State        `json:"state"`
	Results   []UnitResult `json:"results"`
	Summary   RunSummary   `json:"summary"`
}

// RunSummary aggregates unit results.
type RunSummary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Forced int `json:"forced"`
}

// Summarize recomputes the summary from the result list.
func (r *RunReport) Summarize() {
	r.Summary = RunSummary{}
	for _, res := range r.Results {
		r.Summary.Total++
		if res.Passed {
			r.Summary.Passed++
		} else {
			r.Summary.Failed++
		}
		if res.Forced {
			r.Summary.Forced++
		}
	}
}

// FailedUnits lists the category/descriptor pairs that failed, in
// execution order.
func (r *RunReport) FailedUnits() []string {
	var failed []string
	for _, res := range r.Results {
		if !res.Passed {
			failed = append(failed, fmt.Sprintf("%s/%s", res.Category, res.Descriptor))
		}
	}
	return failed
}

// WriteReport writes the report as indented JSON.
func WriteReport(w io.Writer, report *RunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
