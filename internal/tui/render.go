package tui

import (
	"fmt"
	"strings"

	"github.com/fipsmod/fipsmod/internal/selftest"
)

// phaseIcon returns a colored icon for a unit's last reported phase.
// spinFrame animates units whose final verdict has not arrived yet.
func phaseIcon(p selftest.Phase, spinFrame string) string {
	switch p {
	case selftest.PhasePass:
		return passStyle.Render("●")
	case selftest.PhaseFail:
		return failStyle.Render("✖")
	case selftest.PhaseCorrupt:
		return warnStyle.Render("!")
	default:
		if spinFrame != "" {
			return spinFrame
		}
		return pendingStyle.Render("·")
	}
}

// phaseLabel returns a colored label for a unit's last reported phase.
func phaseLabel(p selftest.Phase) string {
	switch p {
	case selftest.PhasePass:
		return passStyle.Render("PASS")
	case selftest.PhaseFail:
		return failStyle.Render("FAIL")
	default:
		return dimStyle.Render("RUN ")
	}
}

// renderRow renders a single unit line: icon, category/descriptor, phase
// label, and an injection marker for units that saw a Corrupt report.
func renderRow(r row, spinFrame string) string {
	icon := phaseIcon(r.phase, spinFrame)
	label := phaseLabel(r.phase)
	name := fmt.Sprintf("%s/%s", r.category, r.descriptor)

	switch r.phase {
	case selftest.PhasePass:
		name = dimStyle.Render(name)
	case selftest.PhaseFail:
		name = failStyle.Render(name)
	}

	line := fmt.Sprintf("   %s %-44s %s", icon, name, label)
	if r.corrupted {
		line += warnStyle.Render("  corrupt injected")
	}
	return line
}

// renderVerdict renders the run outcome box once a report is available.
func renderVerdict(report *selftest.RunReport, width int) string {
	if report == nil {
		return ""
	}

	s := report.Summary
	parts := []string{passStyle.Render(fmt.Sprintf("%d PASS", s.Passed))}
	if s.Failed > 0 {
		parts = append(parts, failStyle.Render(fmt.Sprintf("%d FAIL", s.Failed)))
	}
	if s.Forced > 0 {
		parts = append(parts, warnStyle.Render(fmt.Sprintf("%d FORCED", s.Forced)))
	}
	counts := fmt.Sprintf("  %d/%d  %s", s.Passed, s.Total, strings.Join(parts, "   "))

	barWidth := 20
	if width > 80 {
		barWidth = 30
	}
	bar := ""
	if s.Total > 0 {
		filled := (s.Passed * barWidth) / s.Total
		for i := 0; i < barWidth; i++ {
			if i < filled {
				bar += "█"
			} else {
				bar += "░"
			}
		}
	}

	verdict := passStyle.Render("MODULE TRUSTED")
	barStyled := passStyle.Render(bar)
	if report.State != selftest.StateTrusted {
		verdict = failStyle.Render("MODULE UNTRUSTED")
		barStyled = failStyle.Render(bar)
		if failed := report.FailedUnits(); len(failed) > 0 {
			verdict += dimStyle.Render("  " + strings.Join(failed, ", "))
		}
	}

	return verdictBoxStyle.Render(counts + "   " + barStyled + "\n  " + verdict)
}
