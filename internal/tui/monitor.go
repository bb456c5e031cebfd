// Package tui implements the live terminal monitor for a self-test run.
// The monitor executes the run itself and renders each unit's phase reports
// as they arrive from the observer callback, so a watcher sees Start,
// injected Corrupt, and the final Pass or Fail per unit in real time.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fipsmod/fipsmod/internal/selftest"
	"github.com/fipsmod/fipsmod/pkg/buildinfo"
)

// RunFunc executes one self-test run and returns its report.
type RunFunc func() (*selftest.RunReport, error)

// row tracks one unit's progress through the report protocol.
type row struct {
	category   selftest.Category
	descriptor selftest.Descriptor
	phase      selftest.Phase
	corrupted  bool
}

// MonitorModel is the Bubbletea model for the self-test run monitor.
type MonitorModel struct {
	run    RunFunc
	events <-chan selftest.PhaseReport
	label  string

	rows     []row
	index    map[string]int
	viewport viewport.Model
	spin     spinner.Model
	report   *selftest.RunReport
	err      error
	running  bool
	started  time.Time
	width    int
	height   int
	ready    bool
}

// NewMonitorModel creates a monitor that will execute run and render the
// phase reports arriving on events. label names the run kind in the header.
func NewMonitorModel(run RunFunc, events <-chan selftest.PhaseReport, label string) MonitorModel {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = warnStyle
	return MonitorModel{
		run:     run,
		events:  events,
		label:   label,
		index:   make(map[string]int),
		spin:    s,
		running: true,
		started: time.Now(),
	}
}

// phaseMsg carries one phase report from the observer.
type phaseMsg selftest.PhaseReport

// doneMsg carries the finished run's report.
type doneMsg struct {
	report *selftest.RunReport
	err    error
}

// listenPhases waits for the next phase report.
func (m MonitorModel) listenPhases() tea.Cmd {
	return func() tea.Msg {
		r, ok := <-m.events
		if !ok {
			return nil
		}
		return phaseMsg(r)
	}
}

// startRun executes the run off the UI loop.
func (m MonitorModel) startRun() tea.Cmd {
	return func() tea.Msg {
		report, err := m.run()
		return doneMsg{report: report, err: err}
	}
}

// Init starts the run, the phase listener, and the spinner.
func (m MonitorModel) Init() tea.Cmd {
	return tea.Batch(m.startRun(), m.listenPhases(), m.spin.Tick)
}

// Update handles messages.
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		contentH := msg.Height - 6 // reserve for header/footer
		if contentH < 5 {
			contentH = 5
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, contentH)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = contentH
		}
		m.viewport.SetContent(m.renderContent())
		return m, nil

	case phaseMsg:
		m.apply(selftest.PhaseReport(msg))
		if m.ready {
			m.viewport.SetContent(m.renderContent())
		}
		return m, m.listenPhases()

	case doneMsg:
		m.running = false
		m.report = msg.report
		m.err = msg.err
		if m.ready {
			m.viewport.SetContent(m.renderContent())
		}
		return m, nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		if m.ready {
			m.viewport.SetContent(m.renderContent())
		}
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			if m.running {
				return m, nil
			}
			// Re-run with a clean board. The runner decides what the new
			// run selects; a latched module refuses it and reports so.
			m.rows = nil
			m.index = make(map[string]int)
			m.report = nil
			m.err = nil
			m.running = true
			m.started = time.Now()
			if m.ready {
				m.viewport.SetContent(m.renderContent())
			}
			return m, tea.Batch(m.startRun(), m.spin.Tick)
		}
	}

	// Delegate to viewport for scrolling
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// apply folds one phase report into the unit rows.
func (m *MonitorModel) apply(r selftest.PhaseReport) {
	key := fmt.Sprintf("%s/%s", r.Category, r.Descriptor)
	i, ok := m.index[key]
	if !ok {
		i = len(m.rows)
		m.rows = append(m.rows, row{category: r.Category, descriptor: r.Descriptor})
		m.index[key] = i
	}
	m.rows[i].phase = r.Phase
	if r.Phase == selftest.PhaseCorrupt {
		m.rows[i].corrupted = true
	}
}

// View renders the monitor.
func (m MonitorModel) View() string {
	var b strings.Builder

	header := headerStyle.Render(
		titleStyle.Render("fipsmod") +
			dimStyle.Render(" "+buildinfo.Version) +
			dimStyle.Render(" | Self-Test Monitor | "+m.label) +
			m.renderClock())
	b.WriteString(header)
	b.WriteString("\n")

	if !m.ready {
		b.WriteString("\n  Initializing...\n")
		return b.String()
	}

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	b.WriteString(footerStyle.Render(m.renderFooter()))
	return b.String()
}

func (m MonitorModel) renderClock() string {
	if m.running {
		return dimStyle.Render(" | running " + time.Since(m.started).Truncate(time.Second).String())
	}
	return dimStyle.Render(" | finished")
}

func (m MonitorModel) renderContent() string {
	var b strings.Builder

	if len(m.rows) == 0 && m.report == nil {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("  Waiting for first phase report..."))
		b.WriteString("\n")
		if m.err != nil {
			b.WriteString(failStyle.Render(fmt.Sprintf("\n  Error: %v\n", m.err)))
		}
		return b.String()
	}

	b.WriteString("\n")
	var lastCat selftest.Category
	for _, r := range m.rows {
		if r.category != lastCat {
			b.WriteString(" " + categoryStyle.Render(string(r.category)) + "\n")
			lastCat = r.category
		}
		b.WriteString(renderRow(r, m.spin.View()))
		b.WriteString("\n")
	}

	if m.report != nil {
		b.WriteString(renderVerdict(m.report, m.width))
		b.WriteString("\n")
	}
	return b.String()
}

func (m MonitorModel) renderFooter() string {
	state := warnStyle.Render("RUNNING")
	if !m.running {
		if m.report != nil && m.report.State == selftest.StateTrusted {
			state = passStyle.Render("TRUSTED")
		} else {
			state = failStyle.Render("UNTRUSTED")
		}
	}
	return fmt.Sprintf(" [q] Quit  [r] Re-run  | %d units | %s", len(m.rows), state)
}
