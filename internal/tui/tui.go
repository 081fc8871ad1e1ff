// internal/tui/tui.go
// Package tui renders live sweep progress with Bubble Tea. The drivers
// stay synchronous; the program runs beside them and receives completion
// ticks through Sweep.Progress.
package tui

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// progressMsg carries one completed grid point.
type progressMsg struct {
	done  int
	total int
	label string
}

// finishMsg tells the program the sweep ended.
type finishMsg struct{}

// model is the Bubble Tea model for a running sweep.
type model struct {
	title    string
	spinner  spinner.Model
	bar      progress.Model
	done     int
	total    int
	label    string
	finished bool
}

func newModel(title string) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		title:   title,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient()),
	}
}

// Init starts the spinner ticking.
func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update advances the model on spinner ticks, progress messages, and
// termination.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - 20
		return m, nil

	case progressMsg:
		m.done = msg.done
		m.total = msg.total
		m.label = msg.label
		return m, nil

	case finishMsg:
		m.finished = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	default:
		return m, nil
	}
}

// View renders the title line, the progress bar, and the current label.
func (m model) View() string {
	ratio := 0.0
	if m.total > 0 {
		ratio = float64(m.done) / float64(m.total)
	}

	status := m.spinner.View()
	if m.finished {
		status = "done"
	}

	return fmt.Sprintf("%s %s\n%s %d/%d %s\n",
		status, m.title,
		m.bar.ViewAs(ratio), m.done, m.total, m.label)
}

// Sweep drives a progress display for one sweep run.
type Sweep struct {
	program *tea.Program
	wg      sync.WaitGroup
}

// NewSweep starts the progress program for a titled sweep. The returned
// Sweep must be finished with Finish, even on error paths.
func NewSweep(title string) *Sweep {
	s := &Sweep{
		program: tea.NewProgram(newModel(title)),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Display failure must not take the sweep down with it.
		_, _ = s.program.Run()
	}()
	return s
}

// Progress is shaped to slot directly into a Runner's Progress field.
func (s *Sweep) Progress(done, total int, label string) {
	s.program.Send(progressMsg{done: done, total: total, label: label})
}

// Finish stops the program and waits for the terminal to be restored.
func (s *Sweep) Finish() {
	s.program.Send(finishMsg{})
	s.wg.Wait()
}
