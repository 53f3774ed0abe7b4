package progress

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// State is the state of one reported step.
type State int

const (
	StateActive State = iota
	StateDone
	StateFailed
)

// StepMsg starts or finishes a step.
type StepMsg struct {
	Message string
	State   State
}

// TickMsg advances the spinner animation.
type TickMsg struct{}

// DoneMsg stops the program.
type DoneMsg struct{}

type step struct {
	Message string
	State   State
}

// Model is the Bubble Tea model of the step spinner.
type Model struct {
	Title        string
	Steps        []step
	SpinnerFrame int
	StartTime    time.Time
	Done         bool
}

// NewModel creates an empty model.
func NewModel(title string) Model {
	return Model{Title: title, StartTime: time.Now()}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StepMsg:
		m.updateStep(msg)

	case TickMsg:
		m.SpinnerFrame++
		return m, tickCmd()

	case DoneMsg:
		m.Done = true
		return m, tea.Quit
	}
	return m, nil
}

// updateStep finishes the active step with the same message, or appends a new one.
// A finish message for a step that never started is appended as finished.
func (m *Model) updateStep(msg StepMsg) {
	if msg.State != StateActive {
		for i := len(m.Steps) - 1; i >= 0; i-- {
			if m.Steps[i].State == StateActive {
				m.Steps[i] = step(msg)
				return
			}
		}
	}
	m.Steps = append(m.Steps, step(msg))
}

func tickCmd() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	if m.Title != "" {
		b.WriteString(titleStyle.Render(m.Title))
		b.WriteString("\n")
	}

	for _, s := range m.Steps {
		switch s.State {
		case StateDone:
			b.WriteString(doneStyle.Render(checkMark) + " " + s.Message)
		case StateFailed:
			b.WriteString(failedStyle.Render(crossMark) + " " + failedStyle.Render(s.Message))
		default:
			b.WriteString(activeStyle.Render(currentSpinner(m.SpinnerFrame)) + " " + s.Message)
		}
		b.WriteString("\n")
	}

	if !m.Done {
		b.WriteString(footerStyle.Render(fmt.Sprintf("elapsed: %s", formatDuration(time.Since(m.StartTime)))))
		b.WriteString("\n")
	}
	return b.String()
}

func currentSpinner(frame int) string {
	if frame < 0 {
		frame = -frame
	}
	return spinnerFrames[frame%len(spinnerFrames)]
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
