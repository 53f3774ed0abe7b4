// Package progress reports deployer steps to the operator.
//
// On a terminal the steps are drawn by a Bubble Tea spinner. Everywhere else,
// and when structured logs are requested, they are logged.
package progress

import (
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-logr/logr"
	"github.com/mattn/go-isatty"
)

// Reporter receives the steps of a deploy or remove run.
type Reporter interface {
	Start(message string)
	Succeed(message string)
	Fail(message string)
	// Close flushes the reporter. It must be called once the run finished.
	Close()
}

// New returns a Spinner when out is a terminal and a Logger otherwise.
func New(title string, out *os.File, logger logr.Logger) Reporter {
	if isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()) {
		return NewSpinner(title, out)
	}
	return NewLogger(logger)
}

// Spinner draws steps with a Bubble Tea program.
type Spinner struct {
	program *tea.Program
	done    chan struct{}
}

// NewSpinner starts a spinner writing to out. Keyboard input is not read, so
// interrupts reach the process signal handlers.
func NewSpinner(title string, out io.Writer) *Spinner {
	s := &Spinner{
		program: tea.NewProgram(NewModel(title),
			tea.WithOutput(out),
			tea.WithInput(nil),
			tea.WithoutSignalHandler(),
		),
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		_, _ = s.program.Run()
	}()
	return s
}

func (s *Spinner) Start(message string) {
	s.program.Send(StepMsg{Message: message, State: StateActive})
}

func (s *Spinner) Succeed(message string) {
	s.program.Send(StepMsg{Message: message, State: StateDone})
}

func (s *Spinner) Fail(message string) {
	s.program.Send(StepMsg{Message: message, State: StateFailed})
}

// Close renders the final state and waits for the program to exit.
func (s *Spinner) Close() {
	s.program.Send(DoneMsg{})
	<-s.done
}

// Logger logs steps, for CI and redirected output.
type Logger struct {
	log logr.Logger
}

// NewLogger creates a Logger.
func NewLogger(logger logr.Logger) *Logger {
	return &Logger{log: logger}
}

func (l *Logger) Start(message string) {
	l.log.Info(message)
}

func (l *Logger) Succeed(message string) {
	l.log.Info(message, "status", "done")
}

func (l *Logger) Fail(message string) {
	l.log.Info(message, "status", "failed")
}

func (l *Logger) Close() {}
