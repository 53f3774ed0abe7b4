package testing

import (
	"context"
	"sync"

	"github.com/api3dao/airnode-deployer/internal/terraform"
)

// RecordingRunner is a terraform.Runner that records every command.
// Failures and outputs are configured per subcommand name.
type RecordingRunner struct {
	mu       sync.Mutex
	commands []terraform.Command
	errs     map[string]error
	outputs  map[string][]byte
	hooks    map[string]func()
}

// NewRecordingRunner creates a runner on which every command succeeds.
func NewRecordingRunner() *RecordingRunner {
	return &RecordingRunner{errs: map[string]error{}, outputs: map[string][]byte{}, hooks: map[string]func(){}}
}

// FailOn makes every later command with the given name fail with err.
// Commands marked IgnoreError still succeed, as with terraform.Executor.
func (r *RecordingRunner) FailOn(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[name] = err
}

// SetOutput sets the standard output of commands with the given name.
func (r *RecordingRunner) SetOutput(name string, out []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[name] = out
}

// OnRun calls fn whenever a command with the given name starts.
func (r *RecordingRunner) OnRun(name string, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[name] = fn
}

// Run fails with the context error once ctx is done, like exec.CommandContext.
func (r *RecordingRunner) Run(ctx context.Context, cmd terraform.Command) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
	if hook := r.hooks[cmd.Name]; hook != nil {
		hook()
	}
	if err := r.errs[cmd.Name]; err != nil {
		if cmd.IgnoreError {
			return nil, nil
		}
		return nil, &terraform.ProcessError{Command: cmd.String(), Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &terraform.ProcessError{Command: cmd.String(), Err: err}
	}
	return r.outputs[cmd.Name], nil
}

// Commands returns the recorded commands in order.
func (r *RecordingRunner) Commands() []terraform.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]terraform.Command(nil), r.commands...)
}

// Names returns the subcommand names of the recorded commands in order.
func (r *RecordingRunner) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.commands))
	for i, cmd := range r.commands {
		names[i] = cmd.Name
	}
	return names
}

// Find returns the recorded commands with the given name.
func (r *RecordingRunner) Find(name string) []terraform.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found []terraform.Command
	for _, cmd := range r.commands {
		if cmd.Name == name {
			found = append(found, cmd)
		}
	}
	return found
}

var _ terraform.Runner = (*RecordingRunner)(nil)
