package terraform

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/api3dao/airnode-deployer/internal/metrics"
)

// DefaultBinary is the Terraform executable looked up on PATH.
const DefaultBinary = "terraform"

// Command is one Terraform invocation.
type Command struct {
	// Name is the subcommand, for example "init" or "apply".
	Name string
	Args []Argument
	// Positional arguments follow the flags, for example an import address and ID.
	Positional []string
	// Dir is the working directory holding the Terraform module.
	Dir string
	// IgnoreError turns a failure into a logged warning and an empty result.
	IgnoreError bool
}

// String returns the command as it would be typed in a shell.
func (c Command) String() string {
	parts := []string{c.Name}
	if len(c.Args) > 0 {
		parts = append(parts, CommandLine(c.Args))
	}
	parts = append(parts, c.Positional...)
	return strings.Join(parts, " ")
}

// Runner runs Terraform commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ProcessError is returned when a Terraform command exits unsuccessfully.
type ProcessError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("terraform %s failed: %v", e.Command, e.Err)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += "\n" + stderr
	}
	return msg
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// Executor runs Terraform as a child process.
type Executor struct {
	Binary  string
	Logger  logr.Logger
	Metrics *metrics.Recorder
	// Env is added to the environment of every command, for example provider credentials.
	Env []string
}

// NewExecutor creates an Executor for binary, falling back to DefaultBinary.
func NewExecutor(binary string, logger logr.Logger, recorder *metrics.Recorder) *Executor {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Executor{Binary: binary, Logger: logger, Metrics: recorder}
}

// Run executes the command and returns its standard output.
func (e *Executor) Run(ctx context.Context, cmd Command) ([]byte, error) {
	argv := append([]string{cmd.Name}, Argv(cmd.Args)...)
	argv = append(argv, cmd.Positional...)
	log := e.Logger.WithValues("command", cmd.Name, "dir", cmd.Dir)
	log.V(1).Info("Running terraform", "args", CommandLine(cmd.Args))

	c := exec.CommandContext(ctx, e.Binary, argv...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), "TF_IN_AUTOMATION=1")
	c.Env = append(c.Env, e.Env...)
	c.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	e.Metrics.TerraformCommand(cmd.Name, time.Since(start))

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w (%v)", ctxErr, err)
		}
		if cmd.IgnoreError {
			log.Info("Ignoring terraform failure", "error", err.Error(), "stderr", strings.TrimSpace(stderr.String()))
			return nil, nil
		}
		return nil, &ProcessError{Command: cmd.String(), Stderr: stderr.String(), Err: err}
	}

	log.V(1).Info("Terraform finished", "stdout", strings.TrimSpace(stdout.String()))
	return stdout.Bytes(), nil
}
