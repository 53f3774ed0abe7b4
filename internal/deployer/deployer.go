// Package deployer orchestrates Airnode deployments and removals.
//
// A deployment is a sequence of immutable versions stored under
// <airnodeAddress>/<stage>/<version>/ in the Airnode bucket. Every deploy
// writes a new version and hands its Terraform state key to the backend, so
// the state of the previous version is copied forward first. Removing a stage
// destroys the cloud resources with the state of the latest version and then
// deletes the stage, cascading to the address directory and the bucket once
// they are empty.
package deployer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"

	"github.com/api3dao/airnode-deployer/internal/metrics"
	"github.com/api3dao/airnode-deployer/internal/storage"
	"github.com/api3dao/airnode-deployer/internal/terraform"
)

// Deployer deploys, removes and inspects Airnodes of one cloud account.
type Deployer struct {
	gateway     storage.Gateway
	runner      terraform.Runner
	nodeVersion string

	logger       logr.Logger
	progress     Progress
	metrics      *metrics.Recorder
	now          func() time.Time
	terraformDir string
	handlerDir   string
	ordering     VersionOrdering
	workdir      func(moduleDir string) (string, func(), error)

	rollbackTimeout time.Duration
}

// DefaultRollbackTimeout bounds the removal of a failed deployment.
const DefaultRollbackTimeout = 15 * time.Minute

// Option configures a Deployer.
type Option func(*Deployer)

// WithLogger sets the logger.
func WithLogger(logger logr.Logger) Option {
	return func(d *Deployer) { d.logger = logger }
}

// WithProgress sets the reporter for deploy and remove steps.
func WithProgress(progress Progress) Option {
	return func(d *Deployer) { d.progress = progress }
}

// WithMetrics records operation outcomes.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(d *Deployer) { d.metrics = recorder }
}

// WithClock replaces time.Now, which names new deployment versions.
func WithClock(now func() time.Time) Option {
	return func(d *Deployer) { d.now = now }
}

// WithTerraformDir sets the directory holding the <provider>/{airnode,state} modules.
func WithTerraformDir(dir string) Option {
	return func(d *Deployer) { d.terraformDir = dir }
}

// WithHandlerDir sets the directory of the packaged Airnode handlers.
func WithHandlerDir(dir string) Option {
	return func(d *Deployer) { d.handlerDir = dir }
}

// WithVersionOrdering selects how the latest version of a stage is found.
func WithVersionOrdering(ordering VersionOrdering) Option {
	return func(d *Deployer) { d.ordering = ordering }
}

// WithWorkdir replaces the function that copies a Terraform module into a
// scratch directory.
func WithWorkdir(prepare func(moduleDir string) (string, func(), error)) Option {
	return func(d *Deployer) { d.workdir = prepare }
}

// WithRollbackTimeout bounds the removal that follows a failed deployment.
// The removal outlives cancellation of the deploy context.
func WithRollbackTimeout(timeout time.Duration) Option {
	return func(d *Deployer) { d.rollbackTimeout = timeout }
}

// New creates a Deployer that stores deployments through gateway and runs
// Terraform through runner. nodeVersion is the Airnode version being deployed.
func New(gateway storage.Gateway, runner terraform.Runner, nodeVersion string, opts ...Option) *Deployer {
	d := &Deployer{
		gateway:      gateway,
		runner:       runner,
		nodeVersion:  nodeVersion,
		logger:       logr.Discard(),
		progress:     nopProgress{},
		now:          time.Now,
		terraformDir: "terraform",
		handlerDir:   "handlers",
		workdir:      terraform.PrepareWorkdir,

		rollbackTimeout: DefaultRollbackTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type step struct {
	name string
	run  func(ctx context.Context) error
}

// runSteps runs steps in order and stops at the first failure.
func (d *Deployer) runSteps(ctx context.Context, steps []step) error {
	for _, s := range steps {
		start := time.Now()
		d.progress.Start(s.name)

		if err := s.run(ctx); err != nil {
			d.progress.Fail(fmt.Sprintf("%s failed", s.name))
			return err
		}

		d.progress.Succeed(s.name)
		d.logger.V(1).Info("Step completed", "step", s.name, "duration", time.Since(start).Round(time.Millisecond))
	}
	return nil
}

// terraform runs one command and logs it at debug level.
func (d *Deployer) terraform(ctx context.Context, cmd terraform.Command) ([]byte, error) {
	d.logger.V(1).Info("Running terraform", "command", cmd.String())
	return d.runner.Run(ctx, cmd)
}

// prepareModule copies the provider's module into a scratch directory.
func (d *Deployer) prepareModule(providerType, module string) (string, func(), error) {
	dir, cleanup, err := d.workdir(d.modulePath(providerType, module))
	if err != nil {
		return "", nil, fmt.Errorf("failed to prepare terraform workdir: %w", err)
	}
	return dir, cleanup, nil
}

func (d *Deployer) modulePath(providerType, module string) string {
	return filepath.Join(d.terraformDir, providerType, module)
}
