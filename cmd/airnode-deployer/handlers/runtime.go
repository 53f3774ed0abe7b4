// Package handlers implements the airnode-deployer commands.
//
// Handlers are independent of cobra. Collaborators that reach the cloud or
// the terminal are created through package variables so tests can replace them.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/joho/godotenv"

	"github.com/api3dao/airnode-deployer/internal/cloud"
	"github.com/api3dao/airnode-deployer/internal/config"
	"github.com/api3dao/airnode-deployer/internal/deployer"
	"github.com/api3dao/airnode-deployer/internal/logging"
	"github.com/api3dao/airnode-deployer/internal/metrics"
	"github.com/api3dao/airnode-deployer/internal/platform/gcs"
	"github.com/api3dao/airnode-deployer/internal/platform/s3"
	"github.com/api3dao/airnode-deployer/internal/storage"
	"github.com/api3dao/airnode-deployer/internal/terraform"
	"github.com/api3dao/airnode-deployer/internal/ui/progress"
	"github.com/api3dao/airnode-deployer/internal/ui/prompt"
	"github.com/api3dao/airnode-deployer/internal/util/prerequisites"
)

// NodeVersion is the Airnode version this deployer deploys. Configurations
// and existing deployments must be of the same version.
var NodeVersion = "0.15.0"

// Factory function variables - can be replaced in tests.
var (
	newLogger = logging.New

	// newGateway connects to the object storage of the provider's account.
	newGateway = func(ctx context.Context, provider cloud.Provider, settings config.Settings, logger logr.Logger) (storage.Gateway, func() error, error) {
		switch p := provider.(type) {
		case *cloud.AWS:
			gw, err := s3.NewGateway(ctx, s3.Options{
				Region:          p.Region,
				CredentialsFile: settings.AWSCredentials,
				Logger:          logger,
			})
			if err != nil {
				return nil, nil, err
			}
			return gw, func() error { return nil }, nil
		case *cloud.GCP:
			gw, err := gcs.NewGateway(ctx, gcs.Options{
				ProjectID:       p.ProjectID,
				Region:          p.Region,
				CredentialsFile: settings.GCPCredentials,
				Logger:          logger,
			})
			if err != nil {
				return nil, nil, err
			}
			return gw, gw.Close, nil
		}
		return nil, nil, fmt.Errorf("unsupported cloud provider %T", provider)
	}

	newRunner = func(settings config.Settings, logger logr.Logger, recorder *metrics.Recorder, env []string) terraform.Runner {
		executor := terraform.NewExecutor(settings.TerraformBinary, logger, recorder)
		executor.Env = env
		return executor
	}

	checkTools = prerequisites.CheckDeployment

	newReporter = func(title string, logger logr.Logger) progress.Reporter {
		return progress.New(title, os.Stdout, logger)
	}

	confirmer     prompt.Confirmer = prompt.Huh{}
	isInteractive                  = prompt.Interactive

	stdout io.Writer = os.Stdout
)

// runtime holds what every command needs besides its arguments.
type runtime struct {
	settings config.Settings
	logger   logr.Logger
	metrics  *metrics.Recorder
}

func newRuntime(settings config.Settings) (*runtime, error) {
	logger, err := newLogger(logging.Options{Format: settings.LogFormat, Debug: settings.Debug})
	if err != nil {
		return nil, err
	}
	return &runtime{settings: settings, logger: logger, metrics: metrics.NewRecorder()}, nil
}

// withTimeout bounds ctx by the --timeout setting.
func (r *runtime) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.settings.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.settings.Timeout)
}

// finish writes the metrics file, if one is configured.
func (r *runtime) finish() {
	if err := r.metrics.WriteTextfile(r.settings.MetricsFile); err != nil {
		r.logger.Error(err, "Failed to write metrics")
	}
}

// gateway connects to the provider's object storage.
func (r *runtime) gateway(ctx context.Context, provider cloud.Provider) (storage.Gateway, func(), error) {
	gw, closeFn, err := newGateway(ctx, provider, r.settings, r.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s storage: %w", provider.Settings().Type, err)
	}
	return gw, func() {
		if err := closeFn(); err != nil {
			r.logger.Error(err, "Failed to close storage client")
		}
	}, nil
}

// deployer creates a Deployer that runs Terraform with the provider's credentials.
func (r *runtime) deployer(gw storage.Gateway, provider cloud.Provider, reporter deployer.Progress) (*deployer.Deployer, error) {
	tools := checkTools(r.settings.TerraformBinary)
	for _, result := range tools.Results {
		if result.Found {
			r.logger.V(1).Info("Found tool", "name", result.Tool.Name, "path", result.Path, "version", result.Version)
		}
	}
	if err := tools.Error(); err != nil {
		return nil, err
	}
	env, err := credentialsEnv(provider, r.settings)
	if err != nil {
		return nil, err
	}
	handlerDir, err := filepath.Abs(r.settings.HandlerDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve handler directory: %w", err)
	}

	ordering := deployer.LexicographicOrder
	if r.settings.NumericVersionOrder {
		ordering = deployer.NumericOrder
	}

	return deployer.New(gw, newRunner(r.settings, r.logger, r.metrics, env), NodeVersion,
		deployer.WithLogger(r.logger),
		deployer.WithProgress(reporter),
		deployer.WithMetrics(r.metrics),
		deployer.WithTerraformDir(r.settings.TerraformDir),
		deployer.WithHandlerDir(handlerDir),
		deployer.WithVersionOrdering(ordering),
	), nil
}

// inspector creates a Deployer for read-only commands, which never run Terraform.
func (r *runtime) inspector(gw storage.Gateway) *deployer.Deployer {
	ordering := deployer.LexicographicOrder
	if r.settings.NumericVersionOrder {
		ordering = deployer.NumericOrder
	}
	return deployer.New(gw, nil, NodeVersion,
		deployer.WithLogger(r.logger),
		deployer.WithMetrics(r.metrics),
		deployer.WithVersionOrdering(ordering),
	)
}

// credentialsEnv passes the credential files given to the deployer on to Terraform.
func credentialsEnv(provider cloud.Provider, settings config.Settings) ([]string, error) {
	switch provider.(type) {
	case *cloud.AWS:
		if settings.AWSCredentials == "" {
			return nil, nil
		}
		vars, err := godotenv.Read(settings.AWSCredentials)
		if err != nil {
			return nil, fmt.Errorf("failed to read AWS credentials from %s: %w", settings.AWSCredentials, err)
		}
		env := make([]string, 0, len(vars))
		for _, key := range []string{"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_SESSION_TOKEN"} {
			if value := vars[key]; value != "" {
				env = append(env, key+"="+value)
			}
		}
		return env, nil
	case *cloud.GCP:
		if settings.GCPCredentials == "" {
			return nil, nil
		}
		path, err := filepath.Abs(settings.GCPCredentials)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve GCP credentials path: %w", err)
		}
		return []string{"GOOGLE_APPLICATION_CREDENTIALS=" + path}, nil
	}
	return nil, nil
}
