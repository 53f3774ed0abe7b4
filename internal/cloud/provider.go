// Package cloud describes the cloud providers an Airnode can be deployed to.
package cloud

import (
	"errors"
	"fmt"

	"github.com/api3dao/airnode-deployer/internal/terraform"
	"github.com/api3dao/airnode-deployer/internal/util/naming"
)

// Type identifies a cloud provider.
type Type string

const (
	TypeAWS Type = "aws"
	TypeGCP Type = "gcp"
)

// GCP resources adopted into state before the first apply of a project.
const gcpAppEngineResource = "module.startCoordinator.google_app_engine_application.app[0]"

// Settings is the cloudProvider section of an Airnode configuration.
type Settings struct {
	Type                           Type   `json:"type" yaml:"type"`
	Region                         string `json:"region" yaml:"region"`
	ProjectID                      string `json:"projectId,omitempty" yaml:"projectId,omitempty"`
	DisableConcurrencyReservations bool   `json:"disableConcurrencyReservations" yaml:"disableConcurrencyReservations"`
}

// Validate checks that the settings describe a supported provider.
func (s Settings) Validate() error {
	var errs []error
	switch s.Type {
	case TypeAWS:
	case TypeGCP:
		if s.ProjectID == "" {
			errs = append(errs, errors.New("projectId is required for gcp"))
		}
	case "":
		errs = append(errs, errors.New("type is required"))
	default:
		errs = append(errs, fmt.Errorf("unsupported type %q (expected %s or %s)", s.Type, TypeAWS, TypeGCP))
	}
	if s.Region == "" {
		errs = append(errs, errors.New("region is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid cloud provider: %w", errors.Join(errs...))
	}
	return nil
}

// Provider returns the provider described by the settings.
func (s Settings) Provider() (Provider, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.Type == TypeGCP {
		return &GCP{Region: s.Region, ProjectID: s.ProjectID, DisableConcurrencyReservations: s.DisableConcurrencyReservations}, nil
	}
	return &AWS{Region: s.Region, DisableConcurrencyReservations: s.DisableConcurrencyReservations}, nil
}

// Provider is implemented by *AWS and *GCP only.
type Provider interface {
	Settings() Settings

	// ManageArguments selects the provider for apply and destroy.
	ManageArguments() []terraform.Argument

	// InitArguments points the Terraform backend at the state of one deployment version.
	InitArguments(bucket, deploymentPath string) []terraform.Argument

	// ImportOptions lists resources to adopt before apply. Import failures are not fatal.
	ImportOptions() []terraform.Import

	provider()
}

// AWS deploys to Amazon Web Services.
type AWS struct {
	Region                         string
	DisableConcurrencyReservations bool
}

func (p *AWS) Settings() Settings {
	return Settings{Type: TypeAWS, Region: p.Region, DisableConcurrencyReservations: p.DisableConcurrencyReservations}
}

func (p *AWS) ManageArguments() []terraform.Argument {
	return []terraform.Argument{terraform.Var("aws_region", p.Region)}
}

func (p *AWS) InitArguments(bucket, deploymentPath string) []terraform.Argument {
	return []terraform.Argument{
		terraform.BackendConfig("region", p.Region),
		terraform.BackendConfig("bucket", bucket),
		terraform.BackendConfig("key", naming.StateKey(deploymentPath)),
	}
}

func (p *AWS) ImportOptions() []terraform.Import {
	return nil
}

func (*AWS) provider() {}

// GCP deploys to Google Cloud Platform.
type GCP struct {
	Region                         string
	ProjectID                      string
	DisableConcurrencyReservations bool
}

func (p *GCP) Settings() Settings {
	return Settings{
		Type:                           TypeGCP,
		Region:                         p.Region,
		ProjectID:                      p.ProjectID,
		DisableConcurrencyReservations: p.DisableConcurrencyReservations,
	}
}

func (p *GCP) ManageArguments() []terraform.Argument {
	return []terraform.Argument{
		terraform.Var("gcp_region", p.Region),
		terraform.Var("gcp_project", p.ProjectID),
	}
}

// InitArguments uses a prefix because the gcs backend appends default.tfstate itself.
func (p *GCP) InitArguments(bucket, deploymentPath string) []terraform.Argument {
	return []terraform.Argument{
		terraform.BackendConfig("bucket", bucket),
		terraform.BackendConfig("prefix", deploymentPath),
	}
}

// ImportOptions adopts the App Engine application, which cannot be deleted
// once a project has one.
func (p *GCP) ImportOptions() []terraform.Import {
	return []terraform.Import{{Address: gcpAppEngineResource, ID: p.ProjectID}}
}

func (*GCP) provider() {}
