package deployer

import (
	"errors"
	"fmt"

	"github.com/api3dao/airnode-deployer/internal/storage"
)

// ErrNoBucketAvailable is returned when removing from an account without an Airnode bucket.
var ErrNoBucketAvailable = errors.New("no Airnode bucket available")

// ConsistencyError reports stored state that contradicts the requested
// operation. It is always returned before anything is written or deleted.
type ConsistencyError = storage.ConsistencyError

// IsConsistencyError reports whether err is, or wraps, a *ConsistencyError.
func IsConsistencyError(err error) bool {
	return storage.IsConsistencyError(err)
}

// DeploymentNotFoundError is returned when no deployment exists for an address and stage.
type DeploymentNotFoundError struct {
	Address string
	Stage   string
}

func (e *DeploymentNotFoundError) Error() string {
	return fmt.Sprintf("no deployment of Airnode %s with stage %s found", e.Address, e.Stage)
}

// AggregateError is returned when a deployment failed and removing it failed too.
type AggregateError struct {
	Deploy error
	Remove error
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("Deployment error:\n%v\nRemoval error:\n%v", e.Deploy, e.Remove)
}

func (e *AggregateError) Unwrap() []error {
	return []error{e.Deploy, e.Remove}
}

func versionMismatch(deployed, own string) error {
	return &ConsistencyError{
		Err: storage.ErrVersionMismatch,
		Message: fmt.Sprintf("%v: the deployment was made with Airnode %s but this deployer is version %s",
			storage.ErrVersionMismatch, deployed, own),
	}
}

func regionMismatch(deployed, own string) error {
	return &ConsistencyError{
		Err: storage.ErrRegionMismatch,
		Message: fmt.Sprintf("%v: the deployment is in region %s but region %s was requested",
			storage.ErrRegionMismatch, deployed, own),
	}
}
