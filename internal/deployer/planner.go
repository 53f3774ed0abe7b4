package deployer

import (
	"github.com/api3dao/airnode-deployer/internal/storage"
)

// Plan lists what to delete from the Airnode bucket after a stage was destroyed.
// Directories are deleted in order, then the bucket if DeleteBucket is set.
type Plan struct {
	Directories  []*storage.Directory
	DeleteBucket bool
}

// PlanRemoval plans the deletion of one stage. The stage directory is always
// deleted. The address directory follows when it holds no other stage, and
// the bucket follows when nothing else is stored in it.
func PlanRemoval(tree storage.DirectoryStructure, airnodeAddress, stage string) (Plan, error) {
	addressDir, err := storage.AddressDirectory(tree, airnodeAddress)
	if err != nil {
		return Plan{}, err
	}
	stageDir, err := storage.StageDirectory(tree, airnodeAddress, stage)
	if err != nil {
		return Plan{}, err
	}
	if stageDir == nil {
		return Plan{}, &DeploymentNotFoundError{Address: airnodeAddress, Stage: stage}
	}

	plan := Plan{Directories: []*storage.Directory{stageDir}}
	if len(addressDir.Children) > 1 {
		return plan, nil
	}

	plan.Directories = append(plan.Directories, addressDir)
	plan.DeleteBucket = len(tree) == 1
	return plan, nil
}
