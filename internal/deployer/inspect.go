package deployer

import (
	"context"
	"sort"

	"github.com/api3dao/airnode-deployer/internal/cloud"
	"github.com/api3dao/airnode-deployer/internal/storage"
)

// DeploymentInfo summarises one deployed stage of an Airnode.
type DeploymentInfo struct {
	AirnodeAddress string         `json:"airnodeAddress" yaml:"airnodeAddress"`
	Stage          string         `json:"stage" yaml:"stage"`
	CloudProvider  cloud.Settings `json:"cloudProvider" yaml:"cloudProvider"`
	NodeVersion    string         `json:"nodeVersion" yaml:"nodeVersion"`
	Versions       []string       `json:"versions" yaml:"versions"`
	LatestVersion  string         `json:"latestVersion" yaml:"latestVersion"`
}

// List returns every deployed stage in the Airnode bucket, sorted by address
// and stage. Stages whose layout or config cannot be read are logged and skipped.
func (d *Deployer) List(ctx context.Context) ([]DeploymentInfo, error) {
	infos, err := d.list(ctx)
	d.metrics.Operation("list", err)
	return infos, err
}

func (d *Deployer) list(ctx context.Context) ([]DeploymentInfo, error) {
	bucket, err := d.gateway.AirnodeBucket(ctx)
	if err != nil || bucket == nil {
		return nil, err
	}
	tree, err := d.gateway.DirectoryStructure(ctx, bucket)
	if err != nil {
		return nil, err
	}

	var infos []DeploymentInfo
	for _, address := range sortedNames(tree) {
		addressDir, err := storage.AddressDirectory(tree, address)
		if err != nil {
			d.logger.Error(err, "Skipping unreadable Airnode", "airnodeAddress", address)
			continue
		}
		for _, stage := range addressDir.ChildNames() {
			info, err := d.info(ctx, bucket, tree, address, stage)
			if err != nil {
				d.logger.Error(err, "Skipping unreadable deployment", "airnodeAddress", address, "stage", stage)
				continue
			}
			infos = append(infos, *info)
		}
	}
	return infos, nil
}

// Info describes the deployment of one stage.
func (d *Deployer) Info(ctx context.Context, airnodeAddress, stage string) (*DeploymentInfo, error) {
	info, err := d.lookup(ctx, airnodeAddress, stage)
	d.metrics.Operation("info", err)
	return info, err
}

func (d *Deployer) lookup(ctx context.Context, airnodeAddress, stage string) (*DeploymentInfo, error) {
	bucket, err := d.gateway.AirnodeBucket(ctx)
	if err != nil {
		return nil, err
	}
	if bucket == nil {
		return nil, ErrNoBucketAvailable
	}
	tree, err := d.gateway.DirectoryStructure(ctx, bucket)
	if err != nil {
		return nil, err
	}
	return d.info(ctx, bucket, tree, airnodeAddress, stage)
}

func (d *Deployer) info(ctx context.Context, bucket *storage.Bucket, tree storage.DirectoryStructure, airnodeAddress, stage string) (*DeploymentInfo, error) {
	stageDir, err := storage.StageDirectory(tree, airnodeAddress, stage)
	if err != nil {
		return nil, err
	}
	if stageDir == nil {
		return nil, &DeploymentNotFoundError{Address: airnodeAddress, Stage: stage}
	}

	latest, err := d.fetchLatest(ctx, bucket, stageDir)
	if err != nil {
		return nil, err
	}
	return &DeploymentInfo{
		AirnodeAddress: airnodeAddress,
		Stage:          stage,
		CloudProvider:  latest.Settings.CloudProvider,
		NodeVersion:    latest.Settings.NodeVersion,
		Versions:       sortVersions(stageDir, d.ordering),
		LatestVersion:  latest.Name,
	}, nil
}

func sortedNames(tree storage.DirectoryStructure) []string {
	names := make([]string, 0, len(tree))
	for name := range tree {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
