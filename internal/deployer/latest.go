package deployer

import (
	"context"
	"strings"

	"github.com/api3dao/airnode-deployer/internal/cloud"
	"github.com/api3dao/airnode-deployer/internal/config"
	"github.com/api3dao/airnode-deployer/internal/storage"
	"github.com/api3dao/airnode-deployer/internal/util/naming"
)

// deployedVersion is the latest version of a stage and the node settings it was deployed with.
type deployedVersion struct {
	Name     string
	Path     string
	Dir      *storage.Directory
	Settings config.NodeSettings
}

// HasState reports whether the version holds a Terraform state file.
func (v *deployedVersion) HasState() bool {
	_, ok := v.Dir.Children[naming.StateFile].(*storage.File)
	return ok
}

// fetchLatest resolves the latest version of a stage and reads its config.json.
func (d *Deployer) fetchLatest(ctx context.Context, bucket *storage.Bucket, stageDir *storage.Directory) (*deployedVersion, error) {
	name, dir, err := latestVersion(stageDir, d.ordering)
	if err != nil {
		return nil, err
	}

	path := strings.TrimSuffix(dir.BucketKey, "/")
	data, err := d.gateway.GetFile(ctx, bucket, naming.ConfigKey(path))
	if err != nil {
		return nil, err
	}
	settings, err := config.ReadNodeSettings(data)
	if err != nil {
		return nil, err
	}

	return &deployedVersion{Name: name, Path: path, Dir: dir, Settings: settings}, nil
}

// checkConsistency refuses to touch a deployment made by another node
// version or in another region.
func (d *Deployer) checkConsistency(latest *deployedVersion, provider cloud.Provider) error {
	if latest.Settings.NodeVersion != d.nodeVersion {
		return versionMismatch(latest.Settings.NodeVersion, d.nodeVersion)
	}
	if region := provider.Settings().Region; latest.Settings.CloudProvider.Region != region {
		return regionMismatch(latest.Settings.CloudProvider.Region, region)
	}
	return nil
}
