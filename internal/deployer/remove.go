package deployer

import (
	"context"
	"errors"

	"github.com/api3dao/airnode-deployer/internal/cloud"
	"github.com/api3dao/airnode-deployer/internal/storage"
	"github.com/api3dao/airnode-deployer/internal/terraform"
	"github.com/api3dao/airnode-deployer/internal/wallet"
)

// RemoveRequest identifies the deployment to remove.
type RemoveRequest struct {
	AirnodeAddress string
	Stage          string
	Provider       cloud.Provider
}

// Remove destroys the cloud resources of a stage and deletes its versions.
// The address directory and the bucket are deleted too once they are empty.
func (d *Deployer) Remove(ctx context.Context, req RemoveRequest) error {
	err := d.remove(ctx, req)
	d.metrics.Operation("remove", err)
	return err
}

func (d *Deployer) remove(ctx context.Context, req RemoveRequest) error {
	if req.Provider == nil {
		return errors.New("cloud provider is required")
	}

	run := &removeRun{
		d:     d,
		req:   req,
		short: wallet.ShortAddress(req.AirnodeAddress),
		kind:  string(req.Provider.Settings().Type),
	}
	defer run.close()

	return d.runSteps(ctx, []step{
		{name: "Resolving Airnode bucket", run: run.resolveBucket},
		{name: "Checking deployment consistency", run: run.checkConsistency},
		{name: "Initializing Terraform", run: run.init},
		{name: "Removing Airnode", run: run.destroy},
		{name: "Deleting deployment files", run: run.deleteFiles},
	})
}

type removeRun struct {
	d     *Deployer
	req   RemoveRequest
	short string
	kind  string

	bucket  *storage.Bucket
	latest  *deployedVersion
	workdir string
	cleanup func()
}

func (r *removeRun) close() {
	if r.cleanup != nil {
		r.cleanup()
	}
}

func (r *removeRun) resolveBucket(ctx context.Context) error {
	bucket, err := r.d.gateway.AirnodeBucket(ctx)
	if err != nil {
		return err
	}
	if bucket == nil {
		return ErrNoBucketAvailable
	}
	r.bucket = bucket
	return nil
}

func (r *removeRun) checkConsistency(ctx context.Context) error {
	tree, err := r.d.gateway.DirectoryStructure(ctx, r.bucket)
	if err != nil {
		return err
	}
	stageDir, err := storage.StageDirectory(tree, r.req.AirnodeAddress, r.req.Stage)
	if err != nil {
		return err
	}
	if stageDir == nil {
		return &DeploymentNotFoundError{Address: r.req.AirnodeAddress, Stage: r.req.Stage}
	}

	latest, err := r.d.fetchLatest(ctx, r.bucket, stageDir)
	if err != nil {
		return err
	}
	if err := r.d.checkConsistency(latest, r.req.Provider); err != nil {
		return err
	}
	r.latest = latest
	return nil
}

func (r *removeRun) init(ctx context.Context) error {
	dir, cleanup, err := r.d.prepareModule(r.kind, airnodeModule)
	if err != nil {
		return err
	}
	r.workdir, r.cleanup = dir, cleanup

	args := r.req.Provider.InitArguments(r.bucket.Name, r.latest.Path)
	args = append(args, terraform.Pair("input", "false"), terraform.Flag("no-color"))
	_, err = r.d.terraform(ctx, terraform.Command{Name: "init", Args: args, Dir: r.workdir})
	return err
}

// destroy passes NULL for the config and secrets files.
func (r *removeRun) destroy(ctx context.Context) error {
	args := r.req.Provider.ManageArguments()
	args = append(args, terraform.CommonVariables{
		AirnodeAddressShort:           r.short,
		Stage:                         r.req.Stage,
		HandlerDir:                    r.d.handlerDir,
		DisableConcurrencyReservation: r.req.Provider.Settings().DisableConcurrencyReservations,
	}.Arguments()...)
	args = append(args, terraform.Flag("auto-approve"))

	_, err := r.d.terraform(ctx, terraform.Command{Name: "destroy", Args: args, Dir: r.workdir})
	return err
}

func (r *removeRun) deleteFiles(ctx context.Context) error {
	tree, err := r.d.gateway.DirectoryStructure(ctx, r.bucket)
	if err != nil {
		return err
	}
	plan, err := PlanRemoval(tree, r.req.AirnodeAddress, r.req.Stage)
	if err != nil {
		return err
	}
	return r.d.executePlan(ctx, r.bucket, plan)
}

func (d *Deployer) executePlan(ctx context.Context, bucket *storage.Bucket, plan Plan) error {
	for _, dir := range plan.Directories {
		d.logger.V(1).Info("Deleting directory", "bucket", bucket.Name, "key", dir.BucketKey)
		if err := d.gateway.DeleteDirectory(ctx, bucket, dir); err != nil {
			return err
		}
	}
	if plan.DeleteBucket {
		d.logger.Info("Deleting empty Airnode bucket", "bucket", bucket.Name)
		return d.gateway.DeleteBucket(ctx, bucket)
	}
	return nil
}
