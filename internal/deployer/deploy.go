package deployer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/api3dao/airnode-deployer/internal/cloud"
	"github.com/api3dao/airnode-deployer/internal/receipt"
	"github.com/api3dao/airnode-deployer/internal/storage"
	"github.com/api3dao/airnode-deployer/internal/terraform"
	"github.com/api3dao/airnode-deployer/internal/util/naming"
	"github.com/api3dao/airnode-deployer/internal/wallet"
)

const (
	airnodeModule = "airnode"
	stateModule   = "state"
)

// DeployRequest describes one deployment of an Airnode stage.
type DeployRequest struct {
	AirnodeAddress string
	AirnodeXpub    string
	Stage          string
	Provider       cloud.Provider
	Gateways       terraform.Gateways

	// ConfigPath and SecretsPath are the local files handed to Terraform.
	ConfigPath  string
	SecretsPath string
	// Config and Secrets are the raw file contents stored with the version.
	Config  []byte
	Secrets []byte

	// AutoRemove removes the deployment again when provisioning fails.
	AutoRemove bool
	// ReceiptPath is where the receipt is written. Empty disables receipts.
	ReceiptPath string
}

// DeployResult describes a successful deployment.
type DeployResult struct {
	Bucket         storage.Bucket
	Version        string
	DeploymentPath string
	Timestamp      time.Time
	URLs           terraform.GatewayURLs
}

// deployResult is the outcome of the deploy steps before any rollback.
type deployResult struct {
	value *DeployResult
	err   error
	// provisioned is set once the new version started being written.
	provisioned bool
}

type rollbackOutcome int

const (
	rollbackSkipped rollbackOutcome = iota
	rollbackDisabled
	rollbackSucceeded
	rollbackFailed
)

// Deploy deploys a new version of an Airnode stage.
//
// Stored state is checked before anything is written. A failure after that
// point is rolled back by removing the stage when req.AutoRemove is set.
// The deploy error is returned either way, wrapped in an *AggregateError
// when the removal failed too.
func (d *Deployer) Deploy(ctx context.Context, req DeployRequest) (*DeployResult, error) {
	result := d.deploy(ctx, req)
	outcome, removeErr := d.rollback(ctx, req, result)

	err := result.err
	log := d.logger.WithValues("airnodeAddress", req.AirnodeAddress, "stage", req.Stage)
	switch outcome {
	case rollbackDisabled:
		log.Info("Deployment failed, auto-remove is disabled so deployed resources were left in place")
	case rollbackSucceeded:
		log.Info("Deployment failed, deployed resources were removed")
	case rollbackFailed:
		err = &AggregateError{Deploy: result.err, Remove: removeErr}
	}

	d.metrics.Operation("deploy", err)
	if err != nil {
		return nil, err
	}
	return result.value, nil
}

func (d *Deployer) rollback(ctx context.Context, req DeployRequest, result deployResult) (rollbackOutcome, error) {
	switch {
	case result.err == nil || !result.provisioned:
		return rollbackSkipped, nil
	case !req.AutoRemove:
		return rollbackDisabled, nil
	}

	d.logger.Info("Removing the failed deployment", "error", result.err.Error())
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.rollbackTimeout)
	defer cancel()
	err := d.Remove(rctx, RemoveRequest{
		AirnodeAddress: req.AirnodeAddress,
		Stage:          req.Stage,
		Provider:       req.Provider,
	})
	d.metrics.Rollback(err)
	if err != nil {
		return rollbackFailed, err
	}
	return rollbackSucceeded, nil
}

func (d *Deployer) deploy(ctx context.Context, req DeployRequest) deployResult {
	if req.Provider == nil {
		return deployResult{err: errors.New("cloud provider is required")}
	}

	run := &deployRun{
		d:     d,
		req:   req,
		short: wallet.ShortAddress(req.AirnodeAddress),
		kind:  string(req.Provider.Settings().Type),
	}
	defer run.close()

	err := d.runSteps(ctx, []step{
		{name: "Checking Terraform state bucket", run: run.ensureStateBucket},
		{name: "Resolving Airnode bucket", run: run.resolveBucket},
		{name: "Checking deployment consistency", run: run.checkConsistency},
	})
	if err != nil {
		return deployResult{err: err}
	}

	err = d.runSteps(ctx, []step{
		{name: "Uploading deployment files", run: run.upload},
		{name: "Writing receipt", run: run.writeAttemptedReceipt},
	})
	if err != nil {
		run.finish(false)
		return deployResult{err: err}
	}

	steps := []step{{name: "Initializing Terraform", run: run.init}}
	if len(req.Provider.ImportOptions()) > 0 {
		steps = append(steps, step{name: "Importing existing resources", run: run.importResources})
	}
	steps = append(steps,
		step{name: "Deploying Airnode", run: run.apply},
		step{name: "Reading gateway URLs", run: run.readOutputs},
	)

	// Terraform may have created resources from here on.
	if err := d.runSteps(ctx, steps); err != nil {
		run.finish(false)
		return deployResult{err: err, provisioned: true}
	}
	if err := run.writeFinalReceipt(true); err != nil {
		return deployResult{err: err}
	}

	return deployResult{value: &DeployResult{
		Bucket:         *run.bucket,
		Version:        run.version,
		DeploymentPath: run.path,
		Timestamp:      run.timestamp,
		URLs:           run.urls,
	}}
}

// deployRun carries the state shared by the steps of one deployment.
type deployRun struct {
	d     *Deployer
	req   DeployRequest
	short string
	kind  string

	bucket    *storage.Bucket
	previous  *deployedVersion
	timestamp time.Time
	version   string
	path      string
	workdir   string
	cleanup   func()
	urls      terraform.GatewayURLs
}

// finish records a failed deployment in the receipt. The deploy error takes
// precedence, so a receipt error is only logged.
func (r *deployRun) finish(success bool) {
	if err := r.writeFinalReceipt(success); err != nil {
		r.d.logger.Error(err, "Failed to write receipt")
	}
}

func (r *deployRun) close() {
	if r.cleanup != nil {
		r.cleanup()
	}
}

// ensureStateBucket provisions the Terraform state bucket of the stage when
// the provider ships a state module and the bucket does not exist yet.
func (r *deployRun) ensureStateBucket(ctx context.Context) error {
	moduleDir := r.d.modulePath(r.kind, stateModule)
	if _, err := os.Stat(moduleDir); errors.Is(err, fs.ErrNotExist) {
		r.d.logger.V(1).Info("No state module, skipping state bucket", "module", moduleDir)
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to read terraform module %s: %w", moduleDir, err)
	}

	name := naming.StateBucket(r.short, r.req.Stage)
	exists, err := r.d.gateway.BucketExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	dir, cleanup, err := r.d.prepareModule(r.kind, stateModule)
	if err != nil {
		return err
	}
	defer cleanup()

	r.d.logger.Info("Creating Terraform state bucket", "bucket", name)
	if _, err := r.d.terraform(ctx, terraform.Command{
		Name: "init",
		Args: []terraform.Argument{terraform.Pair("input", "false"), terraform.Flag("no-color")},
		Dir:  dir,
	}); err != nil {
		return err
	}

	args := r.req.Provider.ManageArguments()
	args = append(args,
		terraform.Var("bucket_name", name),
		terraform.Pair("input", "false"),
		terraform.Flag("no-color"),
		terraform.Flag("auto-approve"),
	)
	_, err = r.d.terraform(ctx, terraform.Command{Name: "apply", Args: args, Dir: dir})
	return err
}

func (r *deployRun) resolveBucket(ctx context.Context) error {
	bucket, err := r.d.gateway.AirnodeBucket(ctx)
	if err != nil {
		return err
	}
	if bucket == nil {
		r.d.logger.Info("No Airnode bucket found, creating one")
		if bucket, err = r.d.gateway.CreateAirnodeBucket(ctx); err != nil {
			return err
		}
	}
	r.bucket = bucket
	r.d.logger.V(1).Info("Using Airnode bucket", "bucket", bucket.Name, "region", bucket.Region)
	return nil
}

func (r *deployRun) checkConsistency(ctx context.Context) error {
	tree, err := r.d.gateway.DirectoryStructure(ctx, r.bucket)
	if err != nil {
		return err
	}
	stageDir, err := storage.StageDirectory(tree, r.req.AirnodeAddress, r.req.Stage)
	if err != nil {
		return err
	}
	if stageDir == nil {
		r.d.logger.V(1).Info("First deployment of this stage")
		return nil
	}

	latest, err := r.d.fetchLatest(ctx, r.bucket, stageDir)
	if err != nil {
		return err
	}
	if err := r.d.checkConsistency(latest, r.req.Provider); err != nil {
		return err
	}
	r.previous = latest
	r.d.logger.V(1).Info("Updating existing deployment", "latestVersion", latest.Name)
	return nil
}

func (r *deployRun) upload(ctx context.Context) error {
	r.timestamp = r.d.now()
	r.version = naming.Version(r.timestamp)
	r.path = naming.DeploymentPath(r.req.AirnodeAddress, r.req.Stage, r.version)

	if err := r.d.gateway.StoreFile(ctx, r.bucket, naming.ConfigKey(r.path), r.req.Config); err != nil {
		return err
	}
	if err := r.d.gateway.StoreFile(ctx, r.bucket, naming.SecretsKey(r.path), r.req.Secrets); err != nil {
		return err
	}

	if r.previous != nil && r.previous.HasState() {
		if err := r.d.gateway.CopyFile(ctx, r.bucket, naming.StateKey(r.previous.Path), naming.StateKey(r.path)); err != nil {
			return err
		}
	}
	return nil
}

func (r *deployRun) receipt(success bool) *receipt.Receipt {
	return &receipt.Receipt{
		AirnodeWallet: receipt.AirnodeWallet{
			AirnodeAddress:      r.req.AirnodeAddress,
			AirnodeAddressShort: r.short,
			AirnodeXpub:         r.req.AirnodeXpub,
		},
		Deployment: receipt.Deployment{
			AirnodeAddressShort: r.short,
			CloudProvider:       r.req.Provider.Settings(),
			Stage:               r.req.Stage,
			NodeVersion:         r.d.nodeVersion,
			Timestamp:           r.timestamp.UTC(),
		},
		API: receipt.API{
			HTTPGatewayURL:           r.urls.HTTP,
			HTTPSignedDataGatewayURL: r.urls.HTTPSignedData,
			OEVGatewayURL:            r.urls.OEV,
		},
		Success: success,
	}
}

// writeAttemptedReceipt records the deployment before Terraform runs, so an
// interrupted run can still be removed with the receipt.
func (r *deployRun) writeAttemptedReceipt(context.Context) error {
	if r.req.ReceiptPath == "" {
		return nil
	}
	return receipt.Write(r.req.ReceiptPath, r.receipt(false))
}

func (r *deployRun) writeFinalReceipt(success bool) error {
	if r.req.ReceiptPath == "" || r.version == "" {
		return nil
	}
	return receipt.Write(r.req.ReceiptPath, r.receipt(success))
}

func (r *deployRun) init(ctx context.Context) error {
	dir, cleanup, err := r.d.prepareModule(r.kind, airnodeModule)
	if err != nil {
		return err
	}
	r.workdir, r.cleanup = dir, cleanup

	args := r.req.Provider.InitArguments(r.bucket.Name, r.path)
	args = append(args, terraform.Pair("input", "false"), terraform.Flag("no-color"))
	_, err = r.d.terraform(ctx, terraform.Command{Name: "init", Args: args, Dir: r.workdir})
	return err
}

func (r *deployRun) variables() []terraform.Argument {
	args := r.req.Provider.ManageArguments()
	args = append(args, terraform.CommonVariables{
		AirnodeAddressShort:           r.short,
		Stage:                         r.req.Stage,
		ConfigPath:                    r.req.ConfigPath,
		SecretsPath:                   r.req.SecretsPath,
		HandlerDir:                    r.d.handlerDir,
		DisableConcurrencyReservation: r.req.Provider.Settings().DisableConcurrencyReservations,
	}.Arguments()...)
	return append(args, r.req.Gateways.Arguments()...)
}

// importResources adopts resources that may exist outside of Terraform state.
// A failed import means there was nothing to adopt.
func (r *deployRun) importResources(ctx context.Context) error {
	for _, imp := range r.req.Provider.ImportOptions() {
		if _, err := r.d.terraform(ctx, terraform.Command{
			Name:        "import",
			Args:        r.variables(),
			Positional:  []string{imp.Address, imp.ID},
			Dir:         r.workdir,
			IgnoreError: true,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (r *deployRun) apply(ctx context.Context) error {
	args := append(r.variables(), terraform.Flag("auto-approve"))
	_, err := r.d.terraform(ctx, terraform.Command{Name: "apply", Args: args, Dir: r.workdir})
	return err
}

func (r *deployRun) readOutputs(ctx context.Context) error {
	out, err := r.d.terraform(ctx, terraform.Command{
		Name: "output",
		Args: []terraform.Argument{terraform.Flag("json"), terraform.Flag("no-color")},
		Dir:  r.workdir,
	})
	if err != nil {
		return err
	}
	r.urls, err = terraform.ParseOutputs(out)
	return err
}
