package handlers

import (
	"context"
	"fmt"

	"github.com/api3dao/airnode-deployer/internal/cloud"
	"github.com/api3dao/airnode-deployer/internal/config"
	"github.com/api3dao/airnode-deployer/internal/deployer"
	"github.com/api3dao/airnode-deployer/internal/receipt"
	"github.com/api3dao/airnode-deployer/internal/ui/prompt"
	"github.com/api3dao/airnode-deployer/internal/wallet"
)

// DeploymentDetails identify a deployment without a receipt.
type DeploymentDetails struct {
	AirnodeAddress string
	Stage          string
	CloudProvider  string
	Region         string
	ProjectID      string
}

// Resolve validates the details and returns the cloud provider together with
// the details carrying the checksummed Airnode address, which object keys use.
func (d DeploymentDetails) Resolve() (DeploymentDetails, cloud.Provider, error) {
	if err := wallet.ValidateAddress(d.AirnodeAddress); err != nil {
		return d, nil, fmt.Errorf("invalid airnode address %q: %w", d.AirnodeAddress, err)
	}
	if err := config.ValidateStage(d.Stage); err != nil {
		return d, nil, err
	}
	provider, err := cloud.Settings{
		Type:      cloud.Type(d.CloudProvider),
		Region:    d.Region,
		ProjectID: d.ProjectID,
	}.Provider()
	if err != nil {
		return d, nil, err
	}
	d.AirnodeAddress = wallet.ChecksumAddress(d.AirnodeAddress)
	return d, provider, nil
}

// RemoveWithReceipt handles the remove-with-receipt command.
func RemoveWithReceipt(ctx context.Context, settings config.Settings, receiptPath string, yes bool) error {
	r, err := receipt.Read(receiptPath)
	if err != nil {
		return err
	}
	address := r.AirnodeWallet.AirnodeAddress
	if err := wallet.ValidateAddress(address); err != nil {
		return fmt.Errorf("receipt %s: invalid airnode address: %w", receiptPath, err)
	}
	provider, err := r.Deployment.CloudProvider.Provider()
	if err != nil {
		return fmt.Errorf("receipt %s: %w", receiptPath, err)
	}
	return remove(ctx, settings, wallet.ChecksumAddress(address), r.Deployment.Stage, provider, yes)
}

// RemoveWithDeploymentDetails handles the remove-with-deployment-details command.
func RemoveWithDeploymentDetails(ctx context.Context, settings config.Settings, details DeploymentDetails, yes bool) error {
	details, provider, err := details.Resolve()
	if err != nil {
		return err
	}
	return remove(ctx, settings, details.AirnodeAddress, details.Stage, provider, yes)
}

func remove(ctx context.Context, settings config.Settings, airnodeAddress, stage string, provider cloud.Provider, yes bool) error {
	rt, err := newRuntime(settings)
	if err != nil {
		return err
	}
	defer rt.finish()
	ctx, cancel := rt.withTimeout(ctx)
	defer cancel()

	removal := prompt.Removal{
		AirnodeAddress: airnodeAddress,
		Stage:          stage,
		CloudProvider:  string(provider.Settings().Type),
		Region:         provider.Settings().Region,
	}
	if err := prompt.ConfirmRemoval(ctx, confirmer, removal, yes, isInteractive()); err != nil {
		return err
	}

	gw, closeGateway, err := rt.gateway(ctx, provider)
	if err != nil {
		return err
	}
	defer closeGateway()

	rt.logger.Info("Removing Airnode", "airnodeAddress", airnodeAddress, "stage", stage,
		"cloudProvider", removal.CloudProvider, "region", removal.Region)

	reporter := newReporter(fmt.Sprintf("Removing Airnode %s (%s)", airnodeAddress, stage), rt.logger)
	d, err := rt.deployer(gw, provider, reporter)
	if err != nil {
		reporter.Close()
		return err
	}

	err = d.Remove(ctx, deployer.RemoveRequest{AirnodeAddress: airnodeAddress, Stage: stage, Provider: provider})
	reporter.Close()
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Removed Airnode %s (stage %s)\n", airnodeAddress, stage)
	return nil
}
