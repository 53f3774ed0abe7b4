package handlers

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/api3dao/airnode-deployer/internal/config"
	"github.com/api3dao/airnode-deployer/internal/deployer"
)

// DeployOptions are the arguments of the deploy command.
type DeployOptions struct {
	ConfigPath  string
	SecretsPath string
	ReceiptPath string
	AutoRemove  bool
}

// Deploy handles the deploy command.
//
// It validates config.json and secrets.env, deploys a new version of the
// configured stage and writes the receipt.
func Deploy(ctx context.Context, settings config.Settings, opts DeployOptions) error {
	rt, err := newRuntime(settings)
	if err != nil {
		return err
	}
	defer rt.finish()
	ctx, cancel := rt.withTimeout(ctx)
	defer cancel()

	secrets, rawSecrets, err := config.LoadSecrets(opts.SecretsPath)
	if err != nil {
		return err
	}
	wallet, err := config.WalletFromSecrets(secrets)
	if err != nil {
		return err
	}
	cfg, rawConfig, err := config.LoadAirnode(opts.ConfigPath, secrets, NodeVersion)
	if err != nil {
		return err
	}
	provider, err := cfg.NodeSettings.CloudProvider.Provider()
	if err != nil {
		return err
	}

	configPath, err := filepath.Abs(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	secretsPath, err := filepath.Abs(opts.SecretsPath)
	if err != nil {
		return fmt.Errorf("failed to resolve secrets path: %w", err)
	}

	gw, closeGateway, err := rt.gateway(ctx, provider)
	if err != nil {
		return err
	}
	defer closeGateway()

	stage := cfg.NodeSettings.Stage
	rt.logger.Info("Deploying Airnode", "airnodeAddress", wallet.Address, "stage", stage,
		"cloudProvider", provider.Settings().Type, "region", provider.Settings().Region)

	reporter := newReporter(fmt.Sprintf("Deploying Airnode %s (%s)", wallet.Address, stage), rt.logger)
	d, err := rt.deployer(gw, provider, reporter)
	if err != nil {
		reporter.Close()
		return err
	}

	result, err := d.Deploy(ctx, deployer.DeployRequest{
		AirnodeAddress: wallet.Address,
		AirnodeXpub:    wallet.Xpub,
		Stage:          stage,
		Provider:       provider,
		Gateways:       cfg.NodeSettings.Gateways(),
		ConfigPath:     configPath,
		SecretsPath:    secretsPath,
		Config:         rawConfig,
		Secrets:        rawSecrets,
		AutoRemove:     opts.AutoRemove,
		ReceiptPath:    opts.ReceiptPath,
	})
	reporter.Close()
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Deployed Airnode %s (stage %s, version %s)\n", wallet.Address, stage, result.Version)
	for _, url := range []struct{ name, value string }{
		{"HTTP gateway", result.URLs.HTTP},
		{"HTTP signed data gateway", result.URLs.HTTPSignedData},
		{"OEV gateway", result.URLs.OEV},
	} {
		if url.value != "" {
			fmt.Fprintf(stdout, "  %s: %s\n", url.name, url.value)
		}
	}
	if opts.ReceiptPath != "" {
		fmt.Fprintf(stdout, "Receipt written to %s\n", opts.ReceiptPath)
	}
	return nil
}
