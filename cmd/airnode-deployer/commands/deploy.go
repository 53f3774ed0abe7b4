package commands

import (
	"github.com/spf13/cobra"

	"github.com/api3dao/airnode-deployer/cmd/airnode-deployer/handlers"
)

// Deploy returns the deploy command.
func Deploy() *cobra.Command {
	var opts handlers.DeployOptions

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy an Airnode",
		Long: `Deploy creates a new version of an Airnode stage in the configured cloud.

The configuration and secrets are validated and stored in the Airnode bucket
of the cloud account. The Terraform state of the previous version is carried
forward so that the existing resources are updated in place.

When provisioning fails and --auto-remove is set, the deployment is removed
again. A receipt describing the deployment is written to --receipt and can be
passed to remove-with-receipt later.

Example:
  airnode-deployer deploy -c config/config.json -s config/secrets.env -r output/receipt.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := settings(cmd)
			if err != nil {
				return err
			}
			return handlers.Deploy(cmd.Context(), s, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "configuration", "c", "config/config.json", "Path to Airnode configuration file")
	cmd.Flags().StringVarP(&opts.SecretsPath, "secrets", "s", "config/secrets.env", "Path to secrets file")
	cmd.Flags().StringVarP(&opts.ReceiptPath, "receipt", "r", "output/receipt.json", "Output path for receipt file")
	cmd.Flags().BoolVar(&opts.AutoRemove, "auto-remove", true, "Remove the deployment again when it fails")

	return cmd
}
